package api

import (
	"github.com/mattjoyce/extfixture/internal/repository"
)

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the read-only routes.
// The id parameter is enumerated from the registered repositories.
func buildOpenAPIDoc(repos []repository.Repository) map[string]any {
	ids := make([]string, 0, len(repos))
	for _, repo := range repos {
		ids = append(ids, repo.Descriptor().ID)
	}

	idParam := map[string]any{
		"name":     "id",
		"in":       "path",
		"required": true,
		"schema":   map[string]any{"type": "string", "enum": ids},
	}
	pathParam := func(name string) map[string]any {
		return map[string]any{
			"name":     name,
			"in":       "path",
			"required": true,
			"schema":   map[string]any{"type": "string"},
		}
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "Extension Fixture",
			"version": "1.0",
		},
		"paths": map[string]any{
			"/healthz":      getOperation("healthz", "Server status"),
			"/installed":    getOperation("installed", "Installed extension index"),
			"/repositories": getOperation("listRepositories", "Registered repositories"),
			"/repositories/{id}/extensions": withParams(
				getOperation("searchExtensions", "Search a repository"),
				idParam,
				map[string]any{"name": "q", "in": "query", "schema": map[string]any{"type": "string"}},
			),
			"/repositories/{id}/extensions/{ext}/{version}": withParams(
				getOperation("resolveExtension", "Resolve one extension version"),
				idParam, pathParam("ext"), pathParam("version"),
			),
		},
	}
}

func getOperation(id, summary string) map[string]any {
	return map[string]any{
		"get": map[string]any{
			"operationId": id,
			"summary":     summary,
			"responses": map[string]any{
				"200": map[string]any{"description": "OK"},
				"404": map[string]any{"description": "Not found"},
			},
		},
	}
}

func withParams(item map[string]any, params ...map[string]any) map[string]any {
	item["get"].(map[string]any)["parameters"] = params
	return item
}
