package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/extfixture/internal/extension"
	"github.com/mattjoyce/extfixture/internal/repository"
)

// handleHealthz handles GET /healthz.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Workspace:     s.config.Workspace,
		Repositories:  len(s.registry.All()),
	})
}

// handleListRepositories handles GET /repositories in registration order.
func (s *Server) handleListRepositories(w http.ResponseWriter, r *http.Request) {
	repos := s.registry.All()
	resp := make([]RepositoryResponse, 0, len(repos))
	for _, repo := range repos {
		resp = append(resp, newRepositoryResponse(repo.Descriptor()))
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleSearchExtensions handles GET /repositories/{id}/extensions?q=.
func (s *Server) handleSearchExtensions(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repository(w, r)
	if !ok {
		return
	}

	exts, err := repo.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.logger.Error("search failed", "repository", repo.Descriptor().ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	resp := make([]ExtensionResponse, 0, len(exts))
	for i := range exts {
		resp = append(resp, newExtensionResponse(&exts[i]))
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleResolveExtension handles GET /repositories/{id}/extensions/{ext}/{version}.
func (s *Server) handleResolveExtension(w http.ResponseWriter, r *http.Request) {
	repo, ok := s.repository(w, r)
	if !ok {
		return
	}

	id := extension.ID{ID: chi.URLParam(r, "ext"), Version: chi.URLParam(r, "version")}
	ext, err := repo.Resolve(r.Context(), id)
	switch {
	case errors.Is(err, repository.ErrExtensionNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.logger.Error("resolve failed", "repository", repo.Descriptor().ID, "extension", id.String(), "error", err)
		s.writeError(w, http.StatusInternalServerError, "resolve failed")
		return
	}
	respondJSON(w, http.StatusOK, newExtensionResponse(ext))
}

// handleInstalled handles GET /installed.
func (s *Server) handleInstalled(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		s.writeError(w, http.StatusNotFound, "workspace has no installed index")
		return
	}
	records, err := s.index.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list installed extensions", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list installed extensions")
		return
	}

	resp := make([]InstalledResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, newInstalledResponse(rec))
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleOpenAPI handles GET /openapi.json.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc(s.registry.All()))
}

func (s *Server) repository(w http.ResponseWriter, r *http.Request) (repository.Repository, bool) {
	id := chi.URLParam(r, "id")
	repo, ok := s.registry.Get(id)
	if !ok {
		s.writeError(w, http.StatusNotFound, "repository not found: "+id)
		return nil, false
	}
	return repo, true
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
