package api

import (
	"time"

	"github.com/mattjoyce/extfixture/internal/extension"
	"github.com/mattjoyce/extfixture/internal/installed"
	"github.com/mattjoyce/extfixture/internal/repository"
)

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Workspace     string `json:"workspace,omitempty"`
	Repositories  int    `json:"repositories"`
}

// RepositoryResponse describes one registered repository.
type RepositoryResponse struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	URI  string `json:"uri,omitempty"`
}

// DependencyResponse is one declared dependency of an extension.
type DependencyResponse struct {
	ID       string `json:"id"`
	Version  string `json:"version,omitempty"`
	Resolved string `json:"resolved,omitempty"`
}

// ExtensionResponse is returned by the extension endpoints.
type ExtensionResponse struct {
	ID           string               `json:"id"`
	Version      string               `json:"version"`
	Type         string               `json:"type"`
	Name         string               `json:"name,omitempty"`
	Description  string               `json:"description,omitempty"`
	Repository   string               `json:"repository"`
	File         string               `json:"file,omitempty"`
	Checksum     string               `json:"checksum,omitempty"`
	Features     []string             `json:"features,omitempty"`
	Dependencies []DependencyResponse `json:"dependencies,omitempty"`
}

// InstalledResponse is one record of the installed index.
type InstalledResponse struct {
	ID            string               `json:"id"`
	Version       string               `json:"version"`
	Type          string               `json:"type"`
	Valid         bool                 `json:"valid"`
	InvalidReason string               `json:"invalid_reason,omitempty"`
	Dependencies  []DependencyResponse `json:"dependencies,omitempty"`
	IndexedAt     time.Time            `json:"indexed_at"`
}

func newRepositoryResponse(id repository.ID) RepositoryResponse {
	return RepositoryResponse{ID: id.ID, Type: id.Type, URI: id.URI}
}

func newExtensionResponse(e *extension.Extension) ExtensionResponse {
	resp := ExtensionResponse{
		ID:          e.ID,
		Version:     e.Version,
		Type:        e.Type,
		Name:        e.Name,
		Description: e.Description,
		Repository:  e.Repository,
		File:        e.File,
		Checksum:    e.Checksum,
		Features:    e.Features,
	}
	for _, d := range e.Dependencies {
		resp.Dependencies = append(resp.Dependencies, DependencyResponse{ID: d.ID, Version: d.Constraint})
	}
	return resp
}

func newInstalledResponse(r installed.Record) InstalledResponse {
	resp := InstalledResponse{
		ID:            r.ID.ID,
		Version:       r.Version,
		Type:          r.Type,
		Valid:         r.Valid,
		InvalidReason: r.InvalidReason,
		IndexedAt:     r.IndexedAt,
	}
	for _, d := range r.Dependencies {
		resp.Dependencies = append(resp.Dependencies, DependencyResponse{
			ID:       d.ID,
			Version:  d.Constraint,
			Resolved: d.Resolved,
		})
	}
	return resp
}
