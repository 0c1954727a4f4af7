// Package repository holds the extension sources a system under test resolves
// extensions from: flat descriptor directories, maven2 layouts and the
// in-memory core set.
package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattjoyce/extfixture/internal/extension"
)

// Repository type tags.
const (
	TypeMaven     = "maven"
	TypeLocalFile = "local-file"
	TypeCore      = "core"
)

// RemoteRepositoryID is the identifier of a fixture's remote file repository.
const RemoteRepositoryID = "remote"

var (
	ErrDuplicateRepository = errors.New("repository already registered")
	ErrExtensionNotFound   = errors.New("extension not found")
	ErrUnknownType         = errors.New("unknown repository type")
)

// ID describes a repository: identifier, type tag and location.
type ID struct {
	ID   string `json:"id" yaml:"id"`
	Type string `json:"type" yaml:"type"`
	URI  string `json:"uri" yaml:"uri"`
}

func (i ID) String() string {
	return fmt.Sprintf("%s (%s, %s)", i.ID, i.Type, i.URI)
}

// FileURI returns the file:// URI of a local directory.
func FileURI(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// LocalPath returns the directory an ID points at. Plain paths and file://
// URIs are accepted.
func (i ID) LocalPath() (string, error) {
	if i.URI == "" {
		return "", fmt.Errorf("repository %q has no location", i.ID)
	}
	if !strings.Contains(i.URI, "://") {
		return filepath.Clean(i.URI), nil
	}
	u, err := url.Parse(i.URI)
	if err != nil {
		return "", fmt.Errorf("repository %q: invalid uri: %w", i.ID, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("repository %q: unsupported scheme %q", i.ID, u.Scheme)
	}
	return filepath.FromSlash(u.Path), nil
}

// Repository is an extension source.
type Repository interface {
	Descriptor() ID
	// Resolve returns the extension with the exact id and version.
	Resolve(ctx context.Context, id extension.ID) (*extension.Extension, error)
	// Search returns extensions whose id, name or description contains query
	// (case-insensitive). An empty query matches everything.
	Search(ctx context.Context, query string) ([]extension.Extension, error)
}

func matchesQuery(e *extension.Extension, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	for _, s := range []string{e.ID, e.Name, e.Description} {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

func sortExtensions(exts []extension.Extension) {
	sort.Slice(exts, func(i, j int) bool {
		if exts[i].ID != exts[j].ID {
			return exts[i].ID < exts[j].ID
		}
		return extension.CompareVersions(exts[i].Version, exts[j].Version) < 0
	})
}

func notFound(repo string, id extension.ID) error {
	return fmt.Errorf("%s in %s: %w", id, repo, ErrExtensionNotFound)
}
