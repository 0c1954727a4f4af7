package repository

import (
	"context"
	"sync"

	"github.com/mattjoyce/extfixture/internal/extension"
)

// CoreRepositoryID is the identifier of the core extension source.
const CoreRepositoryID = "core"

// CoreRepository is the in-memory set of extensions the host ships with.
// Core extensions are always considered installed.
type CoreRepository struct {
	mu      sync.RWMutex
	entries map[string]extension.ID
	order   []string
}

var _ Repository = (*CoreRepository)(nil)

// NewCoreRepository returns an empty core set.
func NewCoreRepository() *CoreRepository {
	return &CoreRepository{entries: make(map[string]extension.ID)}
}

func (r *CoreRepository) Descriptor() ID {
	return ID{ID: CoreRepositoryID, Type: TypeCore}
}

// AddExtension declares a core extension. A later declaration of the same id
// replaces the version.
func (r *CoreRepository) AddExtension(id, version string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[id]; !exists {
		r.order = append(r.order, id)
	}
	r.entries[id] = extension.ID{ID: id, Version: version}
}

// AddExtensions declares several core extensions.
func (r *CoreRepository) AddExtensions(entries ...extension.ID) {
	for _, e := range entries {
		r.AddExtension(e.ID, e.Version)
	}
}

// Exists reports whether id is a core extension.
func (r *CoreRepository) Exists(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Get returns the core entry for id.
func (r *CoreRepository) Get(id string) (extension.ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Entries returns core entries in declaration order.
func (r *CoreRepository) Entries() []extension.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]extension.ID, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

func (r *CoreRepository) Resolve(_ context.Context, id extension.ID) (*extension.Extension, error) {
	e, ok := r.Get(id.ID)
	if !ok || e.Version != id.Version {
		return nil, notFound(CoreRepositoryID, id)
	}
	return r.toExtension(e), nil
}

func (r *CoreRepository) Search(_ context.Context, query string) ([]extension.Extension, error) {
	var out []extension.Extension
	for _, e := range r.Entries() {
		ext := r.toExtension(e)
		if matchesQuery(ext, query) {
			out = append(out, *ext)
		}
	}
	sortExtensions(out)
	return out, nil
}

func (r *CoreRepository) toExtension(e extension.ID) *extension.Extension {
	return &extension.Extension{
		Descriptor: extension.Descriptor{ID: e.ID, Version: e.Version, Type: TypeCore},
		Repository: CoreRepositoryID,
	}
}
