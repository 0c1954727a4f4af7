package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mattjoyce/extfixture/internal/extension"
	"github.com/mattjoyce/extfixture/internal/log"
)

// Factory builds a repository from its descriptor.
type Factory func(id ID, logger *slog.Logger) (Repository, error)

// Manager is the registry of repositories the system under test resolves from.
type Manager struct {
	mu        sync.RWMutex
	repos     map[string]Repository
	order     []string
	factories map[string]Factory
	logger    *slog.Logger
}

// NewManager creates a manager with factories for the maven and local-file types.
func NewManager(logger *slog.Logger) *Manager {
	m := &Manager{
		repos:     make(map[string]Repository),
		factories: make(map[string]Factory),
		logger:    log.OrDefault(logger, "repository"),
	}
	m.factories[TypeMaven] = func(id ID, logger *slog.Logger) (Repository, error) {
		return NewMavenRepository(id, logger)
	}
	m.factories[TypeLocalFile] = func(id ID, logger *slog.Logger) (Repository, error) {
		dir, err := id.LocalPath()
		if err != nil {
			return nil, err
		}
		return NewFileRepository(id.ID, dir, logger), nil
	}
	return m
}

// RegisterFactory installs or replaces the factory for a repository type.
func (m *Manager) RegisterFactory(repoType string, f Factory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[repoType] = f
}

// AddRepository builds a repository through the factory for id.Type and
// registers it.
func (m *Manager) AddRepository(id ID) (Repository, error) {
	m.mu.RLock()
	f, ok := m.factories[id.Type]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("repository %q: %w %q", id.ID, ErrUnknownType, id.Type)
	}

	repo, err := f(id, m.logger.With(slog.String("repository", id.ID)))
	if err != nil {
		return nil, fmt.Errorf("failed to create repository %q: %w", id.ID, err)
	}
	if err := m.Add(repo); err != nil {
		return nil, err
	}
	return repo, nil
}

// Add registers an already constructed repository.
func (m *Manager) Add(repo Repository) error {
	d := repo.Descriptor()
	if d.ID == "" {
		return fmt.Errorf("repository id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.repos[d.ID]; exists {
		return fmt.Errorf("repository %q: %w", d.ID, ErrDuplicateRepository)
	}
	m.repos[d.ID] = repo
	m.order = append(m.order, d.ID)

	m.logger.Info("registered repository", "repository", d.ID, "type", d.Type, "uri", d.URI)
	return nil
}

// Get returns the repository registered under id.
func (m *Manager) Get(id string) (Repository, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.repos[id]
	return r, ok
}

// All returns repositories in registration order.
func (m *Manager) All() []Repository {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Repository, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.repos[id])
	}
	return out
}

// Descriptors returns the descriptors of all repositories in registration order.
func (m *Manager) Descriptors() []ID {
	repos := m.All()
	out := make([]ID, 0, len(repos))
	for _, r := range repos {
		out = append(out, r.Descriptor())
	}
	return out
}

// Resolve asks each repository in order and returns the first hit.
func (m *Manager) Resolve(ctx context.Context, id extension.ID) (*extension.Extension, error) {
	for _, r := range m.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ext, err := r.Resolve(ctx, id)
		if err == nil {
			return ext, nil
		}
		if !errors.Is(err, ErrExtensionNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: %w", id, ErrExtensionNotFound)
}
