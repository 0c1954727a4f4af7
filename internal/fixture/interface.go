package fixture

import (
	"context"

	"github.com/mattjoyce/extfixture/internal/extension"
	"github.com/mattjoyce/extfixture/internal/repository"
)

//go:generate mockgen -destination=mocks/mock_fixture.go -package=mocks github.com/mattjoyce/extfixture/internal/fixture RepositoryManager,Initializer,Packager

// RepositoryManager is the repository registry the fixture populates.
type RepositoryManager interface {
	Add(repo repository.Repository) error
	AddRepository(id repository.ID) (repository.Repository, error)
}

// Initializer is the system initialization run as the last setup step.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Packager generates extensions into the workspace.
type Packager interface {
	GenerateExtensions(ctx context.Context) ([]extension.ID, error)
}
