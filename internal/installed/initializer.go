// Package installed is the default system initializer: it indexes the local
// extension repository of an environment and checks that every installed
// extension's dependencies are met.
package installed

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/mattjoyce/extfixture/internal/checksum"
	"github.com/mattjoyce/extfixture/internal/component"
	"github.com/mattjoyce/extfixture/internal/environment"
	"github.com/mattjoyce/extfixture/internal/extension"
	"github.com/mattjoyce/extfixture/internal/log"
	"github.com/mattjoyce/extfixture/internal/repository"
	"github.com/mattjoyce/extfixture/internal/storage"
	"github.com/mattjoyce/extfixture/internal/workspace"
)

// RepositoryID names the local repository the initializer reads.
const RepositoryID = "installed"

// Initializer resolves its collaborators from a component manager when
// Initialize runs, so fixtures may register them beforehand.
type Initializer struct {
	components *component.Manager
	logger     *slog.Logger
	now        func() time.Time
}

// NewInitializer creates an initializer bound to components.
func NewInitializer(components *component.Manager, logger *slog.Logger) *Initializer {
	return &Initializer{
		components: components,
		logger:     log.OrDefault(logger, "installed"),
		now:        time.Now,
	}
}

// ExtensionDir returns <permanent>/extension of env.
func ExtensionDir(env environment.Environment) string {
	return filepath.Join(env.PermanentDirectory(), workspace.ExtensionDirName)
}

// RepositoryDir returns the local repository directory of env.
func RepositoryDir(env environment.Environment) string {
	return filepath.Join(ExtensionDir(env), workspace.RepositoryDirName)
}

// IndexPath returns the installed index location of env.
func IndexPath(env environment.Environment) string {
	return filepath.Join(ExtensionDir(env), storage.IndexFileName)
}

// Initialize scans the local repository, validates dependencies and rewrites
// the index. Invalid extensions are recorded, not fatal.
func (i *Initializer) Initialize(ctx context.Context) error {
	env, err := component.Get[environment.Environment](i.components)
	if err != nil {
		return fmt.Errorf("resolve environment: %w", err)
	}
	core, err := component.Get[*repository.CoreRepository](i.components)
	if err != nil {
		return fmt.Errorf("resolve core extensions: %w", err)
	}

	local := repository.NewFileRepository(RepositoryID, RepositoryDir(env), i.logger)
	exts, err := local.Search(ctx, "")
	if err != nil {
		return fmt.Errorf("scan local repository: %w", err)
	}

	records := i.validate(exts, core)

	ix, err := OpenIndex(ctx, IndexPath(env))
	if err != nil {
		return fmt.Errorf("open installed index: %w", err)
	}
	defer ix.Close()

	if err := ix.Replace(ctx, records); err != nil {
		return err
	}

	invalid := 0
	for _, r := range records {
		if !r.Valid {
			invalid++
			i.logger.Warn("invalid installed extension", "extension", r.ID.String(), "reason", r.InvalidReason)
		}
	}
	i.logger.Info("initialized installed extensions",
		"repository", RepositoryDir(env),
		"extensions", len(records),
		"invalid", invalid,
	)
	return nil
}

// Installed lists the index written by the last Initialize.
func (i *Initializer) Installed(ctx context.Context) ([]Record, error) {
	env, err := component.Get[environment.Environment](i.components)
	if err != nil {
		return nil, fmt.Errorf("resolve environment: %w", err)
	}
	ix, err := OpenIndex(ctx, IndexPath(env))
	if err != nil {
		return nil, fmt.Errorf("open installed index: %w", err)
	}
	defer ix.Close()
	return ix.List(ctx)
}

type candidate struct {
	ext    extension.Extension
	record Record
}

// validate marks extensions whose archive is broken or whose dependencies are
// not met by a core extension or another valid installed extension. It runs
// until no more extensions are invalidated, so a broken extension invalidates
// its dependents.
func (i *Initializer) validate(exts []extension.Extension, core *repository.CoreRepository) []Record {
	exts = i.dedupe(exts)
	now := i.now().UTC()
	cands := make([]*candidate, 0, len(exts))
	for _, e := range exts {
		c := &candidate{
			ext: e,
			record: Record{
				ID:             e.Key(),
				Type:           e.Type,
				Name:           e.Name,
				DescriptorPath: e.Path,
				FilePath:       e.FilePath,
				Valid:          true,
				IndexedAt:      now,
			},
		}
		if reason := archiveProblem(&e); reason != "" {
			c.record.Valid = false
			c.record.InvalidReason = reason
		}
		cands = append(cands, c)
	}

	for changed := true; changed; {
		changed = false
		for _, c := range cands {
			if !c.record.Valid {
				continue
			}
			deps, reason := resolveDependencies(c, cands, core)
			c.record.Dependencies = deps
			if reason != "" {
				c.record.Valid = false
				c.record.InvalidReason = reason
				changed = true
			}
		}
	}

	out := make([]Record, 0, len(cands))
	for _, c := range cands {
		if c.record.Dependencies == nil {
			c.record.Dependencies, _ = resolveDependencies(c, cands, core)
		}
		out = append(out, c.record)
	}
	return out
}

// dedupe keeps one descriptor per id and version, the one with the lowest
// path. The index holds a single row per key.
func (i *Initializer) dedupe(exts []extension.Extension) []extension.Extension {
	first := make(map[extension.ID]int, len(exts))
	for n, e := range exts {
		if k, ok := first[e.Key()]; !ok || e.Path < exts[k].Path {
			first[e.Key()] = n
		}
	}
	if len(first) == len(exts) {
		return exts
	}

	out := make([]extension.Extension, 0, len(first))
	for n, e := range exts {
		kept := exts[first[e.Key()]]
		if first[e.Key()] != n {
			i.logger.Warn("skipping duplicate installed extension",
				"extension", e.Key().String(),
				"path", e.Path,
				"duplicate_of", kept.Path,
			)
			continue
		}
		out = append(out, e)
	}
	return out
}

func archiveProblem(e *extension.Extension) string {
	if e.FilePath == "" || e.Checksum == "" {
		return ""
	}
	if err := checksum.VerifyFileHash(e.FilePath, e.Checksum); err != nil {
		return err.Error()
	}
	return ""
}

func resolveDependencies(c *candidate, cands []*candidate, core *repository.CoreRepository) ([]ResolvedDependency, string) {
	deps := make([]ResolvedDependency, 0, len(c.ext.Dependencies))
	reason := ""
	for _, d := range c.ext.Dependencies {
		version, ok := resolve(d, cands, core)
		deps = append(deps, ResolvedDependency{ID: d.ID, Constraint: d.Constraint, Resolved: version})
		if !ok && reason == "" {
			reason = fmt.Sprintf("unresolved dependency %s", d.ID)
			if d.Constraint != "" {
				reason += " " + d.Constraint
			}
		}
	}
	return deps, reason
}

// resolve prefers a core extension, then the highest valid installed version.
func resolve(d extension.Dependency, cands []*candidate, core *repository.CoreRepository) (string, bool) {
	if e, ok := core.Get(d.ID); ok && extension.Satisfies(d.Constraint, e.Version) {
		return e.Version, true
	}

	best := ""
	for _, c := range cands {
		if !c.record.Valid || !c.ext.Provides(d.ID) || !extension.Satisfies(d.Constraint, c.ext.Version) {
			continue
		}
		if best == "" || extension.CompareVersions(c.ext.Version, best) > 0 {
			best = c.ext.Version
		}
	}
	return best, best != ""
}
