// Package fixture assembles an isolated extension environment on disk for a
// single test: a workspace tree, repositories seeded from bundled resources,
// generated extension archives and an initialized installed index.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattjoyce/extfixture/internal/component"
	"github.com/mattjoyce/extfixture/internal/config"
	"github.com/mattjoyce/extfixture/internal/environment"
	"github.com/mattjoyce/extfixture/internal/extension"
	"github.com/mattjoyce/extfixture/internal/installed"
	"github.com/mattjoyce/extfixture/internal/lock"
	"github.com/mattjoyce/extfixture/internal/log"
	"github.com/mattjoyce/extfixture/internal/packager"
	"github.com/mattjoyce/extfixture/internal/repository"
	"github.com/mattjoyce/extfixture/internal/resource"
	"github.com/mattjoyce/extfixture/internal/storage"
	"github.com/mattjoyce/extfixture/internal/workspace"
)

// ErrAlreadySetUp is returned by a second call to Setup.
var ErrAlreadySetUp = errors.New("fixture already set up")

// Setup steps, in execution order.
const (
	StepEnvironment = "register environment"
	StepCore        = "register core extensions"
	StepLocal       = "copy local repository"
	StepRemote      = "register remote repository"
	StepMaven       = "register maven repository"
	StepPackage     = "generate extensions"
	StepInitialize  = "initialize"
)

// Kind names a resource-backed repository of the workspace.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
	KindMaven  Kind = "maven"
)

// Fixture owns one workspace for the duration of a test. It is not safe for
// concurrent use; separate fixtures are independent.
type Fixture struct {
	layout     workspace.Layout
	components *component.Manager
	lookup     resource.Lookup
	cfg        *config.Config
	logger     *slog.Logger

	lock      *lock.PIDLock
	setUp     bool
	completed []string
	results   map[Kind]resource.Result
	generated []extension.ID
}

// New binds a fixture to layout. Nothing is created on disk until Setup.
// A nil components gets a fresh manager; a nil cfg uses config.Defaults.
func New(layout workspace.Layout, components *component.Manager, lookup resource.Lookup, cfg *config.Config, logger *slog.Logger) *Fixture {
	if components == nil {
		components = component.NewManager()
	}
	if cfg == nil {
		cfg = config.Defaults()
	}
	return &Fixture{
		layout:     layout,
		components: components,
		lookup:     lookup,
		cfg:        cfg,
		logger:     log.OrDefault(logger, "fixture").With(slog.String("workspace", layout.Name())),
		results:    make(map[Kind]resource.Result),
	}
}

// Allocate reserves a fresh workspace from workspaces and binds a fixture to it.
func Allocate(ctx context.Context, workspaces workspace.Manager, components *component.Manager, lookup resource.Lookup, cfg *config.Config, logger *slog.Logger) (*Fixture, error) {
	layout, err := workspaces.Allocate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate workspace: %w", err)
	}
	return New(layout, components, lookup, cfg, logger), nil
}

// Setup builds the environment. Steps run in order and the first failure
// aborts the rest; partially created directories are left in place.
func (f *Fixture) Setup(ctx context.Context) error {
	if f.setUp {
		return ErrAlreadySetUp
	}
	f.setUp = true

	if err := f.acquireLock(); err != nil {
		return err
	}

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{StepEnvironment, f.registerEnvironment},
		{StepCore, f.registerCore},
		{StepLocal, f.copyLocal},
		{StepRemote, func(ctx context.Context) error {
			_, err := f.registerIfNonEmpty(ctx, KindRemote, f.layout.Remote, f.cfg.Packages.Remote)
			return err
		}},
		{StepMaven, func(ctx context.Context) error {
			_, err := f.registerIfNonEmpty(ctx, KindMaven, f.layout.Maven, f.cfg.Packages.Maven)
			return err
		}},
		{StepPackage, f.generateExtensions},
		{StepInitialize, f.initialize},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		if err := step.run(ctx); err != nil {
			f.logger.Error("fixture setup failed", "step", step.name, "error", err)
			return fmt.Errorf("%s: %w", step.name, err)
		}
		f.completed = append(f.completed, step.name)
		f.logger.Debug("fixture step completed", "step", step.name)
	}

	f.logger.Info("fixture ready",
		"root", f.layout.Root,
		"generated", len(f.generated),
	)
	return nil
}

func (f *Fixture) acquireLock() error {
	if err := storage.RequireLocal(storage.UseWorkspaceLock, f.layout.Root); err != nil {
		return err
	}
	if err := os.MkdirAll(f.layout.Root, 0o755); err != nil {
		return fmt.Errorf("create workspace root: %w", err)
	}
	l, err := lock.AcquirePIDLock(filepath.Join(f.layout.Root, lock.FileName))
	if err != nil {
		return fmt.Errorf("failed to lock workspace: %w", err)
	}
	f.lock = l
	return nil
}

func (f *Fixture) registerEnvironment(context.Context) error {
	env := environment.Static{
		Permanent: f.layout.Permanent,
		Temporary: f.layout.Temporary,
	}
	for _, dir := range []string{env.Temporary, env.Permanent} {
		if err := f.layout.Ensure(dir); err != nil {
			return err
		}
	}
	return component.Register[environment.Environment](f.components, env)
}

func (f *Fixture) registerCore(context.Context) error {
	core := repository.NewCoreRepository()
	for _, ce := range f.cfg.CoreExtensions {
		core.AddExtension(ce.ID, ce.Version)
	}
	return component.Register(f.components, core)
}

func (f *Fixture) copyLocal(context.Context) error {
	res, err := f.CopyResourceFolder(f.layout.LocalRepository, f.cfg.Packages.Local)
	f.results[KindLocal] = res
	if err != nil {
		return err
	}
	f.logger.Debug("local repository populated", "files", res.Files)
	return nil
}

// registerIfNonEmpty copies pkg into dir and registers a repository of kind
// over it when at least one file was copied.
func (f *Fixture) registerIfNonEmpty(_ context.Context, kind Kind, dir, pkg string) (resource.Result, error) {
	res, err := f.CopyResourceFolder(dir, pkg)
	f.results[kind] = res
	if err != nil {
		return res, err
	}
	if !res.HasFiles() {
		f.logger.Debug("no fixtures, repository not registered", "kind", string(kind), "package", pkg)
		return res, nil
	}

	repos, err := f.Repositories()
	if err != nil {
		return res, err
	}

	switch kind {
	case KindRemote:
		err = repos.Add(repository.NewFileRepository(repository.RemoteRepositoryID, dir, f.logger))
	case KindMaven:
		_, err = repos.AddRepository(repository.ID{
			ID:   f.cfg.MavenRepositoryID,
			Type: repository.TypeMaven,
			URI:  repository.FileURI(dir),
		})
	default:
		err = fmt.Errorf("unsupported repository kind %q", kind)
	}
	if err != nil {
		return res, err
	}

	f.logger.Info("repository registered", "kind", string(kind), "dir", dir, "files", res.Files)
	return res, nil
}

func (f *Fixture) generateExtensions(ctx context.Context) error {
	p, err := component.Get[Packager](f.components)
	if errors.Is(err, component.ErrComponentNotFound) {
		p = packager.New(f.lookup, packager.Config{
			Package:    f.cfg.Packages.Packager,
			RemoteDir:  f.layout.Remote,
			InstallDir: f.layout.LocalRepository,
		}, f.logger)
		err = component.Register[Packager](f.components, p)
	}
	if err != nil {
		return err
	}

	ids, err := p.GenerateExtensions(ctx)
	if err != nil {
		return err
	}
	f.generated = ids
	return nil
}

func (f *Fixture) initialize(ctx context.Context) error {
	initializer, err := component.Get[Initializer](f.components)
	if errors.Is(err, component.ErrComponentNotFound) {
		initializer = installed.NewInitializer(f.components, f.logger)
		err = component.Register[Initializer](f.components, initializer)
	}
	if err != nil {
		return err
	}
	return initializer.Initialize(ctx)
}

// CopyResourceFolder copies every resource under pkg into targetDir. The
// target is created even when the package holds nothing.
func (f *Fixture) CopyResourceFolder(targetDir, pkg string) (resource.Result, error) {
	if err := f.layout.Ensure(targetDir); err != nil {
		return resource.Result{Target: targetDir, Package: pkg, Status: resource.StatusFailed}, err
	}
	return resource.CopyFolder(f.lookup, targetDir, pkg)
}

// Repositories returns the repository manager, registering a default one on
// first use.
func (f *Fixture) Repositories() (RepositoryManager, error) {
	m, err := component.Get[RepositoryManager](f.components)
	if errors.Is(err, component.ErrComponentNotFound) {
		rm := repository.NewManager(f.logger)
		if err := component.Register[RepositoryManager](f.components, rm); err != nil {
			return nil, err
		}
		return rm, nil
	}
	return m, err
}

// Close releases the workspace lock. The tree stays on disk.
func (f *Fixture) Close() error {
	if f.lock == nil {
		return nil
	}
	err := f.lock.Release()
	f.lock = nil
	return err
}

// Layout returns the workspace paths of the fixture. The directory accessors
// below are shorthands for its fields and match what the registered
// environment reports.
func (f *Fixture) Layout() workspace.Layout { return f.layout }

// Root is the workspace root, <base_dir>/test-<millis>-<token>.
func (f *Fixture) Root() string { return f.layout.Root }

// PermanentDir is the environment's permanent directory.
func (f *Fixture) PermanentDir() string { return f.layout.Permanent }

// TemporaryDir is the environment's temporary directory.
func (f *Fixture) TemporaryDir() string { return f.layout.Temporary }

// ExtensionDir is <permanent>/extension.
func (f *Fixture) ExtensionDir() string { return f.layout.Extension }

// LocalRepositoryDir holds the installed extensions the initializer indexes.
func (f *Fixture) LocalRepositoryDir() string { return f.layout.LocalRepository }

// MavenDir is the root of the maven2 layout repository.
func (f *Fixture) MavenDir() string { return f.layout.Maven }

// RemoteDir holds remote descriptors and generated archives.
func (f *Fixture) RemoteDir() string { return f.layout.Remote }

// MavenRepositoryID is the id the maven repository is registered under.
func (f *Fixture) MavenRepositoryID() string { return f.cfg.MavenRepositoryID }

// Components is the manager every setup step registers into.
func (f *Fixture) Components() *component.Manager { return f.components }

// Completed lists the setup steps that finished, in order.
func (f *Fixture) Completed() []string {
	return append([]string(nil), f.completed...)
}

// Result returns the copy outcome of kind, if that step ran.
func (f *Fixture) Result(kind Kind) (resource.Result, bool) {
	r, ok := f.results[kind]
	return r, ok
}

// Generated returns the extensions the packager produced.
func (f *Fixture) Generated() []extension.ID {
	return append([]extension.ID(nil), f.generated...)
}
