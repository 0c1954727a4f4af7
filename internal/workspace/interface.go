package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Names of the fixed children under a workspace root.
const (
	TemporaryDirName  = "temporary-dir"
	PermanentDirName  = "permanent-dir"
	ExtensionDirName  = "extension"
	RepositoryDirName = "repository"
	MavenDirName      = "maven"
	RemoteDirName     = "remote"

	rootPrefix = "test-"
)

// Layout is the directory tree of one fixture run. Computing a Layout never
// touches the disk; directories are created lazily through Ensure.
type Layout struct {
	Root            string
	Temporary       string
	Permanent       string
	Extension       string
	LocalRepository string
	Maven           string
	Remote          string
}

// NewLayout derives every child path from root.
func NewLayout(root string) Layout {
	root = filepath.Clean(root)
	permanent := filepath.Join(root, PermanentDirName)
	extension := filepath.Join(permanent, ExtensionDirName)

	return Layout{
		Root:            root,
		Temporary:       filepath.Join(root, TemporaryDirName),
		Permanent:       permanent,
		Extension:       extension,
		LocalRepository: filepath.Join(extension, RepositoryDirName),
		Maven:           filepath.Join(root, MavenDirName),
		Remote:          filepath.Join(root, RemoteDirName),
	}
}

// RootName returns the directory name of a workspace root allocated at now.
// token disambiguates roots allocated within the same millisecond.
func RootName(now time.Time, token string) string {
	name := fmt.Sprintf("%s%d", rootPrefix, now.UnixMilli())
	if token != "" {
		name += "-" + token
	}
	return name
}

// Name returns the base name of the workspace root.
func (l Layout) Name() string {
	return filepath.Base(l.Root)
}

// Children returns the six derived sub-paths in creation order.
func (l Layout) Children() []string {
	return []string{l.Temporary, l.Permanent, l.Extension, l.LocalRepository, l.Maven, l.Remote}
}

// Contains reports whether path is lexically nested under the workspace root.
func (l Layout) Contains(path string) bool {
	rel, err := filepath.Rel(l.Root, filepath.Clean(path))
	if err != nil {
		return false
	}
	if rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Ensure creates dir (and parents, including the root) if it does not exist.
func (l Layout) Ensure(dir string) error {
	if !l.Contains(dir) {
		return fmt.Errorf("path %q is outside workspace %q", dir, l.Root)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create workspace directory %q: %w", dir, err)
	}
	return nil
}

// Entry describes a workspace root found on disk.
type Entry struct {
	Layout  Layout
	ModTime time.Time
	// Locked is true while a live fixture holds the workspace lock.
	Locked bool
}

// PruneReport summarizes a prune run.
type PruneReport struct {
	DeletedDirs int
	SkippedLive int
}

// Manager allocates and inspects fixture workspaces under a base directory.
type Manager interface {
	// Allocate computes a fresh, unused workspace layout. Nothing is created.
	Allocate(ctx context.Context) (Layout, error)

	// Open resolves an existing workspace by root name.
	Open(ctx context.Context, name string) (Layout, error)

	// List returns workspace roots, newest first.
	List(ctx context.Context) ([]Entry, error)

	// Prune removes unlocked workspaces older than olderThan.
	Prune(ctx context.Context, olderThan time.Duration) (PruneReport, error)
}
