package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/extfixture/internal/lock"
)

const maxAllocateAttempts = 8

// fsWorkspaceManager manages fixture workspace roots on local disk.
type fsWorkspaceManager struct {
	baseDir string
	now     func() time.Time
	token   func() string
	locked  func(root string) bool
}

var _ Manager = (*fsWorkspaceManager)(nil)

// NewFSManager creates a filesystem-backed workspace manager rooted at baseDir.
func NewFSManager(baseDir string) (*fsWorkspaceManager, error) {
	trimmed := strings.TrimSpace(baseDir)
	if trimmed == "" {
		return nil, fmt.Errorf("workspace base directory is empty")
	}

	return &fsWorkspaceManager{
		baseDir: filepath.Clean(trimmed),
		now:     time.Now,
		token:   randomToken,
		locked:  isLocked,
	}, nil
}

// BaseDir returns the directory holding all workspace roots.
func (m *fsWorkspaceManager) BaseDir() string {
	return m.baseDir
}

// Allocate derives a root from the current time and a random token. A name
// that already exists on disk is never handed out twice.
func (m *fsWorkspaceManager) Allocate(ctx context.Context) (Layout, error) {
	if err := ctx.Err(); err != nil {
		return Layout{}, err
	}

	for range maxAllocateAttempts {
		root := filepath.Join(m.baseDir, RootName(m.now(), m.token()))
		_, err := os.Stat(root)
		if os.IsNotExist(err) {
			return NewLayout(root), nil
		}
		if err != nil {
			return Layout{}, fmt.Errorf("stat workspace root %q: %w", root, err)
		}
	}
	return Layout{}, fmt.Errorf("could not allocate a unique workspace under %q", m.baseDir)
}

// Open returns the layout of an existing workspace root.
func (m *fsWorkspaceManager) Open(ctx context.Context, name string) (Layout, error) {
	if err := ctx.Err(); err != nil {
		return Layout{}, err
	}
	if err := validateRootName(name); err != nil {
		return Layout{}, err
	}

	root := filepath.Join(m.baseDir, name)
	info, err := os.Stat(root)
	if err != nil {
		return Layout{}, fmt.Errorf("open workspace %q: %w", name, err)
	}
	if !info.IsDir() {
		return Layout{}, fmt.Errorf("workspace path %q is not a directory", name)
	}

	return NewLayout(root), nil
}

// List returns every test-* directory under the base directory, newest first.
func (m *fsWorkspaceManager) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(m.baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read workspace base directory: %w", err)
	}

	var out []Entry
	for _, entry := range entries {
		if !entry.IsDir() || validateRootName(entry.Name()) != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("read workspace entry info %q: %w", entry.Name(), err)
		}
		layout := NewLayout(filepath.Join(m.baseDir, entry.Name()))
		out = append(out, Entry{
			Layout:  layout,
			ModTime: info.ModTime(),
			Locked:  m.locked(layout.Root),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].ModTime.After(out[j].ModTime)
	})
	return out, nil
}

// Prune removes workspace roots whose modification time is older than
// olderThan. Roots held by a live fixture are skipped.
func (m *fsWorkspaceManager) Prune(ctx context.Context, olderThan time.Duration) (PruneReport, error) {
	if olderThan <= 0 {
		return PruneReport{}, fmt.Errorf("olderThan must be positive")
	}

	entries, err := m.List(ctx)
	if err != nil {
		return PruneReport{}, err
	}

	cutoff := m.now().Add(-olderThan)
	report := PruneReport{}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if entry.ModTime.After(cutoff) {
			continue
		}
		if entry.Locked {
			report.SkippedLive++
			continue
		}
		if err := os.RemoveAll(entry.Layout.Root); err != nil {
			return report, fmt.Errorf("remove workspace %q: %w", entry.Layout.Name(), err)
		}
		report.DeletedDirs++
	}

	return report, nil
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func isLocked(root string) bool {
	held, err := lock.IsHeld(filepath.Join(root, lock.FileName))
	return err == nil && held
}

func validateRootName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("workspace name is empty")
	}
	if strings.ContainsAny(trimmed, `/\`) {
		return fmt.Errorf("workspace name %q must not contain path separators", name)
	}
	if !strings.HasPrefix(trimmed, rootPrefix) || trimmed == rootPrefix {
		return fmt.Errorf("workspace name %q must start with %q", name, rootPrefix)
	}
	return nil
}
