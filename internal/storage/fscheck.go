package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Use names the state a fixture keeps at a path. Each of them depends on
// flock, which network filesystems do not honor reliably.
type Use string

const (
	UseWorkspaceBase Use = "workspace base directory"
	UseWorkspaceLock Use = "workspace lock"
	UseIndex         Use = "installed index"
)

// ErrNetworkFilesystem is wrapped by every NetworkFilesystemError.
var ErrNetworkFilesystem = errors.New("network filesystem")

// NetworkFilesystemError reports fixture state placed on a network mount.
type NetworkFilesystemError struct {
	Use    Use
	Path   string
	FSType string
}

func (e *NetworkFilesystemError) Error() string {
	return fmt.Sprintf("%s %s is on network filesystem %q; fixture workspaces need a local filesystem for locking, set base_dir to a local directory",
		e.Use, e.Path, e.FSType)
}

func (e *NetworkFilesystemError) Unwrap() error { return ErrNetworkFilesystem }

// fsTypeFunc returns the filesystem name for an existing path.
type fsTypeFunc func(path string) (string, error)

var networkFilesystems = []string{"afpfs", "cifs", "nfs", "nfs4", "smb2", "smbfs", "webdav"}

// RequireLocal fails with a *NetworkFilesystemError when path, or the closest
// directory above it that exists yet, is a network mount.
func RequireLocal(use Use, path string) error {
	return requireLocal(use, path, filesystemType)
}

func requireLocal(use Use, path string, fsType fsTypeFunc) error {
	if path == "" {
		return fmt.Errorf("%s path is empty", use)
	}

	existing, err := existingAncestor(path)
	if err != nil {
		return fmt.Errorf("%s: %w", use, err)
	}
	name, err := fsType(existing)
	if err != nil {
		return fmt.Errorf("%s: detect filesystem of %s: %w", use, existing, err)
	}
	if isNetworkFilesystem(name) {
		return &NetworkFilesystemError{Use: use, Path: path, FSType: name}
	}
	return nil
}

// existingAncestor walks up from path until something exists. Workspace roots
// and index files are checked before they are created.
func existingAncestor(path string) (string, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(dir)
		switch {
		case err == nil:
			return dir, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no existing directory above %s", path)
		}
		dir = parent
	}
}

func isNetworkFilesystem(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, n := range networkFilesystems {
		if name == n {
			return true
		}
	}
	return false
}
