// Package resource copies bundled test resources into fixture directories.
//
// Resources are addressed the way a classpath addresses them: a package name
// such as "repository.local" names the directory "repository/local" inside the
// resource tree, and resource identifiers are slash-separated paths relative to
// the tree root.
package resource

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Lookup is the resource capability the materializer depends on.
type Lookup interface {
	// List returns the identifiers of every resource nested under pkg.
	// A package with no resources, or no directory at all, yields an empty list.
	List(pkg string) ([]string, error)

	// Open returns a stream over the resource with the given identifier.
	Open(id string) (io.ReadCloser, error)
}

// FSLookup implements Lookup over any fs.FS (embed.FS, os.DirFS, fstest.MapFS).
type FSLookup struct {
	fsys fs.FS
}

var _ Lookup = (*FSLookup)(nil)

// NewFSLookup wraps fsys.
func NewFSLookup(fsys fs.FS) *FSLookup {
	return &FSLookup{fsys: fsys}
}

// PackageDir converts a dotted package name to its directory in the resource tree.
func PackageDir(pkg string) string {
	return strings.ReplaceAll(strings.Trim(strings.TrimSpace(pkg), "."), ".", "/")
}

// List walks the package directory and returns regular files in lexical order.
func (l *FSLookup) List(pkg string) ([]string, error) {
	dir := PackageDir(pkg)
	if dir == "" || !fs.ValidPath(dir) {
		return nil, fmt.Errorf("invalid resource package %q", pkg)
	}

	info, err := fs.Stat(l.fsys, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat resource package %q: %w", pkg, err)
	}
	if !info.IsDir() {
		return nil, nil
	}

	var ids []string
	err = fs.WalkDir(l.fsys, dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.Type().IsRegular() {
			ids = append(ids, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan resource package %q: %w", pkg, err)
	}

	sort.Strings(ids)
	return ids, nil
}

// Open opens a resource by identifier.
func (l *FSLookup) Open(id string) (io.ReadCloser, error) {
	f, err := l.fsys.Open(id)
	if err != nil {
		return nil, fmt.Errorf("open resource %q: %w", id, err)
	}
	return f, nil
}

// Relative returns id relative to the package directory of pkg.
func Relative(pkg, id string) (string, error) {
	prefix := PackageDir(pkg) + "/"
	if !strings.HasPrefix(id, prefix) || len(id) == len(prefix) {
		return "", fmt.Errorf("resource %q is not nested under package %q", id, pkg)
	}
	rel := path.Clean(strings.TrimPrefix(id, prefix))
	if !fs.ValidPath(rel) {
		return "", fmt.Errorf("resource %q escapes package %q", id, pkg)
	}
	return rel, nil
}
