package resource

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrCopyFailed wraps every I/O failure raised while materializing a package.
var ErrCopyFailed = errors.New("resource copy failed")

// Status is the outcome of copying one resource package.
type Status string

const (
	StatusEmpty  Status = "empty"
	StatusCopied Status = "copied"
	StatusFailed Status = "failed"
)

// Result reports what CopyFolder did for one (target, package) pair.
type Result struct {
	Target  string
	Package string
	Files   int
	Status  Status
}

// HasFiles reports whether at least one resource was copied.
func (r Result) HasFiles() bool {
	return r.Status == StatusCopied && r.Files > 0
}

// CopyFolder creates targetDir and copies every resource under pkg into it,
// preserving paths relative to pkg.
//
// The copy is not transactional: when a file fails, files copied before it
// stay on disk and the returned Result carries StatusFailed with the count
// reached so far.
func CopyFolder(lookup Lookup, targetDir, pkg string) (Result, error) {
	res := Result{Target: targetDir, Package: pkg, Status: StatusFailed}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return res, fmt.Errorf("%w: create %q: %w", ErrCopyFailed, targetDir, err)
	}

	ids, err := lookup.List(pkg)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrCopyFailed, err)
	}

	for _, id := range ids {
		rel, err := Relative(pkg, id)
		if err != nil {
			return res, fmt.Errorf("%w: %w", ErrCopyFailed, err)
		}
		if err := copyOne(lookup, id, filepath.Join(targetDir, filepath.FromSlash(rel))); err != nil {
			return res, fmt.Errorf("%w: %w", ErrCopyFailed, err)
		}
		res.Files++
	}

	if res.Files == 0 {
		res.Status = StatusEmpty
	} else {
		res.Status = StatusCopied
	}
	return res, nil
}

func copyOne(lookup Lookup, id, dst string) (err error) {
	src, err := lookup.Open(id)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create parent of %q: %w", dst, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %q: %w", dst, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %q: %w", dst, cerr)
		}
	}()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("copy %q to %q: %w", id, dst, err)
	}
	return nil
}
