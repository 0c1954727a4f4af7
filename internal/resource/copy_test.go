package resource

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResources() fstest.MapFS {
	return fstest.MapFS{
		"repository/local/ext1/1.0/extension.yaml": &fstest.MapFile{Data: []byte("id: ext1\nversion: \"1.0\"\n")},
		"repository/local/ext2/2.0/extension.yaml": &fstest.MapFile{Data: []byte("id: ext2\nversion: \"2.0\"\n")},
		"repository/maven/org/ex/a/1.0/a-1.0.pom":  &fstest.MapFile{Data: []byte("<project/>")},
		"repository/remote":                        &fstest.MapFile{Mode: fs.ModeDir | 0o755},
		"repository/localextra/should-not-match":   &fstest.MapFile{Data: []byte("x")},
		"repository/plain":                         &fstest.MapFile{Data: []byte("file not dir")},
	}
}

func TestPackageDir(t *testing.T) {
	cases := map[string]string{
		"repository.local":  "repository/local",
		" repository.maven": "repository/maven",
		"packagefile":       "packagefile",
		".leading.dots.":    "leading/dots",
	}
	for in, want := range cases {
		assert.Equal(t, want, PackageDir(in), "PackageDir(%q)", in)
	}
}

func TestFSLookupList(t *testing.T) {
	lookup := NewFSLookup(testResources())

	ids, err := lookup.List("repository.local")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"repository/local/ext1/1.0/extension.yaml",
		"repository/local/ext2/2.0/extension.yaml",
	}, ids)

	ids, err = lookup.List("repository.absent")
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = lookup.List("repository.plain")
	require.NoError(t, err)
	assert.Empty(t, ids, "a file named like the package is not a package")

	_, err = lookup.List("")
	assert.Error(t, err)
}

func TestRelative(t *testing.T) {
	rel, err := Relative("repository.local", "repository/local/ext1/1.0/extension.yaml")
	require.NoError(t, err)
	assert.Equal(t, "ext1/1.0/extension.yaml", rel)

	_, err = Relative("repository.local", "repository/localextra/should-not-match")
	assert.Error(t, err)

	_, err = Relative("repository.local", "repository/local/")
	assert.Error(t, err)
}

func TestCopyFolderCopiesEveryResource(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "repository")

	res, err := CopyFolder(NewFSLookup(testResources()), target, "repository.local")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Files)
	assert.Equal(t, StatusCopied, res.Status)
	assert.True(t, res.HasFiles())

	data, err := os.ReadFile(filepath.Join(target, "ext2", "2.0", "extension.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "id: ext2\nversion: \"2.0\"\n", string(data))

	var count int
	require.NoError(t, filepath.WalkDir(target, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && d.Type().IsRegular() {
			count++
		}
		return err
	}))
	assert.Equal(t, res.Files, count)
}

func TestCopyFolderEmptyPackage(t *testing.T) {
	for _, pkg := range []string{"repository.remote", "repository.absent"} {
		t.Run(pkg, func(t *testing.T) {
			target := filepath.Join(t.TempDir(), "remote")

			res, err := CopyFolder(NewFSLookup(testResources()), target, pkg)
			require.NoError(t, err)
			assert.Equal(t, 0, res.Files)
			assert.Equal(t, StatusEmpty, res.Status)
			assert.False(t, res.HasFiles())

			entries, err := os.ReadDir(target)
			require.NoError(t, err, "target directory is created even when empty")
			assert.Empty(t, entries)
		})
	}
}

func TestCopyFolderIsIdempotent(t *testing.T) {
	target := t.TempDir()
	lookup := NewFSLookup(testResources())

	first, err := CopyFolder(lookup, target, "repository.maven")
	require.NoError(t, err)
	second, err := CopyFolder(lookup, target, "repository.maven")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// failingLookup serves the first n resources, then fails to open the rest.
type failingLookup struct {
	Lookup
	okOpens int
	closed  int
}

type countingCloser struct {
	io.ReadCloser
	onClose func()
}

func (c countingCloser) Close() error {
	c.onClose()
	return c.ReadCloser.Close()
}

func (f *failingLookup) Open(id string) (io.ReadCloser, error) {
	if f.okOpens == 0 {
		return nil, fmt.Errorf("open resource %q: %w", id, fs.ErrPermission)
	}
	f.okOpens--
	rc, err := f.Lookup.Open(id)
	if err != nil {
		return nil, err
	}
	return countingCloser{ReadCloser: rc, onClose: func() { f.closed++ }}, nil
}

func TestCopyFolderFailureIsNotRolledBack(t *testing.T) {
	target := t.TempDir()
	lookup := &failingLookup{Lookup: NewFSLookup(testResources()), okOpens: 1}

	res, err := CopyFolder(lookup, target, "repository.local")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCopyFailed))
	assert.True(t, errors.Is(err, fs.ErrPermission))

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, res.Files)
	assert.Equal(t, 1, lookup.closed, "every opened stream is closed")

	_, statErr := os.Stat(filepath.Join(target, "ext1", "1.0", "extension.yaml"))
	assert.NoError(t, statErr, "files copied before the failure stay on disk")
}

func TestCopyFolderTargetCreationFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	res, err := CopyFolder(NewFSLookup(testResources()), filepath.Join(blocker, "sub"), "repository.local")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCopyFailed)
	assert.Equal(t, StatusFailed, res.Status)
}
