package packager

import (
	"archive/zip"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/extfixture/internal/checksum"
	"github.com/mattjoyce/extfixture/internal/extension"
	"github.com/mattjoyce/extfixture/internal/resource"
)

func resources() fstest.MapFS {
	return fstest.MapFS{
		"packagefile/simple.yaml":           {Data: []byte("id: org.test:simple\nversion: \"1.0\"\nname: Simple\n")},
		"packagefile/simple/data.txt":       {Data: []byte("hello")},
		"packagefile/simple/sub/nested.txt": {Data: []byte("nested")},
		"packagefile/installed.yaml": {Data: []byte(
			"id: org.test:installed\nversion: \"2.0\"\ntype: xar\ninstall: true\ndependencies: [coreextension]\n")},
		"packagefile/orphan/ignored.txt": {Data: []byte("no descriptor")},
	}
}

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = string(data)
	}
	return out
}

func TestGenerateExtensions(t *testing.T) {
	base := t.TempDir()
	remote := filepath.Join(base, "remote")
	install := filepath.Join(base, "permanent-dir", "extension", "repository")

	p := New(resource.NewFSLookup(resources()), Config{RemoteDir: remote, InstallDir: install}, nil)
	ids, err := p.GenerateExtensions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []extension.ID{
		{ID: "org.test:installed", Version: "2.0"},
		{ID: "org.test:simple", Version: "1.0"},
	}, ids)

	archive := filepath.Join(remote, "org.test:simple-1.0.jar")
	entries := readZip(t, archive)
	assert.Equal(t, "hello", entries["data.txt"])
	assert.Equal(t, "nested", entries["sub/nested.txt"])
	require.Contains(t, entries, ManifestEntry)

	manifest, err := extension.ParseDescriptor([]byte(entries[ManifestEntry]))
	require.NoError(t, err)
	assert.Equal(t, "Simple", manifest.Name)
	assert.Empty(t, manifest.Checksum)

	sidecar, err := extension.LoadDescriptor(filepath.Join(remote, "org.test:simple-1.0.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "org.test:simple-1.0.jar", sidecar.File)
	assert.NoError(t, checksum.VerifyFileHash(archive, sidecar.Checksum))

	installed, err := extension.LoadDescriptor(filepath.Join(install, "org.test:installed-2.0.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "org.test:installed-2.0.xar", installed.File)
	assert.FileExists(t, filepath.Join(install, "org.test:installed-2.0.xar"))
	assert.NoFileExists(t, filepath.Join(remote, "org.test:installed-2.0.xar"))

	leftovers, err := filepath.Glob(filepath.Join(remote, ".*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestGenerateExtensionsAbsentPackage(t *testing.T) {
	remote := filepath.Join(t.TempDir(), "remote")
	p := New(resource.NewFSLookup(fstest.MapFS{}), Config{RemoteDir: remote}, nil)

	ids, err := p.GenerateExtensions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
	_, err = os.Stat(remote)
	assert.ErrorIs(t, err, fs.ErrNotExist, "nothing to generate creates nothing")
}

func TestGenerateExtensionsInvalidDescriptor(t *testing.T) {
	fsys := fstest.MapFS{
		"packagefile/bad.yaml": {Data: []byte("name: missing id\n")},
	}
	p := New(resource.NewFSLookup(fsys), Config{RemoteDir: t.TempDir()}, nil)

	_, err := p.GenerateExtensions(context.Background())
	assert.ErrorContains(t, err, "id is required")
}

func TestGenerateExtensionsRejectsEscapingVersion(t *testing.T) {
	root := t.TempDir()
	remote := filepath.Join(root, "permanent-dir", "remote")
	fsys := fstest.MapFS{
		"packagefile/evil.yaml": {Data: []byte("id: evil\nversion: \"../../../escaped\"\n")},
	}
	p := New(resource.NewFSLookup(fsys), Config{RemoteDir: remote}, nil)

	ids, err := p.GenerateExtensions(context.Background())
	assert.ErrorContains(t, err, "must not contain path elements")
	assert.Empty(t, ids)

	matches, err := filepath.Glob(filepath.Join(root, "*.jar"))
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.NoFileExists(t, filepath.Join(root, "escaped.jar"))
}

func TestGenerateExtensionsDuplicateID(t *testing.T) {
	fsys := fstest.MapFS{
		"packagefile/a.yaml": {Data: []byte("id: same\nversion: \"1\"\n")},
		"packagefile/b.yaml": {Data: []byte("id: same\nversion: \"1\"\n")},
	}
	p := New(resource.NewFSLookup(fsys), Config{RemoteDir: t.TempDir()}, nil)

	ids, err := p.GenerateExtensions(context.Background())
	assert.ErrorContains(t, err, "described by both")
	assert.Len(t, ids, 1)
}

func TestGenerateExtensionsCustomPackage(t *testing.T) {
	fsys := fstest.MapFS{
		"fixtures/extensions/one.yaml": {Data: []byte("id: one\nversion: \"1\"\n")},
	}
	remote := t.TempDir()
	p := New(resource.NewFSLookup(fsys), Config{Package: "fixtures.extensions", RemoteDir: remote}, nil)

	ids, err := p.GenerateExtensions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []extension.ID{{ID: "one", Version: "1"}}, ids)
	assert.FileExists(t, filepath.Join(remote, "one-1.jar"))
}
