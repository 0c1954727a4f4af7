package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adrg/xdg"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, dir string, cfg *Config)
	}{
		{
			name: "empty file uses defaults",
			yaml: "{}\n",
			checkFn: func(t *testing.T, dir string, cfg *Config) {
				if cfg.BaseDir != filepath.Join(dir, "target") {
					t.Errorf("base_dir = %q, want resolved against config dir", cfg.BaseDir)
				}
				if cfg.MavenRepositoryID != "test-maven" {
					t.Errorf("maven_repository_id = %q", cfg.MavenRepositoryID)
				}
				if cfg.Packages.Local != "repository.local" || cfg.Packages.Packager != "packagefile" {
					t.Errorf("packages = %+v", cfg.Packages)
				}
				if len(cfg.CoreExtensions) != 1 || cfg.CoreExtensions[0] != (CoreExtension{ID: "coreextension", Version: "version"}) {
					t.Errorf("core_extensions = %+v", cfg.CoreExtensions)
				}
			},
		},
		{
			name: "explicit values",
			yaml: `
base_dir: /abs/base
resources_dir: fixtures
log_level: debug
packages:
  maven: repo.m2
maven_repository_id: my-maven
core_extensions:
  - id: org.core:a
    version: "1.0"
  - id: org.core:b
    version: "2.0"
serve:
  listen: 127.0.0.1:9999
`,
			checkFn: func(t *testing.T, dir string, cfg *Config) {
				if cfg.BaseDir != "/abs/base" {
					t.Errorf("base_dir = %q", cfg.BaseDir)
				}
				if cfg.ResourcesDir != filepath.Join(dir, "fixtures") {
					t.Errorf("resources_dir = %q", cfg.ResourcesDir)
				}
				if cfg.Packages.Maven != "repo.m2" || cfg.Packages.Remote != "repository.remote" {
					t.Errorf("packages = %+v", cfg.Packages)
				}
				if len(cfg.CoreExtensions) != 2 {
					t.Errorf("core_extensions = %+v", cfg.CoreExtensions)
				}
				if cfg.Serve.Listen != "127.0.0.1:9999" {
					t.Errorf("serve.listen = %q", cfg.Serve.Listen)
				}
			},
		},
		{
			name: "env var interpolation",
			yaml: "base_dir: ${FIXTURE_BASE}\n",
			env:  map[string]string{"FIXTURE_BASE": "/tmp/fixtures"},
			checkFn: func(t *testing.T, dir string, cfg *Config) {
				if cfg.BaseDir != "/tmp/fixtures" {
					t.Errorf("env var not interpolated: %q", cfg.BaseDir)
				}
			},
		},
		{
			name:    "missing env var fails validation",
			yaml:    "base_dir: ${EXTFIXTURE_TEST_UNSET_VAR}\n",
			wantErr: "EXTFIXTURE_TEST_UNSET_VAR",
		},
		{
			name:    "invalid log level",
			yaml:    "log_level: loud\n",
			wantErr: "log_level",
		},
		{
			name:    "package with separator",
			yaml:    "packages:\n  local: repository/local\n",
			wantErr: "dotted package name",
		},
		{
			name:    "reserved maven id",
			yaml:    "maven_repository_id: remote\n",
			wantErr: "reserved",
		},
		{
			name:    "duplicate core extension",
			yaml:    "core_extensions:\n  - {id: a, version: \"1\"}\n  - {id: a, version: \"2\"}\n",
			wantErr: "duplicate id",
		},
		{
			name:    "core extension without version",
			yaml:    "core_extensions:\n  - {id: a}\n",
			wantErr: "id and version are required",
		},
		{
			name:    "malformed yaml",
			yaml:    "base_dir: [\n",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			dir := t.TempDir()
			path := writeConfig(t, dir, FileName, tt.yaml)

			cfg, err := Load(path)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Load() error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(cfg.SourceFiles) == 0 || cfg.SourceFiles[0] != path {
				t.Errorf("SourceFiles = %v", cfg.SourceFiles)
			}
			tt.checkFn(t, dir, cfg)
		})
	}
}

func TestLoadDirectoryAndMissing(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, FileName, "log_level: warn\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load(dir) error = %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config")
	}
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected error for directory without fixture.yaml")
	}
}

func TestLoadIncludes(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "conf.d"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, dir, "conf.d/maven.yaml", "maven_repository_id: included-maven\ninclude: [core.yaml]\n")
	writeConfig(t, dir, "conf.d/core.yaml", "core_extensions:\n  - {id: included, version: \"3\"}\n")
	root := writeConfig(t, dir, FileName, "log_level: debug\ninclude: [conf.d/maven.yaml]\n")

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MavenRepositoryID != "included-maven" {
		t.Errorf("maven_repository_id = %q", cfg.MavenRepositoryID)
	}
	if len(cfg.CoreExtensions) != 1 || cfg.CoreExtensions[0].ID != "included" {
		t.Errorf("core_extensions = %+v", cfg.CoreExtensions)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
	if len(cfg.SourceFiles) != 3 {
		t.Errorf("SourceFiles = %v", cfg.SourceFiles)
	}
}

func TestLoadIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "include: [b.yaml]\n")
	writeConfig(t, dir, "b.yaml", "include: [a.yaml]\n")
	root := writeConfig(t, dir, FileName, "include: [a.yaml]\n")

	_, err := Load(root)
	if err == nil || !strings.Contains(err.Error(), "circular") {
		t.Fatalf("expected circular include error, got %v", err)
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Cleanup(xdg.Reload)
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_DIRS", t.TempDir())
	t.Setenv("EXTFIXTURE_CONFIG", "")
	xdg.Reload()

	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.BaseDir != "target" || len(cfg.SourceFiles) != 0 {
		t.Errorf("expected defaults, got %+v", cfg)
	}

	writeConfig(t, ".", FileName, "log_level: error\n")
	cfg, err = LoadOrDefault("")
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("discovered config not loaded: %+v", cfg)
	}
}
