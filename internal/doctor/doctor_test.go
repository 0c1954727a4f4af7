package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/mattjoyce/extfixture/internal/config"
	"github.com/mattjoyce/extfixture/internal/resource"
	"github.com/mattjoyce/extfixture/internal/workspace"
)

const validPOM = `<project>
  <groupId>org.test</groupId>
  <artifactId>maven</artifactId>
  <version>1.0</version>
</project>`

func validConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.BaseDir = filepath.Join(t.TempDir(), "target")
	cfg.ResourcesDir = t.TempDir()
	return cfg
}

func validResources() fstest.MapFS {
	return fstest.MapFS{
		"repository/local/installed-1.0.yaml":               {Data: []byte("id: installed\nversion: \"1.0\"\ndependencies: [coreextension]\n")},
		"repository/remote/remote-1.0.yaml":                 {Data: []byte("id: remote-ext\nversion: \"1.0\"\n")},
		"repository/maven/org/test/maven/1.0/maven-1.0.pom": {Data: []byte(validPOM)},
		"packagefile/simple.yaml":                           {Data: []byte("id: simple\nversion: \"1.0\"\n")},
		"packagefile/simple/data.txt":                       {Data: []byte("x")},
	}
}

func newDoctor(cfg *config.Config, fsys fstest.MapFS) *Doctor {
	d := New(cfg, resource.NewFSLookup(fsys), nil)
	d.fsCheck = func(string) error { return nil }
	return d
}

func hasIssue(issues []Issue, category, contains string) bool {
	for _, i := range issues {
		if i.Category == category && strings.Contains(i.Message, contains) {
			return true
		}
	}
	return false
}

func TestValidate_ValidFixture(t *testing.T) {
	t.Parallel()
	r := newDoctor(validConfig(t), validResources()).Validate(context.Background())
	if !r.Valid {
		t.Fatalf("expected valid, got errors: %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", r.Warnings)
	}
}

func TestValidate_MissingResourcesDir(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	cfg.ResourcesDir = filepath.Join(t.TempDir(), "absent")

	r := newDoctor(cfg, validResources()).Validate(context.Background())
	if r.Valid || !hasIssue(r.Errors, "resources", "not found") {
		t.Fatalf("expected resources error, got %+v", r)
	}
}

func TestValidate_BaseDirIsFile(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	if err := os.WriteFile(cfg.ResourcesDir+"/file", nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.BaseDir = cfg.ResourcesDir + "/file"

	r := newDoctor(cfg, validResources()).Validate(context.Background())
	if r.Valid || !hasIssue(r.Errors, "workspace", "not a directory") {
		t.Fatalf("expected workspace error, got %+v", r)
	}
}

func TestValidate_NetworkFilesystem(t *testing.T) {
	t.Parallel()
	d := newDoctor(validConfig(t), validResources())
	d.fsCheck = func(string) error { return errors.New("path is on network filesystem \"nfs\"") }

	r := d.Validate(context.Background())
	if r.Valid || !hasIssue(r.Errors, "workspace", "nfs") {
		t.Fatalf("expected filesystem error, got %+v", r)
	}
}

func TestValidate_InvalidDescriptors(t *testing.T) {
	t.Parallel()
	fsys := validResources()
	fsys["repository/remote/broken.yaml"] = &fstest.MapFile{Data: []byte("version: 1\n")}
	fsys["repository/maven/org/test/bad/1.0/bad-1.0.pom"] = &fstest.MapFile{Data: []byte("<project><version>1</version></project>")}
	fsys["packagefile/worse.yaml"] = &fstest.MapFile{Data: []byte("id: [\n")}

	r := newDoctor(validConfig(t), fsys).Validate(context.Background())
	if r.Valid {
		t.Fatal("expected invalid result")
	}
	for _, category := range []string{"descriptor", "maven", "packager"} {
		if !hasIssue(r.Errors, category, "") {
			t.Errorf("missing %s error in %v", category, r.Errors)
		}
	}
}

func TestValidate_Warnings(t *testing.T) {
	t.Parallel()
	fsys := fstest.MapFS{
		"repository/local/a-1.yaml":                       {Data: []byte("id: a\nversion: \"1\"\ndependencies: [ghost]\n")},
		"repository/local/a-1-copy.yaml":                  {Data: []byte("id: a\nversion: \"1\"\n")},
		"repository/maven/org/test/maven/1.0/renamed.pom": {Data: []byte(validPOM)},
		"packagefile/orphan/data.txt":                     {Data: []byte("x")},
	}

	r := newDoctor(validConfig(t), fsys).Validate(context.Background())
	if !r.Valid {
		t.Fatalf("warnings must not invalidate, got errors %v", r.Errors)
	}
	checks := []struct{ category, contains string }{
		{"descriptor", "described by both"},
		{"dependencies", "ghost"},
		{"maven", "maven2 layout"},
		{"packager", "orphan"},
		{"resources", "no remote repository will be registered"},
	}
	for _, c := range checks {
		if !hasIssue(r.Warnings, c.category, c.contains) {
			t.Errorf("missing %s warning containing %q in %v", c.category, c.contains, r.Warnings)
		}
	}
}

func TestValidate_StaleWorkspaces(t *testing.T) {
	t.Parallel()
	cfg := validConfig(t)
	if err := os.MkdirAll(filepath.Join(cfg.BaseDir, "test-1000"), 0o755); err != nil {
		t.Fatal(err)
	}

	workspaces, err := workspace.NewFSManager(cfg.BaseDir)
	if err != nil {
		t.Fatal(err)
	}
	d := New(cfg, resource.NewFSLookup(validResources()), workspaces)
	d.fsCheck = func(string) error { return nil }
	d.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	r := d.Validate(context.Background())
	if !hasIssue(r.Warnings, "workspace", "1 workspace(s)") {
		t.Fatalf("expected stale workspace warning, got %v", r.Warnings)
	}
}

func TestFormatHuman(t *testing.T) {
	t.Parallel()
	ok := FormatHuman(&Result{Valid: true})
	if ok != "Fixture OK.\n" {
		t.Fatalf("unexpected output %q", ok)
	}

	out := FormatHuman(&Result{
		Valid:    false,
		Errors:   []Issue{{Category: "resources", Field: "resources_dir", Message: "missing"}},
		Warnings: []Issue{{Category: "workspace", Message: "stale"}},
	})
	for _, want := range []string{"1 error(s), 1 warning(s)", "ERROR [resources] resources_dir: missing", "WARN  [workspace] stale"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	t.Parallel()
	out, err := FormatJSON(&Result{Valid: true})
	if err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}
	if !strings.Contains(out, `"valid": true`) {
		t.Fatalf("unexpected JSON %s", out)
	}
}
