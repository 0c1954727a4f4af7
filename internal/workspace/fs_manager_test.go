package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/extfixture/internal/lock"
)

func TestNewLayoutChildrenAreNestedUnderRoot(t *testing.T) {
	roots := []string{
		"target/test-1700000000000",
		"/tmp/fixtures/test-1-abcd",
		"./relative/../test-2",
	}

	for _, root := range roots {
		layout := NewLayout(root)
		for _, child := range layout.Children() {
			if !layout.Contains(child) {
				t.Errorf("child %q is not nested under root %q", child, layout.Root)
			}
		}
	}
}

func TestNewLayoutPaths(t *testing.T) {
	layout := NewLayout("/base/test-42")

	want := map[string]string{
		"temporary": "/base/test-42/temporary-dir",
		"permanent": "/base/test-42/permanent-dir",
		"extension": "/base/test-42/permanent-dir/extension",
		"local":     "/base/test-42/permanent-dir/extension/repository",
		"maven":     "/base/test-42/maven",
		"remote":    "/base/test-42/remote",
	}
	got := map[string]string{
		"temporary": layout.Temporary,
		"permanent": layout.Permanent,
		"extension": layout.Extension,
		"local":     layout.LocalRepository,
		"maven":     layout.Maven,
		"remote":    layout.Remote,
	}
	for k, w := range want {
		if got[k] != filepath.FromSlash(w) {
			t.Errorf("%s = %q, want %q", k, got[k], w)
		}
	}
}

func TestNewLayoutDoesNotTouchDisk(t *testing.T) {
	root := filepath.Join(t.TempDir(), "test-1")
	layout := NewLayout(root)

	if _, err := os.Stat(layout.Root); !os.IsNotExist(err) {
		t.Fatalf("NewLayout created the root, err = %v", err)
	}
	if layout.LocalRepository == "" {
		t.Fatal("child path should be computable before the root exists")
	}
}

func TestLayoutContains(t *testing.T) {
	layout := NewLayout("/base/test-1")

	cases := []struct {
		path string
		want bool
	}{
		{"/base/test-1/remote", true},
		{"/base/test-1/a/b/c", true},
		{"/base/test-1", false},
		{"/base/test-10/remote", false},
		{"/base/test-1/../test-2", false},
		{"/elsewhere", false},
	}
	for _, tc := range cases {
		if got := layout.Contains(tc.path); got != tc.want {
			t.Errorf("Contains(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestLayoutEnsureCreatesLazily(t *testing.T) {
	layout := NewLayout(filepath.Join(t.TempDir(), "test-1"))

	if err := layout.Ensure(layout.LocalRepository); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if info, err := os.Stat(layout.LocalRepository); err != nil || !info.IsDir() {
		t.Fatalf("local repository dir not created, err = %v", err)
	}
	if _, err := os.Stat(layout.Maven); !os.IsNotExist(err) {
		t.Fatalf("unrelated child should not exist yet, err = %v", err)
	}

	if err := layout.Ensure("/definitely/outside"); err == nil {
		t.Fatal("Ensure() outside the root should fail")
	}
}

func TestRootName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	if got := RootName(now, ""); got != "test-1700000000123" {
		t.Errorf("RootName(no token) = %q", got)
	}
	if got := RootName(now, "abcd1234"); got != "test-1700000000123-abcd1234" {
		t.Errorf("RootName(token) = %q", got)
	}
}

func newTestManager(t *testing.T) *fsWorkspaceManager {
	t.Helper()
	mgr, err := NewFSManager(filepath.Join(t.TempDir(), "target"))
	if err != nil {
		t.Fatalf("NewFSManager() error = %v", err)
	}
	return mgr
}

func TestFSManagerAllocateSameMillisecondIsUnique(t *testing.T) {
	mgr := newTestManager(t)
	fixed := time.UnixMilli(1700000000000)
	mgr.now = func() time.Time { return fixed }

	seen := make(map[string]struct{})
	for range 50 {
		layout, err := mgr.Allocate(context.Background())
		if err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
		if _, dup := seen[layout.Root]; dup {
			t.Fatalf("Allocate() returned duplicate root %q", layout.Root)
		}
		seen[layout.Root] = struct{}{}
		if !strings.HasPrefix(layout.Name(), "test-1700000000000-") {
			t.Fatalf("unexpected root name %q", layout.Name())
		}
	}
}

func TestFSManagerAllocateSkipsExistingRoot(t *testing.T) {
	mgr := newTestManager(t)
	fixed := time.UnixMilli(1)
	mgr.now = func() time.Time { return fixed }

	tokens := []string{"same", "same", "fresh"}
	mgr.token = func() string {
		tok := tokens[0]
		tokens = tokens[1:]
		return tok
	}

	first, err := mgr.Allocate(context.Background())
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if err := os.MkdirAll(first.Root, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	second, err := mgr.Allocate(context.Background())
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if second.Name() != "test-1-fresh" {
		t.Fatalf("second root = %q, want test-1-fresh", second.Name())
	}
}

func TestFSManagerOpenAndList(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	var names []string
	for i := range 3 {
		layout := NewLayout(filepath.Join(mgr.BaseDir(), fmt.Sprintf("test-%d", i)))
		if err := layout.Ensure(layout.Remote); err != nil {
			t.Fatalf("Ensure: %v", err)
		}
		mod := time.Now().Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(layout.Root, mod, mod); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}
		names = append(names, layout.Name())
	}
	if err := os.MkdirAll(filepath.Join(mgr.BaseDir(), "not-a-workspace"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	entries, err := mgr.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("List() returned %d entries, want 3", len(entries))
	}
	if entries[0].Layout.Name() != "test-2" {
		t.Fatalf("List() newest = %q, want test-2", entries[0].Layout.Name())
	}

	opened, err := mgr.Open(ctx, names[1])
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if opened != NewLayout(filepath.Join(mgr.BaseDir(), names[1])) {
		t.Fatalf("Open() layout = %+v", opened)
	}

	for _, bad := range []string{"", "../x", "other", "test-"} {
		if _, err := mgr.Open(ctx, bad); err == nil {
			t.Errorf("Open(%q) should fail", bad)
		}
	}
}

func TestFSManagerListMissingBaseDir(t *testing.T) {
	mgr := newTestManager(t)
	entries, err := mgr.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("List() = %v, want empty", entries)
	}
}

func TestFSManagerPruneSkipsLiveWorkspaces(t *testing.T) {
	mgr := newTestManager(t)
	ctx := context.Background()

	mk := func(name string, age time.Duration) Layout {
		layout := NewLayout(filepath.Join(mgr.BaseDir(), name))
		if err := layout.Ensure(layout.Temporary); err != nil {
			t.Fatalf("Ensure: %v", err)
		}
		mod := time.Now().Add(-age)
		if err := os.Chtimes(layout.Root, mod, mod); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}
		return layout
	}

	stale := mk("test-1", 48*time.Hour)
	live := mk("test-2", 48*time.Hour)
	fresh := mk("test-3", time.Minute)

	held, err := lock.AcquirePIDLock(filepath.Join(live.Root, lock.FileName))
	if err != nil {
		t.Fatalf("AcquirePIDLock: %v", err)
	}
	t.Cleanup(func() { _ = held.Release() })
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(live.Root, old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	report, err := mgr.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if report.DeletedDirs != 1 || report.SkippedLive != 1 {
		t.Fatalf("Prune() report = %+v, want 1 deleted / 1 skipped", report)
	}

	if _, err := os.Stat(stale.Root); !os.IsNotExist(err) {
		t.Fatalf("stale workspace should be deleted, err = %v", err)
	}
	for _, keep := range []Layout{live, fresh} {
		if _, err := os.Stat(keep.Root); err != nil {
			t.Fatalf("workspace %q should still exist, err = %v", keep.Name(), err)
		}
	}

	if _, err := mgr.Prune(ctx, 0); err == nil {
		t.Fatal("Prune(0) should fail")
	}
}
