// Package doctor checks a fixture configuration and its bundled resources
// before a run.
package doctor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/mattjoyce/extfixture/internal/config"
	"github.com/mattjoyce/extfixture/internal/extension"
	"github.com/mattjoyce/extfixture/internal/repository"
	"github.com/mattjoyce/extfixture/internal/resource"
	"github.com/mattjoyce/extfixture/internal/storage"
	"github.com/mattjoyce/extfixture/internal/workspace"
)

// StaleAfter is the age from which leftover workspaces are reported.
const StaleAfter = 24 * time.Hour

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a configuration against the resources it names.
type Doctor struct {
	cfg        *config.Config
	lookup     resource.Lookup
	workspaces workspace.Manager
	now        func() time.Time
	fsCheck    func(string) error
}

// New creates a Doctor. workspaces may be nil to skip the leftover check.
func New(cfg *config.Config, lookup resource.Lookup, workspaces workspace.Manager) *Doctor {
	return &Doctor{
		cfg:        cfg,
		lookup:     lookup,
		workspaces: workspaces,
		now:        time.Now,
		fsCheck:    func(path string) error { return storage.RequireLocal(storage.UseWorkspaceBase, path) },
	}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}

	d.validateDirectories(r)
	d.validateDescriptors(r, "packages.local", d.cfg.Packages.Local)
	d.validateDescriptors(r, "packages.remote", d.cfg.Packages.Remote)
	d.validatePOMs(r)
	d.validatePackager(r)
	d.warnEmptyPackages(r)
	d.warnUnknownCoreReferences(r)
	d.warnStaleWorkspaces(ctx, r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateDirectories checks the base and resources directories.
func (d *Doctor) validateDirectories(r *Result) {
	if info, err := os.Stat(d.cfg.BaseDir); err == nil && !info.IsDir() {
		d.addError(r, "workspace", "base_dir", fmt.Sprintf("%s exists and is not a directory", d.cfg.BaseDir))
	}
	if err := d.fsCheck(d.cfg.BaseDir); err != nil {
		d.addError(r, "workspace", "base_dir", err.Error())
	}

	info, err := os.Stat(d.cfg.ResourcesDir)
	switch {
	case err != nil:
		d.addError(r, "resources", "resources_dir", fmt.Sprintf("resources directory not found: %s", d.cfg.ResourcesDir))
	case !info.IsDir():
		d.addError(r, "resources", "resources_dir", fmt.Sprintf("%s is not a directory", d.cfg.ResourcesDir))
	}
}

// list returns the resources of pkg, reporting lookup failures.
func (d *Doctor) list(r *Result, field, pkg string) []string {
	ids, err := d.lookup.List(pkg)
	if err != nil {
		d.addError(r, "resources", field, err.Error())
		return nil
	}
	return ids
}

func (d *Doctor) read(id string) ([]byte, error) {
	rc, err := d.lookup.Open(id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// validateDescriptors parses the top-level *.yaml descriptors of a file
// repository package.
func (d *Doctor) validateDescriptors(r *Result, field, pkg string) {
	seen := make(map[extension.ID]string)
	for _, id := range d.list(r, field, pkg) {
		rel, err := resource.Relative(pkg, id)
		if err != nil || strings.Contains(rel, "/") || !strings.HasSuffix(rel, ".yaml") {
			continue
		}
		data, err := d.read(id)
		if err != nil {
			d.addError(r, "descriptor", field, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		desc, err := extension.ParseDescriptor(data)
		if err != nil {
			d.addError(r, "descriptor", field, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		if prev, dup := seen[desc.Key()]; dup {
			d.addWarning(r, "descriptor", field,
				fmt.Sprintf("%s described by both %s and %s", desc.Key(), prev, id))
			continue
		}
		seen[desc.Key()] = id
	}
}

// validatePOMs parses every POM of the maven package.
func (d *Doctor) validatePOMs(r *Result) {
	pkg := d.cfg.Packages.Maven
	for _, id := range d.list(r, "packages.maven", pkg) {
		if path.Ext(id) != ".pom" {
			continue
		}
		data, err := d.read(id)
		if err != nil {
			d.addError(r, "maven", "packages.maven", fmt.Sprintf("%s: %v", id, err))
			continue
		}
		desc, err := repository.ParsePOM(bytes.NewReader(data))
		if err != nil {
			d.addError(r, "maven", "packages.maven", fmt.Sprintf("%s: %v", id, err))
			continue
		}
		_, artifactID, _ := strings.Cut(desc.ID, ":")
		if want := artifactID + "-" + desc.Version + ".pom"; path.Base(id) != want {
			d.addWarning(r, "maven", "packages.maven",
				fmt.Sprintf("%s does not follow the maven2 layout (expected file name %s)", id, want))
		}
	}
}

// validatePackager checks package descriptors and content directories.
func (d *Doctor) validatePackager(r *Result) {
	pkg := d.cfg.Packages.Packager
	names := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, id := range d.list(r, "packages.packager", pkg) {
		rel, err := resource.Relative(pkg, id)
		if err != nil {
			continue
		}
		if dir, _, nested := strings.Cut(rel, "/"); nested {
			dirs[dir] = true
			continue
		}
		if !strings.HasSuffix(rel, ".yaml") {
			continue
		}
		names[strings.TrimSuffix(rel, ".yaml")] = true

		data, err := d.read(id)
		if err != nil {
			d.addError(r, "packager", "packages.packager", fmt.Sprintf("%s: %v", id, err))
			continue
		}
		if _, err := extension.ParseDescriptor(data); err != nil {
			d.addError(r, "packager", "packages.packager", fmt.Sprintf("%s: %v", id, err))
		}
	}
	for dir := range dirs {
		if !names[dir] {
			d.addWarning(r, "packager", "packages.packager",
				fmt.Sprintf("content directory %q has no %s.yaml descriptor and will be ignored", dir, dir))
		}
	}
}

// warnEmptyPackages reports packages that will not register or generate anything.
func (d *Doctor) warnEmptyPackages(r *Result) {
	checks := []struct {
		field, pkg, effect string
	}{
		{"packages.local", d.cfg.Packages.Local, "the local repository starts empty"},
		{"packages.remote", d.cfg.Packages.Remote, "no remote repository will be registered"},
		{"packages.maven", d.cfg.Packages.Maven, "no maven repository will be registered"},
	}
	for _, c := range checks {
		ids, err := d.lookup.List(c.pkg)
		if err == nil && len(ids) == 0 {
			d.addWarning(r, "resources", c.field, fmt.Sprintf("package %q is empty; %s", c.pkg, c.effect))
		}
	}
}

// warnUnknownCoreReferences flags local dependencies that no core entry or
// local descriptor provides.
func (d *Doctor) warnUnknownCoreReferences(r *Result) {
	known := make(map[string]bool)
	for _, ce := range d.cfg.CoreExtensions {
		known[ce.ID] = true
	}

	var local []*extension.Descriptor
	ids, err := d.lookup.List(d.cfg.Packages.Local)
	if err != nil {
		return
	}
	for _, id := range ids {
		rel, err := resource.Relative(d.cfg.Packages.Local, id)
		if err != nil || strings.Contains(rel, "/") || !strings.HasSuffix(rel, ".yaml") {
			continue
		}
		data, err := d.read(id)
		if err != nil {
			continue
		}
		desc, err := extension.ParseDescriptor(data)
		if err != nil {
			continue
		}
		local = append(local, desc)
		known[desc.ID] = true
		for _, f := range desc.Features {
			known[f] = true
		}
	}

	for _, desc := range local {
		for _, dep := range desc.Dependencies {
			if !known[dep.ID] {
				d.addWarning(r, "dependencies", "packages.local",
					fmt.Sprintf("%s depends on %s, which is neither a core nor a local extension", desc.Key(), dep.ID))
			}
		}
	}
}

// warnStaleWorkspaces reports leftover workspaces older than StaleAfter.
func (d *Doctor) warnStaleWorkspaces(ctx context.Context, r *Result) {
	if d.workspaces == nil {
		return
	}
	entries, err := d.workspaces.List(ctx)
	if err != nil {
		return
	}
	stale := 0
	for _, e := range entries {
		if !e.Locked && d.now().Sub(e.ModTime) > StaleAfter {
			stale++
		}
	}
	if stale > 0 {
		d.addWarning(r, "workspace", "base_dir",
			fmt.Sprintf("%d workspace(s) older than %s; run `extfixture workspace prune`", stale, StaleAfter))
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Fixture OK.\n")
		return b.String()
	}

	if r.Valid {
		fmt.Fprintf(&b, "Fixture OK (%d warning(s))\n", len(r.Warnings))
	} else {
		fmt.Fprintf(&b, "Fixture has problems (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}
	return b.String()
}

func writeIssue(b *strings.Builder, level string, i Issue) {
	if i.Field != "" {
		fmt.Fprintf(b, "  %s [%s] %s: %s\n", level, i.Category, i.Field, i.Message)
		return
	}
	fmt.Fprintf(b, "  %s [%s] %s\n", level, i.Category, i.Message)
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
