// Package packager builds extension archives from declarative descriptors
// bundled with the test resources.
//
// A package directory holds one <name>.yaml descriptor per extension and an
// optional <name>/ directory whose files go into the archive:
//
//	packagefile/
//	  simple.yaml
//	  simple/
//	    data.txt
//
// Each extension is written as <id>-<version>.<type> plus a sidecar
// <id>-<version>.yaml descriptor carrying the archive name and checksum.
package packager

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/extfixture/internal/checksum"
	"github.com/mattjoyce/extfixture/internal/extension"
	"github.com/mattjoyce/extfixture/internal/log"
	"github.com/mattjoyce/extfixture/internal/resource"
)

const (
	// DefaultPackage is the resource package read when none is configured.
	DefaultPackage = "packagefile"

	// ManifestEntry is where the descriptor is stored inside each archive.
	ManifestEntry = "META-INF/extension.yaml"
)

// Config locates the inputs and outputs of a Packager.
type Config struct {
	// Package is the resource package holding descriptors.
	Package string
	// RemoteDir receives archives by default.
	RemoteDir string
	// InstallDir receives archives whose descriptor sets install: true.
	InstallDir string
}

// packageSpec is a descriptor plus packaging-only keys.
type packageSpec struct {
	extension.Descriptor `yaml:",inline"`
	Install              bool `yaml:"install,omitempty"`
}

// entry is a resource and its path inside the archive.
type entry struct {
	id  string
	rel string
}

type source struct {
	name  string
	spec  string
	files []entry
}

// Packager generates extension archives.
type Packager struct {
	lookup resource.Lookup
	cfg    Config
	logger *slog.Logger
}

// New creates a packager reading from lookup.
func New(lookup resource.Lookup, cfg Config, logger *slog.Logger) *Packager {
	if cfg.Package == "" {
		cfg.Package = DefaultPackage
	}
	return &Packager{
		lookup: lookup,
		cfg:    cfg,
		logger: log.OrDefault(logger, "packager"),
	}
}

// GenerateExtensions builds every extension described in the package and
// returns their ids in descriptor name order. An absent package generates
// nothing.
func (p *Packager) GenerateExtensions(ctx context.Context) ([]extension.ID, error) {
	sources, err := p.sources()
	if err != nil {
		return nil, err
	}

	seen := make(map[extension.ID]string, len(sources))
	ids := make([]extension.ID, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		id, err := p.generate(src)
		if err != nil {
			return ids, fmt.Errorf("failed to generate extension %q: %w", src.name, err)
		}
		if prev, dup := seen[id]; dup {
			return ids, fmt.Errorf("extension %s described by both %q and %q", id, prev, src.name)
		}
		seen[id] = src.name
		ids = append(ids, id)
	}

	if len(ids) > 0 {
		p.logger.Info("generated extensions", "count", len(ids), "package", p.cfg.Package)
	}
	return ids, nil
}

// sources groups package resources by descriptor name.
func (p *Packager) sources() ([]source, error) {
	list, err := p.lookup.List(p.cfg.Package)
	if err != nil {
		return nil, fmt.Errorf("failed to list package %q: %w", p.cfg.Package, err)
	}

	byName := make(map[string]*source)
	var content []entry
	for _, id := range list {
		rel, err := resource.Relative(p.cfg.Package, id)
		if err != nil {
			return nil, err
		}
		if !strings.Contains(rel, "/") && strings.HasSuffix(rel, ".yaml") {
			name := strings.TrimSuffix(rel, ".yaml")
			byName[name] = &source{name: name, spec: id}
			continue
		}
		content = append(content, entry{id: id, rel: rel})
	}
	for _, e := range content {
		dir, name, nested := strings.Cut(e.rel, "/")
		src, ok := byName[dir]
		if !nested || !ok {
			p.logger.Debug("resource has no descriptor", "resource", e.id)
			continue
		}
		src.files = append(src.files, entry{id: e.id, rel: name})
	}

	out := make([]source, 0, len(byName))
	for _, src := range byName {
		out = append(out, *src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}

func (p *Packager) generate(src source) (extension.ID, error) {
	spec, err := p.readSpec(src.spec)
	if err != nil {
		return extension.ID{}, err
	}
	d := spec.Descriptor

	dir := p.cfg.RemoteDir
	if spec.Install {
		dir = p.cfg.InstallDir
	}
	if dir == "" {
		return extension.ID{}, fmt.Errorf("no output directory for %s", d.Key())
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return extension.ID{}, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	base := d.ID + "-" + d.Version
	archivePath := filepath.Join(dir, base+"."+d.Type)
	if err := p.writeArchive(archivePath, &d, src); err != nil {
		return extension.ID{}, err
	}

	sum, err := checksum.Tagged(archivePath)
	if err != nil {
		return extension.ID{}, err
	}
	d.File = filepath.Base(archivePath)
	d.Checksum = sum

	data, err := d.Marshal()
	if err != nil {
		return extension.ID{}, fmt.Errorf("failed to encode descriptor: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, base+".yaml"), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}); err != nil {
		return extension.ID{}, err
	}

	p.logger.Debug("generated extension", "extension", d.Key().String(), "archive", archivePath, "files", len(src.files))
	return d.Key(), nil
}

func (p *Packager) readSpec(id string) (*packageSpec, error) {
	rc, err := p.lookup.Open(id)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", id, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", id, err)
	}

	var spec packageSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", id, err)
	}
	if err := extension.Validate(&spec.Descriptor); err != nil {
		return nil, fmt.Errorf("invalid descriptor %s: %w", id, err)
	}
	if spec.Type == "" {
		spec.Type = extension.DefaultType
	}
	// Generated values only.
	spec.File, spec.Checksum = "", ""
	return &spec, nil
}

func (p *Packager) writeArchive(archivePath string, d *extension.Descriptor, src source) error {
	manifest, err := d.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	return writeFileAtomic(archivePath, func(w io.Writer) (err error) {
		zw := zip.NewWriter(w)
		defer func() {
			if closeErr := zw.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()

		for _, f := range src.files {
			if err := p.addEntry(zw, f.rel, f.id); err != nil {
				return err
			}
		}

		mw, err := zw.CreateHeader(&zip.FileHeader{Name: ManifestEntry, Method: zip.Deflate})
		if err != nil {
			return fmt.Errorf("failed to create manifest entry: %w", err)
		}
		if _, err := mw.Write(manifest); err != nil {
			return fmt.Errorf("failed to write manifest entry: %w", err)
		}
		return nil
	})
}

func (p *Packager) addEntry(zw *zip.Writer, name, id string) error {
	rc, err := p.lookup.Open(id)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", id, err)
	}
	defer rc.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("failed to create zip entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("failed to write zip entry %s: %w", name, err)
	}
	return nil
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it into place.
func writeFileAtomic(target string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(target), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, target)
}
