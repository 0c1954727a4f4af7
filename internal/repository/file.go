package repository

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/extfixture/internal/checksum"
	"github.com/mattjoyce/extfixture/internal/extension"
	"github.com/mattjoyce/extfixture/internal/log"
)

// FileRepository serves extensions described by *.yaml descriptors in a flat
// directory. Archives live next to their descriptor.
type FileRepository struct {
	id     ID
	dir    string
	logger *slog.Logger
}

var _ Repository = (*FileRepository)(nil)

// NewFileRepository binds a local-file repository to dir. The directory is
// read on every call, so extensions written after construction are visible.
func NewFileRepository(id, dir string, logger *slog.Logger) *FileRepository {
	return &FileRepository{
		id:     ID{ID: id, Type: TypeLocalFile, URI: dir},
		dir:    dir,
		logger: log.OrDefault(logger, "repository").With(slog.String("repository", id)),
	}
}

func (r *FileRepository) Descriptor() ID { return r.id }

// Dir returns the directory the repository reads.
func (r *FileRepository) Dir() string { return r.dir }

func (r *FileRepository) Resolve(ctx context.Context, id extension.ID) (*extension.Extension, error) {
	exts, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	for i := range exts {
		if exts[i].ID != id.ID || extension.CompareVersions(exts[i].Version, id.Version) != 0 {
			continue
		}
		ext := exts[i]
		if err := r.verify(&ext); err != nil {
			return nil, err
		}
		return &ext, nil
	}
	return nil, notFound(r.id.ID, id)
}

func (r *FileRepository) Search(ctx context.Context, query string) ([]extension.Extension, error) {
	exts, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]extension.Extension, 0, len(exts))
	for i := range exts {
		if matchesQuery(&exts[i], query) {
			out = append(out, exts[i])
		}
	}
	sortExtensions(out)
	return out, nil
}

// scan loads every valid descriptor. Files that are not descriptors are
// skipped with a warning; a missing directory is an empty repository.
func (r *FileRepository) scan(ctx context.Context) ([]extension.Extension, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read repository %s: %w", r.dir, err)
	}

	var out []extension.Extension
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !isDescriptorName(e.Name()) {
			continue
		}
		path := filepath.Join(r.dir, e.Name())
		d, err := extension.LoadDescriptor(path)
		if err != nil {
			r.logger.Warn("skipping invalid descriptor", "path", path, "error", err)
			continue
		}
		ext := extension.Extension{
			Descriptor: *d,
			Repository: r.id.ID,
			Path:       path,
		}
		if d.File != "" {
			ext.FilePath = filepath.Join(r.dir, d.File)
		}
		out = append(out, ext)
	}
	return out, nil
}

func (r *FileRepository) verify(ext *extension.Extension) error {
	if ext.FilePath == "" {
		return nil
	}
	if _, err := os.Stat(ext.FilePath); err != nil {
		return fmt.Errorf("extension %s: archive: %w", ext.Key(), err)
	}
	if ext.Checksum == "" {
		return nil
	}
	if err := checksum.VerifyFileHash(ext.FilePath, ext.Checksum); err != nil {
		return fmt.Errorf("extension %s: %w", ext.Key(), err)
	}
	return nil
}

func isDescriptorName(name string) bool {
	return !strings.HasPrefix(name, ".") &&
		(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml"))
}
