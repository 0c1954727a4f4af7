package repository

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"

	"github.com/mattjoyce/extfixture/internal/extension"
	"github.com/mattjoyce/extfixture/internal/log"
)

const defaultPackaging = "jar"

// MavenRepository reads a maven2 directory layout:
//
//	<root>/<group path>/<artifactId>/<version>/<artifactId>-<version>.pom
//
// Each POM becomes an extension with id "groupId:artifactId".
type MavenRepository struct {
	id     ID
	root   string
	logger *slog.Logger
}

var _ Repository = (*MavenRepository)(nil)

// NewMavenRepository builds a repository over the directory named by id.URI.
func NewMavenRepository(id ID, logger *slog.Logger) (*MavenRepository, error) {
	root, err := id.LocalPath()
	if err != nil {
		return nil, err
	}
	if id.Type == "" {
		id.Type = TypeMaven
	}
	return &MavenRepository{
		id:     id,
		root:   root,
		logger: log.OrDefault(logger, "repository").With(slog.String("repository", id.ID)),
	}, nil
}

func (r *MavenRepository) Descriptor() ID { return r.id }

// Root returns the directory holding the layout.
func (r *MavenRepository) Root() string { return r.root }

func (r *MavenRepository) Resolve(ctx context.Context, id extension.ID) (*extension.Extension, error) {
	groupID, artifactID, ok := strings.Cut(id.ID, ":")
	if !ok || groupID == "" || artifactID == "" ||
		!extension.PlainName(groupID) || !extension.PlainName(artifactID) || !extension.PlainName(id.Version) {
		return nil, notFound(r.id.ID, id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pom := filepath.Join(r.root, filepath.FromSlash(strings.ReplaceAll(groupID, ".", "/")),
		artifactID, id.Version, artifactID+"-"+id.Version+".pom")
	ext, err := r.load(pom)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(r.id.ID, id)
		}
		return nil, err
	}
	return ext, nil
}

func (r *MavenRepository) Search(ctx context.Context, query string) ([]extension.Extension, error) {
	var out []extension.Extension
	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == r.root && os.IsNotExist(walkErr) {
				return filepath.SkipAll
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".pom" {
			return nil
		}
		ext, err := r.load(path)
		if err != nil {
			r.logger.Warn("skipping unreadable pom", "path", path, "error", err)
			return nil
		}
		if matchesQuery(ext, query) {
			out = append(out, *ext)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan maven repository %s: %w", r.root, err)
	}
	sortExtensions(out)
	return out, nil
}

func (r *MavenRepository) load(pomPath string) (*extension.Extension, error) {
	if _, err := os.Stat(pomPath); err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(pomPath); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pomPath, err)
	}
	d, err := descriptorFromPOM(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pomPath, err)
	}

	ext := &extension.Extension{
		Descriptor: *d,
		Repository: r.id.ID,
		Path:       pomPath,
	}
	_, artifactID, _ := strings.Cut(d.ID, ":")
	archive := filepath.Join(filepath.Dir(pomPath), artifactID+"-"+d.Version+"."+d.Type)
	if _, err := os.Stat(archive); err == nil {
		ext.FilePath = archive
		ext.File = filepath.Base(archive)
	}
	return ext, nil
}

// ParsePOM reads a POM and returns the descriptor it maps to.
func ParsePOM(r io.Reader) (*extension.Descriptor, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("failed to parse pom: %w", err)
	}
	return descriptorFromPOM(doc)
}

// descriptorFromPOM maps project coordinates to a descriptor. groupId and
// version fall back to the parent block.
func descriptorFromPOM(doc *etree.Document) (*extension.Descriptor, error) {
	project := doc.SelectElement("project")
	if project == nil {
		return nil, fmt.Errorf("missing <project> element")
	}

	groupID := childText(project, "groupId")
	version := childText(project, "version")
	if parent := project.SelectElement("parent"); parent != nil {
		if groupID == "" {
			groupID = childText(parent, "groupId")
		}
		if version == "" {
			version = childText(parent, "version")
		}
	}
	artifactID := childText(project, "artifactId")
	if groupID == "" || artifactID == "" {
		return nil, fmt.Errorf("pom is missing groupId or artifactId")
	}

	d := &extension.Descriptor{
		ID:          groupID + ":" + artifactID,
		Version:     version,
		Type:        childText(project, "packaging"),
		Name:        childText(project, "name"),
		Description: childText(project, "description"),
	}
	if d.Type == "" {
		d.Type = defaultPackaging
	}

	if deps := project.SelectElement("dependencies"); deps != nil {
		for _, dep := range deps.SelectElements("dependency") {
			scope := childText(dep, "scope")
			if scope == "test" || scope == "provided" {
				continue
			}
			d.Dependencies = append(d.Dependencies, extension.Dependency{
				ID:         childText(dep, "groupId") + ":" + childText(dep, "artifactId"),
				Constraint: childText(dep, "version"),
			})
		}
	}

	if err := extension.Validate(d); err != nil {
		return nil, err
	}
	return d, nil
}

func childText(e *etree.Element, tag string) string {
	c := e.SelectElement(tag)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text())
}
