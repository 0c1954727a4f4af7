package extension

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultType is the packaging used when a descriptor does not declare one.
const DefaultType = "jar"

// ID identifies one version of an extension.
type ID struct {
	ID      string `yaml:"id" json:"id"`
	Version string `yaml:"version" json:"version"`
}

func (i ID) String() string {
	return i.ID + "/" + i.Version
}

// Dependency is a required extension and an optional version constraint.
type Dependency struct {
	ID         string `yaml:"id" json:"id"`
	Constraint string `yaml:"version,omitempty" json:"version,omitempty"`
}

// Dependencies accepts both compact and object forms:
//
//	dependencies: [org:a, "org:b/[1.0,2.0)"]
//	dependencies: [{id: org:a}, {id: org:b, version: "[1.0,2.0)"}]
type Dependencies []Dependency

func (d *Dependencies) UnmarshalYAML(n *yaml.Node) error {
	if n == nil {
		*d = nil
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("dependencies must be a sequence")
	}

	out := make([]Dependency, 0, len(n.Content))
	for _, item := range n.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			id, constraint, _ := strings.Cut(strings.TrimSpace(item.Value), "/")
			out = append(out, Dependency{ID: id, Constraint: constraint})
		case yaml.MappingNode:
			var tmp Dependency
			if err := item.Decode(&tmp); err != nil {
				return fmt.Errorf("invalid dependency object: %w", err)
			}
			tmp.ID = strings.TrimSpace(tmp.ID)
			out = append(out, tmp)
		default:
			return fmt.Errorf("invalid dependency entry (must be string or object)")
		}
	}

	*d = out
	return nil
}

// Descriptor is the YAML metadata of an extension.
type Descriptor struct {
	ID           string       `yaml:"id" json:"id"`
	Version      string       `yaml:"version" json:"version"`
	Type         string       `yaml:"type,omitempty" json:"type,omitempty"`
	Name         string       `yaml:"name,omitempty" json:"name,omitempty"`
	Description  string       `yaml:"description,omitempty" json:"description,omitempty"`
	Features     []string     `yaml:"features,omitempty" json:"features,omitempty"`
	Dependencies Dependencies `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	// File is the archive name, relative to the descriptor.
	File     string `yaml:"file,omitempty" json:"file,omitempty"`
	Checksum string `yaml:"checksum,omitempty" json:"checksum,omitempty"`
}

// Key returns the descriptor's ID.
func (d *Descriptor) Key() ID {
	return ID{ID: d.ID, Version: d.Version}
}

// Provides reports whether the descriptor answers for id, either directly or
// through one of its features.
func (d *Descriptor) Provides(id string) bool {
	if d.ID == id {
		return true
	}
	for _, f := range d.Features {
		if f == id {
			return true
		}
	}
	return false
}

// Extension is a descriptor resolved from a repository.
type Extension struct {
	Descriptor
	Repository string `json:"repository"`
	// Path is the descriptor (or POM) location on disk.
	Path string `json:"path"`
	// FilePath is the archive location on disk, when one exists.
	FilePath string `json:"file_path,omitempty"`
}

// ParseDescriptor decodes and validates a YAML descriptor.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor YAML: %w", err)
	}
	if err := Validate(&d); err != nil {
		return nil, fmt.Errorf("invalid descriptor: %w", err)
	}
	if d.Type == "" {
		d.Type = DefaultType
	}
	return &d, nil
}

// LoadDescriptor reads a descriptor file.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}
	d, err := ParseDescriptor(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Marshal encodes the descriptor as YAML.
func (d *Descriptor) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// Validate checks required descriptor fields.
func Validate(d *Descriptor) error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(d.Version) == "" {
		return fmt.Errorf("version is required")
	}
	if strings.ContainsAny(d.ID, `/\`) {
		return fmt.Errorf("id %q must not contain path separators", d.ID)
	}
	if !PlainName(d.File) {
		return fmt.Errorf("file %q must be a plain file name", d.File)
	}
	if !PlainName(d.Version) {
		return fmt.Errorf("version %q must not contain path elements", d.Version)
	}
	if !PlainName(d.Type) {
		return fmt.Errorf("type %q must not contain path elements", d.Type)
	}

	for _, dep := range d.Dependencies {
		if dep.ID == "" {
			return fmt.Errorf("dependency id is required")
		}
		if dep.ID == d.ID {
			return fmt.Errorf("extension %q depends on itself", d.ID)
		}
		if _, err := ParseConstraint(dep.Constraint); err != nil {
			return fmt.Errorf("dependency %q: %w", dep.ID, err)
		}
	}

	return nil
}

// PlainName reports whether s can be used as a single path element.
func PlainName(s string) bool {
	return !strings.Contains(s, "..") && !strings.ContainsAny(s, `/\`)
}
