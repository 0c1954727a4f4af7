package config

// Config is the fixture.yaml configuration.
type Config struct {
	// BaseDir holds workspace roots (test-<millis>-<token>).
	BaseDir string `yaml:"base_dir"`
	// ResourcesDir is the root of the bundled test resources.
	ResourcesDir      string          `yaml:"resources_dir"`
	LogLevel          string          `yaml:"log_level"`
	Packages          PackagesConfig  `yaml:"packages"`
	MavenRepositoryID string          `yaml:"maven_repository_id"`
	CoreExtensions    []CoreExtension `yaml:"core_extensions"`
	Serve             ServeConfig     `yaml:"serve,omitempty"`
	Include           []string        `yaml:"include,omitempty"`

	// SourceFiles lists the absolute paths Load read, root first.
	SourceFiles []string `yaml:"-"`
}

// PackagesConfig names the resource packages copied into each repository.
type PackagesConfig struct {
	Local    string `yaml:"local"`
	Remote   string `yaml:"remote"`
	Maven    string `yaml:"maven"`
	Packager string `yaml:"packager"`
}

// CoreExtension is an extension the host declares as always present.
type CoreExtension struct {
	ID      string `yaml:"id"`
	Version string `yaml:"version"`
}

// ServeConfig configures the read-only debug view.
type ServeConfig struct {
	Listen string `yaml:"listen"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		BaseDir:      "target",
		ResourcesDir: "testdata",
		LogLevel:     "info",
		Packages: PackagesConfig{
			Local:    "repository.local",
			Remote:   "repository.remote",
			Maven:    "repository.maven",
			Packager: "packagefile",
		},
		MavenRepositoryID: "test-maven",
		CoreExtensions: []CoreExtension{
			{ID: "coreextension", Version: "version"},
		},
		Serve: ServeConfig{
			Listen: "127.0.0.1:8089",
		},
	}
}
