package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/extfixture/internal/repository"
)

// FileName is the configuration file looked up by Discover.
const FileName = "fixture.yaml"

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads a configuration file, follows its includes, applies defaults and
// validates the result. Relative directories resolve against the directory of
// the root file.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, FileName)
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but %s not found: %s", FileName, absPath)
		}
	}

	cfg, err := loadConfigFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", absPath, err)
	}
	cfg.SourceFiles = []string{absPath}

	if len(cfg.Include) > 0 {
		visited := map[string]bool{absPath: true}
		if err := loadIncludes(cfg, cfg.Include, filepath.Dir(absPath), visited); err != nil {
			return nil, err
		}
	}

	cfg = applyConfigDefaults(cfg)
	cfg.BaseDir = resolveDir(filepath.Dir(absPath), cfg.BaseDir)
	cfg.ResourcesDir = resolveDir(filepath.Dir(absPath), cfg.ResourcesDir)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Discover finds a configuration file. Priority order: $EXTFIXTURE_CONFIG,
// ./fixture.yaml, $XDG_CONFIG_HOME/extfixture/fixture.yaml (and the XDG
// config dirs). An empty path with a nil error means none was found.
func Discover() (string, error) {
	if p := os.Getenv("EXTFIXTURE_CONFIG"); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("EXTFIXTURE_CONFIG points at a missing file: %s", p)
		}
		return p, nil
	}

	if _, err := os.Stat(FileName); err == nil {
		return FileName, nil
	}

	if p, err := xdg.SearchConfigFile(filepath.Join("extfixture", FileName)); err == nil {
		return p, nil
	}

	return "", nil
}

// LoadOrDefault loads configPath, or the discovered file, or falls back to
// Defaults when nothing is found.
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath == "" {
		found, err := Discover()
		if err != nil {
			return nil, err
		}
		configPath = found
	}
	if configPath == "" {
		cfg := Defaults()
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return Load(configPath)
}

// loadIncludes loads and merges included files depth first. visited tracks
// loaded files to reject cycles.
func loadIncludes(cfg *Config, includes []string, baseDir string, visited map[string]bool) error {
	for i, includePath := range includes {
		includePath = interpolateEnv(includePath)
		if !filepath.IsAbs(includePath) {
			includePath = filepath.Join(baseDir, includePath)
		}
		absPath, err := filepath.Abs(includePath)
		if err != nil {
			return fmt.Errorf("include[%d]: failed to resolve path %q: %w", i, includePath, err)
		}

		if visited[absPath] {
			return fmt.Errorf("include[%d]: circular dependency detected: %s", i, absPath)
		}
		if _, err := os.Stat(absPath); err != nil {
			return fmt.Errorf("include[%d]: file not found: %s\n"+
				"Referenced from: %s\n"+
				"Hint: Check the path is correct and the file exists", i, absPath, baseDir)
		}
		visited[absPath] = true

		included, err := loadConfigFile(absPath)
		if err != nil {
			return fmt.Errorf("include[%d] (%s): %w", i, absPath, err)
		}
		mergeConfig(cfg, included)
		cfg.SourceFiles = append(cfg.SourceFiles, absPath)

		if len(included.Include) > 0 {
			if err := loadIncludes(cfg, included.Include, filepath.Dir(absPath), visited); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

// mergeConfig merges src into dst, src taking precedence for non-zero values.
func mergeConfig(dst, src *Config) {
	if src.BaseDir != "" {
		dst.BaseDir = src.BaseDir
	}
	if src.ResourcesDir != "" {
		dst.ResourcesDir = src.ResourcesDir
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.Packages.Local != "" {
		dst.Packages.Local = src.Packages.Local
	}
	if src.Packages.Remote != "" {
		dst.Packages.Remote = src.Packages.Remote
	}
	if src.Packages.Maven != "" {
		dst.Packages.Maven = src.Packages.Maven
	}
	if src.Packages.Packager != "" {
		dst.Packages.Packager = src.Packages.Packager
	}
	if src.MavenRepositoryID != "" {
		dst.MavenRepositoryID = src.MavenRepositoryID
	}
	if len(src.CoreExtensions) > 0 {
		dst.CoreExtensions = src.CoreExtensions
	}
	if src.Serve.Listen != "" {
		dst.Serve.Listen = src.Serve.Listen
	}
}

// applyConfigDefaults fills every unset value from Defaults.
func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()
	sources := cfg.SourceFiles
	mergeConfig(defaults, cfg)
	defaults.Include = cfg.Include
	defaults.SourceFiles = sources
	return defaults
}

func resolveDir(baseDir, dir string) string {
	if dir == "" || filepath.IsAbs(dir) || envVarPattern.MatchString(dir) {
		return dir
	}
	return filepath.Join(baseDir, dir)
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	for key, value := range map[string]string{
		"base_dir":            cfg.BaseDir,
		"resources_dir":       cfg.ResourcesDir,
		"maven_repository_id": cfg.MavenRepositoryID,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s is required", key)
		}
		if m := envVarPattern.FindStringSubmatch(value); m != nil {
			return fmt.Errorf("%s references undefined environment variable %s", key, m[1])
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error (got %q)", cfg.LogLevel)
	}

	packages := map[string]string{
		"packages.local":    cfg.Packages.Local,
		"packages.remote":   cfg.Packages.Remote,
		"packages.maven":    cfg.Packages.Maven,
		"packages.packager": cfg.Packages.Packager,
	}
	for key, pkg := range packages {
		if strings.TrimSpace(pkg) == "" {
			return fmt.Errorf("%s is required", key)
		}
		if strings.ContainsAny(pkg, `/\`) {
			return fmt.Errorf("%s must be a dotted package name (got %q)", key, pkg)
		}
	}

	switch cfg.MavenRepositoryID {
	case repository.RemoteRepositoryID, repository.CoreRepositoryID:
		return fmt.Errorf("maven_repository_id %q is reserved", cfg.MavenRepositoryID)
	}

	seen := make(map[string]bool, len(cfg.CoreExtensions))
	for i, ce := range cfg.CoreExtensions {
		if strings.TrimSpace(ce.ID) == "" || strings.TrimSpace(ce.Version) == "" {
			return fmt.Errorf("core_extensions[%d]: id and version are required", i)
		}
		if seen[ce.ID] {
			return fmt.Errorf("core_extensions[%d]: duplicate id %q", i, ce.ID)
		}
		seen[ce.ID] = true
	}

	return nil
}
