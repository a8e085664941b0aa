package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the filesystem locations the packager reads from and writes to.
type Paths struct {
	Root          string `toml:"root"`
	VDBDir        string `toml:"vdb_dir"`
	PkgDir        string `toml:"pkgdir"`
	SetsDir       string `toml:"sets_dir"`
	WorldFile     string `toml:"world_file"`
	WorldSetsFile string `toml:"world_sets_file"`
	LogDir        string `toml:"log_dir"`
}

// Binpkg contains binary package format and compression settings.
type Binpkg struct {
	Format                string            `toml:"format"`
	Compress              string            `toml:"compress"`
	CompressFlags         string            `toml:"compress_flags"`
	CompressFlagsByMethod map[string]string `toml:"compress_flags_by_method"`
	Makeopts              string            `toml:"makeopts"`
	MultiInstance         bool              `toml:"multi_instance"`
}

// ConfigProtect lists directories whose files are treated as protected
// configuration, and the subpaths exempted from that protection.
type ConfigProtect struct {
	Protect     []string `toml:"protect"`
	ProtectMask []string `toml:"protect_mask"`
}

// Options contains invocation defaults that the CLI flags override.
type Options struct {
	DefaultOpts             string `toml:"default_opts"`
	Umask                   string `toml:"umask"`
	IncludeConfig           bool   `toml:"include_config"`
	IncludeUnmodifiedConfig bool   `toml:"include_unmodified_config"`
	LocksHeld               bool   `toml:"locks_held"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for quickpkg.
//
// Configuration sections:
//   - Paths: live root, installed-package database, binary repository, sets
//   - Binpkg: container format and compressor selection
//   - ConfigProtect: protected configuration directories
//   - Options: invocation defaults
//   - Logging: log format and level
//   - Env: extra variables available to compressor command expansion
type Config struct {
	Paths         Paths             `toml:"paths"`
	Binpkg        Binpkg            `toml:"binpkg"`
	ConfigProtect ConfigProtect     `toml:"config_protect"`
	Options       Options           `toml:"options"`
	Logging       Logging           `toml:"logging"`
	Env           map[string]string `toml:"env"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("quickpkg.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the binary repository root. The installed-package
// database is never created here; a missing database is reported by the
// resolver as an empty installation.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.PkgDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.PkgDir, err)
	}
	if strings.TrimSpace(c.Paths.LogDir) != "" {
		if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
		}
	}
	return nil
}

// Vars returns the variable map used for shell-style expansion of compressor
// command templates. Entries from the [env] table are visible too, but the
// packaging keys always reflect the normalized configuration.
func (c *Config) Vars() map[string]string {
	vars := make(map[string]string, len(c.Env)+8+len(c.Binpkg.CompressFlagsByMethod))
	for key, value := range c.Env {
		vars[key] = value
	}
	vars["ROOT"] = c.Paths.Root
	vars["PKGDIR"] = c.Paths.PkgDir
	vars["BINPKG_FORMAT"] = c.Binpkg.Format
	vars["BINPKG_COMPRESS"] = c.Binpkg.Compress
	vars["BINPKG_COMPRESS_FLAGS"] = c.Binpkg.CompressFlags
	vars["MAKEOPTS"] = c.Binpkg.Makeopts
	for method, flags := range c.Binpkg.CompressFlagsByMethod {
		vars["BINPKG_COMPRESS_FLAGS_"+strings.ToUpper(method)] = flags
	}
	return vars
}

// VarNames returns the sorted keys of Vars, mostly for diagnostics.
func (c *Config) VarNames() []string {
	vars := c.Vars()
	names := make([]string, 0, len(vars))
	for key := range vars {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
