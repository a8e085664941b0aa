package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBinpkg()
	c.normalizeConfigProtect()
	c.normalizeOptions()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if value, ok := os.LookupEnv("ROOT"); ok && strings.TrimSpace(value) != "" {
		c.Paths.Root = value
	}
	if strings.TrimSpace(c.Paths.Root) == "" {
		c.Paths.Root = defaultRoot
	}
	if c.Paths.Root, err = expandPath(c.Paths.Root); err != nil {
		return fmt.Errorf("paths.root: %w", err)
	}
	if strings.TrimSpace(c.Paths.VDBDir) == "" {
		c.Paths.VDBDir = filepath.Join(c.Paths.Root, defaultVDBSubdir)
	}
	if c.Paths.VDBDir, err = expandPath(c.Paths.VDBDir); err != nil {
		return fmt.Errorf("paths.vdb_dir: %w", err)
	}
	if value, ok := os.LookupEnv("PKGDIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.PkgDir = value
	}
	if c.Paths.PkgDir, err = expandPath(c.Paths.PkgDir); err != nil {
		return fmt.Errorf("paths.pkgdir: %w", err)
	}
	if c.Paths.SetsDir, err = expandPath(c.Paths.SetsDir); err != nil {
		return fmt.Errorf("paths.sets_dir: %w", err)
	}
	if c.Paths.WorldFile, err = expandPath(c.Paths.WorldFile); err != nil {
		return fmt.Errorf("paths.world_file: %w", err)
	}
	if c.Paths.WorldSetsFile, err = expandPath(c.Paths.WorldSetsFile); err != nil {
		return fmt.Errorf("paths.world_sets_file: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBinpkg() {
	if value, ok := os.LookupEnv("BINPKG_FORMAT"); ok && strings.TrimSpace(value) != "" {
		c.Binpkg.Format = value
	}
	c.Binpkg.Format = strings.ToLower(strings.TrimSpace(c.Binpkg.Format))
	if c.Binpkg.Format == "" {
		c.Binpkg.Format = defaultFormat
	}
	// An explicitly empty BINPKG_COMPRESS selects the store method.
	if value, ok := os.LookupEnv("BINPKG_COMPRESS"); ok {
		c.Binpkg.Compress = value
	}
	c.Binpkg.Compress = strings.ToLower(strings.TrimSpace(c.Binpkg.Compress))
	if value, ok := os.LookupEnv("BINPKG_COMPRESS_FLAGS"); ok {
		c.Binpkg.CompressFlags = value
	}
	c.Binpkg.CompressFlags = strings.TrimSpace(c.Binpkg.CompressFlags)
	if c.Binpkg.Compress != "" {
		key := "BINPKG_COMPRESS_FLAGS_" + strings.ToUpper(c.Binpkg.Compress)
		if value, ok := os.LookupEnv(key); ok {
			if c.Binpkg.CompressFlagsByMethod == nil {
				c.Binpkg.CompressFlagsByMethod = make(map[string]string)
			}
			c.Binpkg.CompressFlagsByMethod[c.Binpkg.Compress] = strings.TrimSpace(value)
		}
	}
	if len(c.Binpkg.CompressFlagsByMethod) > 0 {
		normalized := make(map[string]string, len(c.Binpkg.CompressFlagsByMethod))
		for method, flags := range c.Binpkg.CompressFlagsByMethod {
			normalized[strings.ToLower(strings.TrimSpace(method))] = strings.TrimSpace(flags)
		}
		c.Binpkg.CompressFlagsByMethod = normalized
	}
	if value, ok := os.LookupEnv("MAKEOPTS"); ok {
		c.Binpkg.Makeopts = value
	}
	c.Binpkg.Makeopts = strings.TrimSpace(c.Binpkg.Makeopts)
}

func (c *Config) normalizeConfigProtect() {
	if value, ok := os.LookupEnv("CONFIG_PROTECT"); ok {
		c.ConfigProtect.Protect = strings.Fields(value)
	}
	if value, ok := os.LookupEnv("CONFIG_PROTECT_MASK"); ok {
		c.ConfigProtect.ProtectMask = strings.Fields(value)
	}
	c.ConfigProtect.Protect = cleanPathList(c.ConfigProtect.Protect)
	c.ConfigProtect.ProtectMask = cleanPathList(c.ConfigProtect.ProtectMask)
}

func cleanPathList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		value = filepath.Clean("/" + strings.TrimLeft(value, "/"))
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func (c *Config) normalizeOptions() {
	if value, ok := os.LookupEnv("QUICKPKG_DEFAULT_OPTS"); ok {
		c.Options.DefaultOpts = value
	}
	c.Options.DefaultOpts = strings.TrimSpace(c.Options.DefaultOpts)
	c.Options.Umask = strings.TrimSpace(c.Options.Umask)
	if c.Options.Umask == "" {
		c.Options.Umask = defaultUmask
	}
	if value, ok := os.LookupEnv("QUICKPKG_VDB_LOCKED"); ok && isTruthy(value) {
		c.Options.LocksHeld = true
	}
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "y", "yes", "true", "on":
		return true
	default:
		return false
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
