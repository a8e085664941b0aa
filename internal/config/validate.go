package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"quickpkg/internal/pkgerr"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateBinpkg(); err != nil {
		return err
	}
	if _, err := ParseUmask(c.Options.Umask); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.VDBDir) == "" {
		return errors.New("paths.vdb_dir must be set")
	}
	if strings.TrimSpace(c.Paths.PkgDir) == "" {
		return errors.New("paths.pkgdir must be set")
	}
	return nil
}

func (c *Config) validateBinpkg() error {
	switch c.Binpkg.Format {
	case FormatXPAK, FormatGPKG:
	default:
		return pkgerr.Wrap(pkgerr.ErrUnsupportedFormat, "config", "binpkg.format",
			fmt.Sprintf("%q is not one of %s, %s", c.Binpkg.Format, FormatXPAK, FormatGPKG), nil)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

// ParseUmask parses an octal umask string such as "0077" or "022".
func ParseUmask(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, pkgerr.Wrap(pkgerr.ErrConfiguration, "config", "umask", "empty value", nil)
	}
	mask, err := strconv.ParseUint(trimmed, 8, 32)
	if err != nil {
		return 0, pkgerr.Wrap(pkgerr.ErrConfiguration, "config", "umask", fmt.Sprintf("invalid octal %q", value), err)
	}
	if mask > 0o777 {
		return 0, pkgerr.Wrap(pkgerr.ErrConfiguration, "config", "umask", fmt.Sprintf("%q out of range", value), nil)
	}
	return int(mask), nil
}
