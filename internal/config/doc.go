// Package config loads, normalizes, and validates quickpkg configuration.
//
// Configuration comes from a TOML file (default
// ~/.config/quickpkg/config.toml, a project-local quickpkg.toml, or an
// explicit --config path) layered over Default(). Package-manager style
// environment variables such as BINPKG_FORMAT, BINPKG_COMPRESS, MAKEOPTS and
// PKGDIR override file values so the tool behaves like the rest of the
// package tool family when run from a build environment.
//
// Vars exposes the flattened variable map that the compression pipeline
// expands command templates against.
package config
