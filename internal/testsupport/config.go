package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"quickpkg/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test:
// a fake live root with its package database, a binary repository and a
// sets directory. Payloads are stored uncompressed unless WithCompress is
// used.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.Root = filepath.Join(base, "root")
	cfgVal.Paths.VDBDir = filepath.Join(base, "root", "var", "db", "pkg")
	cfgVal.Paths.PkgDir = filepath.Join(base, "packages")
	cfgVal.Paths.SetsDir = filepath.Join(base, "sets")
	cfgVal.Paths.WorldFile = filepath.Join(base, "world")
	cfgVal.Paths.WorldSetsFile = filepath.Join(base, "world_sets")
	cfgVal.Paths.LogDir = ""
	cfgVal.Binpkg.Compress = ""
	cfgVal.Binpkg.Makeopts = "-j1"
	cfgVal.Options.LocksHeld = false

	for _, dir := range []string{cfgVal.Paths.VDBDir, cfgVal.Paths.SetsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithFormat sets the binary package format.
func WithFormat(format string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Binpkg.Format = format
	}
}

// WithCompress sets the xpak compressor method.
func WithCompress(method string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Binpkg.Compress = method
	}
}

// WithMultiInstance enables build-id naming in the repository.
func WithMultiInstance() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Binpkg.MultiInstance = true
	}
}

// WithStubbedBinaries writes pass-through stub executables for the provided
// names and puts them first on PATH. If names is empty, cat and zstd are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"cat", "zstd"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexec /bin/cat\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.PkgDir)
}
