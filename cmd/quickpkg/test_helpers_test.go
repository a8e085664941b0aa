package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"quickpkg/internal/config"
	"quickpkg/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	clearPackagingEnv(t)

	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithStubbedBinaries()}, opts...)...)
	base := testsupport.BaseDir(cfg)
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func clearPackagingEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ROOT", "PKGDIR", "BINPKG_FORMAT", "BINPKG_COMPRESS", "BINPKG_COMPRESS_FLAGS",
		"MAKEOPTS", "CONFIG_PROTECT", "CONFIG_PROTECT_MASK", "QUICKPKG_DEFAULT_OPTS",
		"QUICKPKG_VDB_LOCKED", "NO_COLOR",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, int) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	code := execute(context.Background(), cmd, &stderr)
	return stdout.String(), stderr.String(), code
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func installFoo(t *testing.T, cfg *config.Config) {
	t.Helper()
	testsupport.InstallPackage(t, cfg, testsupport.Package{
		CPV: "app-misc/foo-1.0",
		Files: map[string]string{
			"/usr/bin/foo":     "#!/bin/sh\necho foo\n",
			"/etc/foo.conf":    "verbose=1\n",
			"/usr/share/foo/a": "data\n",
		},
	})
}
