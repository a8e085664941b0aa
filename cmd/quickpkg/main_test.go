package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0"},
		{512, "512"},
		{1023, "1023"},
		{1536, "1.5K"},
		{10240, "10.0K"},
		{102400, "100K"},
		{1048576, "1.0M"},
		{1048575, "1023K"},
		{1073741824, "1.0G"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.size); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}

func TestRunReportsMissingSpecifier(t *testing.T) {
	env := setupCLITestEnv(t)
	installFoo(t, env.cfg)

	out, _, code := runCLI(t, env.configPath, "app-misc/foo", "app-misc/does-not-exist")
	if code != 2 {
		t.Fatalf("expected exit 2, got %d (out=%s)", code, out)
	}
	requireContains(t, out, "app-misc/foo-1.0")
	requireContains(t, out, "No installed package matched")
	requireContains(t, out, "app-misc/does-not-exist")
	requireContains(t, out, "1 protected configuration files were excluded")

	artifacts, err := filepath.Glob(filepath.Join(env.cfg.Paths.PkgDir, "app-misc", "*.tbz2"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("expected one artifact, got %v", artifacts)
	}
}

func TestRunFullSuccess(t *testing.T) {
	env := setupCLITestEnv(t)
	installFoo(t, env.cfg)

	out, _, code := runCLI(t, env.configPath, "--include-config", "y", "foo")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (out=%s)", code, out)
	}
	requireContains(t, out, "1 binary packages written")
	if strings.Contains(out, "protected configuration") {
		t.Fatalf("expected no exclusion notice with --include-config y, got %s", out)
	}
}

func TestRunNothingProducedIsFailure(t *testing.T) {
	env := setupCLITestEnv(t)

	out, stderr, code := runCLI(t, env.configPath, "app-misc/missing")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	requireContains(t, stderr, "no binary packages were created")
	requireContains(t, out, "app-misc/missing")
}

func TestRunRequiresSpecifier(t *testing.T) {
	env := setupCLITestEnv(t)

	_, stderr, code := runCLI(t, env.configPath)
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	requireContains(t, stderr, "specifier is required")
}

func TestRunRejectsBadYesNo(t *testing.T) {
	env := setupCLITestEnv(t)
	installFoo(t, env.cfg)

	_, stderr, code := runCLI(t, env.configPath, "--include-config", "maybe", "foo")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	requireContains(t, stderr, "expected y or n")
	entries, _ := os.ReadDir(filepath.Join(env.cfg.Paths.PkgDir, "app-misc"))
	if len(entries) != 0 {
		t.Fatalf("expected nothing packaged, got %d entries", len(entries))
	}
}

func TestUnsupportedFormatAbortsBeforePackaging(t *testing.T) {
	env := setupCLITestEnv(t)
	installFoo(t, env.cfg)
	t.Setenv("BINPKG_FORMAT", "rpm")

	_, stderr, code := runCLI(t, env.configPath, "foo")
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	requireContains(t, stderr, "unsupported format")
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.PkgDir, "app-misc")); !os.IsNotExist(err) {
		t.Fatalf("expected no category directory in repository, stat err=%v", err)
	}
}

func TestDefaultOptsHonouredUnlessIgnored(t *testing.T) {
	env := setupCLITestEnv(t)
	installFoo(t, env.cfg)
	t.Setenv("QUICKPKG_DEFAULT_OPTS", "--include-config y")

	out, _, code := runCLI(t, env.configPath, "foo")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if strings.Contains(out, "protected configuration") {
		t.Fatalf("expected default opts to include config, got %s", out)
	}

	out, _, code = runCLI(t, env.configPath, "--ignore-default-opts", "foo")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	requireContains(t, out, "1 protected configuration files were excluded")
}

func TestApplyDefaultOptsKeepsExplicitFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	umask := fs.String("umask", "", "")
	include := fs.String("include-config", "", "")
	if err := fs.Parse([]string{"--umask", "022", "sed"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	args, err := applyDefaultOpts(fs, `--umask 0077 --include-config y "@world"`, fs.Args())
	if err != nil {
		t.Fatalf("applyDefaultOpts: %v", err)
	}
	if *umask != "022" {
		t.Fatalf("expected explicit umask to win, got %q", *umask)
	}
	if *include != "y" {
		t.Fatalf("expected default include-config, got %q", *include)
	}
	if strings.Join(args, " ") != "@world sed" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestWithUmaskRestores(t *testing.T) {
	previous := unix.Umask(0o027)
	defer unix.Umask(previous)

	err := withUmask(0o077, func() error {
		inside := unix.Umask(0o077)
		if inside != 0o077 {
			t.Errorf("expected umask 077 inside, got %o", inside)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withUmask: %v", err)
	}
	if restored := unix.Umask(0o027); restored != 0o027 {
		t.Fatalf("expected umask 027 after, got %o", restored)
	}
}

func TestConfigInit(t *testing.T) {
	clearPackagingEnv(t)
	target := filepath.Join(t.TempDir(), "quickpkg.toml")

	out, _, code := runCLI(t, "", "config", "init", "--path", target)
	if code != 0 {
		t.Fatalf("config init exit %d", code)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file: %v", err)
	}

	_, stderr, code := runCLI(t, "", "config", "init", "--path", target)
	if code != 1 {
		t.Fatalf("expected second init to fail, got %d", code)
	}
	requireContains(t, stderr, "already exists")
}

func TestConfigShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, code := runCLI(t, env.configPath, "config", "show")
	if code != 0 {
		t.Fatalf("config show exit %d", code)
	}
	requireContains(t, out, env.cfg.Paths.PkgDir)
	requireContains(t, out, "(store)")
	requireContains(t, out, "Configuration valid")
}

func TestCompressorsListsStore(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, code := runCLI(t, env.configPath, "compressors")
	if code != 0 {
		t.Fatalf("compressors exit %d", code)
	}
	requireContains(t, out, "(store)")
	requireContains(t, out, "zstd")
}

func TestCheckPassesForTestConfig(t *testing.T) {
	env := setupCLITestEnv(t)

	out, stderr, code := runCLI(t, env.configPath, "check")
	if code != 0 {
		t.Fatalf("check exit %d: %s\n%s", code, out, stderr)
	}
	requireContains(t, out, "Binary repository")
	requireContains(t, out, "OK")
}
