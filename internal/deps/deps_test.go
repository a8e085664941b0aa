package deps

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeStub(t *testing.T, dir, name string, mode os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, executableName(name))
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), mode); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := writeStub(t, binDir, "present", 0o755)
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary", Package: "app-arch/missing"},
		{Name: "Unset"},
	}

	results := CheckBinaries(nil, reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if !strings.Contains(results[1].Detail, "app-arch/missing") {
		t.Fatalf("expected package hint in detail, got %q", results[1].Detail)
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("unexpected status for unset command: %#v", results[2])
	}
}

func TestPathResolverUsesPATH(t *testing.T) {
	binDir := t.TempDir()
	stub := writeStub(t, binDir, "zstd", 0o755)
	t.Setenv("PATH", binDir)

	resolved, err := PathResolver{}.LookPath("zstd")
	if err != nil {
		t.Fatalf("LookPath: %v", err)
	}
	if resolved != stub {
		t.Fatalf("expected %q, got %q", stub, resolved)
	}

	t.Setenv("PATH", "")
	if _, err := (PathResolver{}).LookPath("zstd"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDirResolver(t *testing.T) {
	binDir := t.TempDir()
	stub := writeStub(t, binDir, "xz", 0o755)
	writeStub(t, binDir, "plain", 0o644)
	resolver := DirResolver{Dirs: []string{t.TempDir(), binDir}}

	resolved, err := resolver.LookPath("xz")
	if err != nil || resolved != stub {
		t.Fatalf("expected %q, got %q (%v)", stub, resolved, err)
	}
	if _, err := resolver.LookPath(stub); err != nil {
		t.Fatalf("absolute lookup failed: %v", err)
	}
	if _, err := resolver.LookPath("plain"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected non-executable file to be rejected, got %v", err)
	}
}
