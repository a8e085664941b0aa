package configprotect_test

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"quickpkg/internal/configprotect"
	"quickpkg/internal/vardb"
)

func TestIsProtected(t *testing.T) {
	policy := configprotect.New("/", []string{"/etc", "/usr/share/config"}, []string{"/etc/env.d", "/etc/env.d/custom/keep"})
	tests := map[string]bool{
		"/etc/foo.conf":                  true,
		"/etc":                           true,
		"/etcetera/x":                    false,
		"/etc/env.d/00basic":             false,
		"/usr/share/config/kdeglobals":   true,
		"/usr/bin/foo":                   false,
		"/etc/env.d/custom/keep/file":    false,
		"/usr/share/config/../../bin/sh": false,
	}
	for name, want := range tests {
		if got := policy.IsProtected(name); got != want {
			t.Fatalf("IsProtected(%q) = %v want %v", name, got, want)
		}
	}

	nested := configprotect.New("/", []string{"/etc", "/etc/env.d/custom"}, []string{"/etc/env.d"})
	if !nested.IsProtected("/etc/env.d/custom/file") {
		t.Fatal("expected longer protect entry to override mask")
	}
}

func fixture(t *testing.T) (string, vardb.Contents) {
	t.Helper()
	root := t.TempDir()
	write := func(rel, data string) string {
		full := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
		sum := md5.Sum([]byte(data))
		return hex.EncodeToString(sum[:])
	}
	pristine := write("etc/foo/pristine.conf", "default\n")
	write("etc/foo/edited.conf", "edited\n")
	binary := write("usr/bin/foo", "ELF")
	contents := vardb.Contents{
		{Kind: vardb.KindDir, Path: "/etc/foo"},
		{Kind: vardb.KindObj, Path: "/etc/foo/pristine.conf", MD5: pristine},
		{Kind: vardb.KindObj, Path: "/etc/foo/edited.conf", MD5: "00000000000000000000000000000000"},
		{Kind: vardb.KindObj, Path: "/etc/foo/gone.conf", MD5: "00000000000000000000000000000000"},
		{Kind: vardb.KindSym, Path: "/etc/foo/link", Target: "pristine.conf"},
		{Kind: vardb.KindObj, Path: "/usr/bin/foo", MD5: binary},
	}
	return root, contents
}

func TestFilterExcludesEveryProtectedFileByDefault(t *testing.T) {
	root, contents := fixture(t)
	policy := configprotect.New(root, []string{"/etc"}, nil)
	kept, excluded, err := policy.Filter(contents, configprotect.Options{})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	protected := 0
	for _, entry := range contents {
		if entry.Kind == vardb.KindObj && policy.IsProtected(entry.Path) {
			protected++
		}
	}
	if len(excluded) != protected {
		t.Fatalf("excluded %d files, %d are protected", len(excluded), protected)
	}
	if len(kept)+len(excluded) != len(contents) {
		t.Fatalf("kept %d + excluded %d != %d", len(kept), len(excluded), len(contents))
	}
}

func TestFilterIncludeConfigKeepsEverything(t *testing.T) {
	root, contents := fixture(t)
	policy := configprotect.New(root, []string{"/etc"}, nil)
	kept, excluded, err := policy.Filter(contents, configprotect.Options{IncludeConfig: true})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(excluded) != 0 || len(kept) != len(contents) {
		t.Fatalf("expected nothing excluded, got %v", excluded)
	}
}

func TestFilterIncludeUnmodified(t *testing.T) {
	root, contents := fixture(t)
	policy := configprotect.New(root, []string{"/etc"}, nil)
	_, excluded, err := policy.Filter(contents, configprotect.Options{IncludeUnmodifiedConfig: true})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(excluded) != 2 || excluded[0] != "/etc/foo/edited.conf" || excluded[1] != "/etc/foo/gone.conf" {
		t.Fatalf("unexpected excluded set %v", excluded)
	}
}
