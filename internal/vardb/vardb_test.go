package vardb_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"quickpkg/internal/atom"
	"quickpkg/internal/logging"
	"quickpkg/internal/pkgerr"
	"quickpkg/internal/vardb"
)

func writeRecord(t *testing.T, root, cpv string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, filepath.FromSlash(cpv))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir record: %v", err)
	}
	for key, value := range files {
		if err := os.WriteFile(filepath.Join(dir, key), []byte(value), 0o644); err != nil {
			t.Fatalf("write %s: %v", key, err)
		}
	}
}

func newStore(t *testing.T) (*vardb.Store, string) {
	t.Helper()
	root := t.TempDir()
	writeRecord(t, root, "app-misc/foo-1.0", map[string]string{"SLOT": "0\n", "repository": "gentoo\n"})
	writeRecord(t, root, "app-misc/foo-2.0-r1", map[string]string{"SLOT": "2/2.0\n", "repository": "local\n"})
	writeRecord(t, root, "dev-libs/bar-0.5", map[string]string{"SLOT": "0\n"})
	writeRecord(t, root, "dev-util/bar-1.1", map[string]string{"SLOT": "0\n"})
	if err := os.MkdirAll(filepath.Join(root, "app-misc", "-MERGING-baz-1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "app-misc", ".foo-1.0.portage_lockfile"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	return vardb.Open(root, logging.NewNop()), root
}

func TestListSkipsMergesAndLockfiles(t *testing.T) {
	store, _ := newStore(t)
	got, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"app-misc/foo-1.0", "app-misc/foo-2.0-r1", "dev-libs/bar-0.5", "dev-util/bar-1.1"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Fatalf("entry %d: got %s want %s", i, got[i], want[i])
		}
	}
}

func TestListMissingDatabase(t *testing.T) {
	store := vardb.Open(filepath.Join(t.TempDir(), "absent"), logging.NewNop())
	got, err := store.List(context.Background())
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v %v", got, err)
	}
}

func TestMatchWithSlotAndRepo(t *testing.T) {
	store, _ := newStore(t)
	tests := []struct {
		atom string
		want []string
	}{
		{"app-misc/foo", []string{"app-misc/foo-1.0", "app-misc/foo-2.0-r1"}},
		{"=app-misc/foo-1.0", []string{"app-misc/foo-1.0"}},
		{"app-misc/foo:2", []string{"app-misc/foo-2.0-r1"}},
		{"app-misc/foo::gentoo", []string{"app-misc/foo-1.0"}},
		{">app-misc/foo-1.0", []string{"app-misc/foo-2.0-r1"}},
		{"app-misc/nothing", nil},
	}
	for _, tt := range tests {
		t.Run(tt.atom, func(t *testing.T) {
			a, err := atom.Parse(tt.atom, atom.AllowRepo)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			got, err := store.Match(context.Background(), a)
			if err != nil {
				t.Fatalf("Match: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i].Bare().String() != tt.want[i] {
					t.Fatalf("got %s want %s", got[i], tt.want[i])
				}
			}
		})
	}
}

func TestGetAndSetMetadata(t *testing.T) {
	store, root := newStore(t)
	cpv, _ := atom.ParseCPV("app-misc/foo-1.0")
	md, err := store.Get(cpv, vardb.KeySlot, vardb.KeyUse)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if md.Get(vardb.KeySlot) != "0" || md.Get(vardb.KeyUse) != "" {
		t.Fatalf("unexpected metadata %v", md)
	}
	if err := store.Set(cpv, vardb.Metadata{vardb.KeyCategory: "app-misc", vardb.KeyPF: "foo-1.0"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "app-misc", "foo-1.0", "PF"))
	if err != nil || string(data) != "foo-1.0\n" {
		t.Fatalf("unexpected PF file %q %v", data, err)
	}

	gone, _ := atom.ParseCPV("app-misc/gone-1")
	if _, err := store.Get(gone, vardb.KeySlot); !errors.Is(err, vardb.ErrNotInstalled) {
		t.Fatalf("expected ErrNotInstalled, got %v", err)
	}
}

func TestFilesSkipsHidden(t *testing.T) {
	store, root := newStore(t)
	cpv, _ := atom.ParseCPV("app-misc/foo-1.0")
	if err := os.WriteFile(filepath.Join(root, "app-misc", "foo-1.0", ".hidden"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	files, err := store.Files(cpv)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if _, ok := files[".hidden"]; ok {
		t.Fatal("hidden file included")
	}
	if string(files["SLOT"]) != "0\n" {
		t.Fatalf("unexpected SLOT %q", files["SLOT"])
	}
}

func TestParseContents(t *testing.T) {
	data := "dir /usr\n" +
		"obj /usr/bin/foo d41d8cd98f00b204e9800998ecf8427e 1700000000\n" +
		"obj /usr/share/doc/my file.txt 0123456789abcdef0123456789abcdef 12\n" +
		"sym /usr/bin/bar -> foo 1700000001\n" +
		"fif /run/foo.fifo\n"
	contents, err := vardb.ParseContents(data)
	if err != nil {
		t.Fatalf("ParseContents: %v", err)
	}
	if len(contents) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(contents))
	}
	if contents[2].Path != "/usr/share/doc/my file.txt" || contents[2].MTime != 12 {
		t.Fatalf("unexpected spaced obj entry %+v", contents[2])
	}
	if contents[3].Target != "foo" || contents[3].Kind != vardb.KindSym {
		t.Fatalf("unexpected sym entry %+v", contents[3])
	}

	for _, bad := range []string{"obj /usr/bin/foo 123\n", "sym /a b 1\n", "wat /x\n", "dir relative\n"} {
		if _, err := vardb.ParseContents(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestLockAndVanishedCategory(t *testing.T) {
	store, _ := newStore(t)
	cpv, _ := atom.ParseCPV("app-misc/foo-1.0")
	lock, err := store.Lock(context.Background(), cpv)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if filepath.Base(lock.Path()) != ".foo-1.0.portage_lockfile" {
		t.Fatalf("unexpected lock path %s", lock.Path())
	}
	if err := lock.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	gone, _ := atom.ParseCPV("sys-apps/gone-1")
	if _, err := store.Lock(context.Background(), gone); !errors.Is(err, vardb.ErrNotInstalled) {
		t.Fatalf("expected ErrNotInstalled, got %v", err)
	}
}

func TestExpandPackageName(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	got, err := store.ExpandPackageName(ctx, "=foo-1.0")
	if err != nil || got != "=app-misc/foo-1.0" {
		t.Fatalf("got %q %v", got, err)
	}
	got, err = store.ExpandPackageName(ctx, "foo:2")
	if err != nil || got != "app-misc/foo:2" {
		t.Fatalf("got %q %v", got, err)
	}
	got, err = store.ExpandPackageName(ctx, "nothing")
	if err != nil || got != "nothing" {
		t.Fatalf("got %q %v", got, err)
	}
	if _, err := store.ExpandPackageName(ctx, "bar"); !errors.Is(err, pkgerr.ErrAmbiguousSpecifier) {
		t.Fatalf("expected ambiguity, got %v", err)
	}
}
