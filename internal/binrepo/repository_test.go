package binrepo_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quickpkg/internal/archive"
	"quickpkg/internal/atom"
	"quickpkg/internal/binrepo"
	"quickpkg/internal/fileutil"
	"quickpkg/internal/logging"
	"quickpkg/internal/pkgerr"
	"quickpkg/internal/vardb"
)

func openRepo(t *testing.T, multi bool) *binrepo.Repository {
	t.Helper()
	repo, err := binrepo.Open(context.Background(), t.TempDir(), binrepo.Options{MultiInstance: multi, Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func writeTemp(t *testing.T, dir, data string) archive.Artifact {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, ".foo-1.0.test.partial")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return archive.Artifact{TempPath: path, Size: int64(len(data))}
}

func mustCPV(t *testing.T, value string) vardb.CPV {
	t.Helper()
	cpv, err := atom.ParseCPV(value)
	if err != nil {
		t.Fatal(err)
	}
	return cpv
}

func TestAllocateLayouts(t *testing.T) {
	cpv := mustCPV(t, "app-misc/foo-1.0-r1")
	ctx := context.Background()

	classic := openRepo(t, false)
	slot, err := classic.Allocate(ctx, cpv, archive.FormatXPAK)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if want := filepath.Join(classic.Dir(), "app-misc", "foo-1.0-r1.tbz2"); slot.Path != want {
		t.Fatalf("got %s want %s", slot.Path, want)
	}
	if slot.Dir != filepath.Join(classic.Dir(), "app-misc") || slot.Basename != "foo-1.0-r1" {
		t.Fatalf("unexpected slot %+v", slot)
	}
	classic.Release()

	multi := openRepo(t, true)
	slot, err = multi.Allocate(ctx, cpv, archive.FormatGPKG)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if want := filepath.Join(multi.Dir(), "app-misc", "foo", "foo-1.0-r1-1.gpkg.tar"); slot.Path != want {
		t.Fatalf("got %s want %s", slot.Path, want)
	}
	if slot.BuildID != 1 || slot.Basename != "foo-1.0-r1-1" {
		t.Fatalf("unexpected slot %+v", slot)
	}
	multi.Release()
}

func TestInjectRegistersArtifact(t *testing.T) {
	repo := openRepo(t, false)
	ctx := context.Background()
	cpv := mustCPV(t, "app-misc/foo-1.0")
	slot, err := repo.Allocate(ctx, cpv, archive.FormatXPAK)
	if err != nil {
		t.Fatal(err)
	}
	artifact := writeTemp(t, slot.Dir, "binary package")
	entry, err := repo.Inject(ctx, slot, artifact, vardb.Metadata{vardb.KeySlot: "0\n", vardb.KeyRepository: "gentoo\n"})
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if entry.AbsPath != slot.Path || entry.Size != int64(len("binary package")) {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if _, err := os.Stat(artifact.TempPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected temp file moved, stat err %v", err)
	}

	entries, err := repo.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "app-misc/foo-1.0.tbz2" || entries[0].Repository != "gentoo" {
		t.Fatalf("unexpected entries %+v", entries)
	}

	packages, err := os.ReadFile(filepath.Join(repo.Dir(), "Packages"))
	if err != nil {
		t.Fatalf("read Packages: %v", err)
	}
	for _, want := range []string{"PACKAGES: 1", "CPV: app-misc/foo-1.0", "PATH: app-misc/foo-1.0.tbz2", "REPO: gentoo", "BINPKG_FORMAT: xpak"} {
		if !strings.Contains(string(packages), want) {
			t.Fatalf("Packages missing %q:\n%s", want, packages)
		}
	}

	latest, err := repo.Latest(ctx, cpv)
	if err != nil || latest.MD5 != entry.MD5 {
		t.Fatalf("Latest: %+v %v", latest, err)
	}
}

func TestInjectMultiInstanceIncrementsBuildID(t *testing.T) {
	repo := openRepo(t, true)
	ctx := context.Background()
	cpv := mustCPV(t, "app-misc/foo-1.0")
	for want := 1; want <= 2; want++ {
		slot, err := repo.Allocate(ctx, cpv, archive.FormatGPKG)
		if err != nil {
			t.Fatal(err)
		}
		entry, err := repo.Inject(ctx, slot, writeTemp(t, slot.Dir, "gpkg"), vardb.Metadata{})
		if err != nil {
			t.Fatalf("Inject: %v", err)
		}
		if entry.BuildID != want {
			t.Fatalf("build id %d want %d", entry.BuildID, want)
		}
	}
}

func TestInjectMissingTempFails(t *testing.T) {
	repo := openRepo(t, false)
	ctx := context.Background()
	slot, err := repo.Allocate(ctx, mustCPV(t, "app-misc/foo-1.0"), archive.FormatXPAK)
	if err != nil {
		t.Fatal(err)
	}
	_, err = repo.Inject(ctx, slot, archive.Artifact{TempPath: filepath.Join(slot.Dir, "absent")}, vardb.Metadata{})
	if !errors.Is(err, pkgerr.ErrRegistration) {
		t.Fatalf("expected ErrRegistration, got %v", err)
	}
}

func TestEntriesPrunesMissingFiles(t *testing.T) {
	repo := openRepo(t, false)
	ctx := context.Background()
	cpv := mustCPV(t, "app-misc/foo-1.0")
	slot, _ := repo.Allocate(ctx, cpv, archive.FormatXPAK)
	entry, err := repo.Inject(ctx, slot, writeTemp(t, slot.Dir, "x"), vardb.Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(entry.AbsPath); err != nil {
		t.Fatal(err)
	}
	entries, err := repo.Entries(ctx)
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected pruned index, got %+v %v", entries, err)
	}
	if _, err := repo.Latest(ctx, cpv); !errors.Is(err, binrepo.ErrNotIndexed) {
		t.Fatalf("expected ErrNotIndexed, got %v", err)
	}
}

func TestReopenKeepsIndex(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	repo, err := binrepo.Open(ctx, dir, binrepo.Options{Logger: logging.NewNop()})
	if err != nil {
		t.Fatal(err)
	}
	slot, _ := repo.Allocate(ctx, mustCPV(t, "app-misc/foo-1.0"), archive.FormatXPAK)
	if _, err := repo.Inject(ctx, slot, writeTemp(t, slot.Dir, "x"), vardb.Metadata{}); err != nil {
		t.Fatal(err)
	}
	_ = repo.Close()

	reopened, err := binrepo.Open(ctx, dir, binrepo.Options{Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	entries, err := reopened.Entries(ctx)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected persisted entry, got %+v %v", entries, err)
	}
}

// blockPackages replaces the Packages file with a non-empty directory so the
// next rewrite fails.
func blockPackages(t *testing.T, dir string) {
	t.Helper()
	path := filepath.Join(dir, "Packages")
	if err := os.RemoveAll(path); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(path, "occupied"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func leftovers(t *testing.T, dir string) []string {
	t.Helper()
	var out []string
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".previous") || strings.HasSuffix(e.Name(), ".partial") {
			out = append(out, e.Name())
		}
	}
	return out
}

func TestInjectPackagesFailureLeavesNothing(t *testing.T) {
	repo := openRepo(t, false)
	ctx := context.Background()
	blockPackages(t, repo.Dir())

	slot, err := repo.Allocate(ctx, mustCPV(t, "app-misc/foo-1.0"), archive.FormatXPAK)
	if err != nil {
		t.Fatal(err)
	}
	_, err = repo.Inject(ctx, slot, writeTemp(t, slot.Dir, "binary package"), vardb.Metadata{})
	if !errors.Is(err, pkgerr.ErrRegistration) {
		t.Fatalf("expected ErrRegistration, got %v", err)
	}
	if _, err := os.Stat(slot.Path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no artifact at %s, stat err %v", slot.Path, err)
	}
	entries, err := repo.Entries(ctx)
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty index, got %+v %v", entries, err)
	}
}

func TestInjectFailureRestoresReplacedArtifact(t *testing.T) {
	repo := openRepo(t, false)
	ctx := context.Background()
	cpv := mustCPV(t, "app-misc/foo-1.0")

	slot, err := repo.Allocate(ctx, cpv, archive.FormatXPAK)
	if err != nil {
		t.Fatal(err)
	}
	first, err := repo.Inject(ctx, slot, writeTemp(t, slot.Dir, "first build"), vardb.Metadata{})
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}

	blockPackages(t, repo.Dir())
	slot, err = repo.Allocate(ctx, cpv, archive.FormatXPAK)
	if err != nil {
		t.Fatal(err)
	}
	_, err = repo.Inject(ctx, slot, writeTemp(t, slot.Dir, "second build"), vardb.Metadata{})
	if !errors.Is(err, pkgerr.ErrRegistration) {
		t.Fatalf("expected ErrRegistration, got %v", err)
	}

	data, err := os.ReadFile(slot.Path)
	if err != nil || string(data) != "first build" {
		t.Fatalf("expected first artifact restored, got %q %v", data, err)
	}
	entries, err := repo.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 || entries[0].MD5 != first.MD5 {
		t.Fatalf("expected index to keep the first build, got %+v", entries)
	}
	sum, err := fileutil.MD5File(slot.Path)
	if err != nil || sum != first.MD5 {
		t.Fatalf("restored checksum %s want %s (%v)", sum, first.MD5, err)
	}
	if names := leftovers(t, slot.Dir); len(names) != 0 {
		t.Fatalf("unexpected leftovers %v", names)
	}
}

func TestInjectRejectsTakenBuildID(t *testing.T) {
	repo := openRepo(t, true)
	ctx := context.Background()
	slot, err := repo.Allocate(ctx, mustCPV(t, "app-misc/foo-1.0"), archive.FormatGPKG)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(slot.Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(slot.Path, []byte("someone else"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = repo.Inject(ctx, slot, writeTemp(t, slot.Dir, "gpkg"), vardb.Metadata{})
	if !errors.Is(err, pkgerr.ErrRegistration) {
		t.Fatalf("expected ErrRegistration, got %v", err)
	}
	data, err := os.ReadFile(slot.Path)
	if err != nil || string(data) != "someone else" {
		t.Fatalf("expected foreign artifact untouched, got %q %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(slot.Dir, "foo-1.0-2.gpkg.tar")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no renamed artifact, stat err %v", err)
	}
}

func TestAllocateHoldsRepositoryLock(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	open := func() *binrepo.Repository {
		repo, err := binrepo.Open(ctx, dir, binrepo.Options{MultiInstance: true, Logger: logging.NewNop()})
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { _ = repo.Close() })
		return repo
	}
	first, second := open(), open()
	cpv := mustCPV(t, "app-misc/foo-1.0")

	if _, err := first.Allocate(ctx, cpv, archive.FormatGPKG); err != nil {
		t.Fatal(err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	if _, err := second.Allocate(waitCtx, cpv, archive.FormatGPKG); !errors.Is(err, pkgerr.ErrRegistration) {
		t.Fatalf("expected lock contention, got %v", err)
	}

	first.Release()
	slot, err := second.Allocate(ctx, cpv, archive.FormatGPKG)
	if err != nil {
		t.Fatalf("Allocate after release: %v", err)
	}
	second.Release()
	if slot.BuildID != 1 {
		t.Fatalf("build id %d want 1", slot.BuildID)
	}
}
