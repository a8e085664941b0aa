package testsupport

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"quickpkg/internal/atom"
	"quickpkg/internal/config"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := int64(chunkSize)
		if remaining < toWrite {
			toWrite = remaining
		}
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// Package describes an installed package fixture.
type Package struct {
	// CPV is "category/name-version".
	CPV string
	// Files maps absolute install paths to their contents.
	Files map[string]string
	// Symlinks maps absolute link paths to their targets.
	Symlinks map[string]string
	// Metadata holds extra record keys (USE, IUSE, RESTRICT, SLOT, ...).
	Metadata map[string]string
}

// InstallPackage writes the package's files under the configured root and
// creates its record, including a CONTENTS file with real checksums.
// It returns the record directory.
func InstallPackage(t testing.TB, cfg *config.Config, pkg Package) string {
	t.Helper()

	category, pf, ok := strings.Cut(pkg.CPV, "/")
	if !ok {
		t.Fatalf("bad fixture cpv %q", pkg.CPV)
	}
	record := filepath.Join(cfg.Paths.VDBDir, category, pf)
	if err := os.MkdirAll(record, 0o755); err != nil {
		t.Fatalf("mkdir record: %v", err)
	}

	dirs := map[string]struct{}{}
	var lines []string
	paths := sortedKeys(pkg.Files)
	for _, p := range paths {
		full := filepath.Join(cfg.Paths.Root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", p, err)
		}
		if err := os.WriteFile(full, []byte(pkg.Files[p]), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
		collectDirs(dirs, p)
		sum := md5.Sum([]byte(pkg.Files[p]))
		lines = append(lines, fmt.Sprintf("obj %s %s %d", p, hex.EncodeToString(sum[:]), 1700000000))
	}
	for _, p := range sortedKeys(pkg.Symlinks) {
		full := filepath.Join(cfg.Paths.Root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", p, err)
		}
		if err := os.Symlink(pkg.Symlinks[p], full); err != nil {
			t.Fatalf("symlink %s: %v", p, err)
		}
		collectDirs(dirs, p)
		lines = append(lines, fmt.Sprintf("sym %s -> %s %d", p, pkg.Symlinks[p], 1700000000))
	}
	dirLines := make([]string, 0, len(dirs))
	for d := range dirs {
		dirLines = append(dirLines, "dir "+d)
	}
	sort.Strings(dirLines)
	contents := strings.Join(append(dirLines, lines...), "\n") + "\n"

	name, _, ok := atom.SplitPF(pf)
	if !ok {
		t.Fatalf("bad fixture pf %q", pf)
	}
	files := map[string]string{
		"CATEGORY": category + "\n",
		"PF":       pf + "\n",
		"SLOT":     "0\n",
		"CONTENTS": contents,
		"EAPI":     "8\n",
		"PN":       name + "\n",
	}
	for key, value := range pkg.Metadata {
		files[key] = value
	}
	for key, value := range files {
		if err := os.WriteFile(filepath.Join(record, key), []byte(value), 0o644); err != nil {
			t.Fatalf("write record %s: %v", key, err)
		}
	}
	return record
}

// RemovePackage deletes the record of cpv, as a concurrent unmerge would.
func RemovePackage(t testing.TB, cfg *config.Config, cpv string) {
	t.Helper()
	if err := os.RemoveAll(filepath.Join(cfg.Paths.VDBDir, filepath.FromSlash(cpv))); err != nil {
		t.Fatalf("remove record %s: %v", cpv, err)
	}
}

func collectDirs(dirs map[string]struct{}, p string) {
	for dir := filepath.ToSlash(filepath.Dir(p)); dir != "/" && dir != "."; dir = filepath.ToSlash(filepath.Dir(dir)) {
		dirs[dir] = struct{}{}
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
