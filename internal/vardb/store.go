package vardb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"quickpkg/internal/atom"
	"quickpkg/internal/fileutil"
	"quickpkg/internal/logging"
)

// CPV is the identity of one installed package.
type CPV = atom.CPV

// ErrNotInstalled reports that a package record is absent.
var ErrNotInstalled = errors.New("package not installed")

// Store reads package records under a database root.
type Store struct {
	dir    string
	logger *slog.Logger
}

// Open returns a Store rooted at dir. A missing directory is treated as an
// empty database.
func Open(dir string, logger *slog.Logger) *Store {
	return &Store{dir: dir, logger: logging.NewComponentLogger(logger, "vardb")}
}

// Dir returns the database root.
func (s *Store) Dir() string {
	return s.dir
}

// PackageDir returns the record directory of cpv.
func (s *Store) PackageDir(cpv CPV) string {
	return filepath.Join(s.dir, cpv.Category, cpv.PF())
}

// List enumerates every installed package in category/pf order. Hidden
// entries and in-progress merge directories are skipped.
func (s *Store) List(ctx context.Context) ([]CPV, error) {
	categories, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read package database %s: %w", s.dir, err)
	}
	var out []CPV
	for _, cat := range categories {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !cat.IsDir() || skipEntry(cat.Name()) {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(s.dir, cat.Name()))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read category %s: %w", cat.Name(), err)
		}
		for _, entry := range entries {
			if !entry.IsDir() || skipEntry(entry.Name()) {
				continue
			}
			cpv, err := atom.ParseCPV(cat.Name() + "/" + entry.Name())
			if err != nil {
				s.logger.Debug("skipping malformed record", logging.String(logging.FieldPath, filepath.Join(cat.Name(), entry.Name())), logging.Error(err))
				continue
			}
			out = append(out, cpv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func skipEntry(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "-MERGING-")
}

// Exists reports whether the record directory of cpv is present.
func (s *Store) Exists(cpv CPV) bool {
	info, err := os.Stat(s.PackageDir(cpv))
	return err == nil && info.IsDir()
}

// Match returns the installed packages that satisfy a. Slot and repository
// metadata are attached to candidates only when the atom asks for them.
func (s *Store) Match(ctx context.Context, a atom.Atom) ([]CPV, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []CPV
	for _, cpv := range all {
		if !a.Wildcard && cpv.CP() != a.CP() {
			continue
		}
		if a.NeedsMetadata() {
			cpv, err = s.WithMetadata(cpv)
			if err != nil {
				if errors.Is(err, ErrNotInstalled) {
					continue
				}
				return nil, err
			}
		}
		if a.Match(cpv) {
			out = append(out, cpv)
		}
	}
	return out, nil
}

// CategoriesForName returns every category that holds an installed package
// named name.
func (s *Store) CategoriesForName(ctx context.Context, name string) ([]string, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []string
	for _, cpv := range all {
		if cpv.Name != name {
			continue
		}
		if _, ok := seen[cpv.Category]; ok {
			continue
		}
		seen[cpv.Category] = struct{}{}
		out = append(out, cpv.Category)
	}
	return out, nil
}

// WithMetadata returns cpv with SLOT and repository attached.
func (s *Store) WithMetadata(cpv CPV) (CPV, error) {
	md, err := s.Get(cpv, KeySlot, KeyRepository)
	if err != nil {
		return cpv, err
	}
	out := cpv.Bare()
	out.Slot = md.Get(KeySlot)
	out.Repo = md.Get(KeyRepository)
	return out, nil
}

// Get reads the requested metadata keys. Missing keys read as empty values.
func (s *Store) Get(cpv CPV, keys ...string) (Metadata, error) {
	dir := s.PackageDir(cpv)
	if !s.Exists(cpv) {
		return nil, fmt.Errorf("%s: %w", cpv, ErrNotInstalled)
	}
	md := make(Metadata, len(keys))
	for _, key := range keys {
		data, err := os.ReadFile(filepath.Join(dir, key))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				md[key] = ""
				continue
			}
			return nil, fmt.Errorf("read %s of %s: %w", key, cpv, err)
		}
		md[key] = string(data)
	}
	return md, nil
}

// Set persists metadata values, replacing each key file atomically.
func (s *Store) Set(cpv CPV, values Metadata) error {
	if !s.Exists(cpv) {
		return fmt.Errorf("%s: %w", cpv, ErrNotInstalled)
	}
	dir := s.PackageDir(cpv)
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := values[key]
		if !strings.HasSuffix(value, "\n") {
			value += "\n"
		}
		if err := fileutil.WriteFileAtomic(filepath.Join(dir, key), []byte(value), 0o644); err != nil {
			return fmt.Errorf("write %s of %s: %w", key, cpv, err)
		}
	}
	return nil
}

// Files returns every regular metadata file of the record keyed by name.
// Files larger than maxMetadataFile are skipped.
func (s *Store) Files(cpv CPV) (map[string][]byte, error) {
	dir := s.PackageDir(cpv)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", cpv, ErrNotInstalled)
		}
		return nil, fmt.Errorf("read record %s: %w", cpv, err)
	}
	files := make(map[string][]byte, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s of %s: %w", entry.Name(), cpv, err)
		}
		if info.Size() > maxMetadataFile {
			s.logger.Debug("skipping oversized metadata file", logging.String("key", entry.Name()), logging.Int64("size", info.Size()))
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s of %s: %w", entry.Name(), cpv, err)
		}
		files[entry.Name()] = data
	}
	return files, nil
}

const maxMetadataFile = 64 << 20
