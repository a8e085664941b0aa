// Package sets loads named package sets.
//
// @selected (alias @world) combines the world file with the world_sets file.
// Any other @name is read from <sets_dir>/<name>: one atom or @set per line,
// '#' starts a comment.
package sets

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"quickpkg/internal/config"
	"quickpkg/internal/logging"
	"quickpkg/internal/pkgerr"
)

// Set is one named set. Atoms holds plain atom strings, Nested the names of
// referenced sets without their leading '@'.
type Set struct {
	Name   string
	Atoms  []string
	Nested []string
}

// Loader reads set definitions from disk.
type Loader struct {
	dir           string
	worldFile     string
	worldSetsFile string
	logger        *slog.Logger
}

// NewLoader builds a Loader from the configured paths.
func NewLoader(cfg *config.Config, logger *slog.Logger) *Loader {
	return &Loader{
		dir:           cfg.Paths.SetsDir,
		worldFile:     cfg.Paths.WorldFile,
		worldSetsFile: cfg.Paths.WorldSetsFile,
		logger:        logging.NewComponentLogger(logger, "sets"),
	}
}

// Get returns the set called name. The leading '@' is optional.
func (l *Loader) Get(name string) (Set, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "@")
	if name == "" {
		return Set{}, pkgerr.Wrap(pkgerr.ErrSetNotFound, "sets", "get", "empty set name", nil)
	}
	switch name {
	case "selected", "world":
		return l.selected(name)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return Set{}, pkgerr.Wrap(pkgerr.ErrSetNotFound, "sets", "get", fmt.Sprintf("@%s", name), nil)
	}
	lines, err := readLines(filepath.Join(l.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Set{}, pkgerr.Wrap(pkgerr.ErrSetNotFound, "sets", "get", fmt.Sprintf("@%s", name), nil)
		}
		return Set{}, pkgerr.Wrap(pkgerr.ErrSetExpansion, "sets", "read", fmt.Sprintf("@%s", name), err)
	}
	set := Set{Name: name}
	for _, line := range lines {
		set.add(line)
	}
	return set, nil
}

// Exists reports whether a set called name can be loaded.
func (l *Loader) Exists(name string) bool {
	_, err := l.Get(name)
	return err == nil
}

func (l *Loader) selected(name string) (Set, error) {
	set := Set{Name: name}
	for _, path := range []string{l.worldFile, l.worldSetsFile} {
		if strings.TrimSpace(path) == "" {
			continue
		}
		lines, err := readLines(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				l.logger.Debug("world file absent", logging.String(logging.FieldPath, path))
				continue
			}
			return Set{}, pkgerr.Wrap(pkgerr.ErrSetExpansion, "sets", "read", fmt.Sprintf("@%s", name), err)
		}
		for _, line := range lines {
			set.add(line)
		}
	}
	return set, nil
}

func (s *Set) add(line string) {
	if nested, ok := strings.CutPrefix(line, "@"); ok {
		s.Nested = append(s.Nested, nested)
		return
	}
	s.Atoms = append(s.Atoms, line)
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}
