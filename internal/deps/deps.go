package deps

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrNotFound reports that an executable is not on the search path.
var ErrNotFound = errors.New("executable not found")

// Resolver locates external executables by name.
type Resolver interface {
	LookPath(name string) (string, error)
}

// PathResolver resolves names against $PATH.
type PathResolver struct{}

// LookPath implements Resolver using exec.LookPath.
func (PathResolver) LookPath(name string) (string, error) {
	resolved, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrNotFound, name, err)
	}
	return resolved, nil
}

// DirResolver resolves names against a fixed list of directories. Names
// containing a path separator are checked directly.
type DirResolver struct {
	Dirs []string
}

// LookPath implements Resolver.
func (r DirResolver) LookPath(name string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) {
		if info, err := os.Stat(name); err == nil && isExecutable(info) {
			return name, nil
		}
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	for _, dir := range r.Dirs {
		candidate := filepath.Join(dir, executableName(name))
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Requirement defines an external executable quickpkg may run.
type Requirement struct {
	Name        string
	Command     string
	Package     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Package     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(resolver Resolver, requirements []Requirement) []Status {
	if resolver == nil {
		resolver = PathResolver{}
	}
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Package:     strings.TrimSpace(req.Package),
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		resolved, err := resolver.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			if status.Package != "" {
				status.Detail += fmt.Sprintf(" (install %s)", status.Package)
			}
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = resolved
		results = append(results, status)
	}
	return results
}

func executableName(base string) string {
	if runtime.GOOS == "windows" && filepath.Ext(base) == "" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
