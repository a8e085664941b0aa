// Package configprotect decides which protected configuration files are left
// out of a binary package.
package configprotect

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"quickpkg/internal/fileutil"
	"quickpkg/internal/vardb"
)

// Policy matches paths against CONFIG_PROTECT and CONFIG_PROTECT_MASK.
type Policy struct {
	root    string
	protect []string
	mask    []string
}

// Options selects which protected files are captured anyway.
type Options struct {
	IncludeConfig           bool
	IncludeUnmodifiedConfig bool
}

// New builds a Policy for files installed under root.
func New(root string, protect, mask []string) *Policy {
	return &Policy{root: root, protect: cleanAll(protect), mask: cleanAll(mask)}
}

func cleanAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, path.Clean("/"+p))
	}
	return out
}

// IsProtected reports whether p is protected. The longest matching protect
// entry must be longer than the longest matching mask entry.
func (p *Policy) IsProtected(name string) bool {
	name = path.Clean("/" + name)
	protectLen := longestPrefix(p.protect, name)
	if protectLen == 0 {
		return false
	}
	return protectLen > longestPrefix(p.mask, name)
}

func longestPrefix(prefixes []string, name string) int {
	best := 0
	for _, prefix := range prefixes {
		if name == prefix || prefix == "/" || strings.HasPrefix(name, prefix+"/") {
			if len(prefix) > best {
				best = len(prefix)
			}
		}
	}
	return best
}

// Filter returns the entries to capture and the paths of protected files
// left out. Only obj entries are ever excluded.
func (p *Policy) Filter(contents vardb.Contents, opts Options) (vardb.Contents, []string, error) {
	kept := make(vardb.Contents, 0, len(contents))
	var excluded []string
	for _, entry := range contents {
		if entry.Kind != vardb.KindObj || opts.IncludeConfig || !p.IsProtected(entry.Path) {
			kept = append(kept, entry)
			continue
		}
		if opts.IncludeUnmodifiedConfig {
			unmodified, err := p.unmodified(entry)
			if err != nil {
				return nil, nil, err
			}
			if unmodified {
				kept = append(kept, entry)
				continue
			}
		}
		excluded = append(excluded, entry.Path)
	}
	return kept, excluded, nil
}

// unmodified reports whether the live file still matches its recorded md5.
// A missing file counts as modified.
func (p *Policy) unmodified(entry vardb.Entry) (bool, error) {
	sum, err := fileutil.MD5File(filepath.Join(p.root, filepath.FromSlash(entry.Path)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checksum %s: %w", entry.Path, err)
	}
	return strings.EqualFold(sum, entry.MD5), nil
}
