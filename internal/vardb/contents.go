package vardb

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// EntryKind is the type of a CONTENTS entry.
type EntryKind string

const (
	KindDir  EntryKind = "dir"
	KindObj  EntryKind = "obj"
	KindSym  EntryKind = "sym"
	KindFifo EntryKind = "fif"
	KindDev  EntryKind = "dev"
)

// Entry is one installed filesystem object recorded for a package.
type Entry struct {
	Kind   EntryKind
	Path   string
	MD5    string
	Target string
	MTime  int64
}

// Contents is the ordered list of objects a package installed.
type Contents []Entry

// ParseContents parses a CONTENTS file. Paths may contain spaces, so
// trailing fields are taken from the right.
func ParseContents(data string) (Contents, error) {
	var out Contents
	scanner := bufio.NewScanner(strings.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		entry, err := parseEntry(text)
		if err != nil {
			return nil, fmt.Errorf("CONTENTS line %d: %w", line, err)
		}
		out = append(out, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan CONTENTS: %w", err)
	}
	return out, nil
}

func parseEntry(text string) (Entry, error) {
	kind, rest, ok := strings.Cut(text, " ")
	if !ok || rest == "" {
		return Entry{}, fmt.Errorf("malformed entry %q", text)
	}
	entry := Entry{Kind: EntryKind(kind)}
	switch entry.Kind {
	case KindDir, KindFifo, KindDev:
		entry.Path = rest
	case KindObj:
		fields := strings.Split(rest, " ")
		if len(fields) < 3 {
			return Entry{}, fmt.Errorf("malformed obj entry %q", text)
		}
		mtime, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
		if err != nil {
			return Entry{}, fmt.Errorf("bad mtime in %q: %w", text, err)
		}
		entry.MTime = mtime
		entry.MD5 = fields[len(fields)-2]
		entry.Path = strings.Join(fields[:len(fields)-2], " ")
	case KindSym:
		link, target, ok := strings.Cut(rest, " -> ")
		if !ok {
			return Entry{}, fmt.Errorf("malformed sym entry %q", text)
		}
		idx := strings.LastIndex(target, " ")
		if idx < 0 {
			return Entry{}, fmt.Errorf("malformed sym entry %q", text)
		}
		mtime, err := strconv.ParseInt(target[idx+1:], 10, 64)
		if err != nil {
			return Entry{}, fmt.Errorf("bad mtime in %q: %w", text, err)
		}
		entry.Path = link
		entry.Target = target[:idx]
		entry.MTime = mtime
	default:
		return Entry{}, fmt.Errorf("unknown entry type %q", kind)
	}
	if !strings.HasPrefix(entry.Path, "/") {
		return Entry{}, fmt.Errorf("entry path %q is not absolute", entry.Path)
	}
	return entry, nil
}

// Contents reads and parses the CONTENTS of cpv.
func (s *Store) Contents(cpv CPV) (Contents, error) {
	md, err := s.Get(cpv, KeyContents)
	if err != nil {
		return nil, err
	}
	return ParseContents(md[KeyContents])
}
