package atom

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Operator is a version comparison operator.
type Operator string

const (
	OpNone      Operator = ""
	OpEqual     Operator = "="
	OpGlob      Operator = "=*"
	OpTilde     Operator = "~"
	OpGreater   Operator = ">"
	OpGreaterEq Operator = ">="
	OpLess      Operator = "<"
	OpLessEq    Operator = "<="
)

// Flag relaxes parsing rules.
type Flag uint8

const (
	// AllowWildcard accepts `*` in the category and package name.
	AllowWildcard Flag = 1 << iota
	// AllowRepo accepts a trailing ::repository qualifier.
	AllowRepo
)

var (
	wildCategoryRe = regexp.MustCompile(`^[A-Za-z0-9+_.*-]+$`)
	wildNameRe     = regexp.MustCompile(`^[A-Za-z0-9+_*-]+$`)
)

// Atom is a parsed package specifier.
type Atom struct {
	Raw      string
	Op       Operator
	Category string
	Name     string
	Version  string
	Slot     string
	SubSlot  string
	Repo     string
	Wildcard bool
}

// Parse parses an atom string. Unversioned atoms must not carry an operator
// and versioned atoms must carry one.
func Parse(value string, flags Flag) (Atom, error) {
	raw := strings.TrimSpace(value)
	a := Atom{Raw: raw}
	if raw == "" {
		return a, fmt.Errorf("invalid atom: empty")
	}
	if strings.HasPrefix(raw, "!") {
		return a, fmt.Errorf("invalid atom %q: blockers are not package specifiers", raw)
	}

	rest := raw
	if idx := strings.Index(rest, "::"); idx >= 0 {
		if flags&AllowRepo == 0 {
			return a, fmt.Errorf("invalid atom %q: repository qualifier not allowed", raw)
		}
		a.Repo = rest[idx+2:]
		if !repoRe.MatchString(a.Repo) {
			return a, fmt.Errorf("invalid atom %q: bad repository %q", raw, a.Repo)
		}
		rest = rest[:idx]
	}
	if idx := strings.Index(rest, ":"); idx >= 0 {
		slot := rest[idx+1:]
		rest = rest[:idx]
		a.Slot, a.SubSlot, _ = strings.Cut(slot, "/")
		if !slotRe.MatchString(a.Slot) || (a.SubSlot != "" && !slotRe.MatchString(a.SubSlot)) {
			return a, fmt.Errorf("invalid atom %q: bad slot %q", raw, slot)
		}
	}

	for _, op := range []Operator{OpGreaterEq, OpLessEq, OpEqual, OpGreater, OpLess, OpTilde} {
		if strings.HasPrefix(rest, string(op)) {
			a.Op = op
			rest = rest[len(op):]
			break
		}
	}
	if strings.HasSuffix(rest, "*") && a.Op == OpEqual {
		a.Op = OpGlob
		rest = strings.TrimSuffix(rest, "*")
	}

	category, pkg, ok := strings.Cut(rest, "/")
	if !ok || strings.Contains(pkg, "/") {
		return a, fmt.Errorf("invalid atom %q: expected category/name", raw)
	}
	a.Category = category

	if strings.Contains(category, "*") || strings.Contains(pkg, "*") {
		if flags&AllowWildcard == 0 {
			return a, fmt.Errorf("invalid atom %q: wildcards not allowed", raw)
		}
		if a.Op != OpNone {
			return a, fmt.Errorf("invalid atom %q: wildcard atoms cannot carry a version", raw)
		}
		if !wildCategoryRe.MatchString(category) || !wildNameRe.MatchString(pkg) {
			return a, fmt.Errorf("invalid atom %q: bad wildcard pattern", raw)
		}
		a.Name = pkg
		a.Wildcard = true
		return a, nil
	}

	if !categoryRe.MatchString(category) {
		return a, fmt.Errorf("invalid atom %q: bad category %q", raw, category)
	}

	if a.Op == OpNone {
		if !nameRe.MatchString(pkg) {
			return a, fmt.Errorf("invalid atom %q: bad package name %q", raw, pkg)
		}
		if _, _, versioned := SplitPF(pkg); versioned {
			return a, fmt.Errorf("invalid atom %q: versioned atom requires an operator", raw)
		}
		a.Name = pkg
		return a, nil
	}

	name, version, ok := SplitPF(pkg)
	if !ok {
		return a, fmt.Errorf("invalid atom %q: operator %q requires a version", raw, a.Op)
	}
	a.Name = name
	a.Version = version
	if a.Op == OpTilde {
		if v, _ := ParseVersion(version); v.HasRevFlag {
			return a, fmt.Errorf("invalid atom %q: ~ does not accept a revision", raw)
		}
	}
	return a, nil
}

// CP returns "category/name" (patterns included for wildcard atoms).
func (a Atom) CP() string {
	return a.Category + "/" + a.Name
}

func (a Atom) String() string {
	if a.Raw != "" {
		return a.Raw
	}
	var b strings.Builder
	op := a.Op
	if op == OpGlob {
		op = OpEqual
	}
	b.WriteString(string(op))
	b.WriteString(a.CP())
	if a.Version != "" {
		b.WriteString("-" + a.Version)
	}
	if a.Op == OpGlob {
		b.WriteByte('*')
	}
	if a.Slot != "" {
		b.WriteString(":" + a.Slot)
		if a.SubSlot != "" {
			b.WriteString("/" + a.SubSlot)
		}
	}
	if a.Repo != "" {
		b.WriteString("::" + a.Repo)
	}
	return b.String()
}

// NeedsMetadata reports whether matching requires slot or repository
// information on the candidate.
func (a Atom) NeedsMetadata() bool {
	return a.Slot != "" || a.Repo != ""
}

// IsUniversal reports whether the atom matches every package.
func (a Atom) IsUniversal() bool {
	return a.Wildcard && a.Category == "*" && a.Name == "*" && !a.NeedsMetadata()
}

// Match reports whether cpv satisfies the atom. Slot and repository
// qualifiers never match a candidate that lacks that metadata.
func (a Atom) Match(cpv CPV) bool {
	if !a.matchName(cpv) {
		return false
	}
	if a.Slot != "" {
		slot, sub := cpv.SlotParts()
		if slot == "" || slot != a.Slot {
			return false
		}
		if a.SubSlot != "" && sub != a.SubSlot {
			return false
		}
	}
	if a.Repo != "" && cpv.Repo != a.Repo {
		return false
	}
	return a.matchVersion(cpv.Version)
}

func (a Atom) matchName(cpv CPV) bool {
	if !a.Wildcard {
		return a.Category == cpv.Category && a.Name == cpv.Name
	}
	catOK, err := path.Match(a.Category, cpv.Category)
	if err != nil || !catOK {
		return false
	}
	nameOK, err := path.Match(a.Name, cpv.Name)
	return err == nil && nameOK
}

func (a Atom) matchVersion(candidate string) bool {
	if a.Op == OpNone {
		return true
	}
	have, err := ParseVersion(candidate)
	if err != nil {
		return false
	}
	want, err := ParseVersion(a.Version)
	if err != nil {
		return false
	}
	switch a.Op {
	case OpEqual:
		return have.Compare(want) == 0
	case OpGlob:
		return globVersionMatch(a.Version, candidate)
	case OpTilde:
		return have.WithoutRevision() == want.Raw
	case OpGreater:
		return have.Compare(want) > 0
	case OpGreaterEq:
		return have.Compare(want) >= 0
	case OpLess:
		return have.Compare(want) < 0
	case OpLessEq:
		return have.Compare(want) <= 0
	default:
		return false
	}
}

// globVersionMatch matches "=name-1.2*" against versions that start with the
// pattern on a component boundary: 1.2, 1.2.3 and 1.2_rc1 but not 1.20.
func globVersionMatch(prefix, candidate string) bool {
	if !strings.HasPrefix(candidate, prefix) {
		return false
	}
	if len(candidate) == len(prefix) {
		return true
	}
	last := prefix[len(prefix)-1]
	next := candidate[len(prefix)]
	if last >= '0' && last <= '9' && next >= '0' && next <= '9' {
		return false
	}
	return true
}
