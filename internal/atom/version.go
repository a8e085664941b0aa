package atom

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var versionRe = regexp.MustCompile(`^(\d+)((?:\.\d+)*)([a-z]?)((?:_(?:pre|p|beta|alpha|rc)\d*)*)(?:-r(\d+))?$`)

var suffixRank = map[string]int{
	"alpha": 0,
	"beta":  1,
	"pre":   2,
	"rc":    3,
	"p":     5,
}

const noSuffixRank = 4

// Version is a parsed package version.
type Version struct {
	Raw        string
	Numbers    []string
	Letter     string
	Suffixes   []Suffix
	Revision   int
	HasRevFlag bool
}

// Suffix is one _alpha/_beta/_pre/_rc/_p component.
type Suffix struct {
	Name   string
	Number int
}

// ParseVersion parses a version string such as "1.2.3b_rc1-r2".
func ParseVersion(raw string) (Version, error) {
	m := versionRe.FindStringSubmatch(raw)
	if m == nil {
		return Version{}, fmt.Errorf("invalid version %q", raw)
	}
	v := Version{Raw: raw, Letter: m[3]}
	v.Numbers = append(v.Numbers, m[1])
	if m[2] != "" {
		v.Numbers = append(v.Numbers, strings.Split(strings.TrimPrefix(m[2], "."), ".")...)
	}
	if m[4] != "" {
		for _, part := range strings.Split(strings.TrimPrefix(m[4], "_"), "_") {
			name := strings.TrimRight(part, "0123456789")
			suffix := Suffix{Name: name}
			if digits := part[len(name):]; digits != "" {
				n, err := strconv.Atoi(digits)
				if err != nil {
					return Version{}, fmt.Errorf("invalid version suffix %q: %w", part, err)
				}
				suffix.Number = n
			}
			v.Suffixes = append(v.Suffixes, suffix)
		}
	}
	if m[5] != "" {
		rev, err := strconv.Atoi(m[5])
		if err != nil {
			return Version{}, fmt.Errorf("invalid revision in %q: %w", raw, err)
		}
		v.Revision = rev
		v.HasRevFlag = true
	}
	return v, nil
}

// WithoutRevision returns the version string minus any -rN suffix.
func (v Version) WithoutRevision() string {
	if !v.HasRevFlag {
		return v.Raw
	}
	idx := strings.LastIndex(v.Raw, "-r")
	return v.Raw[:idx]
}

// CompareVersions orders two version strings. It returns -1, 0 or 1.
func CompareVersions(a, b string) (int, error) {
	va, err := ParseVersion(a)
	if err != nil {
		return 0, err
	}
	vb, err := ParseVersion(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// Compare orders v against other.
func (v Version) Compare(other Version) int {
	if c := compareInts(v.Numbers[0], other.Numbers[0]); c != 0 {
		return c
	}
	for i := 1; i < len(v.Numbers) && i < len(other.Numbers); i++ {
		if c := compareComponent(v.Numbers[i], other.Numbers[i]); c != 0 {
			return c
		}
	}
	if c := sign(len(v.Numbers) - len(other.Numbers)); c != 0 {
		return c
	}
	if c := strings.Compare(v.Letter, other.Letter); c != 0 {
		return c
	}
	for i := 0; i < len(v.Suffixes) || i < len(other.Suffixes); i++ {
		rankA, numA := suffixAt(v.Suffixes, i)
		rankB, numB := suffixAt(other.Suffixes, i)
		if c := sign(rankA - rankB); c != 0 {
			return c
		}
		if c := sign(numA - numB); c != 0 {
			return c
		}
	}
	return sign(v.Revision - other.Revision)
}

func suffixAt(suffixes []Suffix, i int) (int, int) {
	if i >= len(suffixes) {
		return noSuffixRank, 0
	}
	return suffixRank[suffixes[i].Name], suffixes[i].Number
}

// compareComponent follows the package manager rule: components with a
// leading zero compare as decimal fractions, everything else as integers.
func compareComponent(a, b string) int {
	if strings.HasPrefix(a, "0") || strings.HasPrefix(b, "0") {
		return strings.Compare(strings.TrimRight(a, "0"), strings.TrimRight(b, "0"))
	}
	return compareInts(a, b)
}

func compareInts(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if c := sign(len(a) - len(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
