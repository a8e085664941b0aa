package resolve

import (
	"strings"

	"quickpkg/internal/atom"
)

// Kind tags the variant of a Specifier.
type Kind int

const (
	KindAtom Kind = iota
	KindWildcard
	KindSet
)

func (k Kind) String() string {
	switch k {
	case KindWildcard:
		return "wildcard"
	case KindSet:
		return "set"
	default:
		return "atom"
	}
}

// SetPrefix marks a specifier as a set reference.
const SetPrefix = "@"

// Specifier is a parsed user request.
type Specifier struct {
	Raw     string
	Kind    Kind
	Atom    atom.Atom
	SetName string
}

// ParseSpecifier classifies raw and parses it strictly. Atoms that fail the
// strict grammar return an error; the Resolver retries them loosely.
func ParseSpecifier(raw string) (Specifier, error) {
	raw = strings.TrimSpace(raw)
	if name, ok := strings.CutPrefix(raw, SetPrefix); ok {
		return Specifier{Raw: raw, Kind: KindSet, SetName: name}, nil
	}
	a, err := atom.Parse(raw, atom.AllowWildcard|atom.AllowRepo)
	if err != nil {
		return Specifier{Raw: raw}, err
	}
	kind := KindAtom
	if a.Wildcard {
		kind = KindWildcard
	}
	return Specifier{Raw: raw, Kind: kind, Atom: a}, nil
}
