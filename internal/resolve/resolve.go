// Package resolve expands user specifiers into installed package ids.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"quickpkg/internal/atom"
	"quickpkg/internal/logging"
	"quickpkg/internal/pkgerr"
	"quickpkg/internal/sets"
	"quickpkg/internal/vardb"
)

// Database is the installed-package query surface the resolver needs.
type Database interface {
	List(ctx context.Context) ([]vardb.CPV, error)
	Match(ctx context.Context, a atom.Atom) ([]vardb.CPV, error)
	WithMetadata(cpv vardb.CPV) (vardb.CPV, error)
	ExpandPackageName(ctx context.Context, value string) (string, error)
}

// SetSource looks up named sets.
type SetSource interface {
	Get(name string) (sets.Set, error)
}

// Resolver turns specifier strings into concrete package ids.
type Resolver struct {
	db     Database
	sets   SetSource
	logger *slog.Logger
}

// New constructs a Resolver.
func New(db Database, setSource SetSource, logger *slog.Logger) *Resolver {
	return &Resolver{db: db, sets: setSource, logger: logging.NewComponentLogger(logger, "resolve")}
}

// Resolution is the outcome of expanding one specifier.
type Resolution struct {
	// CPVs are the matched packages, deduplicated in match order.
	CPVs []vardb.CPV
	// Unmatched lists set members that matched nothing or could not be
	// parsed. It is always empty for non-set specifiers.
	Unmatched []string
}

// Resolve expands raw into installed package ids, deduplicated in match
// order. Errors classified as pkgerr.TierInput mean the specifier should be
// reported missing; an empty result without error means the same.
func (r *Resolver) Resolve(ctx context.Context, raw string) ([]vardb.CPV, error) {
	res, err := r.Expand(ctx, raw)
	if err != nil {
		return nil, err
	}
	return res.CPVs, nil
}

// Expand is Resolve that also reports the members of a set specifier that
// resolved to nothing.
func (r *Resolver) Expand(ctx context.Context, raw string) (Resolution, error) {
	spec, err := ParseSpecifier(raw)
	if spec.Kind == KindSet && err == nil {
		return r.expandSetSpecifier(ctx, spec.SetName)
	}
	matches, err := r.resolveAtom(ctx, raw)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{CPVs: dedupe(matches)}, nil
}

func (r *Resolver) expandSetSpecifier(ctx context.Context, name string) (Resolution, error) {
	atoms, err := r.expandSet(name)
	if err != nil {
		return Resolution{}, err
	}
	var res Resolution
	seen := map[string]bool{}
	unmatched := func(value string) {
		if !seen[value] {
			seen[value] = true
			res.Unmatched = append(res.Unmatched, value)
		}
	}
	for _, value := range atoms {
		matches, err := r.resolveAtom(ctx, value)
		if err != nil {
			if pkgerr.Classify(err) != pkgerr.TierInput {
				return Resolution{}, err
			}
			logging.WarnWithContext(r.logger, "skipping set member", "set_member_invalid",
				logging.String(logging.FieldSpecifier, value),
				logging.String("set", name),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "fix or remove the atom in the set file"),
				logging.String(logging.FieldImpact, "member not packaged"),
			)
			unmatched(strings.TrimSpace(value))
			continue
		}
		if len(matches) == 0 {
			unmatched(strings.TrimSpace(value))
			continue
		}
		res.CPVs = append(res.CPVs, matches...)
	}
	res.CPVs = dedupe(res.CPVs)
	return res, nil
}

func (r *Resolver) resolveAtom(ctx context.Context, raw string) ([]vardb.CPV, error) {
	raw = strings.TrimSpace(raw)
	spec, err := ParseSpecifier(raw)
	if err != nil {
		expanded, expandErr := r.db.ExpandPackageName(ctx, raw)
		if expandErr != nil {
			if errors.Is(expandErr, pkgerr.ErrAmbiguousSpecifier) || errors.Is(expandErr, pkgerr.ErrInvalidSpecifier) {
				return nil, expandErr
			}
			return nil, fmt.Errorf("expand %q: %w", raw, expandErr)
		}
		spec, err = ParseSpecifier(expanded)
		if err != nil {
			return nil, pkgerr.Wrap(pkgerr.ErrInvalidSpecifier, "resolve", "parse", fmt.Sprintf("%q", raw), err)
		}
		r.logger.Debug("expanded specifier", logging.String(logging.FieldSpecifier, raw), logging.String("expanded", expanded))
	}
	if spec.Kind == KindSet {
		return nil, pkgerr.Wrap(pkgerr.ErrInvalidSpecifier, "resolve", "parse", fmt.Sprintf("%q is a set", raw), nil)
	}
	a := spec.Atom
	// Versions must be requested with an explicit '='. The vardb expander
	// never adds an operator, but Database is an interface and another
	// implementation could.
	if strings.HasPrefix(string(a.Op), "=") && !strings.HasPrefix(raw, "=") {
		return nil, pkgerr.Wrap(pkgerr.ErrInvalidSpecifier, "resolve", "parse",
			fmt.Sprintf("%q expanded to %q without an explicit '='", raw, a.String()), nil)
	}
	if spec.Kind == KindWildcard {
		return r.matchWildcard(ctx, a)
	}
	return r.db.Match(ctx, a)
}

func (r *Resolver) matchWildcard(ctx context.Context, a atom.Atom) ([]vardb.CPV, error) {
	all, err := r.db.List(ctx)
	if err != nil {
		return nil, err
	}
	if a.IsUniversal() {
		return all, nil
	}
	bare := a
	bare.Slot, bare.SubSlot, bare.Repo = "", "", ""
	var out []vardb.CPV
	for _, cpv := range all {
		if !bare.Match(cpv) {
			continue
		}
		if a.NeedsMetadata() {
			cpv, err = r.db.WithMetadata(cpv)
			if err != nil {
				if errors.Is(err, vardb.ErrNotInstalled) {
					continue
				}
				return nil, err
			}
			if !a.Match(cpv) {
				continue
			}
		}
		out = append(out, cpv)
	}
	return out, nil
}

// expandSet flattens name and its nested sets into atom strings. Cycles are
// cut at the first repeat.
func (r *Resolver) expandSet(name string) ([]string, error) {
	if r.sets == nil {
		return nil, pkgerr.Wrap(pkgerr.ErrSetNotFound, "resolve", "expand set", SetPrefix+name, nil)
	}
	visited := map[string]bool{}
	var out []string
	var walk func(string, bool) error
	walk = func(current string, top bool) error {
		if visited[current] {
			return nil
		}
		visited[current] = true
		set, err := r.sets.Get(current)
		if err != nil {
			if !top && errors.Is(err, pkgerr.ErrSetNotFound) {
				return pkgerr.Wrap(pkgerr.ErrSetExpansion, "resolve", "expand set",
					fmt.Sprintf("%s%s references missing set %s%s", SetPrefix, name, SetPrefix, current), err)
			}
			return err
		}
		out = append(out, set.Atoms...)
		for _, nested := range set.Nested {
			if err := walk(nested, false); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(name, true); err != nil {
		return nil, err
	}
	return out, nil
}

func dedupe(in []vardb.CPV) []vardb.CPV {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, cpv := range in {
		key := cpv.Bare().String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, cpv)
	}
	return out
}
