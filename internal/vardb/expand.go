package vardb

import (
	"context"
	"fmt"
	"strings"

	"quickpkg/internal/atom"
	"quickpkg/internal/pkgerr"
)

// ExpandPackageName fills in a missing category from the installed
// packages. The operator prefix, version and qualifiers of value are kept.
// A name installed in several categories is ambiguous; a name installed
// nowhere is returned unchanged so matching reports it as absent.
func (s *Store) ExpandPackageName(ctx context.Context, value string) (string, error) {
	value = strings.TrimSpace(value)
	body, qualifiers := splitQualifiers(value)
	prefix, name := splitOperator(body)
	if name == "" {
		return "", pkgerr.Wrap(pkgerr.ErrInvalidSpecifier, "vardb", "expand", fmt.Sprintf("%q", value), nil)
	}
	if strings.Contains(name, "/") {
		return value, nil
	}

	bare := strings.TrimSuffix(name, "*")
	if prefix != "" {
		if pn, _, ok := atom.SplitPF(bare); ok {
			bare = pn
		}
	}
	categories, err := s.CategoriesForName(ctx, bare)
	if err != nil {
		return "", err
	}
	switch len(categories) {
	case 0:
		return value, nil
	case 1:
		return prefix + categories[0] + "/" + name + qualifiers, nil
	default:
		return "", pkgerr.Wrap(pkgerr.ErrAmbiguousSpecifier, "vardb", "expand",
			fmt.Sprintf("%q matches %s", value, strings.Join(categories, ", ")), nil)
	}
}

func splitOperator(value string) (string, string) {
	for _, op := range []string{">=", "<=", "=", ">", "<", "~"} {
		if strings.HasPrefix(value, op) {
			return op, value[len(op):]
		}
	}
	return "", value
}

func splitQualifiers(value string) (string, string) {
	if idx := strings.Index(value, ":"); idx >= 0 {
		return value[:idx], value[idx:]
	}
	return value, ""
}
