package atom

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	categoryRe = regexp.MustCompile(`^[A-Za-z0-9+_][A-Za-z0-9+_.-]*$`)
	nameRe     = regexp.MustCompile(`^[A-Za-z0-9+_][A-Za-z0-9+_-]*$`)
	repoRe     = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_-]*$`)
	slotRe     = regexp.MustCompile(`^[A-Za-z0-9+_][A-Za-z0-9+_.-]*$`)
)

// CPV identifies one concrete package version: category, name and version
// (including any -rN revision). Slot and Repo are only populated when a
// caller fetched them from the package record.
type CPV struct {
	Category string
	Name     string
	Version  string
	Slot     string
	Repo     string
}

// ParseCPV parses "category/name-version".
func ParseCPV(value string) (CPV, error) {
	category, pf, ok := strings.Cut(strings.TrimSpace(value), "/")
	if !ok || strings.Contains(pf, "/") {
		return CPV{}, fmt.Errorf("invalid package id %q: expected category/name-version", value)
	}
	if !categoryRe.MatchString(category) {
		return CPV{}, fmt.Errorf("invalid package id %q: bad category", value)
	}
	name, version, ok := SplitPF(pf)
	if !ok {
		return CPV{}, fmt.Errorf("invalid package id %q: missing version", value)
	}
	return CPV{Category: category, Name: name, Version: version}, nil
}

// SplitPF splits "name-version[-rN]" into its name and version parts.
func SplitPF(pf string) (string, string, bool) {
	parts := strings.Split(pf, "-")
	for i := len(parts) - 1; i >= 1 && i >= len(parts)-2; i-- {
		version := strings.Join(parts[i:], "-")
		name := strings.Join(parts[:i], "-")
		if !versionRe.MatchString(version) || !nameRe.MatchString(name) {
			continue
		}
		if _, _, nested := splitTrailingVersion(name); nested {
			continue
		}
		return name, version, true
	}
	return "", "", false
}

// splitTrailingVersion reports whether name itself ends in "-<version>",
// which the naming rules forbid.
func splitTrailingVersion(name string) (string, string, bool) {
	idx := strings.LastIndex(name, "-")
	if idx < 0 {
		return "", "", false
	}
	tail := name[idx+1:]
	if versionRe.MatchString(tail) {
		return name[:idx], tail, true
	}
	return "", "", false
}

// PF returns "name-version".
func (c CPV) PF() string {
	return c.Name + "-" + c.Version
}

// CP returns "category/name".
func (c CPV) CP() string {
	return c.Category + "/" + c.Name
}

// String returns "category/name-version".
func (c CPV) String() string {
	return c.Category + "/" + c.PF()
}

// Bare strips slot and repository metadata.
func (c CPV) Bare() CPV {
	return CPV{Category: c.Category, Name: c.Name, Version: c.Version}
}

// ParsedVersion parses the CPV's version string.
func (c CPV) ParsedVersion() (Version, error) {
	return ParseVersion(c.Version)
}

// SlotParts splits "slot/subslot".
func (c CPV) SlotParts() (string, string) {
	slot, sub, _ := strings.Cut(c.Slot, "/")
	return slot, sub
}
