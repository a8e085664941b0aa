package preflight

import (
	"quickpkg/internal/config"
	"quickpkg/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that apply to cfg. A nil resolver searches PATH.
func RunAll(cfg *config.Config, resolver deps.Resolver) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Live root", cfg.Paths.Root, ReadOnly),
		CheckDirectoryAccess("Package database", cfg.Paths.VDBDir, ReadOnly),
		CheckDirectoryAccess("Binary repository", cfg.Paths.PkgDir, ReadWrite),
	}
	if cfg.Paths.SetsDir != "" {
		results = append(results, CheckDirectoryAccess("Sets directory", cfg.Paths.SetsDir, ReadOnly))
	}
	return append(results, CheckCompressor(cfg, resolver))
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
