// Package preflight provides readiness checks for the paths and external
// programs quickpkg depends on.
//
// The CLI "quickpkg check" command runs RunAll and renders the results.
// Packaging itself does not call these checks: Setup already rejects an
// unusable format or compressor, and per-package failures are reported
// where they happen.
package preflight
