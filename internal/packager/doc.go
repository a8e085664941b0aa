// Package packager turns installed packages into registered binary packages.
//
// Packager.Package handles one resolved package: it takes the package lock,
// re-checks that the package still exists, emits redistribution warnings,
// repairs CATEGORY/PF, builds the artifact and injects it into the binary
// repository. Run drives the resolver and the packager over every specifier
// of an invocation and accumulates a Summary.
package packager
