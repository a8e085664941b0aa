// Package atom parses package atoms and compares package versions.
//
// An atom names one or more packages: an optional version operator, a
// category/name pair, an optional version, and optional :slot and ::repo
// qualifiers (`>=dev-lang/go-1.22:0::gentoo`). Wildcard atoms allow `*` in
// the category and name (`app-misc/*`, `*/*`). CPV is the concrete identity
// of one installed package.
package atom
