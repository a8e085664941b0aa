// Package binrepo manages the binary package repository (PKGDIR).
//
// Artifacts are moved into place with an atomic rename and recorded in a
// SQLite index (Packages.db) from which the plain-text Packages file is
// regenerated after every change. Writers serialize on an advisory lock in
// the repository root.
package binrepo
