// Package archive serializes an installed package into a binary package.
//
// Two container formats are supported. An xpak package is a compressed tar of
// the installed files with an XPAK metadata segment appended to the end. A
// gpkg package is an uncompressed tar holding a format marker plus separately
// zstd-compressed metadata and image tars.
//
// Builders always write to a uniquely named ".partial" file inside the
// destination directory and remove it on failure.
package archive
