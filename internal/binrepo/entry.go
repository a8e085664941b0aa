package binrepo

import (
	"fmt"
	"strings"

	"quickpkg/internal/archive"
)

// Entry is one registered artifact.
type Entry struct {
	CPV        string
	BuildID    int
	Path       string
	AbsPath    string
	Format     archive.Format
	Size       int64
	MD5        string
	MTime      int64
	Slot       string
	Repository string
}

func (e Entry) writeStanza(b *strings.Builder) {
	fmt.Fprintf(b, "CPV: %s\n", e.CPV)
	if e.BuildID > 0 {
		fmt.Fprintf(b, "BUILD_ID: %d\n", e.BuildID)
	}
	fmt.Fprintf(b, "MD5: %s\n", e.MD5)
	fmt.Fprintf(b, "MTIME: %d\n", e.MTime)
	fmt.Fprintf(b, "PATH: %s\n", e.Path)
	if e.Repository != "" {
		fmt.Fprintf(b, "REPO: %s\n", e.Repository)
	}
	fmt.Fprintf(b, "SIZE: %d\n", e.Size)
	if e.Slot != "" && e.Slot != "0" {
		fmt.Fprintf(b, "SLOT: %s\n", e.Slot)
	}
	fmt.Fprintf(b, "BINPKG_FORMAT: %s\n", e.Format)
}
