package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"quickpkg/internal/compress"
	"quickpkg/internal/configprotect"
	"quickpkg/internal/deps"
	"quickpkg/internal/fileutil"
	"quickpkg/internal/logging"
	"quickpkg/internal/pkgerr"
	"quickpkg/internal/vardb"
)

// Format names a binary package container format.
type Format string

const (
	FormatXPAK Format = "xpak"
	FormatGPKG Format = "gpkg"
)

// ParseFormat validates a configured format name.
func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case FormatXPAK, FormatGPKG:
		return f, nil
	default:
		return "", pkgerr.Wrap(pkgerr.ErrUnsupportedFormat, "archive", "select format", fmt.Sprintf("%q", value), nil)
	}
}

// Request describes one package to serialize.
type Request struct {
	CPV vardb.CPV
	// Root is the filesystem root the CONTENTS paths are relative to.
	Root     string
	Contents vardb.Contents
	// Metadata holds every file of the package record keyed by name.
	Metadata map[string][]byte
	// Dir is the directory the temporary artifact is created in.
	Dir string
	// Basename names the gpkg top-level directory; defaults to the PF.
	Basename string
	Policy   *configprotect.Policy
	Protect  configprotect.Options
}

// Artifact is a built, not yet registered, binary package.
type Artifact struct {
	Format   Format
	TempPath string
	Size     int64
	// Excluded lists protected configuration files left out of the image.
	Excluded []string
}

// Builder serializes a package in one container format.
type Builder interface {
	Format() Format
	Build(ctx context.Context, req Request) (Artifact, error)
}

// Options configures builders.
type Options struct {
	// Compress is the xpak payload compressor method; empty stores.
	Compress string
	// Vars is the expansion environment for compressor templates.
	Vars     map[string]string
	Resolver deps.Resolver
	Runner   compress.Runner
	Logger   *slog.Logger
}

// NewBuilder returns the Builder for format.
func NewBuilder(format Format, opts Options) (Builder, error) {
	if opts.Resolver == nil {
		opts.Resolver = deps.PathResolver{}
	}
	if opts.Runner == nil {
		opts.Runner = compress.ExecRunner{}
	}
	if opts.Vars == nil {
		opts.Vars = map[string]string{}
	}
	logger := logging.NewComponentLogger(opts.Logger, "archive")
	switch format {
	case FormatXPAK:
		if _, ok := compress.Lookup(opts.Compress); !ok {
			return nil, pkgerr.Wrap(pkgerr.ErrUnsupportedCompression, "archive", "select compressor",
				fmt.Sprintf("%q", opts.Compress), nil)
		}
		return &xpakBuilder{opts: opts, logger: logger}, nil
	case FormatGPKG:
		return &gpkgBuilder{opts: opts, logger: logger}, nil
	default:
		return nil, pkgerr.Wrap(pkgerr.ErrUnsupportedFormat, "archive", "select format", fmt.Sprintf("%q", format), nil)
	}
}

// filterContents applies the exclusion policy of req.
func filterContents(req Request) (vardb.Contents, []string, error) {
	if req.Policy == nil {
		return req.Contents, nil, nil
	}
	return req.Policy.Filter(req.Contents, req.Protect)
}

// partialFile is a temp artifact that removes itself unless kept.
type partialFile struct {
	*os.File
	kept bool
}

func createPartial(req Request) (*partialFile, error) {
	f, err := fileutil.CreateUniqueTemp(req.Dir, "."+req.CPV.PF(), ".partial", 0o644)
	if err != nil {
		return nil, pkgerr.Wrap(pkgerr.ErrArchive, "archive", "create temp", req.Dir, err)
	}
	return &partialFile{File: f}, nil
}

// discard closes and removes the file unless keep was called.
func (p *partialFile) discard() {
	if p.kept {
		return
	}
	_ = p.Close()
	_ = os.Remove(p.Name())
}

func (p *partialFile) finish(format Format, excluded []string) (Artifact, error) {
	if err := p.Sync(); err != nil {
		return Artifact{}, pkgerr.Wrap(pkgerr.ErrArchive, "archive", "sync", p.Name(), err)
	}
	info, err := p.Stat()
	if err != nil {
		return Artifact{}, pkgerr.Wrap(pkgerr.ErrArchive, "archive", "stat", p.Name(), err)
	}
	if err := p.Close(); err != nil {
		return Artifact{}, pkgerr.Wrap(pkgerr.ErrArchive, "archive", "close", p.Name(), err)
	}
	p.kept = true
	return Artifact{Format: format, TempPath: p.Name(), Size: info.Size(), Excluded: excluded}, nil
}
