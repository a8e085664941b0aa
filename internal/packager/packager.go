package packager

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"quickpkg/internal/archive"
	"quickpkg/internal/binrepo"
	"quickpkg/internal/configprotect"
	"quickpkg/internal/depstr"
	"quickpkg/internal/logging"
	"quickpkg/internal/pkgerr"
	"quickpkg/internal/vardb"
)

// Database is the installed-package surface the packager needs.
type Database interface {
	Lock(ctx context.Context, cpv vardb.CPV) (*vardb.Lock, error)
	Exists(cpv vardb.CPV) bool
	Get(cpv vardb.CPV, keys ...string) (vardb.Metadata, error)
	Set(cpv vardb.CPV, values vardb.Metadata) error
	Contents(cpv vardb.CPV) (vardb.Contents, error)
	Files(cpv vardb.CPV) (map[string][]byte, error)
}

// Repository registers finished artifacts. Allocate locks the repository
// until Inject or Release.
type Repository interface {
	Allocate(ctx context.Context, cpv vardb.CPV, format archive.Format) (binrepo.Slot, error)
	Release()
	Inject(ctx context.Context, slot binrepo.Slot, artifact archive.Artifact, metadata vardb.Metadata) (binrepo.Entry, error)
}

// Options are the per-invocation packaging switches.
type Options struct {
	IncludeConfig           bool
	IncludeUnmodifiedConfig bool
	// LocksHeld skips package locking because a parent process holds them.
	LocksHeld bool
}

// Status is the outcome kind of one package.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailed
	// StatusVanished means the package disappeared before it was locked.
	StatusVanished
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "vanished"
	}
}

// Result is the outcome of packaging one package.
type Result struct {
	CPV      vardb.CPV
	Status   Status
	Size     int64
	Path     string
	Excluded []string
	Err      error
}

// Packager packages single installed packages.
type Packager struct {
	db      Database
	repo    Repository
	builder archive.Builder
	root    string
	policy  *configprotect.Policy
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

// Config wires a Packager.
type Config struct {
	DB      Database
	Repo    Repository
	Builder archive.Builder
	Root    string
	Policy  *configprotect.Policy
	Options Options
	Logger  *slog.Logger
}

// New constructs a Packager.
func New(cfg Config) (*Packager, error) {
	if cfg.DB == nil || cfg.Repo == nil || cfg.Builder == nil {
		return nil, pkgerr.Wrap(pkgerr.ErrConfiguration, "packager", "new", "database, repository and builder are required", nil)
	}
	return &Packager{
		db:      cfg.DB,
		repo:    cfg.Repo,
		builder: cfg.Builder,
		root:    cfg.Root,
		policy:  cfg.Policy,
		opts:    cfg.Options,
		logger:  logging.NewComponentLogger(cfg.Logger, "packager"),
		now:     time.Now,
	}, nil
}

// Package builds and registers a binary package for cpv.
func (p *Packager) Package(ctx context.Context, cpv vardb.CPV) Result {
	cpv = cpv.Bare()
	logger := logging.WithPackage(p.logger, cpv.String())
	result := Result{CPV: cpv}

	if !p.opts.LocksHeld {
		lock, err := p.db.Lock(ctx, cpv)
		switch {
		case errors.Is(err, vardb.ErrNotInstalled):
			logger.Debug("package vanished before locking")
			result.Status = StatusVanished
			return result
		case errors.Is(err, vardb.ErrLockPermission):
			logger.Debug("no permission for package lock, continuing unlocked", logging.Error(err))
		case err != nil:
			return p.fail(logger, result, pkgerr.Wrap(pkgerr.ErrLock, "packager", "lock", cpv.String(), err))
		default:
			defer func() {
				if err := lock.Unlock(); err != nil {
					logger.Warn("failed to release package lock", logging.Error(err))
				}
			}()
		}
	}

	if !p.db.Exists(cpv) {
		logger.Debug("package vanished after locking")
		result.Status = StatusVanished
		return result
	}

	logger.Info("building package")
	start := p.now()

	md, err := p.db.Get(cpv, vardb.KeyCategory, vardb.KeyPF, vardb.KeyIUse, vardb.KeyUse,
		vardb.KeyRestrict, vardb.KeySlot, vardb.KeyRepository)
	if err != nil {
		if errors.Is(err, vardb.ErrNotInstalled) {
			result.Status = StatusVanished
			return result
		}
		return p.fail(logger, result, pkgerr.Wrap(pkgerr.ErrMalformedMetadata, "packager", "read metadata", cpv.String(), err))
	}
	if err := p.checkRedistribution(logger, md); err != nil {
		return p.fail(logger, result, err)
	}
	p.reconcile(logger, cpv, md)

	contents, err := p.db.Contents(cpv)
	if err != nil {
		return p.fail(logger, result, pkgerr.Wrap(pkgerr.ErrMalformedMetadata, "packager", "read CONTENTS", cpv.String(), err))
	}
	files, err := p.db.Files(cpv)
	if err != nil {
		return p.fail(logger, result, pkgerr.Wrap(pkgerr.ErrMalformedMetadata, "packager", "read record", cpv.String(), err))
	}
	files[vardb.KeyCategory] = []byte(cpv.Category + "\n")
	files[vardb.KeyPF] = []byte(cpv.PF() + "\n")

	format := p.builder.Format()
	slot, err := p.repo.Allocate(ctx, cpv, format)
	if err != nil {
		return p.fail(logger, result, err)
	}
	defer p.repo.Release()
	if slot.BuildID > 0 {
		files[vardb.KeyBuildID] = []byte(strconv.Itoa(slot.BuildID) + "\n")
	}
	files[vardb.KeyBuildTime] = []byte(strconv.FormatInt(p.now().Unix(), 10) + "\n")

	artifact, err := p.builder.Build(ctx, archive.Request{
		CPV:      cpv,
		Root:     p.root,
		Contents: contents,
		Metadata: files,
		Dir:      slot.Dir,
		Basename: slot.Basename,
		Policy:   p.policy,
		Protect: configprotect.Options{
			IncludeConfig:           p.opts.IncludeConfig,
			IncludeUnmodifiedConfig: p.opts.IncludeUnmodifiedConfig,
		},
	})
	if err != nil {
		return p.fail(logger, result, err)
	}

	entry, err := p.repo.Inject(ctx, slot, artifact, md)
	if err != nil {
		_ = os.Remove(artifact.TempPath)
		return p.fail(logger, result, err)
	}
	info, err := os.Stat(entry.AbsPath)
	if err != nil {
		return p.fail(logger, result, pkgerr.Wrap(pkgerr.ErrRegistration, "packager", "stat artifact", entry.AbsPath, err))
	}

	for _, path := range artifact.Excluded {
		logging.WarnWithContext(logger, "excluded config file", "config_excluded",
			logging.String(logging.FieldPath, path),
			logging.String(logging.FieldErrorHint, "use --include-config y to include protected files"),
			logging.String(logging.FieldImpact, "file missing from binary package"),
		)
	}

	result.Status = StatusSuccess
	result.Size = info.Size()
	result.Path = entry.AbsPath
	result.Excluded = artifact.Excluded
	logger.Info("done",
		logging.String(logging.FieldPath, entry.AbsPath),
		logging.Int64("size", info.Size()),
		logging.Duration("elapsed", p.now().Sub(start)))
	return result
}

// checkRedistribution warns when the package may not be redistributed.
// Malformed RESTRICT fails the package.
func (p *Packager) checkRedistribution(logger *slog.Logger, md vardb.Metadata) error {
	use := depstr.FlagSet(md.Get(vardb.KeyUse))
	iuse := depstr.IUSEFlags(md.Get(vardb.KeyIUse))
	restrict, err := depstr.UseReduce(md.Get(vardb.KeyRestrict), use)
	if err != nil {
		return pkgerr.Wrap(pkgerr.ErrMalformedMetadata, "packager", "reduce RESTRICT", "", err)
	}
	if iuse["bindist"] && !use["bindist"] {
		logging.WarnWithContext(logger, "package built with USE=-bindist", "legal_restriction",
			logging.Alert("redistribution"),
			logging.String(logging.FieldErrorHint, "do not redistribute this binary package"),
			logging.String(logging.FieldImpact, "binary package may not be legal to distribute"),
		)
	}
	for _, token := range restrict {
		if token == "bindist" {
			logging.WarnWithContext(logger, "package has RESTRICT=bindist", "legal_restriction",
				logging.Alert("redistribution"),
				logging.String(logging.FieldErrorHint, "do not redistribute this binary package"),
				logging.String(logging.FieldImpact, "binary package may not be legal to distribute"),
			)
			break
		}
	}
	return nil
}

// reconcile rewrites CATEGORY and PF when they disagree with cpv. Write
// failures only warn; the archive always carries the corrected values.
func (p *Packager) reconcile(logger *slog.Logger, cpv vardb.CPV, md vardb.Metadata) {
	fix := vardb.Metadata{}
	if md.Get(vardb.KeyCategory) != cpv.Category {
		fix[vardb.KeyCategory] = cpv.Category
	}
	if md.Get(vardb.KeyPF) != cpv.PF() {
		fix[vardb.KeyPF] = cpv.PF()
	}
	if len(fix) == 0 {
		return
	}
	logger.Debug("correcting record identity",
		logging.String("category", md.Get(vardb.KeyCategory)),
		logging.String("pf", md.Get(vardb.KeyPF)))
	if err := p.db.Set(cpv, fix); err != nil {
		logging.WarnWithContext(logger, "failed to correct package record", "record_reconcile_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check write access to the package database"),
		)
	}
}

func (p *Packager) fail(logger *slog.Logger, result Result, err error) Result {
	result.Status = StatusFailed
	result.Err = err
	logging.ErrorWithContext(logger, "packaging failed", "package_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hintFor(err)),
	)
	return result
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, pkgerr.ErrCompressorUnavailable):
		return "install the compressor or change BINPKG_COMPRESS"
	case errors.Is(err, pkgerr.ErrMalformedMetadata):
		return "reinstall the package to repair its record"
	case errors.Is(err, pkgerr.ErrRegistration):
		return "check write access to PKGDIR"
	default:
		return "check logs for details"
	}
}
