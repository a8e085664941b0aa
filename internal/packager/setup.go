package packager

import (
	"context"
	"log/slog"

	"quickpkg/internal/archive"
	"quickpkg/internal/binrepo"
	"quickpkg/internal/config"
	"quickpkg/internal/configprotect"
	"quickpkg/internal/deps"
	"quickpkg/internal/logging"
	"quickpkg/internal/resolve"
	"quickpkg/internal/sets"
	"quickpkg/internal/vardb"
)

// Runtime bundles the components of one invocation.
type Runtime struct {
	DB       *vardb.Store
	Repo     *binrepo.Repository
	Resolver *resolve.Resolver
	Packager *Packager
}

// Setup validates the packaging configuration and opens every component.
// Unsupported formats and compressors fail here, before any package is
// touched.
func Setup(ctx context.Context, cfg *config.Config, opts Options, resolver deps.Resolver, logger *slog.Logger) (*Runtime, error) {
	format, err := archive.ParseFormat(cfg.Binpkg.Format)
	if err != nil {
		return nil, err
	}
	builder, err := archive.NewBuilder(format, archive.Options{
		Compress: cfg.Binpkg.Compress,
		Vars:     cfg.Vars(),
		Resolver: resolver,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	repo, err := binrepo.Open(ctx, cfg.Paths.PkgDir, binrepo.Options{
		MultiInstance: cfg.Binpkg.MultiInstance,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	db := vardb.Open(cfg.Paths.VDBDir, logger)
	p, err := New(Config{
		DB:      db,
		Repo:    repo,
		Builder: builder,
		Root:    cfg.Paths.Root,
		Policy:  configprotect.New(cfg.Paths.Root, cfg.ConfigProtect.Protect, cfg.ConfigProtect.ProtectMask),
		Options: opts,
		Logger:  logger,
	})
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	logging.NewComponentLogger(logger, "setup").Debug("packaging runtime ready",
		logging.String("format", string(format)),
		logging.String("compress", cfg.Binpkg.Compress),
		logging.Bool("multi_instance", cfg.Binpkg.MultiInstance),
		logging.Bool("include_config", opts.IncludeConfig),
	)
	return &Runtime{
		DB:       db,
		Repo:     repo,
		Resolver: resolve.New(db, sets.NewLoader(cfg, logger), logger),
		Packager: p,
	}, nil
}

// Run packages specifiers with this runtime.
func (rt *Runtime) Run(ctx context.Context, specifiers []string, logger *slog.Logger) (*Summary, error) {
	return Run(ctx, rt.Resolver, rt.Packager, specifiers, logger)
}

// Close releases the repository index.
func (rt *Runtime) Close() error {
	if rt == nil {
		return nil
	}
	return rt.Repo.Close()
}
