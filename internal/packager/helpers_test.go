package packager_test

import (
	"testing"

	"quickpkg/internal/archive"
	"quickpkg/internal/config"
	"quickpkg/internal/deps"
	"quickpkg/internal/logging"
)

func mustBuilder(t *testing.T, cfg *config.Config) archive.Builder {
	t.Helper()
	format, err := archive.ParseFormat(cfg.Binpkg.Format)
	if err != nil {
		t.Fatal(err)
	}
	builder, err := archive.NewBuilder(format, archive.Options{
		Compress: cfg.Binpkg.Compress,
		Vars:     cfg.Vars(),
		Resolver: deps.PathResolver{},
		Logger:   logging.NewNop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return builder
}
