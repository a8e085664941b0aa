package testsupport

import (
	"context"
	"testing"

	"quickpkg/internal/binrepo"
	"quickpkg/internal/config"
	"quickpkg/internal/logging"
)

// MustOpenRepository opens the configured binary repository for tests and
// registers cleanup.
func MustOpenRepository(t testing.TB, cfg *config.Config) *binrepo.Repository {
	t.Helper()

	repo, err := binrepo.Open(context.Background(), cfg.Paths.PkgDir, binrepo.Options{
		MultiInstance: cfg.Binpkg.MultiInstance,
		Logger:        logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("binrepo.Open: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}
