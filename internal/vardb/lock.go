package vardb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
)

// ErrLockPermission reports that the lock file could not be created because
// the caller lacks write access to the database. Callers may proceed unlocked.
var ErrLockPermission = errors.New("insufficient permission for package lock")

const lockRetryDelay = 100 * time.Millisecond

// Lock is a held per-package advisory lock.
type Lock struct {
	path string
	fl   *flock.Flock
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Unlock releases the lock. It is safe to call on a nil Lock.
func (l *Lock) Unlock() error {
	if l == nil || l.fl == nil {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("release package lock %s: %w", l.path, err)
	}
	return nil
}

// LockPath returns the lock file guarding cpv.
func (s *Store) LockPath(cpv CPV) string {
	return filepath.Join(s.dir, cpv.Category, "."+cpv.PF()+".portage_lockfile")
}

// Lock acquires the advisory lock for cpv, waiting until it is free or ctx
// ends. A missing category directory means the package disappeared and
// yields ErrNotInstalled; permission failures yield ErrLockPermission.
func (s *Store) Lock(ctx context.Context, cpv CPV) (*Lock, error) {
	path := s.LockPath(cpv)
	fl := flock.New(path)
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%s: %w", cpv, ErrNotInstalled)
		case isPermission(err):
			return nil, fmt.Errorf("%s: %w: %w", path, ErrLockPermission, err)
		}
		return nil, fmt.Errorf("acquire package lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire package lock %s: %w", path, ctx.Err())
	}
	return &Lock{path: path, fl: fl}, nil
}

func isPermission(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, unix.EACCES) ||
		errors.Is(err, unix.EPERM) ||
		errors.Is(err, unix.EROFS)
}
