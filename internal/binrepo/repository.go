package binrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"quickpkg/internal/archive"
	"quickpkg/internal/fileutil"
	"quickpkg/internal/logging"
	"quickpkg/internal/pkgerr"
	"quickpkg/internal/vardb"
)

const (
	indexName      = "Packages.db"
	packagesName   = "Packages"
	lockName       = ".Packages.lock"
	lockRetryDelay = 50 * time.Millisecond
)

// Repository is an opened binary package repository.
type Repository struct {
	dir           string
	multiInstance bool
	db            *sql.DB
	lock          *flock.Flock
	logger        *slog.Logger
}

// Options configures Open.
type Options struct {
	MultiInstance bool
	Logger        *slog.Logger
}

// Open creates dir if needed and opens its index.
func Open(ctx context.Context, dir string, opts Options) (*Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, pkgerr.Wrap(pkgerr.ErrRegistration, "binrepo", "open", dir, err)
	}
	db, err := openIndex(filepath.Join(dir, indexName))
	if err != nil {
		return nil, pkgerr.Wrap(pkgerr.ErrRegistration, "binrepo", "open index", dir, err)
	}
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, pkgerr.Wrap(pkgerr.ErrRegistration, "binrepo", "init index", dir, err)
	}
	return &Repository{
		dir:           dir,
		multiInstance: opts.MultiInstance,
		db:            db,
		lock:          flock.New(filepath.Join(dir, lockName)),
		logger:        logging.NewComponentLogger(opts.Logger, "binrepo"),
	}, nil
}

// Close releases the repository lock and closes the index.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	_ = r.lock.Close()
	return r.db.Close()
}

// Dir returns the repository root.
func (r *Repository) Dir() string {
	return r.dir
}

// Slot is a reserved location for a new artifact.
type Slot struct {
	CPV     vardb.CPV
	Format  archive.Format
	BuildID int
	// Path is the absolute final location.
	Path string
	// Dir is where the temporary artifact must be written.
	Dir string
	// Basename is the file name without its format extension.
	Basename string
}

// Allocate picks the final location for a new artifact of cpv. In
// multi-instance mode every build gets the next free build id. Allocate
// takes the repository lock; it is held until Inject returns or Release is
// called, so the slot cannot be claimed by another writer while the
// artifact is built.
func (r *Repository) Allocate(ctx context.Context, cpv vardb.CPV, format archive.Format) (Slot, error) {
	if err := r.acquire(ctx); err != nil {
		return Slot{}, err
	}
	slot := Slot{CPV: cpv.Bare(), Format: format}
	if r.multiInstance {
		id, err := r.nextBuildID(ctx, cpv)
		if err != nil {
			r.Release()
			return Slot{}, err
		}
		slot.BuildID = id
	}
	slot.Basename, slot.Path = r.layout(cpv, format, slot.BuildID)
	slot.Dir = filepath.Dir(slot.Path)
	return slot, nil
}

// Release drops the repository lock taken by Allocate. Calling it when the
// lock is not held is a no-op.
func (r *Repository) Release() {
	if err := r.lock.Unlock(); err != nil {
		r.logger.Warn("failed to release repository lock", logging.Error(err))
	}
}

func (r *Repository) acquire(ctx context.Context) error {
	ok, err := r.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !ok {
		if err == nil {
			err = ctx.Err()
		}
		return pkgerr.Wrap(pkgerr.ErrRegistration, "binrepo", "lock", r.dir, err)
	}
	return nil
}

func (r *Repository) layout(cpv vardb.CPV, format archive.Format, buildID int) (string, string) {
	if r.multiInstance {
		base := fmt.Sprintf("%s-%d", cpv.PF(), buildID)
		ext := ".xpak"
		if format == archive.FormatGPKG {
			ext = ".gpkg.tar"
		}
		return base, filepath.Join(r.dir, cpv.Category, cpv.Name, base+ext)
	}
	ext := ".tbz2"
	if format == archive.FormatGPKG {
		ext = ".gpkg.tar"
	}
	return cpv.PF(), filepath.Join(r.dir, cpv.Category, cpv.PF()+ext)
}

func (r *Repository) nextBuildID(ctx context.Context, cpv vardb.CPV) (int, error) {
	var maxID sql.NullInt64
	err := retryOnBusy(ctx, func() error {
		return r.db.QueryRowContext(ctx, "SELECT MAX(build_id) FROM packages WHERE cpv = ?", cpv.Bare().String()).Scan(&maxID)
	})
	if err != nil {
		return 0, pkgerr.Wrap(pkgerr.ErrRegistration, "binrepo", "allocate", cpv.String(), err)
	}
	next := 1
	if maxID.Valid {
		next = int(maxID.Int64) + 1
	}
	// Files from other tools may exist without an index row.
	for {
		_, path := r.layout(cpv, archive.FormatXPAK, next)
		_, gpkgPath := r.layout(cpv, archive.FormatGPKG, next)
		if !exists(path) && !exists(gpkgPath) {
			return next, nil
		}
		next++
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// Inject moves the built artifact into slot, records it in the index and
// regenerates the Packages file. Either all of that happens or none of it:
// on failure the slot holds whatever it held before and the index is
// unchanged. Inject releases the repository lock.
func (r *Repository) Inject(ctx context.Context, slot Slot, artifact archive.Artifact, metadata vardb.Metadata) (Entry, error) {
	if err := r.acquire(ctx); err != nil {
		return Entry{}, err
	}
	defer r.Release()

	// The archive already names its build id; a taken slot cannot be renamed.
	if r.multiInstance && exists(slot.Path) {
		return Entry{}, pkgerr.Wrap(pkgerr.ErrRegistration, "binrepo", "inject",
			fmt.Sprintf("build id %d of %s already taken", slot.BuildID, slot.CPV), nil)
	}
	rel, err := filepath.Rel(r.dir, slot.Path)
	if err != nil {
		return Entry{}, pkgerr.Wrap(pkgerr.ErrRegistration, "binrepo", "inject", slot.Path, err)
	}
	sum, err := fileutil.MD5File(artifact.TempPath)
	if err != nil {
		return Entry{}, pkgerr.Wrap(pkgerr.ErrRegistration, "binrepo", "checksum", artifact.TempPath, err)
	}

	previous, err := setAside(slot.Path)
	if err != nil {
		return Entry{}, pkgerr.Wrap(pkgerr.ErrRegistration, "binrepo", "set aside", slot.Path, err)
	}
	rollback := func() {
		if previous == "" {
			return
		}
		if err := os.Rename(previous, slot.Path); err != nil {
			r.logger.Warn("failed to restore previous artifact",
				logging.String(logging.FieldPath, slot.Path), logging.Error(err))
		}
	}

	if err := fileutil.MoveFile(artifact.TempPath, slot.Path, 0o644); err != nil {
		rollback()
		return Entry{}, pkgerr.Wrap(pkgerr.ErrRegistration, "binrepo", "move", slot.Path, err)
	}
	info, err := os.Stat(slot.Path)
	if err != nil {
		_ = os.Remove(slot.Path)
		rollback()
		return Entry{}, pkgerr.Wrap(pkgerr.ErrRegistration, "binrepo", "stat", slot.Path, err)
	}

	entry := Entry{
		CPV:        slot.CPV.String(),
		BuildID:    slot.BuildID,
		Path:       filepath.ToSlash(rel),
		Format:     slot.Format,
		Size:       info.Size(),
		MD5:        sum,
		MTime:      info.ModTime().Unix(),
		Slot:       metadata.Get(vardb.KeySlot),
		Repository: metadata.Get(vardb.KeyRepository),
	}
	if err := retryOnBusy(ctx, func() error { return r.commit(ctx, entry) }); err != nil {
		_ = os.Remove(slot.Path)
		rollback()
		return Entry{}, pkgerr.Wrap(pkgerr.ErrRegistration, "binrepo", "index", entry.CPV, err)
	}
	if previous != "" {
		if err := os.Remove(previous); err != nil {
			r.logger.Warn("failed to remove replaced artifact",
				logging.String(logging.FieldPath, previous), logging.Error(err))
		}
	}
	entry.AbsPath = slot.Path
	return entry, nil
}

// setAside renames an existing file at path to a unique hidden name next to
// it and returns that name, or "" when path does not exist.
func setAside(path string) (string, error) {
	if !exists(path) {
		return "", nil
	}
	holder, err := fileutil.CreateUniqueTemp(filepath.Dir(path), "."+filepath.Base(path), ".previous", 0o644)
	if err != nil {
		return "", err
	}
	name := holder.Name()
	_ = holder.Close()
	if err := os.Rename(path, name); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

// commit upserts e and rewrites the Packages file inside one transaction.
// A failed Packages write rolls the index back.
func (r *Repository) commit(ctx context.Context, e Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := upsert(ctx, tx, e); err != nil {
		return err
	}
	if err := r.writePackagesFile(ctx, tx); err != nil {
		return fmt.Errorf("write Packages: %w", err)
	}
	return tx.Commit()
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, q queryer, e Entry) error {
	const query = `INSERT INTO packages (cpv, build_id, path, format, size, md5, mtime, slot, repository, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(cpv, build_id) DO UPDATE SET
    path = excluded.path,
    format = excluded.format,
    size = excluded.size,
    md5 = excluded.md5,
    mtime = excluded.mtime,
    slot = excluded.slot,
    repository = excluded.repository,
    created_at = excluded.created_at`
	// A different format for the same cpv and build id replaces the old path.
	if _, err := q.ExecContext(ctx, "DELETE FROM packages WHERE path = ? AND NOT (cpv = ? AND build_id = ?)", e.Path, e.CPV, e.BuildID); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, query,
		e.CPV, e.BuildID, e.Path, string(e.Format), e.Size, e.MD5, e.MTime, e.Slot, e.Repository,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// Entries lists the indexed packages ordered by cpv and build id. Rows whose
// file disappeared are dropped from the index.
func (r *Repository) Entries(ctx context.Context) ([]Entry, error) {
	return r.entries(ctx, r.db)
}

func (r *Repository) entries(ctx context.Context, q queryer) ([]Entry, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT cpv, build_id, path, format, size, md5, mtime, slot, repository FROM packages ORDER BY cpv, build_id")
	if err != nil {
		return nil, fmt.Errorf("query packages: %w", err)
	}
	defer rows.Close()
	var (
		out   []Entry
		stale []string
	)
	for rows.Next() {
		var e Entry
		var format string
		if err := rows.Scan(&e.CPV, &e.BuildID, &e.Path, &format, &e.Size, &e.MD5, &e.MTime, &e.Slot, &e.Repository); err != nil {
			return nil, fmt.Errorf("scan package row: %w", err)
		}
		e.Format = archive.Format(format)
		e.AbsPath = filepath.Join(r.dir, filepath.FromSlash(e.Path))
		if !exists(e.AbsPath) {
			stale = append(stale, e.Path)
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate packages: %w", err)
	}
	rows.Close()
	for _, path := range stale {
		r.logger.Debug("dropping stale index row", logging.String(logging.FieldPath, path))
		err := retryOnBusy(ctx, func() error {
			_, err := q.ExecContext(ctx, "DELETE FROM packages WHERE path = ?", path)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("prune %s: %w", path, err)
		}
	}
	return out, nil
}

func (r *Repository) writePackagesFile(ctx context.Context, q queryer) error {
	entries, err := r.entries(ctx, q)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "PACKAGES: %d\n", len(entries))
	fmt.Fprintf(&b, "TIMESTAMP: %d\n", time.Now().Unix())
	fmt.Fprintf(&b, "VERSION: 0\n")
	for _, e := range entries {
		b.WriteString("\n")
		e.writeStanza(&b)
	}
	return fileutil.WriteFileAtomic(filepath.Join(r.dir, packagesName), []byte(b.String()), 0o644)
}

// ErrNotIndexed reports that a cpv has no artifact in the index.
var ErrNotIndexed = errors.New("package not indexed")

// Latest returns the newest indexed artifact of cpv.
func (r *Repository) Latest(ctx context.Context, cpv vardb.CPV) (Entry, error) {
	entries, err := r.Entries(ctx)
	if err != nil {
		return Entry{}, err
	}
	want := cpv.Bare().String()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].CPV == want {
			return entries[i], nil
		}
	}
	return Entry{}, fmt.Errorf("%s: %w", want, ErrNotIndexed)
}
