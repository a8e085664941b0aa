package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"quickpkg/internal/logging"
	"quickpkg/internal/vardb"
)

// writeImage writes the captured entries to tw with names "<prefix><path>".
// Entries that vanished from disk or changed type are skipped.
func writeImage(ctx context.Context, tw *tar.Writer, root, prefix string, contents vardb.Contents, logger *slog.Logger) error {
	for _, entry := range contents {
		if err := ctx.Err(); err != nil {
			return err
		}
		full := filepath.Join(root, filepath.FromSlash(entry.Path))
		info, err := os.Lstat(full)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Debug("installed file missing, skipping", logging.String(logging.FieldPath, entry.Path))
				continue
			}
			return fmt.Errorf("stat %s: %w", entry.Path, err)
		}
		if !kindMatches(entry.Kind, info.Mode()) {
			logger.Debug("installed file changed type, skipping",
				logging.String(logging.FieldPath, entry.Path),
				logging.String("recorded", string(entry.Kind)),
				logging.String("found", info.Mode().Type().String()))
			continue
		}
		var link string
		if entry.Kind == vardb.KindSym {
			link, err = os.Readlink(full)
			if err != nil {
				return fmt.Errorf("read link %s: %w", entry.Path, err)
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return fmt.Errorf("tar header %s: %w", entry.Path, err)
		}
		hdr.Name = prefix + strings.TrimPrefix(path.Clean(entry.Path), "/")
		if entry.Kind == vardb.KindDir {
			hdr.Name += "/"
		}
		hdr.Format = tar.FormatPAX
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write header %s: %w", entry.Path, err)
		}
		if entry.Kind == vardb.KindObj {
			if err := copyFile(tw, full, hdr.Size); err != nil {
				return fmt.Errorf("write %s: %w", entry.Path, err)
			}
		}
	}
	return nil
}

func kindMatches(kind vardb.EntryKind, mode fs.FileMode) bool {
	switch kind {
	case vardb.KindDir:
		return mode.IsDir()
	case vardb.KindObj:
		return mode.IsRegular()
	case vardb.KindSym:
		return mode&fs.ModeSymlink != 0
	case vardb.KindFifo:
		return mode&fs.ModeNamedPipe != 0
	case vardb.KindDev:
		return mode&fs.ModeDevice != 0
	default:
		return false
	}
}

// copyFile copies exactly size bytes so a file growing mid-read cannot
// overflow its header.
func copyFile(w io.Writer, name string, size int64) error {
	f, err := os.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()
	n, err := io.CopyN(w, f, size)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if n < size {
		return fmt.Errorf("file shrank while reading: got %d of %d bytes", n, size)
	}
	return nil
}
