package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"

	"quickpkg/internal/compress"
	"quickpkg/internal/fileutil"
	"quickpkg/internal/logging"
	"quickpkg/internal/pkgerr"
)

const gpkgMarker = "gpkg-1"

type gpkgBuilder struct {
	opts   Options
	logger *slog.Logger
}

func (b *gpkgBuilder) Format() Format { return FormatGPKG }

// Build writes the outer container. The image tar is compressed into a
// sibling temp file first because tar headers need its final size.
func (b *gpkgBuilder) Build(ctx context.Context, req Request) (Artifact, error) {
	contents, excluded, err := filterContents(req)
	if err != nil {
		return Artifact{}, pkgerr.Wrap(pkgerr.ErrArchive, "archive", "filter contents", req.CPV.String(), err)
	}
	base := req.Basename
	if base == "" {
		base = req.CPV.PF()
	}
	jobs := compress.JobCount(b.opts.Vars["MAKEOPTS"])
	mtime := time.Now().Truncate(time.Second)

	var metadata bytes.Buffer
	if err := b.compressTar(&metadata, jobs, func(tw *tar.Writer) error {
		return writeMetadataTar(tw, req.Metadata, mtime)
	}); err != nil {
		return Artifact{}, pkgerr.Wrap(pkgerr.ErrArchive, "archive", "write metadata", req.CPV.String(), err)
	}

	image, err := fileutil.CreateUniqueTemp(req.Dir, "."+req.CPV.PF(), ".image.partial", 0o600)
	if err != nil {
		return Artifact{}, pkgerr.Wrap(pkgerr.ErrArchive, "archive", "create temp", req.Dir, err)
	}
	defer func() {
		_ = image.Close()
		_ = os.Remove(image.Name())
	}()
	if err := b.compressTar(image, jobs, func(tw *tar.Writer) error {
		return writeImage(ctx, tw, req.Root, "image/", contents, b.logger)
	}); err != nil {
		return Artifact{}, pkgerr.Wrap(pkgerr.ErrArchive, "archive", "write image", req.CPV.String(), err)
	}
	imageInfo, err := image.Stat()
	if err != nil {
		return Artifact{}, pkgerr.Wrap(pkgerr.ErrArchive, "archive", "stat image", image.Name(), err)
	}
	if _, err := image.Seek(0, io.SeekStart); err != nil {
		return Artifact{}, pkgerr.Wrap(pkgerr.ErrArchive, "archive", "rewind image", image.Name(), err)
	}

	out, err := createPartial(req)
	if err != nil {
		return Artifact{}, err
	}
	defer out.discard()

	b.logger.Debug("writing gpkg container",
		logging.String(logging.FieldPackage, req.CPV.String()),
		logging.String(logging.FieldPath, out.Name()),
		logging.Int64("image_bytes", imageInfo.Size()))

	tw := tar.NewWriter(out)
	members := []struct {
		name string
		size int64
		body io.Reader
	}{
		{name: base + "/" + gpkgMarker, size: 0, body: bytes.NewReader(nil)},
		{name: base + "/metadata.tar.zst", size: int64(metadata.Len()), body: &metadata},
		{name: base + "/image.tar.zst", size: imageInfo.Size(), body: image},
	}
	for _, m := range members {
		hdr := &tar.Header{
			Name:     m.name,
			Mode:     0o644,
			Size:     m.size,
			ModTime:  mtime,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return Artifact{}, pkgerr.Wrap(pkgerr.ErrArchive, "archive", "write container", m.name, err)
		}
		if _, err := io.CopyN(tw, m.body, m.size); err != nil {
			return Artifact{}, pkgerr.Wrap(pkgerr.ErrArchive, "archive", "write container", m.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return Artifact{}, pkgerr.Wrap(pkgerr.ErrArchive, "archive", "close container", out.Name(), err)
	}
	return out.finish(FormatGPKG, excluded)
}

func (b *gpkgBuilder) compressTar(w io.Writer, jobs int, fill func(*tar.Writer) error) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(jobs))
	if err != nil {
		return fmt.Errorf("zstd encoder: %w", err)
	}
	tw := tar.NewWriter(enc)
	if err := fill(tw); err != nil {
		_ = enc.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func writeMetadataTar(tw *tar.Writer, metadata map[string][]byte, mtime time.Time) error {
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if err := tw.WriteHeader(&tar.Header{Name: "metadata/", Mode: 0o755, Typeflag: tar.TypeDir, ModTime: mtime}); err != nil {
		return err
	}
	for _, key := range keys {
		value := metadata[key]
		hdr := &tar.Header{
			Name:     "metadata/" + key,
			Mode:     0o644,
			Size:     int64(len(value)),
			ModTime:  mtime,
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write(value); err != nil {
			return err
		}
	}
	return nil
}
