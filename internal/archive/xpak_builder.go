package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"quickpkg/internal/compress"
	"quickpkg/internal/logging"
	"quickpkg/internal/pkgerr"
)

var errCompressorExited = errors.New("compressor exited")

type xpakBuilder struct {
	opts   Options
	logger *slog.Logger
}

func (b *xpakBuilder) Format() Format { return FormatXPAK }

// Build streams the image tar through the compressor into a temp file and
// appends the metadata segment once the compressor has succeeded.
func (b *xpakBuilder) Build(ctx context.Context, req Request) (Artifact, error) {
	cmd, err := compress.Resolve(b.opts.Compress, b.opts.Vars, b.opts.Resolver)
	if err != nil {
		return Artifact{}, err
	}
	contents, excluded, err := filterContents(req)
	if err != nil {
		return Artifact{}, pkgerr.Wrap(pkgerr.ErrArchive, "archive", "filter contents", req.CPV.String(), err)
	}

	out, err := createPartial(req)
	if err != nil {
		return Artifact{}, err
	}
	defer out.discard()

	b.logger.Debug("compressing image",
		logging.String(logging.FieldPackage, req.CPV.String()),
		logging.Strings("command", cmd.Argv),
		logging.String(logging.FieldPath, out.Name()))

	pr, pw := io.Pipe()
	tarErr := make(chan error, 1)
	go func() {
		tw := tar.NewWriter(pw)
		err := writeImage(ctx, tw, req.Root, "./", contents, b.logger)
		if err == nil {
			err = tw.Close()
		}
		pw.CloseWithError(err)
		tarErr <- err
	}()

	runErr := cmd.Stream(ctx, b.opts.Runner, pr, out)
	// Unblock the writer if the compressor exited without draining stdin.
	_ = pr.CloseWithError(errCompressorExited)
	writeErr := <-tarErr

	if writeErr != nil && !errors.Is(writeErr, errCompressorExited) {
		return Artifact{}, pkgerr.Wrap(pkgerr.ErrArchive, "archive", "write image", req.CPV.String(), writeErr)
	}
	if runErr != nil {
		return Artifact{}, pkgerr.Wrap(pkgerr.ErrArchive, "archive", "compress image",
			fmt.Sprintf("%s with %s", req.CPV, methodName(cmd.Method)), runErr)
	}

	if err := AppendXPAK(out.File, EncodeXPAK(req.Metadata)); err != nil {
		return Artifact{}, pkgerr.Wrap(pkgerr.ErrArchive, "archive", "append metadata", req.CPV.String(), err)
	}
	return out.finish(FormatXPAK, excluded)
}

func methodName(m compress.Method) string {
	if m.Name == "" {
		return "store"
	}
	return m.Name
}
