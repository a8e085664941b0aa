package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"quickpkg/internal/archive"
	"quickpkg/internal/compress"
	"quickpkg/internal/config"
	"quickpkg/internal/deps"
)

// Access modes for CheckDirectoryAccess.
const (
	ReadOnly  = unix.R_OK | unix.X_OK
	ReadWrite = unix.R_OK | unix.W_OK | unix.X_OK
)

// CheckDirectoryAccess verifies that the directory exists and grants mode to
// the current user.
func CheckDirectoryAccess(name, path string, mode uint32) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	access := "read ok"
	if mode&unix.W_OK != 0 {
		access = "read/write ok"
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, access)}
}

// CheckCompressor verifies that the configured xpak compressor resolves to
// an installed program. The gpkg format compresses in-process and always
// passes.
func CheckCompressor(cfg *config.Config, resolver deps.Resolver) Result {
	const name = "Compressor"

	format, err := archive.ParseFormat(cfg.Binpkg.Format)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if format == archive.FormatGPKG {
		return Result{Name: name, Passed: true, Detail: "zstd (built in)"}
	}
	cmd, err := compress.Resolve(cfg.Binpkg.Compress, cfg.Vars(), resolver)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(cmd.Argv, " ")}
}
