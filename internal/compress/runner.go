package compress

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Runner executes a command with the given standard streams.
type Runner interface {
	Run(ctx context.Context, argv []string, stdin io.Reader, stdout io.Writer) error
}

// ExecRunner runs commands as child processes.
type ExecRunner struct{}

// Run starts argv and waits for it. A non-zero exit status is an error that
// carries the tail of stderr.
func (ExecRunner) Run(ctx context.Context, argv []string, stdin io.Reader, stdout io.Writer) error {
	if len(argv) == 0 {
		return fmt.Errorf("run compressor: empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	var stderr bytes.Buffer
	cmd.Stderr = &limitedBuffer{buf: &stderr, max: 4096}
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("%s: %w: %s", argv[0], err, detail)
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}

type limitedBuffer struct {
	buf *bytes.Buffer
	max int
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	if room := l.max - l.buf.Len(); room > 0 {
		if len(p) > room {
			l.buf.Write(p[:room])
		} else {
			l.buf.Write(p)
		}
	}
	return len(p), nil
}

// Stream pipes src through c into dst.
func (c Command) Stream(ctx context.Context, runner Runner, src io.Reader, dst io.Writer) error {
	if runner == nil {
		runner = ExecRunner{}
	}
	if err := runner.Run(ctx, c.Argv, src, dst); err != nil {
		return fmt.Errorf("compress with %s: %w", c.Argv[0], err)
	}
	return nil
}
