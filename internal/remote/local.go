package remote

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// LocalRunner runs commands on this machine through "sh -c". It serves hosts
// configured with local: true.
type LocalRunner struct {
	name string
	echo io.Writer
}

// NewLocalRunner returns a runner for the named local host.
func NewLocalRunner(name string, echo io.Writer) *LocalRunner {
	return &LocalRunner{name: name, echo: echo}
}

func (r *LocalRunner) Host() string { return r.name }

func (r *LocalRunner) Run(ctx context.Context, cmd Command) (string, error) {
	line := cmd.String()
	var stdout, stderr bytes.Buffer
	// #nosec G204 -- command lines come from the operator's configuration
	c := exec.CommandContext(ctx, "sh", "-c", line)
	c.Stdout = r.tee(&stdout)
	c.Stderr = r.tee(&stderr)
	if err := c.Run(); err != nil {
		if ctx.Err() != nil {
			return stdout.String(), ctx.Err()
		}
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return stdout.String(), &CommandError{
				Host:       r.name,
				Command:    line,
				ExitStatus: exitErr.ExitCode(),
				Stderr:     stderr.String(),
			}
		}
		return stdout.String(), err
	}
	return stdout.String(), nil
}

// Get copies a file on this machine, using the same .part-then-rename
// sequence as the SSH runner.
func (r *LocalRunner) Get(ctx context.Context, remotePath, localPath string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	// #nosec G304 -- source path is rendered from validated templates
	src, err := os.Open(remotePath)
	if err != nil {
		return 0, err
	}
	defer func() { _ = src.Close() }()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o750); err != nil {
		return 0, err
	}
	part := localPath + ".part"
	// #nosec G304 -- local path is rendered from validated templates
	dst, err := os.Create(part)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(part)
		return 0, err
	}
	if err := os.Rename(part, localPath); err != nil {
		_ = os.Remove(part)
		return 0, err
	}
	return n, nil
}

func (r *LocalRunner) Close() error { return nil }

func (r *LocalRunner) tee(buf *bytes.Buffer) io.Writer {
	if r.echo == nil {
		return buf
	}
	return io.MultiWriter(buf, r.echo)
}
