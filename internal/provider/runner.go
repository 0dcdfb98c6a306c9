package provider

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"time"
)

// CommandRunner runs external programs. The os/exec implementation is
// ExecRunner; tests substitute their own.
type CommandRunner interface {
	// LookPath resolves an executable name like exec.LookPath.
	LookPath(file string) (string, error)

	// Run runs name to completion with stdin preset before start.
	Run(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr []byte, err error)
}

// ExecRunner uses os/exec.
type ExecRunner struct {
	// GracePeriod is how long a cancelled process gets after SIGINT before
	// it is killed.
	GracePeriod time.Duration
}

// LookPath implements CommandRunner.
func (ExecRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Run implements CommandRunner. On context cancellation the process is
// interrupted first and killed once the grace period expires.
func (r ExecRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) (stdout, stderr []byte, err error) {
	cmd := exec.CommandContext(ctx, name, args...)

	// Stdin must be in place before the process starts
	cmd.Stdin = stdin

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = r.GracePeriod
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = 100 * time.Millisecond
	}

	err = cmd.Run()
	return outBuf.Bytes(), errBuf.Bytes(), err
}
