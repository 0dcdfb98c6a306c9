package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/tts-cli/internal/tts"
)

const (
	defaultLocalTimeout = 30 * time.Second
	versionProbeTimeout = 5 * time.Second
)

// command is a local TTS executable invoked once per synthesis.
type command struct {
	id          tts.ProviderID
	binary      string
	versionArgs []string
	runner      CommandRunner
	timeout     time.Duration
}

func newCommand(id tts.ProviderID, binary string, s Settings, runner CommandRunner) command {
	if s.Binary != "" {
		binary = s.Binary
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultLocalTimeout
	}
	return command{id: id, binary: binary, versionArgs: s.VersionArgs, runner: runner, timeout: timeout}
}

// available reports whether the executable is on PATH and, when version
// arguments are configured, runs successfully with them.
func (c command) available(ctx context.Context) bool {
	path, err := c.runner.LookPath(c.binary)
	if err != nil {
		return false
	}
	if len(c.versionArgs) == 0 {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	if _, stderr, err := c.runner.Run(ctx, path, c.versionArgs, nil); err != nil {
		log.Debug("Version check failed", "provider", c.id, "binary", path, "error", err,
			"stderr", strings.TrimSpace(string(stderr)))
		return false
	}
	return true
}

// run executes the binary with text on stdin and returns its stdout.
// The process is never started when the binary cannot be found.
func (c command) run(ctx context.Context, args []string, text string) ([]byte, error) {
	path, err := c.runner.LookPath(c.binary)
	if err != nil {
		return nil, tts.BackendUnavailable(fmt.Sprintf("%s not found in PATH", c.binary), err).
			WithContext("provider", c.id.String())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	stdout, stderr, err := c.runner.Run(ctx, path, args, strings.NewReader(text))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, tts.SynthesisFailure(fmt.Sprintf("%s interrupted", c.binary), ctxErr).
				WithContext("provider", c.id.String())
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, tts.BackendUnavailable(fmt.Sprintf("%s could not be started", c.binary), err).
				WithContext("provider", c.id.String())
		}
		return nil, tts.SynthesisFailure(fmt.Sprintf("%s failed", c.binary), err).
			WithContext("provider", c.id.String()).
			WithContext("stderr", strings.TrimSpace(string(stderr)))
	}

	log.Debug("Local synthesis finished", "binary", c.binary, "took", time.Since(started), "bytes", len(stdout))
	return stdout, nil
}

// runToFile is run for programs that write audio to a file. outputArgs
// receives the path of a fresh temp file and returns the full argument list.
func (c command) runToFile(ctx context.Context, ext string, text string, outputArgs func(path string) []string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "tts-cli-*"+ext)
	if err != nil {
		return nil, tts.SynthesisFailure("failed to create output file", err)
	}
	path := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(path)

	if _, err := c.run(ctx, outputArgs(path), text); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, tts.SynthesisFailure(fmt.Sprintf("failed to read %s output", c.binary), err)
	}
	return data, nil
}

// audio checks that data is usable output.
func (c command) audio(data []byte, enc tts.Encoding) (tts.Audio, error) {
	if len(data) == 0 {
		return tts.Audio{}, tts.SynthesisFailure(fmt.Sprintf("%s produced no audio output", c.binary), nil).
			WithContext("provider", c.id.String())
	}
	return tts.NewAudio(data, enc), nil
}
