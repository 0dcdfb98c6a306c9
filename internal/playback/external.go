package playback

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/dgnsrekt/tts-cli/internal/provider"
	"github.com/dgnsrekt/tts-cli/internal/tts"
)

// External plays audio by handing a temp file to a player program.
type External struct {
	name      string
	args      func(path string) []string
	encodings []tts.Encoding // nil means any
	runner    provider.CommandRunner
}

// externalPlayers is the selection order of player programs.
var externalPlayers = []*External{
	{
		name:      "afplay",
		args:      func(path string) []string { return []string{path} },
		encodings: []tts.Encoding{tts.EncodingMP3, tts.EncodingWAV, tts.EncodingAIFF},
	},
	{
		name:      "aplay",
		args:      func(path string) []string { return []string{"-q", path} },
		encodings: []tts.Encoding{tts.EncodingWAV},
	},
	{
		name:      "paplay",
		args:      func(path string) []string { return []string{path} },
		encodings: []tts.Encoding{tts.EncodingWAV, tts.EncodingAIFF, tts.EncodingOGG},
	},
	{
		name: "mpv",
		args: func(path string) []string {
			return []string{"--no-video", "--really-quiet", "--no-terminal", path}
		},
	},
	{
		name: "ffplay",
		args: func(path string) []string {
			return []string{"-nodisp", "-autoexit", "-loglevel", "quiet", path}
		},
	},
	{
		name:      "play",
		args:      func(path string) []string { return []string{"-q", path} },
		encodings: []tts.Encoding{tts.EncodingWAV, tts.EncodingAIFF, tts.EncodingOGG},
	},
}

// Name implements Player.
func (e *External) Name() string { return e.name }

// Supports implements Player.
func (e *External) Supports(enc tts.Encoding) bool {
	if e.encodings == nil {
		return true
	}
	for _, s := range e.encodings {
		if s == enc {
			return true
		}
	}
	return false
}

// Available implements Player.
func (e *External) Available() bool {
	_, err := e.runner.LookPath(e.name)
	return err == nil
}

// Play implements Player.
func (e *External) Play(ctx context.Context, audio tts.Audio) error {
	path, err := SaveTemp(audio)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(path) }()

	_, stderr, err := e.runner.Run(ctx, e.name, e.args(path), nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if msg := bytes.TrimSpace(stderr); len(msg) > 0 {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
