package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/tts-cli/internal/provider"
	"github.com/dgnsrekt/tts-cli/internal/tts"
)

// ErrNoPlayer is returned when no player can handle the audio.
var ErrNoPlayer = errors.New("no audio player available")

// Player plays one piece of audio to completion.
type Player interface {
	Name() string

	// Supports reports whether the player understands enc.
	Supports(enc tts.Encoding) bool

	// Available reports whether the player can run on this host.
	Available() bool

	// Play blocks until playback ends or ctx is done.
	Play(ctx context.Context, audio tts.Audio) error
}

// Config configures a Playback.
type Config struct {
	// Player forces a player by name. Empty picks the first usable one.
	Player string

	// Timeout bounds a single playback. Zero means no limit.
	Timeout time.Duration

	// Runner runs external players. Nil uses provider.ExecRunner.
	Runner provider.CommandRunner
}

// Playback routes audio to the first usable player.
type Playback struct {
	players []Player
	forced  string
	timeout time.Duration
}

// New creates a Playback over the external players followed by the built-in
// one.
func New(cfg Config) *Playback {
	runner := cfg.Runner
	if runner == nil {
		runner = provider.ExecRunner{GracePeriod: 500 * time.Millisecond}
	}

	players := make([]Player, 0, len(externalPlayers)+1)
	for _, ep := range externalPlayers {
		pl := *ep
		pl.runner = runner
		players = append(players, &pl)
	}
	players = append(players, &Native{})

	return &Playback{
		players: players,
		forced:  cfg.Player,
		timeout: cfg.Timeout,
	}
}

// Players returns the players in selection order.
func (p *Playback) Players() []Player {
	return append([]Player(nil), p.players...)
}

// Select returns the player that would play audio of encoding enc.
func (p *Playback) Select(enc tts.Encoding) (Player, error) {
	if p.forced != "" {
		for _, pl := range p.players {
			if pl.Name() != p.forced {
				continue
			}
			switch {
			case !pl.Available():
				return nil, fmt.Errorf("%w: %s is not installed", ErrNoPlayer, p.forced)
			case !pl.Supports(enc):
				return nil, fmt.Errorf("%w: %s cannot play %s audio", ErrNoPlayer, p.forced, enc)
			}
			return pl, nil
		}
		return nil, fmt.Errorf("%w: unknown player %q", ErrNoPlayer, p.forced)
	}

	for _, pl := range p.players {
		if pl.Supports(enc) && pl.Available() {
			return pl, nil
		}
	}
	return nil, fmt.Errorf("%w for %s audio", ErrNoPlayer, enc)
}

// Play plays audio through the selected player.
func (p *Playback) Play(ctx context.Context, audio tts.Audio) error {
	if audio.Len() == 0 {
		return errors.New("audio data is empty")
	}

	pl, err := p.Select(audio.Encoding)
	if err != nil {
		return err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	log.Debug("Playing audio", "player", pl.Name(), "encoding", audio.Encoding, "bytes", audio.Len())
	if err := pl.Play(ctx, audio); err != nil {
		return fmt.Errorf("%s: %w", pl.Name(), err)
	}
	return nil
}

// SaveTemp writes audio to a new temp file named after its encoding and
// returns the path. The file is kept.
func SaveTemp(audio tts.Audio) (string, error) {
	f, err := os.CreateTemp("", "tts-cli-*"+audio.Encoding.Ext())
	if err != nil {
		return "", fmt.Errorf("unable to create temp file: %w", err)
	}
	if _, err := f.Write(audio.Data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("unable to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("unable to write temp file: %w", err)
	}
	return f.Name(), nil
}

// WriteFile writes audio to path. Readers of path see either the previous
// content or the complete new audio.
func WriteFile(path string, audio tts.Audio) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("unable to write %s: %w", path, err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(audio.Data); err != nil {
		_ = f.Close()
		return fmt.Errorf("unable to write %s: %w", path, err)
	}
	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		return fmt.Errorf("unable to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("unable to write %s: %w", path, err)
	}
	return nil
}

// HasExt reports whether path already ends in the extension of enc.
func HasExt(path string, enc tts.Encoding) bool {
	return strings.EqualFold(filepath.Ext(path), enc.Ext())
}
