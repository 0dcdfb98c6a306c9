package provider

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dgnsrekt/tts-cli/internal/tts"
)

// MacSay synthesizes with the macOS say command. Output is AIFF.
type MacSay struct {
	cmd command
}

// NewMacSay creates a say provider.
func NewMacSay(s Settings, runner CommandRunner) *MacSay {
	return &MacSay{cmd: newCommand(tts.ProviderMacSay, "say", s, runner)}
}

// ID implements Provider.
func (m *MacSay) ID() tts.ProviderID { return tts.ProviderMacSay }

// Name implements Provider.
func (m *MacSay) Name() string { return "macOS say" }

// IsAvailable implements Provider.
func (m *MacSay) IsAvailable(ctx context.Context) bool {
	return m.cmd.available(ctx)
}

// Synthesize implements Provider. The "rate" option is words per minute.
func (m *MacSay) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	var extra []string
	if v := req.Voice(); v != "" {
		extra = append(extra, "-v", v)
	}
	if r, ok := req.Option("rate"); ok {
		n, err := strconv.Atoi(r)
		if err != nil || n <= 0 {
			return tts.Audio{}, tts.InvalidRequest(fmt.Sprintf("say option rate must be a positive integer, got %q", r), err)
		}
		extra = append(extra, "-r", strconv.Itoa(n))
	}

	out, err := m.cmd.runToFile(ctx, ".aiff", req.Text(), func(path string) []string {
		// "-f -" reads the message from stdin
		return append([]string{"-o", path, "-f", "-"}, extra...)
	})
	if err != nil {
		return tts.Audio{}, err
	}
	return m.cmd.audio(out, tts.EncodingAIFF)
}
