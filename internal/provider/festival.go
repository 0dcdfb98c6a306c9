package provider

import (
	"context"
	"fmt"
	"regexp"

	"github.com/dgnsrekt/tts-cli/internal/tts"
)

var festivalVoicePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Festival synthesizes with Festival's text2wave script, which reads text on
// stdin and writes a WAV file.
type Festival struct {
	cmd command
}

// NewFestival creates a Festival provider.
func NewFestival(s Settings, runner CommandRunner) *Festival {
	return &Festival{cmd: newCommand(tts.ProviderFestival, "text2wave", s, runner)}
}

// ID implements Provider.
func (f *Festival) ID() tts.ProviderID { return tts.ProviderFestival }

// Name implements Provider.
func (f *Festival) Name() string { return "Festival" }

// IsAvailable implements Provider.
func (f *Festival) IsAvailable(ctx context.Context) bool {
	return f.cmd.available(ctx)
}

// Synthesize implements Provider. A voice selects a Festival voice
// definition, e.g. "kal_diphone" runs (voice_kal_diphone).
func (f *Festival) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	var eval []string
	if v := req.Voice(); v != "" {
		// The voice ends up inside a Scheme expression
		if !festivalVoicePattern.MatchString(v) {
			return tts.Audio{}, tts.InvalidRequest(fmt.Sprintf("invalid festival voice %q", v), nil)
		}
		eval = []string{"-eval", fmt.Sprintf("(voice_%s)", v)}
	}

	out, err := f.cmd.runToFile(ctx, ".wav", req.Text(), func(path string) []string {
		return append([]string{"-o", path}, eval...)
	})
	if err != nil {
		return tts.Audio{}, err
	}
	return f.cmd.audio(out, tts.EncodingWAV)
}
