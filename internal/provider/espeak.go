package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgnsrekt/tts-cli/internal/tts"
)

// espeakVoices maps language tags to eSpeak voice names where they differ
// from the plain base language.
var espeakVoices = map[string]string{
	"en-US":  "en-us",
	"en-GB":  "en-gb",
	"pt-BR":  "pt-br",
	"es-419": "es-la",
	"zh-CN":  "zh",
	"zh-TW":  "zh-yue",
}

// espeakFlags are the numeric options eSpeak accepts.
var espeakFlags = []struct {
	option   string
	flag     string
	min, max int
}{
	{"speed", "-s", 80, 500},
	{"pitch", "-p", 0, 99},
	{"amplitude", "-a", 0, 200},
	{"word_gap", "-g", 0, 100},
}

// ESpeak synthesizes with the espeak (or espeak-ng) command. Output is WAV
// on stdout.
type ESpeak struct {
	cmd command
}

// NewESpeak creates an eSpeak provider.
func NewESpeak(s Settings, runner CommandRunner) *ESpeak {
	return &ESpeak{cmd: newCommand(tts.ProviderESpeak, "espeak", s, runner)}
}

// ID implements Provider.
func (e *ESpeak) ID() tts.ProviderID { return tts.ProviderESpeak }

// Name implements Provider.
func (e *ESpeak) Name() string { return "eSpeak" }

// IsAvailable implements Provider.
func (e *ESpeak) IsAvailable(ctx context.Context) bool {
	return e.cmd.available(ctx)
}

// Synthesize implements Provider.
func (e *ESpeak) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	args, err := e.args(req)
	if err != nil {
		return tts.Audio{}, err
	}

	out, err := e.cmd.run(ctx, args, req.Text())
	if err != nil {
		return tts.Audio{}, err
	}
	return e.cmd.audio(out, tts.EncodingWAV)
}

func (e *ESpeak) args(req tts.Request) ([]string, error) {
	voice := req.Voice()
	if voice == "" {
		voice = ESpeakVoice(req.Language())
	}

	args := []string{"-v", voice, "--stdout"}
	for _, f := range espeakFlags {
		v, ok := req.Option(f.option)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < f.min || n > f.max {
			return nil, tts.InvalidRequest(
				fmt.Sprintf("espeak option %s must be an integer in [%d, %d], got %q", f.option, f.min, f.max, v), err)
		}
		args = append(args, f.flag, strconv.Itoa(n))
	}
	return append(args, "--stdin"), nil
}

// ESpeakVoice returns the eSpeak voice for a language tag. Unknown regional
// variants fall back to the base language.
func ESpeakVoice(language string) string {
	if v, ok := espeakVoices[language]; ok {
		return v
	}
	return strings.ToLower(tts.BaseLanguage(language))
}
