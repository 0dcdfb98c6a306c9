package provider

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/tts-cli/internal/tts"
)

var (
	wavBytes  = []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00")
	aiffBytes = []byte("FORM\x00\x00\x00\x2eAIFFCOMM")
)

func newRequest(t *testing.T, p tts.ProviderID, lang, voice string, opts map[string]string) tts.Request {
	t.Helper()
	req, err := tts.NewRequest("Hello there", p, lang, voice, opts)
	require.NoError(t, err)
	return req
}

func TestESpeak_Synthesize(t *testing.T) {
	runner := &mockRunner{}
	runner.installed("espeak")
	runner.On("Run", mock.Anything, "/usr/bin/espeak",
		[]string{"-v", "en-us", "--stdout", "-s", "150", "-p", "40", "--stdin"}, "Hello there").
		Return(wavBytes, []byte(nil), nil)

	p := NewESpeak(Settings{}, runner)
	audio, err := p.Synthesize(context.Background(),
		newRequest(t, tts.ProviderESpeak, "en-us", "", map[string]string{"speed": "150", "pitch": "40"}))

	require.NoError(t, err)
	assert.Equal(t, wavBytes, audio.Data)
	assert.Equal(t, tts.EncodingWAV, audio.Encoding)
	runner.AssertExpectations(t)
}

func TestESpeak_VoiceOverridesLanguage(t *testing.T) {
	runner := &mockRunner{}
	runner.installed("espeak-ng")
	runner.On("Run", mock.Anything, "/usr/bin/espeak-ng",
		[]string{"-v", "mb-en1", "--stdout", "--stdin"}, "Hello there").
		Return(wavBytes, []byte(nil), nil)

	p := NewESpeak(Settings{Binary: "espeak-ng"}, runner)
	_, err := p.Synthesize(context.Background(), newRequest(t, tts.ProviderESpeak, "de-DE", "mb-en1", nil))

	require.NoError(t, err)
	runner.AssertExpectations(t)
}

func TestESpeak_InvalidOption(t *testing.T) {
	runner := &mockRunner{}
	p := NewESpeak(Settings{}, runner)

	for _, opts := range []map[string]string{
		{"speed": "fast"},
		{"speed": "10"},
		{"pitch": "100"},
	} {
		_, err := p.Synthesize(context.Background(), newRequest(t, tts.ProviderESpeak, "en", "", opts))
		assert.ErrorIs(t, err, tts.ErrInvalidRequest, "options %v", opts)
	}
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestESpeakVoice(t *testing.T) {
	tests := map[string]string{
		"en-US":  "en-us",
		"en-GB":  "en-gb",
		"fr-FR":  "fr",
		"de":     "de",
		"es-419": "es-la",
		"ja-JP":  "ja",
	}
	for lang, want := range tests {
		assert.Equal(t, want, ESpeakVoice(lang), lang)
	}
}

func TestLocalProviders_MissingBinary(t *testing.T) {
	tests := []struct {
		name     string
		binary   string
		provider func(CommandRunner) Provider
	}{
		{"espeak", "espeak", func(r CommandRunner) Provider { return NewESpeak(Settings{}, r) }},
		{"festival", "text2wave", func(r CommandRunner) Provider { return NewFestival(Settings{}, r) }},
		{"say", "say", func(r CommandRunner) Provider { return NewMacSay(Settings{}, r) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{}
			runner.missing(tt.binary)
			p := tt.provider(runner)

			assert.False(t, p.IsAvailable(context.Background()))

			_, err := p.Synthesize(context.Background(), newRequest(t, p.ID(), "en-US", "", nil))
			require.Error(t, err)
			assert.ErrorIs(t, err, tts.ErrBackendUnavailable)
			assert.Equal(t, tts.ErrorCodeBackendUnavailable, tts.CodeOf(err))

			// The subprocess must never be started
			runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestLocalProviders_Available(t *testing.T) {
	runner := &mockRunner{}
	runner.installed("espeak")
	runner.installed("text2wave")
	runner.installed("say")

	assert.True(t, NewESpeak(Settings{}, runner).IsAvailable(context.Background()))
	assert.True(t, NewFestival(Settings{}, runner).IsAvailable(context.Background()))
	assert.True(t, NewMacSay(Settings{}, runner).IsAvailable(context.Background()))
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestLocalProviders_VersionCheck(t *testing.T) {
	runner := &mockRunner{}
	runner.installed("espeak")
	runner.installed("espeak-ng")
	runner.On("Run", mock.Anything, "/usr/bin/espeak", []string{"--version"}, "").
		Return([]byte("eSpeak text-to-speech: 1.48.15\n"), []byte(nil), nil)
	runner.On("Run", mock.Anything, "/usr/bin/espeak-ng", []string{"--version"}, "").
		Return([]byte(nil), []byte("error while loading shared libraries\n"), errors.New("exit status 127"))

	working := NewESpeak(Settings{VersionArgs: []string{"--version"}}, runner)
	assert.True(t, working.IsAvailable(context.Background()))

	broken := NewESpeak(Settings{Binary: "espeak-ng", VersionArgs: []string{"--version"}}, runner)
	assert.False(t, broken.IsAvailable(context.Background()))

	runner.AssertExpectations(t)
}

func TestCommand_Failures(t *testing.T) {
	tests := []struct {
		name    string
		stdout  []byte
		stderr  []byte
		err     error
		wantErr error
	}{
		{"non-zero exit", nil, []byte("unknown voice\n"), errors.New("exit status 1"), tts.ErrSynthesis},
		{"empty output", []byte{}, nil, nil, tts.ErrSynthesis},
		{"vanished binary", nil, nil, &exec.Error{Name: "espeak", Err: exec.ErrNotFound}, tts.ErrBackendUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{}
			runner.installed("espeak")
			runner.On("Run", mock.Anything, "/usr/bin/espeak", mock.Anything, "Hello there").
				Return(tt.stdout, tt.stderr, tt.err)

			_, err := NewESpeak(Settings{}, runner).Synthesize(context.Background(),
				newRequest(t, tts.ProviderESpeak, "en", "", nil))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCommand_StderrAttached(t *testing.T) {
	runner := &mockRunner{}
	runner.installed("espeak")
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]byte(nil), []byte("  voice not found \n"), errors.New("exit status 1"))

	_, err := NewESpeak(Settings{}, runner).Synthesize(context.Background(),
		newRequest(t, tts.ProviderESpeak, "en", "", nil))

	var ttsErr *tts.TTSError
	require.ErrorAs(t, err, &ttsErr)
	assert.Equal(t, "voice not found", ttsErr.Context["stderr"])
	assert.Equal(t, "espeak", ttsErr.Context["provider"])
}

func TestCommand_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &mockRunner{}
	runner.installed("espeak")
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]byte(nil), []byte(nil), errors.New("signal: interrupt"))

	_, err := NewESpeak(Settings{}, runner).Synthesize(ctx, newRequest(t, tts.ProviderESpeak, "en", "", nil))
	assert.ErrorIs(t, err, tts.ErrSynthesis)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFestival_Synthesize(t *testing.T) {
	var outPath string
	runner := &mockRunner{}
	runner.installed("text2wave")
	runner.On("Run", mock.Anything, "/usr/bin/text2wave",
		mock.MatchedBy(func(argv []string) bool {
			return len(argv) == 4 && argv[0] == "-o" && strings.HasSuffix(argv[1], ".wav") &&
				argv[2] == "-eval" && argv[3] == "(voice_kal_diphone)"
		}), "Hello there").
		Run(func(args mock.Arguments) {
			outPath = outputArg(args.Get(2).([]string))
			writeOutput(wavBytes)(args)
		}).
		Return([]byte(nil), []byte(nil), nil)

	p := NewFestival(Settings{}, runner)
	audio, err := p.Synthesize(context.Background(), newRequest(t, tts.ProviderFestival, "en-US", "kal_diphone", nil))

	require.NoError(t, err)
	assert.Equal(t, wavBytes, audio.Data)
	assert.Equal(t, tts.EncodingWAV, audio.Encoding)

	_, statErr := os.Stat(outPath)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "temp output file should be removed")
}

func TestFestival_RejectsUnsafeVoice(t *testing.T) {
	runner := &mockRunner{}
	p := NewFestival(Settings{}, runner)

	_, err := p.Synthesize(context.Background(), newRequest(t, tts.ProviderFestival, "en", "x) (system \"rm\"", nil))
	assert.ErrorIs(t, err, tts.ErrInvalidRequest)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFestival_EmptyOutputFile(t *testing.T) {
	runner := &mockRunner{}
	runner.installed("text2wave")
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]byte(nil), []byte(nil), nil)

	_, err := NewFestival(Settings{}, runner).Synthesize(context.Background(),
		newRequest(t, tts.ProviderFestival, "en", "", nil))
	assert.ErrorIs(t, err, tts.ErrSynthesis)
}

func TestMacSay_Synthesize(t *testing.T) {
	runner := &mockRunner{}
	runner.installed("say")
	runner.On("Run", mock.Anything, "/usr/bin/say",
		mock.MatchedBy(func(argv []string) bool {
			return len(argv) == 8 && strings.HasSuffix(argv[1], ".aiff") &&
				strings.Join(argv[2:], " ") == "-f - -v Alex -r 200"
		}), "Hello there").
		Run(writeOutput(aiffBytes)).
		Return([]byte(nil), []byte(nil), nil)

	audio, err := NewMacSay(Settings{}, runner).Synthesize(context.Background(),
		newRequest(t, tts.ProviderMacSay, "en-US", "Alex", map[string]string{"rate": "200"}))

	require.NoError(t, err)
	assert.Equal(t, aiffBytes, audio.Data)
	assert.Equal(t, tts.EncodingAIFF, audio.Encoding)
	runner.AssertExpectations(t)
}

func TestMacSay_InvalidRate(t *testing.T) {
	runner := &mockRunner{}
	_, err := NewMacSay(Settings{}, runner).Synthesize(context.Background(),
		newRequest(t, tts.ProviderMacSay, "en", "", map[string]string{"rate": "-3"}))
	assert.ErrorIs(t, err, tts.ErrInvalidRequest)
}
