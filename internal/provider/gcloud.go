package provider

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/charmbracelet/log"
	"github.com/googleapis/gax-go/v2"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dgnsrekt/tts-cli/internal/tts"
)

const defaultRemoteTimeout = 20 * time.Second

// DefaultVoices is the default voice per language for Google Cloud.
var DefaultVoices = map[string]string{
	"en-US": "en-US-Wavenet-D",
	"es-ES": "es-ES-Wavenet-C",
	"fr-FR": "fr-FR-Wavenet-D",
	"de-DE": "de-DE-Wavenet-D",
}

var audioEncodings = map[string]struct {
	pb  texttospeechpb.AudioEncoding
	enc tts.Encoding
}{
	"mp3":      {texttospeechpb.AudioEncoding_MP3, tts.EncodingMP3},
	"linear16": {texttospeechpb.AudioEncoding_LINEAR16, tts.EncodingWAV},
	"wav":      {texttospeechpb.AudioEncoding_LINEAR16, tts.EncodingWAV},
	"ogg_opus": {texttospeechpb.AudioEncoding_OGG_OPUS, tts.EncodingOGG},
	"ogg":      {texttospeechpb.AudioEncoding_OGG_OPUS, tts.EncodingOGG},
}

var voiceGenders = map[string]texttospeechpb.SsmlVoiceGender{
	"male":    texttospeechpb.SsmlVoiceGender_MALE,
	"female":  texttospeechpb.SsmlVoiceGender_FEMALE,
	"neutral": texttospeechpb.SsmlVoiceGender_NEUTRAL,
}

// speechClient is the subset of the Text-to-Speech client in use.
type speechClient interface {
	SynthesizeSpeech(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest, opts ...gax.CallOption) (*texttospeechpb.SynthesizeSpeechResponse, error)
	Close() error
}

// GoogleCloud synthesizes through the Google Cloud Text-to-Speech API.
// The API client is created on first use and shared by later calls.
type GoogleCloud struct {
	settings Settings
	limiter  *rate.Limiter
	timeout  time.Duration

	mu     sync.Mutex
	client speechClient

	// Test hooks
	newClient func(ctx context.Context, opts ...option.ClientOption) (speechClient, error)
	auth      authenticator
}

// NewGoogleCloud creates a Google Cloud provider. runner is used for the
// gcloud CLI token fallback.
func NewGoogleCloud(s Settings, runner CommandRunner) *GoogleCloud {
	if runner == nil {
		runner = ExecRunner{}
	}

	g := &GoogleCloud{
		settings: s,
		timeout:  s.Timeout,
		newClient: func(ctx context.Context, opts ...option.ClientOption) (speechClient, error) {
			return texttospeech.NewClient(ctx, opts...)
		},
	}
	if g.timeout <= 0 {
		g.timeout = defaultRemoteTimeout
	}
	if s.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.RequestsPerMinute)), 1)
	}
	g.auth = newAuthenticator(s.CredentialsFile, runner)
	return g
}

// ID implements Provider.
func (g *GoogleCloud) ID() tts.ProviderID { return tts.ProviderGoogleCloud }

// Name implements Provider.
func (g *GoogleCloud) Name() string { return "Google Cloud" }

// Remote implements Remote.
func (g *GoogleCloud) Remote() bool { return true }

// IsAvailable implements Provider. It reports whether some credential source
// is present without contacting Google.
func (g *GoogleCloud) IsAvailable(ctx context.Context) bool {
	return g.auth.present()
}

// Synthesize implements Provider.
func (g *GoogleCloud) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	pbReq, enc, err := g.buildRequest(req)
	if err != nil {
		return tts.Audio{}, err
	}

	client, err := g.getClient(ctx)
	if err != nil {
		return tts.Audio{}, err
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return tts.Audio{}, tts.NetworkFailure("rate limit wait cancelled", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	started := time.Now()
	// Retries are the caller's decision
	resp, err := client.SynthesizeSpeech(ctx, pbReq, gax.WithRetry(func() gax.Retryer { return nil }))
	if err != nil {
		return tts.Audio{}, classifyRPCError(err)
	}

	audio := resp.GetAudioContent()
	if len(audio) == 0 {
		return tts.Audio{}, tts.SynthesisFailure("Google Cloud returned no audio content", nil)
	}

	log.Debug("Google TTS synthesize completed", "voice", pbReq.GetVoice().GetName(), "took", time.Since(started), "bytes", len(audio))
	return tts.NewAudio(audio, enc), nil
}

// Close releases the API client.
func (g *GoogleCloud) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	return err
}

// VoiceFor returns the default voice for a language, or "" to let the API
// choose one.
func (g *GoogleCloud) VoiceFor(language string) string {
	if v, ok := g.settings.VoiceMapping[language]; ok {
		return v
	}
	return DefaultVoices[language]
}

func (g *GoogleCloud) getClient(ctx context.Context) (speechClient, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	opts, err := g.auth.clientOptions(ctx)
	if err != nil {
		return nil, err
	}
	if g.settings.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.settings.Endpoint))
	}

	// The client outlives this call
	client, err := g.newClient(context.WithoutCancel(ctx), opts...)
	if err != nil {
		return nil, tts.AuthenticationFailure("failed to create Text-to-Speech client", err)
	}
	g.client = client
	return client, nil
}

func (g *GoogleCloud) buildRequest(req tts.Request) (*texttospeechpb.SynthesizeSpeechRequest, tts.Encoding, error) {
	input := &texttospeechpb.SynthesisInput{
		InputSource: &texttospeechpb.SynthesisInput_Text{Text: req.Text()},
	}
	if it, ok := req.Option("input_type"); ok {
		switch strings.ToLower(it) {
		case "ssml":
			input.InputSource = &texttospeechpb.SynthesisInput_Ssml{Ssml: req.Text()}
		case "text":
		default:
			return nil, "", tts.InvalidRequest(fmt.Sprintf("input_type must be text or ssml, got %q", it), nil)
		}
	}

	voice := &texttospeechpb.VoiceSelectionParams{
		LanguageCode: req.Language(),
		Name:         req.Voice(),
	}
	if voice.Name == "" {
		voice.Name = g.VoiceFor(req.Language())
	}
	if gender, ok := req.Option("gender"); ok {
		sg, known := voiceGenders[strings.ToLower(gender)]
		if !known {
			return nil, "", tts.InvalidRequest(fmt.Sprintf("gender must be male, female or neutral, got %q", gender), nil)
		}
		voice.SsmlGender = sg
	}

	audio := &texttospeechpb.AudioConfig{AudioEncoding: texttospeechpb.AudioEncoding_MP3}
	enc := tts.EncodingMP3
	if e, ok := req.Option("encoding"); ok {
		ae, known := audioEncodings[strings.ToLower(e)]
		if !known {
			return nil, "", tts.InvalidRequest(fmt.Sprintf("unsupported encoding %q", e), nil)
		}
		audio.AudioEncoding, enc = ae.pb, ae.enc
	}

	floats := []struct {
		key      string
		min, max float64
		dst      *float64
	}{
		{"speaking_rate", 0.25, 4.0, &audio.SpeakingRate},
		{"pitch", -20, 20, &audio.Pitch},
		{"volume_gain_db", -96, 16, &audio.VolumeGainDb},
	}
	for _, f := range floats {
		v, ok := req.Option(f.key)
		if !ok {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n < f.min || n > f.max {
			return nil, "", tts.InvalidRequest(fmt.Sprintf("%s must be a number in [%g, %g], got %q", f.key, f.min, f.max, v), err)
		}
		*f.dst = n
	}

	if v, ok := req.Option("sample_rate"); ok {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return nil, "", tts.InvalidRequest(fmt.Sprintf("sample_rate must be a positive integer, got %q", v), err)
		}
		audio.SampleRateHertz = int32(n)
	}
	if v, ok := req.Option("effects_profile"); ok {
		audio.EffectsProfileId = []string{v}
	}

	return &texttospeechpb.SynthesizeSpeechRequest{
		Input:       input,
		Voice:       voice,
		AudioConfig: audio,
	}, enc, nil
}

// classifyRPCError maps a Text-to-Speech call error to a provider error kind.
func classifyRPCError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return tts.NetworkFailure("Google Cloud request did not complete", err)
	}

	st, ok := status.FromError(err)
	if !ok {
		// Not a gRPC status: transport-level failure
		return tts.NetworkFailure("Google Cloud request failed", err)
	}

	e := func() *tts.TTSError {
		switch st.Code() {
		case codes.Unauthenticated, codes.PermissionDenied:
			return tts.AuthenticationFailure("Google Cloud rejected the credentials", err)
		case codes.ResourceExhausted:
			return tts.QuotaFailure("Google Cloud quota exceeded", err)
		case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted, codes.Canceled:
			return tts.NetworkFailure("Google Cloud unreachable", err)
		case codes.InvalidArgument:
			return tts.InvalidRequest("Google Cloud rejected the request: "+st.Message(), err)
		default:
			return tts.SynthesisFailure("Google Cloud synthesis failed", err)
		}
	}()
	return e.WithContext("grpc_code", st.Code().String())
}
