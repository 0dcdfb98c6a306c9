package tts

import (
	"sort"
	"strings"
)

// Request is a normalized, immutable synthesis request. Build one with
// NewRequest; the zero value is not a valid request.
//
// Normalization happens once, here, so that cache keys derived from two
// requests agree exactly when the requests are interchangeable:
//   - the provider is a canonical ProviderID
//   - the language is a canonical BCP 47 tag ("en-us" becomes "en-US")
//   - voice, option keys and option values are trimmed; option keys are lowercased
//   - text is kept byte-for-byte, since whitespace and case can change prosody
type Request struct {
	text     string
	provider ProviderID
	language string
	voice    string
	options  map[string]string
}

// NewRequest validates and normalizes the given fields. An empty voice means
// "provider default". Validation failures are InvalidRequest errors.
func NewRequest(text string, provider ProviderID, language, voice string, options map[string]string) (Request, error) {
	if err := validateText(text); err != nil {
		return Request{}, err
	}
	if !provider.Valid() {
		return Request{}, InvalidRequest("unknown provider "+string(provider), nil)
	}

	lang, err := NormalizeLanguage(language)
	if err != nil {
		return Request{}, err
	}

	voice = strings.TrimSpace(voice)
	if err := validateVoice(voice); err != nil {
		return Request{}, err
	}

	opts, err := normalizeOptions(options)
	if err != nil {
		return Request{}, err
	}

	return Request{
		text:     text,
		provider: provider,
		language: lang,
		voice:    voice,
		options:  opts,
	}, nil
}

// Text returns the text to synthesize.
func (r Request) Text() string { return r.text }

// Provider returns the provider the request is routed to.
func (r Request) Provider() ProviderID { return r.provider }

// Language returns the canonical language tag.
func (r Request) Language() string { return r.language }

// Voice returns the requested voice, or "" for the provider default.
func (r Request) Voice() string { return r.voice }

// HasVoice reports whether a voice was explicitly requested.
func (r Request) HasVoice() bool { return r.voice != "" }

// Option returns a single provider option.
func (r Request) Option(key string) (string, bool) {
	v, ok := r.options[strings.ToLower(key)]
	return v, ok
}

// Options returns a copy of the provider options.
func (r Request) Options() map[string]string {
	out := make(map[string]string, len(r.options))
	for k, v := range r.options {
		out[k] = v
	}
	return out
}

// OptionKeys returns the option keys in sorted order.
func (r Request) OptionKeys() []string {
	keys := make([]string, 0, len(r.options))
	for k := range r.options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WithProvider returns a copy of the request routed to another provider.
// The options map is shared, which is safe because it is never mutated.
func (r Request) WithProvider(p ProviderID) (Request, error) {
	if !p.Valid() {
		return Request{}, InvalidRequest("unknown provider "+string(p), nil)
	}
	r.provider = p
	return r, nil
}

// IsZero reports whether r was not built by NewRequest.
func (r Request) IsZero() bool {
	return r.provider == ""
}
