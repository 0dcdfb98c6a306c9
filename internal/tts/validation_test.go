package tts

import (
	"errors"
	"strings"
	"testing"
)

func TestNewRequest_Normalization(t *testing.T) {
	tests := []struct {
		name     string
		language string
		voice    string
		options  map[string]string
		wantLang string
		wantOpts map[string]string
	}{
		{
			name:     "lowercase region is canonicalized",
			language: "en-us",
			wantLang: "en-US",
		},
		{
			name:     "surrounding whitespace is trimmed",
			language: "  de-DE ",
			voice:    "  de-DE-Wavenet-D ",
			wantLang: "de-DE",
		},
		{
			name:     "option keys are lowercased and values trimmed",
			language: "fr-FR",
			options:  map[string]string{" Speaking_Rate ": " 1.25 "},
			wantLang: "fr-FR",
			wantOpts: map[string]string{"speaking_rate": "1.25"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewRequest("Hello", ProviderESpeak, tt.language, tt.voice, tt.options)
			if err != nil {
				t.Fatalf("NewRequest failed: %v", err)
			}
			if req.Language() != tt.wantLang {
				t.Errorf("Language() = %q, want %q", req.Language(), tt.wantLang)
			}
			if req.Voice() != strings.TrimSpace(tt.voice) {
				t.Errorf("Voice() = %q, want %q", req.Voice(), strings.TrimSpace(tt.voice))
			}
			for k, want := range tt.wantOpts {
				if got, ok := req.Option(k); !ok || got != want {
					t.Errorf("Option(%q) = %q, %v; want %q", k, got, ok, want)
				}
			}
		})
	}
}

func TestNewRequest_TextIsPreserved(t *testing.T) {
	text := "  Hello,\tworld!  "
	req, err := NewRequest(text, ProviderGoogleCloud, "en-US", "", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if req.Text() != text {
		t.Errorf("Text() = %q, want %q", req.Text(), text)
	}
}

func TestNewRequest_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		provider ProviderID
		language string
		voice    string
		options  map[string]string
	}{
		{"empty text", "", ProviderESpeak, "en-US", "", nil},
		{"whitespace text", "  \n ", ProviderESpeak, "en-US", "", nil},
		{"invalid utf8", "\xff\xfe", ProviderESpeak, "en-US", "", nil},
		{"too long", strings.Repeat("a", MaxTextBytes+1), ProviderESpeak, "en-US", "", nil},
		{"unknown provider", "hi", ProviderID("piper"), "en-US", "", nil},
		{"missing language", "hi", ProviderESpeak, "", "", nil},
		{"malformed language", "hi", ProviderESpeak, "not a language!", "", nil},
		{"control char in voice", "hi", ProviderESpeak, "en-US", "bad\x00voice", nil},
		{"empty option key", "hi", ProviderESpeak, "en-US", "", map[string]string{" ": "1"}},
		{"duplicate option after folding", "hi", ProviderESpeak, "en-US", "", map[string]string{"Rate": "1", "rate": "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRequest(tt.text, tt.provider, tt.language, tt.voice, tt.options)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("expected InvalidRequest, got %v", err)
			}
		})
	}
}

func TestRequest_OptionsAreCopied(t *testing.T) {
	opts := map[string]string{"pitch": "2"}
	req, err := NewRequest("hi", ProviderESpeak, "en", "", opts)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}

	opts["pitch"] = "9"
	if v, _ := req.Option("pitch"); v != "2" {
		t.Errorf("request changed through caller map: pitch = %q", v)
	}

	got := req.Options()
	got["pitch"] = "7"
	if v, _ := req.Option("pitch"); v != "2" {
		t.Errorf("request changed through Options() copy: pitch = %q", v)
	}
}

func TestRequest_WithProvider(t *testing.T) {
	req, err := NewRequest("hi", ProviderGoogleCloud, "en-US", "", nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}

	other, err := req.WithProvider(ProviderFestival)
	if err != nil {
		t.Fatalf("WithProvider failed: %v", err)
	}
	if other.Provider() != ProviderFestival || req.Provider() != ProviderGoogleCloud {
		t.Errorf("WithProvider mutated original or failed: %s / %s", req.Provider(), other.Provider())
	}

	if _, err := req.WithProvider("nope"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected InvalidRequest for unknown provider, got %v", err)
	}
}

func TestParseProviderID(t *testing.T) {
	tests := []struct {
		in   string
		want ProviderID
	}{
		{"gcloud", ProviderGoogleCloud},
		{"Google", ProviderGoogleCloud},
		{"ESPEAK", ProviderESpeak},
		{" festival ", ProviderFestival},
		{"say", ProviderMacSay},
		{"macsay", ProviderMacSay},
	}
	for _, tt := range tests {
		got, err := ParseProviderID(tt.in)
		if err != nil {
			t.Errorf("ParseProviderID(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseProviderID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseProviderID_Suggestion(t *testing.T) {
	_, err := ParseProviderID("festvl")
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected InvalidRequest, got %v", err)
	}
	if !strings.Contains(err.Error(), `did you mean "festival"`) {
		t.Errorf("expected suggestion in error, got %q", err.Error())
	}
}

func TestBaseLanguage(t *testing.T) {
	tests := map[string]string{
		"en-US": "en",
		"es-ES": "es",
		"fr":    "fr",
		"pt-BR": "pt",
	}
	for in, want := range tests {
		if got := BaseLanguage(in); got != want {
			t.Errorf("BaseLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
