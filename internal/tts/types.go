package tts

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"
)

// ProviderID identifies one of the supported synthesis backends.
type ProviderID string

const (
	// ProviderGoogleCloud is the Google Cloud Text-to-Speech API.
	ProviderGoogleCloud ProviderID = "gcloud"

	// ProviderESpeak is the local eSpeak engine.
	ProviderESpeak ProviderID = "espeak"

	// ProviderFestival is the local Festival engine.
	ProviderFestival ProviderID = "festival"

	// ProviderMacSay is the macOS built-in say command.
	ProviderMacSay ProviderID = "say"
)

// ProviderIDs lists every provider in listing order.
var ProviderIDs = []ProviderID{
	ProviderGoogleCloud,
	ProviderESpeak,
	ProviderFestival,
	ProviderMacSay,
}

var providerAliases = map[string]ProviderID{
	"gcloud":      ProviderGoogleCloud,
	"google":      ProviderGoogleCloud,
	"googlecloud": ProviderGoogleCloud,
	"espeak":      ProviderESpeak,
	"espeak-ng":   ProviderESpeak,
	"festival":    ProviderFestival,
	"say":         ProviderMacSay,
	"macsay":      ProviderMacSay,
}

// String returns the canonical provider id.
func (p ProviderID) String() string {
	return string(p)
}

// Valid reports whether p is one of the known providers.
func (p ProviderID) Valid() bool {
	for _, id := range ProviderIDs {
		if id == p {
			return true
		}
	}
	return false
}

// ParseProviderID resolves a user-supplied provider name, case-insensitively
// and including aliases. Unknown names produce an InvalidRequest error that
// suggests the closest known name.
func ParseProviderID(s string) (ProviderID, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if id, ok := providerAliases[name]; ok {
		return id, nil
	}

	names := make([]string, 0, len(ProviderIDs))
	for _, id := range ProviderIDs {
		names = append(names, string(id))
	}
	msg := fmt.Sprintf("unknown provider %q (supported: %s)", s, strings.Join(names, ", "))
	if matches := fuzzy.Find(name, names); name != "" && len(matches) > 0 {
		msg = fmt.Sprintf("unknown provider %q, did you mean %q?", s, matches[0].Str)
	}
	return "", InvalidRequest(msg, nil)
}

// Encoding is the container format of a piece of synthesized audio.
type Encoding string

const (
	EncodingMP3     Encoding = "mp3"
	EncodingWAV     Encoding = "wav"
	EncodingAIFF    Encoding = "aiff"
	EncodingOGG     Encoding = "ogg"
	EncodingUnknown Encoding = "unknown"
)

// Ext returns the conventional file extension, including the dot.
func (e Encoding) Ext() string {
	if e == EncodingUnknown || e == "" {
		return ".audio"
	}
	return "." + string(e)
}

// DetectEncoding sniffs the container format from the leading magic bytes.
func DetectEncoding(data []byte) Encoding {
	switch {
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return EncodingWAV
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("FORM")) &&
		(bytes.Equal(data[8:12], []byte("AIFF")) || bytes.Equal(data[8:12], []byte("AIFC"))):
		return EncodingAIFF
	case bytes.HasPrefix(data, []byte("OggS")):
		return EncodingOGG
	case bytes.HasPrefix(data, []byte("ID3")):
		return EncodingMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG audio frame sync
		return EncodingMP3
	default:
		return EncodingUnknown
	}
}

// Audio is synthesized audio tagged with its actual container encoding.
// Providers never transcode; consumers dispatch on Encoding.
type Audio struct {
	Data     []byte
	Encoding Encoding
}

// NewAudio tags data with enc, sniffing the encoding when enc is empty.
func NewAudio(data []byte, enc Encoding) Audio {
	if enc == "" {
		enc = DetectEncoding(data)
	}
	return Audio{Data: data, Encoding: enc}
}

// Len returns the audio size in bytes.
func (a Audio) Len() int {
	return len(a.Data)
}
