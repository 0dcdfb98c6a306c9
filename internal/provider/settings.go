package provider

import (
	"time"

	"github.com/dgnsrekt/tts-cli/internal/tts"
)

// Settings configures one provider. Zero values select defaults.
type Settings struct {
	// Binary overrides the executable name of a local provider.
	Binary string

	// VersionArgs, when set, are run against the binary during the
	// availability check; a non-zero exit marks the provider unavailable.
	VersionArgs []string

	// Timeout bounds a single synthesis call.
	Timeout time.Duration

	// Endpoint overrides the remote API endpoint (host:port).
	Endpoint string

	// CredentialsFile is a service account or ADC JSON file.
	CredentialsFile string

	// RequestsPerMinute paces remote calls. Zero means unlimited.
	RequestsPerMinute int

	// VoiceMapping maps a language tag to the default voice for it.
	VoiceMapping map[string]string
}

// NewDefaultRegistry builds the registry of every supported provider.
// settings may omit providers; runner may be nil to use ExecRunner.
func NewDefaultRegistry(settings map[tts.ProviderID]Settings, runner CommandRunner) *Registry {
	return NewRegistry(
		NewGoogleCloud(settings[tts.ProviderGoogleCloud], runner),
		NewESpeak(settings[tts.ProviderESpeak], runner),
		NewFestival(settings[tts.ProviderFestival], runner),
		NewMacSay(settings[tts.ProviderMacSay], runner),
	)
}
