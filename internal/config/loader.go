package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/dgnsrekt/tts-cli/internal/tts"
)

// Load reads the configuration from v on top of DefaultConfig. Keys that are
// not set keep their defaults.
func Load(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()

	if v.IsSet("default_provider") {
		cfg.DefaultProvider = v.GetString("default_provider")
	}
	if v.IsSet("default_language") {
		cfg.DefaultLanguage = v.GetString("default_language")
	}
	if v.IsSet("default_voice") {
		cfg.DefaultVoice = v.GetString("default_voice")
	}

	// Cache settings
	if v.IsSet("cache.enabled") {
		cfg.Cache.Enabled = v.GetBool("cache.enabled")
	}
	if v.IsSet("cache.dir") {
		cfg.Cache.Dir = v.GetString("cache.dir")
	}
	if v.IsSet("cache.compression_level") {
		cfg.Cache.CompressionLevel = v.GetInt("cache.compression_level")
	}

	// Playback settings
	if v.IsSet("playback.player") {
		cfg.Playback.Player = v.GetString("playback.player")
	}
	if v.IsSet("playback.timeout") {
		cfg.Playback.Timeout = v.GetDuration("playback.timeout")
	}

	for _, id := range tts.ProviderIDs {
		p, err := loadProvider(v, "providers."+id.String(), cfg.Providers[id])
		if err != nil {
			return cfg, fmt.Errorf("providers.%s: %w", id, err)
		}
		cfg.Providers[id] = p
	}

	if err := unknownProviders(v); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadProvider(v *viper.Viper, prefix string, p ProviderConfig) (ProviderConfig, error) {
	if v.IsSet(prefix + ".enabled") {
		p.Enabled = v.GetBool(prefix + ".enabled")
	}
	if v.IsSet(prefix + ".binary") {
		p.Binary = v.GetString(prefix + ".binary")
	}
	if v.IsSet(prefix + ".version_args") {
		p.VersionArgs = v.GetStringSlice(prefix + ".version_args")
	}
	if v.IsSet(prefix + ".endpoint") {
		p.Endpoint = v.GetString(prefix + ".endpoint")
	}
	if v.IsSet(prefix + ".credentials_file") {
		p.CredentialsFile = v.GetString(prefix + ".credentials_file")
	}
	if v.IsSet(prefix + ".timeout") {
		p.Timeout = v.GetDuration(prefix + ".timeout")
	}
	if v.IsSet(prefix + ".requests_per_minute") {
		p.RequestsPerMinute = v.GetInt(prefix + ".requests_per_minute")
	}
	if v.IsSet(prefix + ".options") {
		p.Options = v.GetStringMapString(prefix + ".options")
	}

	if v.IsSet(prefix + ".voice_mapping") {
		// Viper lowercases map keys, so language tags are canonicalized
		// again here.
		raw := v.GetStringMapString(prefix + ".voice_mapping")
		p.VoiceMapping = make(map[string]string, len(raw))
		for lang, voice := range raw {
			tag, err := tts.NormalizeLanguage(lang)
			if err != nil {
				return p, fmt.Errorf("voice_mapping: %w", err)
			}
			p.VoiceMapping[tag] = voice
		}
	}
	return p, nil
}

// unknownProviders rejects provider sections that name no known provider, so
// that a typo does not silently configure nothing.
func unknownProviders(v *viper.Viper) error {
	for name := range v.GetStringMap("providers") {
		id := tts.ProviderID(strings.ToLower(name))
		if !id.Valid() {
			return fmt.Errorf("unknown provider %q in providers section", name)
		}
	}
	return nil
}
