package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gap "github.com/muesli/go-app-paths"
	"github.com/mitchellh/go-homedir"

	"github.com/dgnsrekt/tts-cli/internal/provider"
	"github.com/dgnsrekt/tts-cli/internal/tts"
)

// AppName names the config file, the env prefix and the app dirs.
const AppName = "tts-cli"

// Config contains all tts-cli configuration options.
type Config struct {
	// Request defaults
	DefaultProvider string `yaml:"default_provider"`
	DefaultLanguage string `yaml:"default_language"`
	DefaultVoice    string `yaml:"default_voice"`

	Cache    CacheConfig    `yaml:"cache"`
	Playback PlaybackConfig `yaml:"playback"`

	// Per-provider settings, keyed by canonical provider id.
	Providers map[tts.ProviderID]ProviderConfig `yaml:"providers"`
}

// CacheConfig configures the audio cache.
type CacheConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Dir              string `yaml:"dir"`
	CompressionLevel int    `yaml:"compression_level"`
}

// PlaybackConfig configures audio playback.
type PlaybackConfig struct {
	// Player forces a specific player binary. Empty picks the first
	// available one.
	Player  string        `yaml:"player"`
	Timeout time.Duration `yaml:"timeout"`
}

// ProviderConfig contains the settings of one provider.
type ProviderConfig struct {
	Enabled           bool              `yaml:"enabled"`
	Binary            string            `yaml:"binary"`
	VersionArgs       []string          `yaml:"version_args"`
	Endpoint          string            `yaml:"endpoint"`
	CredentialsFile   string            `yaml:"credentials_file"`
	Timeout           time.Duration     `yaml:"timeout"`
	RequestsPerMinute int               `yaml:"requests_per_minute"`
	VoiceMapping      map[string]string `yaml:"voice_mapping"`
	Options           map[string]string `yaml:"options"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	providers := make(map[tts.ProviderID]ProviderConfig, len(tts.ProviderIDs))
	for _, id := range tts.ProviderIDs {
		providers[id] = DefaultProviderConfig(id)
	}

	return Config{
		DefaultProvider: string(tts.ProviderGoogleCloud),
		DefaultLanguage: "en-US",
		Cache: CacheConfig{
			Enabled:          true,
			CompressionLevel: 3,
		},
		Playback: PlaybackConfig{
			Timeout: 5 * time.Minute,
		},
		Providers: providers,
	}
}

// DefaultProviderConfig returns the defaults for one provider.
func DefaultProviderConfig(id tts.ProviderID) ProviderConfig {
	cfg := ProviderConfig{Enabled: true}
	switch id {
	case tts.ProviderGoogleCloud:
		cfg.Timeout = 20 * time.Second
		cfg.RequestsPerMinute = 300
	case tts.ProviderESpeak:
		cfg.Binary = "espeak"
		cfg.Timeout = 30 * time.Second
	case tts.ProviderFestival:
		cfg.Binary = "text2wave"
		cfg.Timeout = 30 * time.Second
	case tts.ProviderMacSay:
		cfg.Binary = "say"
		cfg.Timeout = 30 * time.Second
	}
	return cfg
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if _, err := tts.ParseProviderID(c.DefaultProvider); err != nil {
		return fmt.Errorf("invalid default_provider: %w", err)
	}
	if _, err := tts.NormalizeLanguage(c.DefaultLanguage); err != nil {
		return fmt.Errorf("invalid default_language: %w", err)
	}
	if strings.ContainsAny(c.DefaultVoice, "\r\n\t") {
		return fmt.Errorf("invalid default_voice %q", c.DefaultVoice)
	}

	if c.Cache.CompressionLevel < 0 || c.Cache.CompressionLevel > 22 {
		return fmt.Errorf("cache.compression_level must be between 0 and 22, got %d", c.Cache.CompressionLevel)
	}
	if c.Playback.Timeout < 0 {
		return fmt.Errorf("playback.timeout must be positive, got %s", c.Playback.Timeout)
	}

	for id, p := range c.Providers {
		if !id.Valid() {
			return fmt.Errorf("unknown provider %q in providers section", id)
		}
		if err := p.validate(); err != nil {
			return fmt.Errorf("providers.%s: %w", id, err)
		}
	}
	return nil
}

func (p ProviderConfig) validate() error {
	if p.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got %s", p.Timeout)
	}
	if p.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative, got %d", p.RequestsPerMinute)
	}
	for lang := range p.VoiceMapping {
		if _, err := tts.NormalizeLanguage(lang); err != nil {
			return fmt.Errorf("voice_mapping: %w", err)
		}
	}
	return nil
}

// Enabled reports whether provider id is enabled. Providers missing from the
// configuration are enabled.
func (c Config) Enabled(id tts.ProviderID) bool {
	p, ok := c.Providers[id]
	return !ok || p.Enabled
}

// ProviderOptions returns the configured default options for id.
func (c Config) ProviderOptions(id tts.ProviderID) map[string]string {
	return c.Providers[id].Options
}

// ProviderSettings converts the providers section into provider settings.
func (c Config) ProviderSettings() map[tts.ProviderID]provider.Settings {
	settings := make(map[tts.ProviderID]provider.Settings, len(c.Providers))
	for id, p := range c.Providers {
		settings[id] = provider.Settings{
			Binary:            p.Binary,
			VersionArgs:       p.VersionArgs,
			Timeout:           p.Timeout,
			Endpoint:          p.Endpoint,
			CredentialsFile:   expandPath(p.CredentialsFile),
			RequestsPerMinute: p.RequestsPerMinute,
			VoiceMapping:      p.VoiceMapping,
		}
	}
	return settings
}

// CacheDir returns the cache root. An explicit dir wins, then the user cache
// dir, then the temp dir.
func (c Config) CacheDir() string {
	if c.Cache.Dir != "" {
		return expandPath(c.Cache.Dir)
	}
	return DefaultCacheDir()
}

// DefaultCacheDir returns the per-user audio cache dir.
func DefaultCacheDir() string {
	dir, err := gap.NewScope(gap.User, AppName).CacheDir()
	if err != nil || dir == "" {
		return filepath.Join(os.TempDir(), AppName, "audio")
	}
	return filepath.Join(dir, "audio")
}

func expandPath(path string) string {
	if path == "" {
		return ""
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}
