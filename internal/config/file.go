package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	gap "github.com/muesli/go-app-paths"
)

// DefaultFile is written when no config file exists yet.
const DefaultFile = `# Provider used when --provider is not given: gcloud, espeak, festival or say
default_provider: "gcloud"
# BCP 47 language tag
default_language: "en-US"
# Voice used when --voice is not given; empty lets the provider choose
default_voice: ""

cache:
  enabled: true
  # Defaults to the user cache directory
  # dir: "~/.cache/tts-cli/audio"
  # zstd level for entries above 1 KiB; 0 disables compression
  compression_level: 3

playback:
  # Force a player: afplay, aplay, paplay, mpv, ffplay or play
  # player: "mpv"
  timeout: "5m"

providers:
  gcloud:
    enabled: true
    # credentials_file: "~/.config/gcloud/service-account.json"
    # endpoint: "texttospeech.googleapis.com:443"
    timeout: "20s"
    requests_per_minute: 300
    voice_mapping:
      en-US: "en-US-Wavenet-D"
      en-GB: "en-GB-Wavenet-B"
    options:
      encoding: "mp3"

  espeak:
    enabled: true
    binary: "espeak"
    timeout: "30s"
    # Run during the availability check; a failing binary is skipped
    # version_args: ["--version"]
    # options:
    #   speed: "175"
    #   pitch: "50"

  festival:
    enabled: true
    binary: "text2wave"
    timeout: "30s"

  say:
    enabled: true
    binary: "say"
    timeout: "30s"
`

// SearchDirs returns the directories searched for the config file, most
// specific first.
func SearchDirs(e Env) []string {
	scope := gap.NewScope(gap.User, AppName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		dirs = nil
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, AppName)}, dirs...)
	}
	if e.ConfigHome != "" {
		dirs = append([]string{e.ConfigHome}, dirs...)
	}
	return dirs
}

// DefaultFilePath returns where a new config file is created.
func DefaultFilePath(e Env) string {
	dirs := SearchDirs(e)
	if len(dirs) == 0 {
		return filepath.Join(os.TempDir(), AppName, AppName+".yml")
	}
	return filepath.Join(dirs[0], AppName+".yml")
}

// EnsureFile writes DefaultFile to file unless it already exists.
func EnsureFile(file string) error {
	if ext := path.Ext(file); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(file)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(DefaultFile); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
