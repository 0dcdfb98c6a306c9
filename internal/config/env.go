package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds the process-level settings that are read from the environment
// only, before any config file is loaded.
type Env struct {
	Debug      bool   `env:"TTS_CLI_DEBUG"`
	LogFile    string `env:"TTS_CLI_LOG_FILE"`
	CacheDir   string `env:"TTS_CLI_CACHE_DIR"`
	ConfigHome string `env:"TTS_CLI_CONFIG_HOME"`
}

// ParseEnv reads Env from the process environment.
func ParseEnv() (Env, error) {
	e, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("could not parse environment: %w", err)
	}
	e.LogFile = expandPath(e.LogFile)
	e.CacheDir = expandPath(e.CacheDir)
	e.ConfigHome = expandPath(e.ConfigHome)
	return e, nil
}

// Apply lets environment settings override the loaded configuration.
func (e Env) Apply(cfg *Config) {
	if e.CacheDir != "" {
		cfg.Cache.Dir = e.CacheDir
	}
}
