// Package config loads the tts-cli configuration file and environment.
//
// The file is YAML and read through viper; every key may be overridden by a
// TTS_CLI_ prefixed environment variable. Process-level settings such as the
// debug flag and the log file are read directly from the environment.
package config
