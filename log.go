package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/tts-cli/internal/config"
)

// setupLog sends log output to stderr, and to a rotated log file when
// TTS_CLI_LOG_FILE is set. Stdout is left for audio and command output.
func setupLog(e config.Env) (func() error, error) {
	log.SetPrefix(config.AppName)
	log.SetLevel(log.InfoLevel)
	if e.Debug {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	}

	if e.LogFile == "" {
		log.SetOutput(os.Stderr)
		return func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(e.LogFile), 0o755); err != nil { //nolint:gosec
		return nil, err
	}
	lj := &lumberjack.Logger{
		Filename:   e.LogFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	log.SetOutput(io.MultiWriter(os.Stderr, lj))
	return lj.Close, nil
}
