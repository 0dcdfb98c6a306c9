// Package main provides the entry point for the tts-cli application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/tts-cli/internal/config"
	"github.com/dgnsrekt/tts-cli/internal/tts"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile  string
	debug       bool
	envSettings config.Env
	cfg         = config.DefaultConfig()

	rootCmd = &cobra.Command{
		Use:   "tts-cli [TEXT...]",
		Short: "Speak text through Google Cloud, eSpeak, Festival or say",
		Long: paragraph(
			fmt.Sprintf("\nTurn text into speech with %s. Synthesized audio is cached, so repeating a request never calls the backend twice.", keyword("interchangeable providers")),
		),
		Example: paragraph(`tts-cli "Hello, world"
tts-cli -p espeak -l de-DE "Guten Tag"
echo "from a pipe" | tts-cli -o hello.mp3
tts-cli providers`),
		SilenceErrors:    true,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: runSpeak,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if debug {
		log.SetLevel(log.DebugLevel)
	}

	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
		log.Debug("Using configuration file", "path", configFile)
	}

	c, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	envSettings.Apply(&c)
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = c
	return nil
}

// exitCodes maps error kinds to process exit codes.
var exitCodes = map[tts.ErrorCode]int{
	tts.ErrorCodeInvalidRequest:     2,
	tts.ErrorCodeBackendUnavailable: 3,
	tts.ErrorCodeAuthentication:     4,
	tts.ErrorCodeQuota:              5,
	tts.ErrorCodeNetwork:            6,
	tts.ErrorCodeSynthesis:          7,
	tts.ErrorCodeIO:                 8,
}

func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		return 130
	}
	if code, ok := exitCodes[tts.CodeOf(err)]; ok {
		return code
	}
	return 1
}

func formatError(err error) string {
	var te *tts.TTSError
	if errors.As(err, &te) {
		return fmt.Sprintf("%s %s", failMark, err.Error())
	}
	return fmt.Sprintf("%s Error: %s", failMark, err.Error())
}

func main() {
	e, err := config.ParseEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	envSettings = e
	debug = e.Debug

	closer, err := setupLog(e)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	tryLoadConfigFromDefaultPlaces(e)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = rootCmd.ExecuteContext(ctx)
	stop()
	_ = closer()

	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(exitCode(err))
	}
}

func init() {
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $XDG_CONFIG_HOME/tts-cli/tts-cli.yml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log debug output to stderr")
	addSpeakFlags(rootCmd)
	addSpeakFlags(speakCmd)

	rootCmd.AddCommand(speakCmd, providersCmd, configCmd, manCmd)
	addCacheCommands(rootCmd)
}

func tryLoadConfigFromDefaultPlaces(e config.Env) {
	dirs := config.SearchDirs(e)
	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(config.AppName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("tts_cli")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}

	configFile = config.DefaultFilePath(e)
	if err := config.EnsureFile(configFile); err != nil {
		log.Error("Could not create default configuration", "error", err)
		return
	}
	log.Debug("Created default configuration file", "path", configFile)
}
