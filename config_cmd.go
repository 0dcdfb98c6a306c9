package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/tts-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the tts-cli config file",
	Long:    paragraph(fmt.Sprintf("\n%s the tts-cli config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("tts-cli config\ntts-cli config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	// The config file must stay editable even when it does not validate.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(*cobra.Command, []string) error {
		if configFile == "" {
			configFile = viper.GetViper().ConfigFileUsed()
		}
		if configFile == "" {
			configFile = config.DefaultFilePath(envSettings)
		}
		if err := config.EnsureFile(configFile); err != nil {
			return err
		}

		c, err := editor.Cmd("tts-cli", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}
