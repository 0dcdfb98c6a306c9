package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/tts-cli/internal/provider"
	"github.com/dgnsrekt/tts-cli/internal/tts"
)

var providersCmd = &cobra.Command{
	Use:     "providers",
	Aliases: []string{"list-providers"},
	Short:   "List the providers and whether they can be used",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		def, _ := tts.ParseProviderID(cfg.DefaultProvider)
		printProviders(cmd.OutOrStdout(), a.synth.Providers(), def)
		return nil
	},
}

func printProviders(w io.Writer, ds provider.Descriptors, def tts.ProviderID) {
	fmt.Fprintln(w, bold("Available TTS providers:"))
	for _, d := range ds {
		mark, note := okMark, ""
		switch {
		case !d.Enabled:
			mark, note = offMark, " (disabled)"
		case !d.Available && d.Remote:
			mark, note = failMark, " (no credentials)"
		case !d.Available:
			mark, note = failMark, " (not available)"
		}
		if d.ID == def {
			note += " (default)"
		}
		fmt.Fprintf(w, "  %s %-9s %s%s\n", mark, d.ID, d.Description, faint(note))
	}
}
