package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/tts-cli/internal/cache"
)

var (
	pruneOlderThan time.Duration
	pruneMaxSize   string
	clearOpts      speakOptions
)

func addCacheCommands(root *cobra.Command) {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the audio cache",
		Args:  cobra.NoArgs,
	}

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old entries or shrink the cache",
		Long: paragraph(fmt.Sprintf("\n%s entries last used before --older-than, then evicts the least recently used entries until the cache fits in --max-size.", keyword("Removes"))),
		Example: paragraph(`tts-cli cache prune --older-than 720h
tts-cli cache prune --max-size 200MB`),
		Args: cobra.NoArgs,
		RunE: runCachePrune,
	}
	pruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 0, "remove entries not used for this long")
	pruneCmd.Flags().StringVar(&pruneMaxSize, "max-size", "", "evict least recently used entries above this size, e.g. 500MB")

	cacheCmd.AddCommand(
		&cobra.Command{Use: "stats", Short: "Show cache statistics", Args: cobra.NoArgs, RunE: runCacheStats},
		newClearCmd("clear"),
		pruneCmd,
	)

	root.AddCommand(
		cacheCmd,
		&cobra.Command{Use: "cache-stats", Short: "Show cache statistics", Args: cobra.NoArgs, RunE: runCacheStats},
		newClearCmd("clear-cache"),
	)
}

func newClearCmd(use string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " [TEXT...]",
		Short: "Remove cached audio",
		Long: paragraph(fmt.Sprintf("\n%s every cached entry. Given text, only the entry for that request is removed; "+
			"the request is built from the same flags and defaults as speak.", keyword("Removes"))),
		Example: paragraph(fmt.Sprintf(`tts-cli %[1]s
tts-cli %[1]s -p espeak -l en-GB "Hello"`, use)),
		Args: cobra.ArbitraryArgs,
		RunE: runCacheClear,
	}
	addRequestFlags(cmd, &clearOpts)
	return cmd
}

// newCacheApp opens the cache even when synthesis has it disabled, so an
// old cache can still be inspected and cleaned up.
func newCacheApp(ctx context.Context) (*app, error) {
	c := cfg
	c.Cache.Enabled = true
	return newApp(ctx, c)
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	a, err := newCacheApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	stats, err := a.synth.Stats()
	if err != nil {
		return err
	}
	printStats(cmd.OutOrStdout(), stats, cfg.Cache.Enabled)
	return nil
}

func printStats(w io.Writer, s cache.Stats, enabled bool) {
	fmt.Fprintln(w, bold("Cache statistics:"))
	fmt.Fprintf(w, "  Directory:  %s\n", s.Dir)
	if !enabled {
		fmt.Fprintf(w, "  Status:     %s\n", faint("disabled in configuration"))
	}
	fmt.Fprintf(w, "  Entries:    %s\n", humanize.Comma(int64(s.Entries)))
	fmt.Fprintf(w, "  Total size: %s\n", humanize.Bytes(uint64(s.TotalSize))) //nolint:gosec
	if s.Entries == 0 {
		return
	}
	fmt.Fprintf(w, "  Total hits: %s\n", humanize.Comma(s.TotalHits))
	fmt.Fprintf(w, "  Oldest:     %s\n", humanize.Time(s.Oldest))
	fmt.Fprintf(w, "  Newest:     %s\n", humanize.Time(s.Newest))
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	a, err := newCacheApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	w := cmd.OutOrStdout()
	if len(args) == 0 {
		n, err := a.synth.ClearAll()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s Removed %d cached %s from %s\n", okMark, n, plural(n, "entry", "entries"), a.store.Dir())
		return nil
	}

	text, err := readText(args, cmd.InOrStdin(), true, false, nil)
	if err != nil {
		return err
	}
	req, err := buildRequest(cfg, clearOpts, text)
	if err != nil {
		return err
	}

	removed, err := a.synth.ClearRequest(req)
	if err != nil {
		return err
	}
	key := cache.DeriveKey(req)
	if !removed {
		fmt.Fprintf(w, "%s No cached audio for this request %s\n", offMark, faint(key.Short()))
		return nil
	}
	fmt.Fprintf(w, "%s Removed cached audio %s\n", okMark, faint(key.Short()))
	return nil
}

func runCachePrune(cmd *cobra.Command, _ []string) error {
	if pruneOlderThan <= 0 && pruneMaxSize == "" {
		return errors.New("nothing to prune: set --older-than or --max-size")
	}

	var maxBytes uint64
	if pruneMaxSize != "" {
		b, err := humanize.ParseBytes(pruneMaxSize)
		if err != nil {
			return fmt.Errorf("invalid --max-size: %w", err)
		}
		maxBytes = b
	}

	a, err := newCacheApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	removed := 0
	if pruneOlderThan > 0 {
		n, err := a.store.Prune(time.Now().Add(-pruneOlderThan))
		if err != nil {
			return err
		}
		removed += n
	}
	if pruneMaxSize != "" {
		n, err := a.store.Trim(int64(maxBytes)) //nolint:gosec
		if err != nil {
			return err
		}
		removed += n
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Pruned %d cached %s\n", okMark, removed, plural(removed, "entry", "entries"))
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
