package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/tts-cli/internal/config"
	"github.com/dgnsrekt/tts-cli/internal/playback"
	"github.com/dgnsrekt/tts-cli/internal/synth"
	"github.com/dgnsrekt/tts-cli/internal/tts"
)

type speakOptions struct {
	provider      string
	voice         string
	language      string
	options       []string
	output        string
	noPlay        bool
	noCache       bool
	clearCache    bool
	fromClipboard bool
	fallback      []string

	batch     string
	jobs      int
	outputDir string
}

var (
	speakOpts speakOptions

	speakCmd = &cobra.Command{
		Use:   "speak [TEXT...]",
		Short: "Synthesize text and play it",
		Long: paragraph(fmt.Sprintf("\n%s the given text. Without arguments the text is read from stdin. "+
			"Audio comes from the cache when the same request was made before.", keyword("Speak"))),
		Example: paragraph(`tts-cli speak "Hello"
tts-cli speak -p gcloud -v en-US-Wavenet-F -O speaking_rate=1.2 "Faster"
tts-cli speak --fallback espeak,festival "Try gcloud first"
tts-cli speak --batch lines.txt --output-dir audio/ --jobs 8`),
		Args: cobra.ArbitraryArgs,
		RunE: runSpeak,
	}
)

func addSpeakFlags(cmd *cobra.Command) {
	addRequestFlags(cmd, &speakOpts)

	f := cmd.Flags()
	f.StringVarP(&speakOpts.output, "output", "o", "", "write audio to FILE instead of playing it; - writes to stdout")
	f.BoolVar(&speakOpts.noPlay, "no-play", false, "save audio to a temp file instead of playing it")
	f.BoolVar(&speakOpts.noCache, "no-cache", false, "skip the cache lookup and synthesize again")
	f.BoolVar(&speakOpts.clearCache, "clear-cache", false, "remove the cached audio for this request first")
	f.BoolVar(&speakOpts.fromClipboard, "from-clipboard", false, "read the text from the clipboard")
	f.StringSliceVar(&speakOpts.fallback, "fallback", nil, "providers to try, in order, when the selected one fails")
	f.StringVar(&speakOpts.batch, "batch", "", "synthesize every line of FILE")
	f.IntVarP(&speakOpts.jobs, "jobs", "j", 4, "concurrent requests in batch mode")
	f.StringVar(&speakOpts.outputDir, "output-dir", ".", "directory for batch output")

	_ = cmd.RegisterFlagCompletionFunc("fallback", completeProviders)
}

// addRequestFlags adds the flags that shape a request, and so its cache key.
func addRequestFlags(cmd *cobra.Command, o *speakOptions) {
	f := cmd.Flags()
	f.StringVarP(&o.provider, "provider", "p", "", "provider: gcloud, espeak, festival or say (default from config)")
	f.StringVarP(&o.voice, "voice", "v", "", "voice name (default from config)")
	f.StringVarP(&o.language, "language", "l", "", "BCP 47 language tag (default from config)")
	f.StringArrayVarP(&o.options, "option", "O", nil, "provider option as KEY=VALUE, repeatable")

	_ = cmd.RegisterFlagCompletionFunc("provider", completeProviders)
}

func completeProviders(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	ids := make([]string, 0, len(tts.ProviderIDs))
	for _, id := range tts.ProviderIDs {
		ids = append(ids, id.String())
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}

func runSpeak(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	o := speakOpts

	policy, err := o.policy()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if (o.noCache || o.clearCache) && !a.synth.CacheEnabled() {
		log.Warn("The cache is disabled; --no-cache and --clear-cache have no effect")
	}

	if o.batch != "" {
		if len(args) > 0 {
			return tts.InvalidRequest("--batch does not take text arguments", nil)
		}
		return runBatch(ctx, cmd, a.synth, o, policy)
	}

	text, err := readText(args, os.Stdin, stdinIsTerminal(), o.fromClipboard, clipboard.ReadAll)
	if err != nil {
		return err
	}
	req, err := buildRequest(cfg, o, text)
	if err != nil {
		return err
	}

	res, err := a.synth.Synthesize(ctx, req, policy)
	if err != nil {
		return err
	}
	if res.CacheHit {
		log.Debug("Served from cache", "key", res.Key.Short())
	} else {
		log.Debug("Synthesized", "provider", res.Provider, "attempts", res.Attempts, "bytes", res.Audio.Len())
	}

	return deliver(ctx, cmd.ErrOrStderr(), o, res.Audio)
}

// policy converts the cache and fallback flags.
func (o speakOptions) policy() (synth.Policy, error) {
	p := synth.Policy{
		Bypass:     o.noCache,
		ForceClear: o.clearCache,
	}
	for _, name := range o.fallback {
		id, err := tts.ParseProviderID(name)
		if err != nil {
			return p, err
		}
		p.Fallback = append(p.Fallback, id)
	}
	return p, nil
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) //nolint:gosec
}

// readText picks the text source: the clipboard, "-" or a pipe on stdin, or
// the arguments joined by spaces.
func readText(args []string, stdin io.Reader, stdinTTY, fromClipboard bool, readClipboard func() (string, error)) (string, error) {
	switch {
	case fromClipboard:
		if len(args) > 0 {
			return "", tts.InvalidRequest("--from-clipboard does not take text arguments", nil)
		}
		text, err := readClipboard()
		if err != nil {
			return "", tts.IOFailure("unable to read clipboard", err)
		}
		return trimInput(text), nil

	case len(args) == 1 && args[0] == "-", len(args) == 0 && !stdinTTY:
		b, err := io.ReadAll(io.LimitReader(stdin, tts.MaxTextBytes+1))
		if err != nil {
			return "", tts.IOFailure("unable to read stdin", err)
		}
		return trimInput(string(b)), nil

	case len(args) > 0:
		return strings.Join(args, " "), nil

	default:
		return "", tts.InvalidRequest("no text given: pass it as arguments, through stdin or with --from-clipboard", nil)
	}
}

// trimInput drops the line endings that files and pipes add.
func trimInput(s string) string {
	return strings.TrimRight(s, "\r\n")
}

// buildRequest fills in the configured defaults for whatever the flags leave
// unset. Flag options override configured ones.
func buildRequest(c config.Config, o speakOptions, text string) (tts.Request, error) {
	name := o.provider
	if name == "" {
		name = c.DefaultProvider
	}
	id, err := tts.ParseProviderID(name)
	if err != nil {
		return tts.Request{}, err
	}

	language := o.language
	if language == "" {
		language = c.DefaultLanguage
	}
	voice := o.voice
	if voice == "" {
		voice = c.DefaultVoice
	}

	options := maps.Clone(c.ProviderOptions(id))
	flagOptions, err := parseOptions(o.options)
	if err != nil {
		return tts.Request{}, err
	}
	if options == nil {
		options = flagOptions
	} else {
		maps.Copy(options, flagOptions)
	}

	return tts.NewRequest(text, id, language, voice, options)
}

func parseOptions(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	options := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, tts.InvalidRequest(fmt.Sprintf("option %q must be KEY=VALUE", pair), nil)
		}
		options[k] = v
	}
	return options, nil
}

// deliver writes, saves or plays audio according to the output flags.
func deliver(ctx context.Context, w io.Writer, o speakOptions, audio tts.Audio) error {
	switch {
	case o.output == "-":
		if term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec
			return tts.InvalidRequest("refusing to write audio to a terminal; redirect stdout or use --output FILE", nil)
		}
		if _, err := os.Stdout.Write(audio.Data); err != nil {
			return fmt.Errorf("unable to write to stdout: %w", err)
		}
		return nil

	case o.output != "":
		if !playback.HasExt(o.output, audio.Encoding) {
			log.Warn("Output extension does not match the audio", "file", o.output, "encoding", audio.Encoding)
		}
		if err := playback.WriteFile(o.output, audio); err != nil {
			return tts.IOFailure("unable to write output file", err)
		}
		fmt.Fprintf(w, "%s Saved %s audio to %s\n", okMark, audio.Encoding, o.output)
		return nil

	case o.noPlay:
		path, err := playback.SaveTemp(audio)
		if err != nil {
			return tts.IOFailure("unable to save audio", err)
		}
		fmt.Fprintf(w, "%s Saved %s audio to %s\n", okMark, audio.Encoding, path)
		fmt.Fprintln(w, faint("  Play it with: mpv "+path))
		return nil
	}

	pb := playback.New(playback.Config{
		Player:  cfg.Playback.Player,
		Timeout: cfg.Playback.Timeout,
	})
	err := pb.Play(ctx, audio)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	log.Warn("Playback failed", "error", err)
	path, saveErr := playback.SaveTemp(audio)
	if saveErr != nil {
		return fmt.Errorf("playback failed and audio could not be saved: %w", errors.Join(err, saveErr))
	}
	fmt.Fprintf(w, "%s Could not play audio; saved it to %s\n", failMark, path)
	return nil
}

type batchLine struct {
	n    int
	text string
}

// readBatchLines returns the non-empty lines of r that are not # comments.
func readBatchLines(r io.Reader) ([]batchLine, error) {
	var lines []batchLine
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), tts.MaxTextBytes+1)
	n := 0
	for sc.Scan() {
		n++
		text := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(text)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, batchLine{n: n, text: text})
	}
	if err := sc.Err(); err != nil {
		return nil, tts.IOFailure(fmt.Sprintf("unable to read batch line %d", n+1), err)
	}
	return lines, nil
}

func runBatch(ctx context.Context, cmd *cobra.Command, s *synth.Synthesizer, o speakOptions, policy synth.Policy) error {
	f, err := os.Open(o.batch)
	if err != nil {
		return tts.IOFailure("unable to open batch file", err)
	}
	lines, err := readBatchLines(f)
	_ = f.Close()
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return tts.InvalidRequest(fmt.Sprintf("%s contains no text", o.batch), nil)
	}

	reqs := make([]tts.Request, len(lines))
	for i, line := range lines {
		req, err := buildRequest(cfg, o, line.text)
		if err != nil {
			return fmt.Errorf("line %d: %w", line.n, err)
		}
		reqs[i] = req
	}

	log.Debug("Starting batch", "requests", len(reqs), "jobs", o.jobs)
	results := s.SynthesizeBatch(ctx, reqs, policy, o.jobs)

	w := cmd.ErrOrStderr()
	failed := 0
	for i, r := range results {
		label := faint(truncate.StringWithTail(lines[i].text, 50, "…"))
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "%s line %d: %v %s\n", failMark, lines[i].n, r.Err, label)
			continue
		}

		path := filepath.Join(o.outputDir, r.Result.Key.String()+r.Result.Audio.Encoding.Ext())
		if err := playback.WriteFile(path, r.Result.Audio); err != nil {
			failed++
			fmt.Fprintf(w, "%s line %d: %v %s\n", failMark, lines[i].n, err, label)
			continue
		}
		fmt.Fprintf(w, "%s %s %s\n", okMark, path, label)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d requests failed", failed, len(results))
	}
	return nil
}
