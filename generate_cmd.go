package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/editor"
	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/asmrgen/internal/domain"
	"github.com/dgnsrekt/asmrgen/internal/pipeline"
	"github.com/dgnsrekt/asmrgen/internal/script"
	"github.com/dgnsrekt/asmrgen/internal/store"
)

// watchDebounce collapses the burst of events editors emit on save.
const watchDebounce = 300 * time.Millisecond

type generateFlags struct {
	theme      string
	words      int
	length     string
	prompt     string
	scriptFile string
	watch      bool
	voices     []string
	partial    bool
	edit       bool
	noSave     bool
	output     string
}

var genFlags generateFlags

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate an audio file from a theme or a script",
	Long: paragraph(fmt.Sprintf("\n%s a script from a theme, or read one with %s, then voice and assemble it into a WAV file.",
		keyword("Write"), keyword("--script"))),
	Example: paragraph(strings.Join([]string{
		"asmrgen generate --theme \"rain on a tin roof\" --length long",
		"asmrgen generate --script session.txt --voice narrator=Kore --watch",
	}, "\n")),
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runGenerate(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), genFlags)
	},
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&genFlags.theme, "theme", "t", "", "theme for a generated script")
	f.IntVar(&genFlags.words, "words", 0, "target script length in words")
	f.StringVarP(&genFlags.length, "length", "l", string(domain.LengthMedium), "length preset: short, medium, long or very-long")
	f.StringVar(&genFlags.prompt, "prompt", "", "custom prompt replacing the theme instructions")
	f.StringVar(&genFlags.scriptFile, "script", "", "voice a script file instead of generating one")
	f.BoolVar(&genFlags.watch, "watch", false, "regenerate whenever the script file changes (with --script)")
	f.StringArrayVar(&genFlags.voices, "voice", nil, "assign a voice to a speaker as LABEL=NAME (repeatable)")
	f.BoolVar(&genFlags.partial, "partial", false, "keep partial audio when synthesis fails midway")
	f.BoolVar(&genFlags.edit, "edit", false, "edit the script in $EDITOR before it is voiced")
	f.BoolVar(&genFlags.noSave, "no-save", false, "do not save to the configured output")
	f.StringVarP(&genFlags.output, "output", "o", "", "also write the WAV file to this path")

	generateCmd.MarkFlagsMutuallyExclusive("theme", "script")
	generateCmd.MarkFlagsMutuallyExclusive("prompt", "script")
	generateCmd.MarkFlagsMutuallyExclusive("words", "length")
}

// request builds the generation request described by the flags.
func (f generateFlags) request() (domain.GenerationRequest, error) {
	if f.watch && f.scriptFile == "" {
		return domain.GenerationRequest{}, &domain.ConfigurationError{Field: "watch", Reason: "--watch needs --script"}
	}

	if f.scriptFile != "" {
		b, err := os.ReadFile(expandPath(f.scriptFile))
		if err != nil {
			return domain.GenerationRequest{}, &domain.ConfigurationError{Field: "script", Reason: err.Error()}
		}
		return domain.NewManualRequest(string(b)), nil
	}

	if f.theme == "" && f.prompt == "" {
		return domain.GenerationRequest{}, &domain.ConfigurationError{Field: "theme", Reason: "use --theme, --prompt or --script"}
	}
	words := f.words
	if words == 0 {
		n, err := domain.ParseLengthPreset(f.length)
		if err != nil {
			return domain.GenerationRequest{}, &domain.ConfigurationError{Field: "length", Reason: err.Error()}
		}
		words = n
	}
	req := domain.NewAIRequest(f.theme, words)
	req.AIGenerated.CustomPrompt = f.prompt
	return req, nil
}

func runGenerate(ctx context.Context, stdout, stderr io.Writer, f generateFlags) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	req, err := f.request()
	if err != nil {
		return reportFailure(stderr, err)
	}

	a, err := loadApp()
	if err != nil {
		return reportFailure(stderr, err)
	}
	defer a.Close() //nolint:errcheck

	overrides, err := a.overrides(f.voices)
	if err != nil {
		return reportFailure(stderr, err)
	}
	orch, err := a.orchestrator(ctx, req.Kind() == domain.RequestAIGenerated)
	if err != nil {
		return reportFailure(stderr, err)
	}

	var st store.Store
	if !f.noSave {
		if st, err = a.store(); err != nil {
			return reportFailure(stderr, err)
		}
	}

	g := &generation{
		runner:    orch,
		store:     st,
		output:    f.output,
		overrides: overrides,
		stdout:    stdout,
		stderr:    stderr,
	}
	if f.partial {
		g.opts = append(g.opts, pipeline.WithPartial())
	}
	if f.edit {
		g.opts = append(g.opts, pipeline.WithEdit(editScript))
	}

	if f.watch {
		return g.watch(ctx, expandPath(f.scriptFile))
	}
	return g.run(ctx, req)
}

// generation runs requests and reports their outcome.
type generation struct {
	runner    runner
	store     store.Store
	output    string
	overrides domain.VoiceMap
	opts      []pipeline.RunOption

	stdout io.Writer
	stderr io.Writer
}

type runner interface {
	Run(ctx context.Context, req domain.GenerationRequest, overrides domain.VoiceMap, opts ...pipeline.RunOption) (*pipeline.Result, error)
}

func (g *generation) run(ctx context.Context, req domain.GenerationRequest) error {
	progress := make(chan pipeline.Transition)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for t := range progress {
			if t.To.IsTerminal() {
				continue
			}
			fmt.Fprintln(g.stderr, faint("→ "+stageLabel(t.To))) //nolint:errcheck
		}
	}()

	opts := append([]pipeline.RunOption{pipeline.WithProgress(progress)}, g.opts...)
	res, err := g.runner.Run(ctx, req, g.overrides, opts...)
	close(progress)
	<-done

	if res != nil && res.Partial != nil {
		fmt.Fprintln(g.stderr, warnText(fmt.Sprintf("! keeping %s of partial audio", formatDuration(res.Partial.Duration)))) //nolint:errcheck
		if saveErr := g.save(ctx, *res.Partial); saveErr != nil {
			log.Error("Unable to save partial audio", "err", saveErr)
		}
	}
	if err != nil {
		return reportFailure(g.stderr, err)
	}
	if err := g.save(ctx, *res.Asset); err != nil {
		return reportFailure(g.stderr, err)
	}
	return nil
}

// save writes the asset and its script to the store and the --output path.
func (g *generation) save(ctx context.Context, asset domain.AudioAsset) error {
	summary := fmt.Sprintf("%s, %s, %d lines",
		formatDuration(asset.Duration), humanize.Bytes(uint64(len(asset.Data))), asset.Script.Len())

	saved := false
	if g.output != "" {
		if err := os.MkdirAll(filepath.Dir(g.output), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("unable to create output directory: %w", err)
		}
		if err := os.WriteFile(g.output, asset.Data, 0o644); err != nil { //nolint:gosec
			return fmt.Errorf("unable to write %s: %w", g.output, err)
		}
		fmt.Fprintf(g.stdout, "%s %s (%s)\n", keyword("✓"), g.output, summary) //nolint:errcheck
		saved = true
	}

	if g.store != nil {
		audioRef, err := g.store.SaveAsset(ctx, asset)
		if err != nil {
			return err //nolint:wrapcheck
		}
		scriptRef, err := g.store.SaveScript(ctx, asset.Script, store.Stem(asset))
		if err != nil {
			return err //nolint:wrapcheck
		}
		fmt.Fprintf(g.stdout, "%s %s (%s)\n", keyword("✓"), audioRef, summary) //nolint:errcheck
		fmt.Fprintf(g.stdout, "  %s\n", faint("script: "+scriptRef))        //nolint:errcheck
		saved = true
	}

	if !saved {
		fmt.Fprintf(g.stdout, "%s generated %s; nothing was saved\n", keyword("✓"), summary) //nolint:errcheck
	}
	return nil
}

// watch runs the script at path, then again each time it is written.
func (g *generation) watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck

	// Editors often replace the file, so watch its directory.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("unable to watch %s: %w", dir, err)
	}
	log.Info("fsnotify watching dir", "dir", dir)

	runFile := func() {
		b, err := os.ReadFile(path)
		if err != nil {
			_ = reportFailure(g.stderr, &domain.ConfigurationError{Field: "script", Reason: err.Error()})
			return
		}
		// A busy error cannot happen here: runs are sequential.
		_ = g.run(ctx, domain.NewManualRequest(string(b)))
		fmt.Fprintln(g.stderr, faint("watching "+path+" for changes, ctrl+c to stop")) //nolint:errcheck
	}
	runFile()

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			debounce = time.After(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Debug("fsnotify error", "dir", dir, "error", err)
		case <-debounce:
			debounce = nil
			runFile()
		}
	}
}

// editScript opens the script in $EDITOR and parses the saved result.
func editScript(s domain.Script) (domain.Script, error) {
	f, err := os.CreateTemp("", "asmrgen-*.txt")
	if err != nil {
		return domain.Script{}, fmt.Errorf("unable to create temp file: %w", err)
	}
	defer os.Remove(f.Name()) //nolint:errcheck

	if _, err := f.WriteString(s.String() + "\n"); err != nil {
		_ = f.Close()
		return domain.Script{}, fmt.Errorf("unable to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return domain.Script{}, fmt.Errorf("unable to write temp file: %w", err)
	}

	c, err := editor.Cmd("asmrgen", f.Name())
	if err != nil {
		return domain.Script{}, fmt.Errorf("unable to set editor: %w", err)
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return domain.Script{}, fmt.Errorf("unable to run editor: %w", err)
	}

	b, err := os.ReadFile(f.Name())
	if err != nil {
		return domain.Script{}, fmt.Errorf("unable to read edited script: %w", err)
	}
	return script.ParseManual(string(b)) //nolint:wrapcheck
}

// reportFailure prints the failure kind with its advice and returns err so
// the command exits non-zero.
func reportFailure(w io.Writer, err error) error {
	kind := domain.KindOf(err)
	msg := err.Error()
	var perr *pipeline.Error
	if errors.As(err, &perr) {
		kind = perr.Kind
		msg = fmt.Sprintf("%v (while %s)", perr.Err, stageLabel(perr.State))
	}

	fmt.Fprintf(w, "%s %s\n", errorText(fmt.Sprintf("✗ %s:", kindLabel(kind))), msg) //nolint:errcheck
	if hint := kind.Advice().Hint(); hint != "" {
		fmt.Fprintf(w, "  %s\n", faint(hint)) //nolint:errcheck
	}
	return err
}

func kindLabel(k domain.Kind) string {
	if k == domain.KindNone {
		return "error"
	}
	return string(k)
}

func stageLabel(s pipeline.State) string {
	switch s {
	case pipeline.StateGenerating:
		return "writing script"
	case pipeline.StateMappingVoices:
		return "assigning voices"
	case pipeline.StateSynthesizing:
		return "synthesizing speech"
	case pipeline.StateAssembling:
		return "assembling audio"
	default:
		return s.String()
	}
}

// formatDuration formats a duration as m:ss.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

