package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/asmrgen/internal/domain"
	"github.com/dgnsrekt/asmrgen/internal/script"
	"github.com/dgnsrekt/asmrgen/ui"
)

type scriptFlags struct {
	theme  string
	words  int
	length string
	prompt string
	from   string
	save   string
	raw    bool
}

var scrFlags scriptFlags

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Write a script without voicing it",
	Long: paragraph(fmt.Sprintf("\n%s a script from a theme and print it, or show a saved one with %s.",
		keyword("Write"), keyword("--from"))),
	Example: paragraph("asmrgen script --theme \"a lighthouse at night\" --save lighthouse\nasmrgen script --from asmr_script_lighthouse.txt"),
	Args:          cobra.NoArgs,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runScript(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), scrFlags)
	},
}

func init() {
	f := scriptCmd.Flags()
	f.StringVarP(&scrFlags.theme, "theme", "t", "", "theme for the script")
	f.IntVar(&scrFlags.words, "words", 0, "target script length in words")
	f.StringVarP(&scrFlags.length, "length", "l", string(domain.LengthMedium), "length preset: short, medium, long or very-long")
	f.StringVar(&scrFlags.prompt, "prompt", "", "custom prompt replacing the theme instructions")
	f.StringVar(&scrFlags.from, "from", "", "show a saved script instead of writing one")
	f.StringVar(&scrFlags.save, "save", "", "save the script under this name")
	f.BoolVar(&scrFlags.raw, "raw", false, "print the script in label: text form")

	scriptCmd.MarkFlagsMutuallyExclusive("theme", "from")
	scriptCmd.MarkFlagsMutuallyExclusive("prompt", "from")
	scriptCmd.MarkFlagsMutuallyExclusive("words", "length")
}

func runScript(ctx context.Context, stdout, stderr io.Writer, f scriptFlags) error {
	a, err := loadApp()
	if err != nil {
		return reportFailure(stderr, err)
	}
	defer a.Close() //nolint:errcheck

	var s domain.Script
	if f.from != "" {
		st, err := a.store()
		if err != nil {
			return reportFailure(stderr, err)
		}
		if s, err = st.LoadScript(ctx, f.from); err != nil {
			return reportFailure(stderr, err)
		}
	} else {
		gf := generateFlags{theme: f.theme, words: f.words, length: f.length, prompt: f.prompt}
		req, err := gf.request()
		if err != nil {
			return reportFailure(stderr, err)
		}
		g, err := a.textGenerator(ctx)
		if err != nil {
			return reportFailure(stderr, err)
		}
		fmt.Fprintln(stderr, faint("→ writing script")) //nolint:errcheck
		if s, err = g.Generate(ctx, *req.AIGenerated); err != nil {
			return reportFailure(stderr, err)
		}
	}

	if err := printScript(stdout, s, f.raw); err != nil {
		return err
	}

	if f.save != "" {
		st, err := a.store()
		if err != nil {
			return reportFailure(stderr, err)
		}
		ref, err := st.SaveScript(ctx, s, f.save)
		if err != nil {
			return reportFailure(stderr, err)
		}
		fmt.Fprintf(stderr, "%s %s\n", keyword("✓"), ref) //nolint:errcheck
	}
	return nil
}

func printScript(w io.Writer, s domain.Script, raw bool) error {
	out := s.String() + "\n"
	if !raw {
		rendered, err := ui.RenderMarkdown(script.Markdown(s), style, int(width)) //nolint:gosec
		if err != nil {
			return fmt.Errorf("unable to render script: %w", err)
		}
		out = rendered
	}
	if _, err := fmt.Fprint(w, out); err != nil {
		return fmt.Errorf("unable to write to writer: %w", err)
	}
	return nil
}
