package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dgnsrekt/asmrgen/internal/config"
	"github.com/dgnsrekt/asmrgen/internal/domain"
	"github.com/dgnsrekt/asmrgen/internal/voice"
)

var voiceSearch string

var voicesCmd = &cobra.Command{
	Use:     "voices",
	Short:   "List the voices of the speech provider",
	Long:    paragraph(fmt.Sprintf("\nList the voices of the configured speech provider. Voices in the %s are marked.", keyword("default rotation"))),
	Example: paragraph("asmrgen voices\nasmrgen voices --search encel"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		pool, err := a.pool()
		if err != nil {
			return err
		}
		return listVoices(cmd.OutOrStdout(), a.cfg.Speech.Provider, a.catalog(), pool, voiceSearch)
	},
}

func init() {
	voicesCmd.Flags().StringVar(&voiceSearch, "search", "", "show the voice best matching this name")
}

func listVoices(w io.Writer, provider string, c *voice.Catalog, pool []domain.VoiceID, search string) error {
	if c == nil {
		// Voices are addressed by ID; only the rotation is known.
		fmt.Fprintf(w, "%s voices are used by ID. Default rotation:\n", provider) //nolint:errcheck
		for _, id := range pool {
			fmt.Fprintf(w, "  %s %s\n", keyword("•"), id) //nolint:errcheck
		}
		if provider == config.ProviderElevenLabs {
			fmt.Fprintln(w, faint("  assign others with --voice label=<voice id>")) //nolint:errcheck
		}
		return nil
	}

	voices := c.Voices()
	if search != "" {
		v, err := c.Lookup(search)
		if err != nil {
			return err //nolint:wrapcheck
		}
		voices = []voice.Voice{v}
	}

	nameWidth := 0
	for _, v := range voices {
		nameWidth = max(nameWidth, runewidth.StringWidth(string(v.ID)))
	}

	title := cases.Title(language.English)
	for _, v := range voices {
		mark := " "
		if slices.Contains(pool, v.ID) {
			mark = keyword("•")
		}
		name := runewidth.FillRight(string(v.ID), nameWidth)
		fmt.Fprintf(w, "%s %s  %s\n", mark, name, faint(title.String(v.Style))) //nolint:errcheck
	}
	return nil
}
