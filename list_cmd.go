package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/asmrgen/internal/store"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved audio and scripts",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		st, err := a.store()
		if err != nil {
			return err
		}
		entries, err := st.List(cmd.Context())
		if err != nil {
			return err //nolint:wrapcheck
		}
		return printEntries(cmd.OutOrStdout(), entries, time.Now())
	},
}

func printEntries(w io.Writer, entries []store.Entry, now time.Time) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, faint("Nothing saved yet. Try: asmrgen generate --theme \"rain\""))
		return err //nolint:wrapcheck
	}
	for _, e := range entries {
		kind := "audio "
		if e.Kind == store.EntryScript {
			kind = "script"
		}
		_, err := fmt.Fprintf(w, "%s  %-8s %-14s %s\n",
			faint(kind),
			humanize.Bytes(uint64(e.Size)), //nolint:gosec
			humanize.RelTime(e.ModTime, now, "ago", "from now"),
			e.Ref,
		)
		if err != nil {
			return err //nolint:wrapcheck
		}
	}
	return nil
}
