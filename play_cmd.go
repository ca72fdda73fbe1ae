package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play FILE",
	Short: "Play a generated WAV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close() //nolint:errcheck

		p, err := a.player()
		if err != nil {
			return err
		}

		path := expandPath(args[0])
		fmt.Fprintln(cmd.ErrOrStderr(), faint("▶ "+path+"  ctrl+c to stop")) //nolint:errcheck
		if err := p.PlayFile(ctx, path); err != nil && ctx.Err() == nil {
			return err //nolint:wrapcheck
		}
		return nil
	},
}
