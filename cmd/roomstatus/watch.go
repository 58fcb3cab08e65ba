package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"roomstatus/internal/config"
	"roomstatus/internal/render"
	"roomstatus/internal/status"
)

const clearScreen = "\x1b[H\x1b[2J"

var watchWidth int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the live status in the terminal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}
		engine, err := newEngine(conf)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		isTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
		return watch(ctx, conf, engine, cmd.OutOrStdout(), isTTY)
	},
}

func init() {
	watchCmd.Flags().IntVar(&watchWidth, "width", 72, "Card width in columns (0 for unconstrained)")
}

// watch redraws the terminal view on every engine change. Without a TTY
// frames are appended instead of redrawn in place.
func watch(ctx context.Context, conf *config.Config, engine *status.Engine, w io.Writer, isTTY bool) error {
	changes, unsubscribe := engine.Subscribe()
	defer unsubscribe()

	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	last := ""
	for {
		select {
		case err := <-done:
			return err
		case <-changes:
		}

		frame := render.Terminal(render.Build(engine.Snapshot(), conf.CreateEventURL), watchWidth)
		if frame == last {
			continue
		}
		last = frame

		if isTTY {
			frame = clearScreen + frame
		} else {
			frame += "\n"
		}
		if _, err := io.WriteString(w, frame); err != nil {
			return err
		}
	}
}
