package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"roomstatus/internal/render"
)

const outputJSON = "json"

var onceFormat string

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Poll the calendar once and print the status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}

		engine, err := newEngine(conf)
		if err != nil {
			return err
		}
		if err := engine.Init(cmd.Context()); err != nil {
			return err
		}
		if err := engine.Poll(cmd.Context()); err != nil {
			return fmt.Errorf("poll: %w", err)
		}
		engine.RenderTick()

		view := render.Build(engine.Snapshot(), conf.CreateEventURL)
		return printView(cmd.OutOrStdout(), onceFormat, view)
	},
}

func init() {
	onceCmd.Flags().StringVarP(&onceFormat, "output", "o", "text", "Output format (text, json)")
}

func printView(w io.Writer, format string, view render.View) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case "text", "":
		_, err := io.WriteString(w, render.Terminal(view, 0))
		return err
	default:
		return fmt.Errorf("unknown output format %q (want text or json)", format)
	}
}
