package main

import (
	"net"
	"time"

	"github.com/spf13/cobra"

	"roomstatus/internal/capture"
	appLog "roomstatus/internal/log"
)

var (
	snapshotURL     string
	snapshotOut     string
	snapshotWidth   int
	snapshotHeight  int
	snapshotTimeout time.Duration
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture the status page of a running instance as PNG",
	Long: `Snapshot opens the status page of a running "roomstatus run" in headless
Chromium, waits until the first poll has finished and writes a PNG. The
file is what GET /preview.png serves.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}

		opts := captureOptions(conf)
		if snapshotURL != "" {
			opts.URL = snapshotURL
		}
		if snapshotOut != "" {
			opts.OutputPath = snapshotOut
		}
		opts.Width = snapshotWidth
		opts.Height = snapshotHeight
		opts.Timeout = snapshotTimeout

		if err := capture.CaptureStatusPNG(cmd.Context(), opts); err != nil {
			return err
		}
		appLog.Info("snapshot written", "path", opts.OutputPath, "url", opts.URL)
		cmd.Println(opts.OutputPath)
		return nil
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotURL, "url", "", "Status page URL (default: the configured listen address)")
	snapshotCmd.Flags().StringVarP(&snapshotOut, "out", "o", "", "Output PNG path (default: the path served as /preview.png)")
	snapshotCmd.Flags().IntVar(&snapshotWidth, "width", capture.DefaultWidth, "Viewport width in pixels")
	snapshotCmd.Flags().IntVar(&snapshotHeight, "height", capture.DefaultHeight, "Viewport height in pixels")
	snapshotCmd.Flags().DurationVar(&snapshotTimeout, "timeout", capture.DefaultTimeoutSec*time.Second, "Capture timeout")
}

// localURL turns a listen address into a URL reachable from this host.
// Wildcard hosts are replaced by the loopback address.
func localURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen + "/"
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}
