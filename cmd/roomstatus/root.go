package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"roomstatus/internal/config"
	"roomstatus/internal/gcal"
	"roomstatus/internal/ics"
	appLog "roomstatus/internal/log"
	"roomstatus/internal/status"
)

const (
	defaultConfigPath  = "/etc/roomstatus/config.yaml"
	defaultPreviewPath = "/var/lib/roomstatus/preview.png"
	debugPreviewPath   = "./cache/preview.png"
)

var (
	configPath string
	listenAddr string
	debugMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "roomstatus",
	Short: "Busy/open status display for a single calendar",
	Long: `Roomstatus polls one calendar for the rest of today's events and shows
whether the room is busy right now, together with the upcoming meetings.

  roomstatus run        Serve the status page and keep polling
  roomstatus once       Poll once and print the status
  roomstatus watch      Live status in the terminal
  roomstatus snapshot   Capture the status page as PNG`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to config file")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "HTTP listen address (overrides config if set)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Debug logging and ./cache paths")

	rootCmd.AddCommand(
		runCmd,
		onceCmd,
		watchCmd,
		snapshotCmd,
		versionCmd,
	)
}

// loadConfig reads the config file, applies flag overrides and sets the log
// level.
func loadConfig() (*config.Config, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	if listenAddr != "" {
		conf.Listen = listenAddr
	}

	level, err := appLog.ParseLevel(conf.LogLevel)
	if err != nil {
		return nil, err
	}
	if debugMode {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	appLog.Info("effective config",
		"config_path", configPath,
		"provider", conf.Provider,
		"calendar_id", conf.CalendarID,
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"max_results", conf.MaxResults,
		"poll_interval", conf.PollInterval.String(),
		"render_interval", conf.RenderInterval.String(),
		"rollover_window", conf.RolloverWindow,
		"indicator_pin", conf.Indicator.GPIOPin,
	)
	return conf, nil
}

// newFetcher selects the calendar backend named by conf.Provider. loc places
// all-day events when the provider does not report a time zone.
func newFetcher(conf *config.Config, loc *time.Location) status.Fetcher {
	switch conf.Provider {
	case config.ProviderICS:
		return ics.NewFetcher(conf.ICSURL, conf.MaxResults)
	default:
		return gcal.NewClient(gcal.Options{
			APIKey:     conf.APIKey,
			CalendarID: conf.CalendarID,
			MaxResults: int64(conf.MaxResults),
			Location:   loc,
		})
	}
}

func newEngine(conf *config.Config) (*status.Engine, error) {
	loc, err := conf.Location()
	if err != nil {
		return nil, err
	}
	return status.New(newFetcher(conf, loc), nil, status.Options{
		Location:       loc,
		PollInterval:   conf.PollInterval,
		RenderInterval: conf.RenderInterval,
		RolloverWindow: conf.RolloverWindow,
	}), nil
}

func previewPath() string {
	if debugMode {
		return debugPreviewPath
	}
	return defaultPreviewPath
}
