package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"roomstatus/internal/capture"
	"roomstatus/internal/config"
	"roomstatus/internal/indicator"
	appLog "roomstatus/internal/log"
	"roomstatus/internal/status"
	"roomstatus/internal/web"
)

var captureInterval time.Duration

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Serve the status page and keep polling the calendar",
	RunE: func(cmd *cobra.Command, _ []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}

		release, err := acquireInstanceLock(filepath.Dir(previewPath()))
		if err != nil {
			return err
		}
		defer release()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, conf)
	},
}

func init() {
	runCmd.Flags().DurationVar(&captureInterval, "capture-every", 0, "Refresh /preview.png by capturing the page at this interval (0 disables, needs Chromium)")
}

func run(ctx context.Context, conf *config.Config) error {
	appLog.Info("roomstatus starting", "version", version)

	engine, err := newEngine(conf)
	if err != nil {
		return err
	}

	var light *indicator.Light
	if conf.Indicator.GPIOPin != "" {
		light, err = indicator.Open(conf.Indicator.GPIOPin, conf.Indicator.ActiveLow)
		if err != nil {
			return err
		}
	}

	srv := web.NewServer(conf, engine, previewPath())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(ctx) })
	g.Go(func() error { return srv.Serve(ctx) })
	if light != nil {
		g.Go(func() error { return indicator.Follow(ctx, engine, light) })
	}
	if captureInterval > 0 {
		g.Go(func() error { return capturePeriodically(ctx, conf, engine) })
	}

	err = g.Wait()
	appLog.Info("roomstatus exiting")
	return err
}

// capturePeriodically refreshes the preview image once the first poll has
// finished and then every captureInterval. Capture failures are logged only.
func capturePeriodically(ctx context.Context, conf *config.Config, engine *status.Engine) error {
	ready, cancel := engine.Subscribe()
	defer cancel()
	for !engine.Snapshot().Ready {
		select {
		case <-ctx.Done():
			return nil
		case <-ready:
		}
	}
	cancel()

	shoot := func() {
		opts := captureOptions(conf)
		if err := capture.CaptureStatusPNG(ctx, opts); err != nil {
			appLog.Error("preview capture failed", err, "url", opts.URL)
			return
		}
		appLog.Debug("preview captured", "path", opts.OutputPath)
	}

	sched := cron.New()
	sched.Schedule(cron.Every(captureInterval), cron.FuncJob(shoot))
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	shoot()
	<-ctx.Done()
	return nil
}

func captureOptions(conf *config.Config) capture.CaptureOptions {
	opts := capture.CaptureOptions{
		URL:        localURL(conf.Listen),
		OutputPath: previewPath(),
	}
	if conf.BasicAuth != nil {
		opts.Username = conf.BasicAuth.Username
		opts.Password = conf.BasicAuth.Password
	}
	return opts
}
