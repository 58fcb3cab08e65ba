package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomstatus/internal/clock"
	"roomstatus/internal/config"
	"roomstatus/internal/gcal"
	"roomstatus/internal/ics"
	appLog "roomstatus/internal/log"
	"roomstatus/internal/model"
	"roomstatus/internal/render"
	"roomstatus/internal/status"
)

func TestMain(m *testing.M) {
	appLog.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestLocalURL(t *testing.T) {
	tests := []struct {
		listen string
		want   string
	}{
		{"127.0.0.1:8080", "http://127.0.0.1:8080/"},
		{":8080", "http://127.0.0.1:8080/"},
		{"0.0.0.0:9000", "http://127.0.0.1:9000/"},
		{"[::]:9000", "http://127.0.0.1:9000/"},
		{"room.local:80", "http://room.local:80/"},
	}
	for _, tt := range tests {
		t.Run(tt.listen, func(t *testing.T) {
			assert.Equal(t, tt.want, localURL(tt.listen))
		})
	}
}

func TestPrintView(t *testing.T) {
	view := render.View{Banner: render.BannerOpen, CurrentTime: "Monday, March 2, 2026 9:00 AM", Cards: []render.Card{}}

	var text bytes.Buffer
	require.NoError(t, printView(&text, "text", view))
	assert.Contains(t, text.String(), "Open")

	var js bytes.Buffer
	require.NoError(t, printView(&js, outputJSON, view))
	var decoded render.View
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, render.BannerOpen, decoded.Banner)

	assert.Error(t, printView(io.Discard, "yaml", view))
}

func TestCaptureOptions(t *testing.T) {
	conf := config.DefaultConfig()
	conf.Listen = ":8080"
	conf.BasicAuth = &config.BasicAuthConfig{Username: "room", Password: "pw"}

	opts := captureOptions(conf)
	assert.Equal(t, "http://127.0.0.1:8080/", opts.URL)
	assert.Equal(t, previewPath(), opts.OutputPath)
	assert.Equal(t, "room", opts.Username)
	assert.Equal(t, "pw", opts.Password)
}

func TestLoadConfig_FirstRunRequiresAPIKey(t *testing.T) {
	old := configPath
	t.Cleanup(func() { configPath = old })
	configPath = filepath.Join(t.TempDir(), "config.yaml")

	_, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
	assert.FileExists(t, configPath, "defaults are written on first run")
}

func TestNewFetcher_ByProvider(t *testing.T) {
	conf := config.DefaultConfig()
	conf.Provider = config.ProviderICS
	conf.ICSURL = "https://calendar.test/room.ics"
	assert.IsType(t, &ics.Fetcher{}, newFetcher(conf, time.UTC))

	conf.Provider = config.ProviderGoogle
	assert.IsType(t, &gcal.Client{}, newFetcher(conf, time.UTC))
}

func TestAcquireInstanceLock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")

	release, err := acquireInstanceLock(dir)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), readLockPID(filepath.Join(dir, lockFileName)))

	_, err = acquireInstanceLock(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "another roomstatus process")

	release()
	release2, err := acquireInstanceLock(dir)
	require.NoError(t, err)
	release2()
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type staticFetcher []model.CalendarEvent

func (f staticFetcher) Fetch(context.Context, time.Time, time.Time) ([]model.CalendarEvent, error) {
	return f, nil
}

func TestWatch_NonTTY(t *testing.T) {
	kst := time.FixedZone("KST", 9*60*60)
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, kst)
	events := staticFetcher{{
		ID:      "1",
		Summary: "Retro",
		Start:   now.Add(-30 * time.Minute),
		End:     now.Add(30 * time.Minute),
	}}
	engine := status.New(events, clock.NewManual(now), status.Options{Location: kst})

	var out syncBuffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watch(ctx, config.DefaultConfig(), engine, &out, false) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Retro") && strings.Contains(out.String(), "Busy")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.NotContains(t, out.String(), clearScreen)
}
