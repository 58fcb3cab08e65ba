package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_PartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
api_key: abc
calendar_id: room-4@group.calendar.google.com
timezone: Asia/Seoul
poll_interval: 2m
provider: carrier-pigeon
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.APIKey)
	assert.Equal(t, "room-4@group.calendar.google.com", cfg.CalendarID)
	assert.Equal(t, 2*time.Minute, cfg.PollInterval)
	assert.Equal(t, time.Second, cfg.RenderInterval)
	assert.Equal(t, 10, cfg.MaxResults)
	assert.Equal(t, ProviderGoogle, cfg.Provider)
	assert.Equal(t, defaultListen, cfg.Listen)
	assert.False(t, cfg.RolloverWindow)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestSave_RoundTripKeepsSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.APIKey = "secret"
	cfg.BasicAuth = &BasicAuthConfig{Username: "lobby", Password: "pw"}
	cfg.Indicator = IndicatorConfig{GPIOPin: "GPIO17", ActiveLow: true}

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "google without api key",
			mutate:  func(c *Config) {},
			wantErr: true,
		},
		{
			name:   "google with api key",
			mutate: func(c *Config) { c.APIKey = "k" },
		},
		{
			name:    "ics without url",
			mutate:  func(c *Config) { c.Provider = ProviderICS },
			wantErr: true,
		},
		{
			name: "ics with url",
			mutate: func(c *Config) {
				c.Provider = ProviderICS
				c.ICSURL = "https://example.com/cal.ics"
			},
		},
		{
			name: "sub-second render interval",
			mutate: func(c *Config) {
				c.APIKey = "k"
				c.RenderInterval = 500 * time.Millisecond
			},
			wantErr: true,
		},
		{
			name: "sub-second poll interval",
			mutate: func(c *Config) {
				c.APIKey = "k"
				c.PollInterval = 250 * time.Millisecond
			},
			wantErr: true,
		},
		{
			name: "bad timezone",
			mutate: func(c *Config) {
				c.APIKey = "k"
				c.Timezone = "Mars/Olympus_Mons"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.Timezone = "UTC"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}
