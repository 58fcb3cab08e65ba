package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names accepted in Config.Provider.
const (
	ProviderGoogle = "google"
	ProviderICS    = "ics"
)

const (
	defaultListen         = "127.0.0.1:8080"
	defaultMaxResults     = 10
	defaultPollInterval   = 60 * time.Second
	defaultRenderInterval = time.Second
	minInterval           = time.Second
	defaultPageRefresh    = 5
	defaultCreateEventURL = "https://calendar.google.com/calendar/r/eventedit"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the status page/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// IndicatorConfig drives an optional GPIO busy light.
type IndicatorConfig struct {
	// GPIOPin is a periph.io pin name such as "GPIO17". Empty disables the
	// indicator.
	GPIOPin string `yaml:"gpio_pin" json:"gpio_pin"`
	// ActiveLow inverts the output level (relay boards are often active low).
	ActiveLow bool `yaml:"active_low" json:"active_low"`
}

// Config is the top-level application configuration.
type Config struct {
	// APIKey is the Google API key used by the calendar client.
	APIKey string `yaml:"api_key" json:"-"`

	// CalendarID identifies the single calendar being polled.
	CalendarID string `yaml:"calendar_id" json:"calendar_id"`

	// Provider selects the fetcher: "google" (default) or "ics".
	Provider string `yaml:"provider" json:"provider"`

	// ICSURL is the subscription URL used when Provider is "ics".
	ICSURL string `yaml:"ics_url" json:"-"`

	// Listen is the HTTP listen address for the status page and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used for the day window and display
	// (e.g. "Asia/Seoul"). Empty means the host's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// MaxResults caps the number of events requested per poll.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// PollInterval is the refetch cadence.
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`

	// RenderInterval is the clock/busy recompute cadence.
	RenderInterval time.Duration `yaml:"render_interval" json:"render_interval"`

	// RolloverWindow recomputes the [now, end of day] query window on every
	// poll instead of fixing it at startup.
	RolloverWindow bool `yaml:"rollover_window" json:"rollover_window"`

	// CreateEventURL is the target of the "+" link on the status page.
	CreateEventURL string `yaml:"create_event_url" json:"create_event_url"`

	// PageRefreshSeconds is the HTML page's self-refresh period.
	PageRefreshSeconds int `yaml:"page_refresh_seconds" json:"page_refresh_seconds"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Indicator IndicatorConfig `yaml:"indicator" json:"indicator"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		CalendarID:         "primary",
		Provider:           ProviderGoogle,
		Listen:             defaultListen,
		MaxResults:         defaultMaxResults,
		PollInterval:       defaultPollInterval,
		RenderInterval:     defaultRenderInterval,
		CreateEventURL:     defaultCreateEventURL,
		PageRefreshSeconds: defaultPageRefresh,
		LogLevel:           "info",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	switch c.Provider {
	case ProviderGoogle, ProviderICS:
	default:
		c.Provider = ProviderGoogle
	}
	if c.CalendarID == "" {
		c.CalendarID = "primary"
	}
	if c.MaxResults <= 0 {
		c.MaxResults = defaultMaxResults
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.RenderInterval <= 0 {
		c.RenderInterval = defaultRenderInterval
	}
	if c.CreateEventURL == "" {
		c.CreateEventURL = defaultCreateEventURL
	}
	if c.PageRefreshSeconds <= 0 {
		c.PageRefreshSeconds = defaultPageRefresh
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate reports settings that make polling impossible.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGoogle:
		if c.APIKey == "" {
			return errors.New("config: api_key is required for the google provider")
		}
	case ProviderICS:
		if c.ICSURL == "" {
			return errors.New("config: ics_url is required for the ics provider")
		}
	}
	if c.PollInterval < minInterval {
		return fmt.Errorf("config: poll_interval %s is below the %s minimum", c.PollInterval, minInterval)
	}
	if c.RenderInterval < minInterval {
		return fmt.Errorf("config: render_interval %s is below the %s minimum", c.RenderInterval, minInterval)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone; empty means time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600 (the file holds the API key).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".roomstatus-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
