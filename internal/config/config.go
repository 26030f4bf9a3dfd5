package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config is the persistent application configuration
type Config struct {
	// Backend connection
	API APIConfig `json:"api"`

	// Feed request parameters
	Feed FeedConfig `json:"feed"`

	// Analytics delivery
	Track TrackConfig `json:"track"`

	// Diagnostics
	Log LogConfig `json:"log"`

	// DataDir holds the history database, logs and event log
	DataDir string `json:"data_dir" env:"MINIFEED_DATA_DIR"`
}

// APIConfig holds the Mini Feeds API settings
type APIConfig struct {
	BaseURL   string        `json:"base_url" env:"MINIFEED_API_BASE_URL"`
	Timeout   time.Duration `json:"timeout" env:"MINIFEED_API_TIMEOUT"`
	RateLimit float64       `json:"rate_limit" env:"MINIFEED_API_RATE_LIMIT"` // requests per second, 0 = unlimited
	Burst     int           `json:"burst" env:"MINIFEED_API_BURST"`
}

// FeedConfig holds the query parameters sent with every page request
type FeedConfig struct {
	Count  int    `json:"count" env:"MINIFEED_FEED_COUNT"`
	Scene  string `json:"scene" env:"MINIFEED_SCENE"`
	Slot   string `json:"slot,omitempty" env:"MINIFEED_SLOT"`
	Device string `json:"device,omitempty" env:"MINIFEED_DEVICE"`
	Geo    string `json:"geo,omitempty" env:"MINIFEED_GEO"`
	AB     string `json:"ab,omitempty" env:"MINIFEED_AB"`
}

// TrackConfig holds exposure and analytics settings
type TrackConfig struct {
	Mock              bool          `json:"mock" env:"MINIFEED_TRACK_MOCK"` // log events instead of sending
	QueueSize         int           `json:"queue_size" env:"MINIFEED_TRACK_QUEUE"`
	ExposureThreshold time.Duration `json:"exposure_threshold" env:"MINIFEED_EXPOSURE_THRESHOLD"`
}

// LogConfig holds logging preferences
type LogConfig struct {
	Level string `json:"level" env:"MINIFEED_LOG_LEVEL"` // debug, info, warn, error
	Trace bool   `json:"trace" env:"MINIFEED_TRACE"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "http://localhost:8000/api/v1",
			Timeout:   15 * time.Second,
			RateLimit: 20,
			Burst:     10,
		},
		Feed: FeedConfig{
			Count: 5,
			Scene: "home",
		},
		Track: TrackConfig{
			Mock:              false,
			QueueSize:         64,
			ExposureThreshold: 800 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
		DataDir: DefaultDataDir(),
	}
}

// DefaultDataDir is ~/.minifeed
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".minifeed")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.json")
}

// Load reads config from disk (or defaults), then applies a .env file in the
// working directory and MINIFEED_* environment variables on top.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath(), ".env")
}

// LoadFrom is Load with explicit paths. An empty dotenv path skips .env.
func LoadFrom(path, dotenv string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if dotenv != "" {
		// Existing environment wins over .env
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	// Fields missing from the file keep their defaults
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from MINIFEED_* environment variables. Unset
// variables leave fields untouched.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

// Validate rejects values the client cannot run with
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: api.base_url %q must be an http(s) URL", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("config: api.timeout must be positive, got %s", c.API.Timeout)
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("config: api.rate_limit must not be negative")
	}
	if c.API.RateLimit > 0 && c.API.Burst < 1 {
		return fmt.Errorf("config: api.burst must be at least 1 when rate limiting")
	}
	if c.Feed.Count < 1 || c.Feed.Count > 50 {
		return fmt.Errorf("config: feed.count must be between 1 and 50, got %d", c.Feed.Count)
	}
	if c.Track.QueueSize < 1 {
		return fmt.Errorf("config: track.queue_size must be at least 1")
	}
	if c.Track.ExposureThreshold < 0 {
		return fmt.Errorf("config: track.exposure_threshold must not be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must be set")
	}
	return nil
}

// Save writes config to disk
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes config to path
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
