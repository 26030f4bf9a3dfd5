package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFrom(filepath.Join(dir, "nope.json"), "")
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	want := DefaultConfig()
	want.API.BaseURL = "https://feeds.example.com/api/v1"
	want.Feed.Count = 8
	want.Feed.Scene = "discover"
	want.Track.Mock = true

	if err := want.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}
	got, err := LoadFrom(path, "")
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"feed":{"scene":"video"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFrom(path, "")
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Feed.Scene != "video" {
		t.Errorf("scene = %q, want video", cfg.Feed.Scene)
	}
	if cfg.Feed.Count != 5 {
		t.Errorf("count = %d, want default 5", cfg.Feed.Count)
	}
}

func TestMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"feed":`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path, ""); err == nil {
		t.Fatal("LoadFrom() should fail on malformed JSON")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MINIFEED_API_BASE_URL", "http://127.0.0.1:9000/api/v1")
	t.Setenv("MINIFEED_FEED_COUNT", "10")
	t.Setenv("MINIFEED_SCENE", "follow")
	t.Setenv("MINIFEED_TRACK_MOCK", "true")
	t.Setenv("MINIFEED_LOG_LEVEL", "debug")
	t.Setenv("MINIFEED_EXPOSURE_THRESHOLD", "1s")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "none.json"), "")
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.API.BaseURL != "http://127.0.0.1:9000/api/v1" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.Feed.Count != 10 || cfg.Feed.Scene != "follow" {
		t.Errorf("feed = %+v", cfg.Feed)
	}
	if !cfg.Track.Mock || cfg.Track.ExposureThreshold != time.Second {
		t.Errorf("track = %+v", cfg.Track)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.API.Timeout != 15*time.Second {
		t.Errorf("unset variable changed timeout to %s", cfg.API.Timeout)
	}
}

func TestDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	content := "MINIFEED_SCENE=from-dotenv\nMINIFEED_GEO=us-west\n"
	if err := os.WriteFile(dotenv, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MINIFEED_SCENE", "from-env")
	// Registered so t.Setenv restores it after godotenv sets it.
	t.Setenv("MINIFEED_GEO", "")
	os.Unsetenv("MINIFEED_GEO")

	cfg, err := LoadFrom(filepath.Join(dir, "none.json"), dotenv)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Feed.Scene != "from-env" {
		t.Errorf("scene = %q, want from-env", cfg.Feed.Scene)
	}
	if cfg.Feed.Geo != "us-west" {
		t.Errorf("geo = %q, want us-west from .env", cfg.Feed.Geo)
	}
}

func TestMissingDotEnvIsFine(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFrom(filepath.Join(dir, "none.json"), filepath.Join(dir, ".env")); err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
}

func TestBadEnvValue(t *testing.T) {
	t.Setenv("MINIFEED_FEED_COUNT", "many")
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "none.json"), ""); err == nil {
		t.Fatal("non-numeric count should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative url", func(c *Config) { c.API.BaseURL = "/api/v1" }, "base_url"},
		{"ftp url", func(c *Config) { c.API.BaseURL = "ftp://host/api" }, "base_url"},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, "timeout"},
		{"negative rate", func(c *Config) { c.API.RateLimit = -1 }, "rate_limit"},
		{"zero burst", func(c *Config) { c.API.Burst = 0 }, "burst"},
		{"zero count", func(c *Config) { c.Feed.Count = 0 }, "feed.count"},
		{"huge count", func(c *Config) { c.Feed.Count = 500 }, "feed.count"},
		{"zero queue", func(c *Config) { c.Track.QueueSize = 0 }, "queue_size"},
		{"negative threshold", func(c *Config) { c.Track.ExposureThreshold = -time.Second }, "exposure_threshold"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"no data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}

	t.Run("unlimited rate ignores burst", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.API.RateLimit = 0
		cfg.API.Burst = 0
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})
}
