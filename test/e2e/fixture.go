package e2e

import (
	"path/filepath"
	"time"

	"github.com/abelbrown/minifeed/internal/config"
)

// writeConfig writes a config file under homeDir pointing minifeed at apiURL
// and returns the data directory it uses.
func writeConfig(homeDir, apiURL string) (string, error) {
	dataDir := filepath.Join(homeDir, ".minifeed")
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = apiURL
	cfg.API.RateLimit = 0
	cfg.Track.ExposureThreshold = time.Millisecond
	cfg.Log.Level = "debug"
	cfg.DataDir = dataDir
	if err := cfg.SaveTo(filepath.Join(dataDir, "config.json")); err != nil {
		return "", err
	}
	return dataDir, nil
}
