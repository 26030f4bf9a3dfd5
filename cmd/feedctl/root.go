package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/abelbrown/minifeed/internal/api"
	"github.com/abelbrown/minifeed/internal/config"
	"github.com/abelbrown/minifeed/internal/otel"
	"github.com/abelbrown/minifeed/internal/store"
)

// rootOptions holds the persistent flags and the loaded configuration.
type rootOptions struct {
	apiURL  string
	timeout time.Duration
	dataDir string
	jsonOut bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	root := &cobra.Command{
		Use:   "feedctl",
		Short: "minifeed inspection and maintenance CLI",
		Long: `feedctl talks to the Mini Feeds API directly and reads minifeed's local
history and event log.

Settings come from ~/.minifeed/config.json, then .env, then MINIFEED_*
environment variables, then flags.`,
		SilenceUsage:      true,
		PersistentPreRunE: o.load,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.apiURL, "api", "", "API base URL")
	pf.DurationVar(&o.timeout, "timeout", 0, "Request timeout")
	pf.StringVar(&o.dataDir, "data-dir", "", "minifeed data directory")
	pf.BoolVar(&o.jsonOut, "json", false, "Print raw JSON")

	root.AddCommand(
		newItemCmd(o),
		newItemsCmd(o),
		newSearchCmd(o),
		newMetricsCmd(o),
		newHistoryCmd(o),
		newEventsCmd(o),
		newServeMockCmd(),
	)
	return root
}

// load reads the configuration and applies the persistent flags.
func (o *rootOptions) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if o.apiURL != "" {
		cfg.API.BaseURL = o.apiURL
	}
	if o.timeout > 0 {
		cfg.API.Timeout = o.timeout
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

func (o *rootOptions) client() *api.Client {
	limit := rate.Inf
	if o.cfg.API.RateLimit > 0 {
		limit = rate.Limit(o.cfg.API.RateLimit)
	}
	return api.NewClient(o.cfg.API.BaseURL,
		api.WithTimeout(o.cfg.API.Timeout),
		api.WithRateLimit(limit, o.cfg.API.Burst),
		api.WithUserAgent("feedctl"),
	)
}

func (o *rootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.cfg.API.Timeout+5*time.Second)
}

// openStore opens the history database read-write.
func (o *rootOptions) openStore() (*store.Store, error) {
	path := filepath.Join(o.cfg.DataDir, store.FileName)
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return st, nil
}

func (o *rootOptions) eventLogPath() string {
	return filepath.Join(o.cfg.DataDir, otel.EventsFile)
}
