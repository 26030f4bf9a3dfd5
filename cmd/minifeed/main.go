// Command minifeed is a terminal client for the Mini Feeds API: one card at
// a time, with exposure tracking and optimistic likes.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/abelbrown/minifeed/internal/api"
	"github.com/abelbrown/minifeed/internal/config"
	"github.com/abelbrown/minifeed/internal/exposure"
	"github.com/abelbrown/minifeed/internal/interact"
	"github.com/abelbrown/minifeed/internal/logging"
	"github.com/abelbrown/minifeed/internal/otel"
	"github.com/abelbrown/minifeed/internal/pager"
	"github.com/abelbrown/minifeed/internal/store"
	"github.com/abelbrown/minifeed/internal/track"
	"github.com/abelbrown/minifeed/internal/ui"
)

var (
	apiURL  string
	scene   string
	count   int
	debug   bool
	trace   bool
	mock    bool
	dataDir string
)

var rootCmd = &cobra.Command{
	Use:   "minifeed",
	Short: "Browse the Mini Feeds feed in the terminal",
	Long: `minifeed shows the recommendation feed one card at a time.

Keys: ←/→ move, space like, s favorite, enter open, r refresh, ? help,
ctrl+d debug overlay, q quit.

Settings come from ~/.minifeed/config.json, then .env, then MINIFEED_*
environment variables, then flags.`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&apiURL, "api", "", "API base URL (e.g. http://localhost:8000/api/v1)")
	rootCmd.Flags().StringVar(&scene, "scene", "", "Feed scene")
	rootCmd.Flags().IntVar(&count, "count", 0, "Items per page (1-50)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Log at debug level")
	rootCmd.Flags().BoolVar(&trace, "trace", false, "Record every UI message in the event log")
	rootCmd.Flags().BoolVar(&mock, "mock-track", false, "Log analytics events instead of sending them")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory for history, logs and events")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyFlags overrides cfg with the flags that were set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("api") {
		cfg.API.BaseURL = apiURL
	}
	if f.Changed("scene") {
		cfg.Feed.Scene = scene
	}
	if f.Changed("count") {
		cfg.Feed.Count = count
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	if trace {
		cfg.Log.Trace = true
	}
	if mock {
		cfg.Track.Mock = true
	}
	if f.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	return cfg.Validate()
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	if err := logging.Init(cfg.DataDir, cfg.Log.Level); err != nil {
		return err
	}
	defer logging.Close()
	otel.SetTrace(cfg.Log.Trace)

	events, err := otel.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	ring := otel.NewRingBuffer(512)
	events.SetRingBuffer(ring)
	defer events.Close()

	st, err := store.Open(filepath.Join(cfg.DataDir, store.FileName))
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer st.Close()

	limit := rate.Inf
	if cfg.API.RateLimit > 0 {
		limit = rate.Limit(cfg.API.RateLimit)
	}
	client := api.NewClient(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithRateLimit(limit, cfg.API.Burst),
	)

	tracker := track.New(client,
		track.WithMock(cfg.Track.Mock),
		track.WithEvents(events),
		track.WithQueueSize(cfg.Track.QueueSize),
	)
	defer tracker.Close()

	exp := exposure.New(tracker,
		exposure.WithThreshold(cfg.Track.ExposureThreshold),
		exposure.WithEvents(events),
		exposure.WithStayRecorder(func(item api.FeedItem, stay time.Duration) {
			if _, err := st.RecordStay(item.ID, stay, time.Now()); err != nil {
				logging.Warn("history: record stay failed", "item", item.ID, "err", err)
				events.Error(otel.KindStoreError, "store", err)
			}
		}),
	)

	relations := interact.New(client,
		interact.WithEvents(events),
		interact.WithOnCommitted(func(k interact.Key, active bool) {
			if err := st.SetRelation(k.EntityType, k.EntityID, k.Relation, active, time.Now()); err != nil {
				logging.Warn("history: record relation failed", "key", k.String(), "err", err)
				events.Error(otel.KindStoreError, "store", err)
			}
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	params := api.FeedParams{
		Count:  cfg.Feed.Count,
		Scene:  cfg.Feed.Scene,
		Slot:   cfg.Feed.Slot,
		Device: cfg.Feed.Device,
		Geo:    cfg.Feed.Geo,
		AB:     cfg.Feed.AB,
		Debug:  cfg.Log.Level == "debug",
	}

	app := ui.NewApp(ui.AppConfig{
		FetchPage: func(req pager.Request) tea.Cmd {
			return func() tea.Msg {
				p := params
				p.Cursor = req.Cursor
				page, err := client.GetFeed(ctx, p)
				if err == nil {
					if _, serr := st.SaveItems(page.Items, time.Now()); serr != nil {
						logging.Warn("history: save items failed", "err", serr)
						events.Error(otel.KindStoreError, "store", serr)
					}
				}
				return ui.PageLoaded{Result: pager.Result{Request: req, Page: page, Err: err}}
			}
		},
		FetchItem: func(id int64) tea.Cmd {
			return func() tea.Msg {
				item, err := client.GetItem(ctx, id)
				return ui.ItemLoaded{ID: id, Item: item, Err: err}
			}
		},
		Relations: relations,
		Exposure:  exp,
		Context:   ctx,
		Obs:       ui.ObsConfig{Ring: ring, Events: events},
	})

	logging.Info("minifeed starting", "api", cfg.API.BaseURL, "scene", cfg.Feed.Scene, "count", cfg.Feed.Count, "mock_track", cfg.Track.Mock)
	events.Info(otel.KindStartup, "main", cfg.API.BaseURL)

	program := tea.NewProgram(app, tea.WithAltScreen())
	_, runErr := program.Run()

	// Close any session the UI left open before flushing the beacon.
	exp.Stop()
	cancel()
	tracker.Close()

	s := tracker.Stats()
	logging.Info("minifeed stopped", "queued", s.Queued, "sent", s.Sent, "fallback", s.Fallback, "failed", s.Failed, "mocked", s.Mocked)
	events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindShutdown, Comp: "main", Count: int(s.Sent)})

	if runErr != nil {
		return fmt.Errorf("run ui: %w", runErr)
	}
	return nil
}
