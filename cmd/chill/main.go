// Package main provides the CLI entry point for chill.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"

	"github.com/bitcrank/chill/internal/backend"
	"github.com/bitcrank/chill/internal/cardsource"
	"github.com/bitcrank/chill/internal/config"
	"github.com/bitcrank/chill/internal/connectivity"
	"github.com/bitcrank/chill/internal/session"
	"github.com/bitcrank/chill/internal/submit"
	syncctl "github.com/bitcrank/chill/internal/sync"
	"github.com/bitcrank/chill/pkg/cache"
	"github.com/bitcrank/chill/pkg/chillerr"
	"github.com/bitcrank/chill/pkg/database"
	"github.com/bitcrank/chill/pkg/metadata"
	"github.com/bitcrank/chill/pkg/preview"
	"github.com/bitcrank/chill/pkg/queue"
)

// CLI structure
var CLI struct {
	Config string `help:"Configuration file path" default:"config.yaml"`
	Debug  bool   `help:"Enable debug logging" default:"false"`

	Sync struct{} `cmd:"sync" help:"Sync video cards from the backend."`

	Add struct {
		URL  string `arg:"" help:"Video page URL to save."`
		Note string `help:"Optional note stored with the submission."`
	} `cmd:"add" help:"Queue a video URL and submit it."`

	Queue struct {
		List    struct{} `cmd:"list" help:"List queued submissions."`
		Drain   struct{} `cmd:"drain" help:"Process the submission queue now."`
		Cleanup struct{} `cmd:"cleanup" help:"Delete finished submissions older than 24 hours."`
	} `cmd:"queue" help:"Inspect and drain the submission queue."`

	Cache struct {
		Stats struct{} `cmd:"stats" help:"Show cache freshness statistics."`
		Purge struct {
			Days int `help:"Staleness threshold in days (0 uses the configured default)." default:"0"`
		} `cmd:"purge" help:"Delete cards not synced within the threshold."`
		Clear struct{} `cmd:"clear" help:"Delete every cached card."`
	} `cmd:"cache" help:"Maintain the local video card cache."`

	Preview struct{} `cmd:"preview" help:"Browse cached cards and the queue interactively."`

	Init struct{} `cmd:"init" help:"Write the active configuration to the config file."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Configuration(kongyaml.Loader, "config.yaml", "~/.config/chill/config.yaml"),
	)

	if CLI.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	} else {
		slog.SetLogLoggerLevel(slog.LevelWarn)
	}

	cfg, err := config.LoadConfig(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	switch ctx.Command() {
	case "sync":
		runSync(cfg)

	case "add <url>":
		runAdd(cfg, CLI.Add.URL, CLI.Add.Note)

	case "queue list":
		runQueueList(cfg)

	case "queue drain":
		runQueueDrain(cfg)

	case "queue cleanup":
		runQueueCleanup(cfg)

	case "cache stats":
		runCacheStats(cfg)

	case "cache purge":
		runCachePurge(cfg, CLI.Cache.Purge.Days)

	case "cache clear":
		runCacheClear(cfg)

	case "preview":
		runPreview(cfg)

	case "init":
		runInit(cfg, CLI.Config)

	default:
		panic(ctx.Command())
	}
}

func openCache(cfg *config.Config) (*cache.Store, *database.Database) {
	db, err := database.Open(database.Config{Path: cfg.Storage.CachePath})
	if err != nil {
		slog.Error("Failed to open cache database", "path", cfg.Storage.CachePath, "error", err)
		os.Exit(1)
	}
	store, err := cache.New(db)
	if err != nil {
		slog.Error("Failed to initialize cache", "error", err)
		os.Exit(1)
	}
	return store, db
}

func openQueue(cfg *config.Config) *queue.Store {
	db, err := database.Open(database.Config{Path: cfg.Storage.QueuePath})
	if err != nil {
		slog.Error("Failed to open queue database", "path", cfg.Storage.QueuePath, "error", err)
		os.Exit(1)
	}
	store, err := queue.New(db)
	if err != nil {
		slog.Error("Failed to initialize queue", "error", err)
		os.Exit(1)
	}
	return store
}

// newSessionProvider signs in with CHILL_EMAIL/CHILL_PASSWORD when set, and
// falls back to an anonymous session otherwise.
func newSessionProvider(ctx context.Context, cfg *config.Config) session.Provider {
	email := os.Getenv("CHILL_EMAIL")
	password := os.Getenv("CHILL_PASSWORD")
	if email == "" || password == "" || cfg.Backend.URL == "" {
		return session.NewStatic(nil)
	}

	provider := session.NewOAuthProvider(cfg.Backend.URL, cfg.Backend.AnonKey)
	if _, err := provider.SignIn(ctx, email, password); err != nil {
		slog.Warn("Sign-in failed, continuing anonymously", "error", err)
		return session.NewStatic(nil)
	}
	return provider
}

// newMonitor probes the backend once so drain and sync decisions reflect
// actual reachability.
func newMonitor(ctx context.Context, cfg *config.Config) connectivity.Monitor {
	if cfg.Backend.URL == "" {
		return connectivity.Always(false)
	}
	probe := connectivity.NewProbe(cfg.Backend.URL, connectivity.DefaultProbeInterval)
	probe.CheckNow(ctx)
	return probe
}

func newProcessor(ctx context.Context, cfg *config.Config) *submit.Processor {
	return submit.NewProcessor(submit.Config{
		Queue:     openQueue(cfg),
		Extractor: metadata.NewExtractorWithTimeout(cfg.ExtractionTimeout()),
		Endpoint:  backend.NewClient(cfg.Backend.URL, cfg.Backend.AnonKey),
		Monitor:   newMonitor(ctx, cfg),
		Sessions:  newSessionProvider(ctx, cfg),
	})
}

func runSync(cfg *config.Config) {
	ctx := context.Background()
	sessions := newSessionProvider(ctx, cfg)
	client := backend.NewClient(cfg.Backend.URL, cfg.Backend.AnonKey)

	cacheStore, _ := openCache(cfg)
	controller := syncctl.NewController(syncctl.Config{
		Source:    cardsource.NewLiveSource(client, sessions, cfg.Sync.PageSize),
		Cache:     cacheStore,
		Monitor:   newMonitor(ctx, cfg),
		Sessions:  sessions,
		Analytics: syncctl.SlogAnalytics{},
		PageSize:  cfg.Sync.PageSize,
		PurgeDays: cfg.Storage.PurgeDays,
	})

	controller.Start(ctx)
	defer controller.Stop()

	state := controller.State()
	switch state.Phase {
	case syncctl.PhaseLoaded:
		fmt.Printf("Synced %d videos\n", len(state.Cards))
	case syncctl.PhaseEmpty:
		fmt.Println("No saved videos")
	case syncctl.PhaseOffline:
		fmt.Printf("Offline, showing %d cached videos\n", len(state.Cards))
	case syncctl.PhaseError:
		slog.Error("Sync failed", "error", state.Err)
		os.Exit(1)
	}
}

func runAdd(cfg *config.Config, url, note string) {
	ctx := context.Background()
	processor := newProcessor(ctx, cfg)

	req, err := processor.Add(ctx, url, note)
	if err != nil {
		if errors.Is(err, chillerr.ErrDuplicateURL) {
			fmt.Println("Already queued")
			return
		}
		slog.Error("Failed to queue video", "url", url, "error", err)
		os.Exit(1)
	}

	final, err := processor.Queue().Get(req.ID)
	if err != nil {
		slog.Error("Failed to read submission state", "error", err)
		os.Exit(1)
	}

	switch final.Status {
	case queue.StatusCompleted:
		fmt.Println("Submitted")
	case queue.StatusFailed:
		fmt.Printf("Queued, submission failed: %s (will retry)\n", final.LastErrorMessage)
	default:
		fmt.Println("Queued for submission")
	}
}

func runQueueList(cfg *config.Config) {
	requests, err := openQueue(cfg).ListAll()
	if err != nil {
		slog.Error("Failed to list queue", "error", err)
		os.Exit(1)
	}

	if len(requests) == 0 {
		fmt.Println("Queue is empty")
		return
	}
	for i, req := range requests {
		fmt.Println(preview.FormatCompactRequest(i, req))
	}
}

func runQueueDrain(cfg *config.Config) {
	ctx := context.Background()
	newProcessor(ctx, cfg).Drain(ctx)
}

func runQueueCleanup(cfg *config.Config) {
	deleted, err := openQueue(cfg).Cleanup()
	if err != nil {
		slog.Error("Cleanup failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %d finished submissions\n", deleted)
}

func runCacheStats(cfg *config.Config) {
	store, db := openCache(cfg)
	stats, err := store.Stats(cfg.Storage.PurgeDays)
	if err != nil {
		slog.Error("Failed to read cache stats", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Cached videos: %d (%d fresh, %d stale)\n",
		stats.TotalEntries, stats.FreshEntries, stats.StaleEntries)
	if stats.TotalEntries > 0 {
		fmt.Printf("Oldest sync: %s\nNewest sync: %s\n",
			stats.OldestSync.Local().Format("2006-01-02 15:04"),
			stats.NewestSync.Local().Format("2006-01-02 15:04"))
	}
	if size, err := database.Size(db.Path()); err == nil {
		fmt.Printf("Database size: %.1f KB\n", float64(size)/1024)
	}
}

func runCachePurge(cfg *config.Config, days int) {
	if days <= 0 {
		days = cfg.Storage.PurgeDays
	}
	store, db := openCache(cfg)
	purged, err := store.PurgeStale(days)
	if err != nil {
		slog.Error("Purge failed", "error", err)
		os.Exit(1)
	}
	if purged > 0 {
		if err := database.Vacuum(db); err != nil {
			slog.Warn("Vacuum after purge failed", "error", err)
		}
	}
	fmt.Printf("Purged %d stale videos\n", purged)
}

func runCacheClear(cfg *config.Config) {
	store, db := openCache(cfg)
	cleared, err := store.ClearAll()
	if err != nil {
		slog.Error("Clear failed", "error", err)
		os.Exit(1)
	}
	if cleared > 0 {
		if err := database.Vacuum(db); err != nil {
			slog.Warn("Vacuum after clear failed", "error", err)
		}
	}
	fmt.Printf("Cleared %d cached videos\n", cleared)
}

func runInit(cfg *config.Config, path string) {
	if err := config.SaveConfig(cfg, path); err != nil {
		slog.Error("Failed to write configuration", "path", path, "error", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", path)
}

func runPreview(cfg *config.Config) {
	cacheStore, _ := openCache(cfg)
	cards, err := cacheStore.FetchAll()
	if err != nil {
		slog.Error("Failed to read cache", "error", err)
		os.Exit(1)
	}
	requests, err := openQueue(cfg).ListAll()
	if err != nil {
		slog.Error("Failed to read queue", "error", err)
		os.Exit(1)
	}

	if err := preview.Run(cards, requests); err != nil {
		slog.Error("Preview failed", "error", err)
		os.Exit(1)
	}
}
