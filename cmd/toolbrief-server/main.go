// Package main provides the toolbrief API server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/raphaelgruber/toolbrief/internal/config"
	"github.com/raphaelgruber/toolbrief/internal/db"
	"github.com/raphaelgruber/toolbrief/internal/generate"
	"github.com/raphaelgruber/toolbrief/internal/jobs"
	"github.com/raphaelgruber/toolbrief/internal/llm"
	"github.com/raphaelgruber/toolbrief/internal/metrics"
	"github.com/raphaelgruber/toolbrief/internal/processor"
	"github.com/raphaelgruber/toolbrief/internal/server"
	"github.com/raphaelgruber/toolbrief/internal/storage"
)

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all persisted jobs on startup (testing only)")
	flag.Parse()

	// Best-effort .env load; real deployments use actual env vars.
	_ = godotenv.Load()

	cfg := config.Load()

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("starting toolbrief-server", "port", cfg.Port)

	pricing, err := config.LoadPricing(cfg.PricingFile)
	if err != nil {
		slog.Error("failed to load pricing table", "error", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector()

	// Optional SurrealDB persistence: without it jobs live in memory only
	// and are lost on restart.
	var persister jobs.Persister
	var dbClient *db.Client
	if cfg.SurrealDBURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		dbClient, err = db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger)
		if err != nil {
			cancel()
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := dbClient.InitSchema(ctx); err != nil {
			cancel()
			slog.Error("failed to initialize schema", "error", err)
			os.Exit(1)
		}
		if *wipeDB || os.Getenv("TOOLBRIEF_WIPE_DB") == "true" {
			if err := dbClient.WipeData(ctx); err != nil {
				cancel()
				slog.Error("failed to wipe database", "error", err)
				os.Exit(1)
			}
		}
		cancel()

		persister = db.NewJobPersister(dbClient)
		defer func() {
			if err := dbClient.Close(context.Background()); err != nil {
				slog.Error("failed to close database", "error", err)
			}
		}()
	} else {
		slog.Warn("no database configured, jobs will not survive restarts")
	}

	store := jobs.NewMemoryStore(jobs.Options{
		StuckThreshold:    cfg.StuckThreshold,
		RateLimit:         cfg.RateLimitJobs,
		RateLimitWindow:   cfg.RateLimitWindow,
		MaxJobsPerSession: cfg.MaxJobsPerSession,
	}, persister)

	// Resume queued and processing jobs from the database. Processing jobs
	// re-enter the queue through the stuck-job reclaim.
	if dbClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		active, err := dbClient.ListActiveJobs(ctx)
		cancel()
		if err != nil {
			slog.Error("failed to load persisted jobs", "error", err)
			os.Exit(1)
		}
		for _, job := range active {
			store.RegisterJob(job)
		}
		if len(active) > 0 {
			slog.Info("resumed persisted jobs", "count", len(active))
		}
	}

	var objects storage.ObjectStore
	if cfg.GCSBucket != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		gcs, err := storage.NewGCSStore(ctx, cfg.GCSBucket, cfg.GCSCredFile)
		cancel()
		if err != nil {
			slog.Error("failed to open storage bucket", "error", err, "bucket", cfg.GCSBucket)
			os.Exit(1)
		}
		defer gcs.Close()
		objects = gcs
	} else {
		slog.Warn("no storage bucket configured, manuals will be stored in memory")
		objects = storage.NewMemoryObjectStore()
	}
	manuals := storage.NewManualStore(objects, cfg.PublicBaseURL)

	engine := generate.NewEngine(cfg, pricing, nil, collector)

	hub := processor.NewHub()
	proc := processor.New(store, engine, manuals, hub, collector, cfg.ProcessorInterval)

	var validator *llm.NameValidator
	ref := cfg.ValidatorModel
	if completer, err := llm.NewCompleter(ref, cfg.APIKeyFor(ref.Provider), cfg.OllamaHost); err != nil {
		slog.Warn("name validator unavailable, accepting all tool names", "error", err)
	} else {
		validator = llm.NewNameValidator(completer, ref.Model, cfg.ValidatorTimeout)
	}

	srv := server.New(cfg, store, manuals, proc, hub, validator, collector, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go proc.Run(ctx)

	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
