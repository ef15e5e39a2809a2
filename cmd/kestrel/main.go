// Kestrel - Fraud decision fusion for payment streams.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/classifier"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/engine"
	"github.com/opensource-finance/kestrel/internal/settings"
	"github.com/opensource-finance/kestrel/internal/stats"
	"github.com/opensource-finance/kestrel/internal/store"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"store", cfg.Store.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Store
	st, err := store.New(cfg.Store)
	if err != nil {
		slog.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()
	slog.Info("store initialized", "driver", cfg.Store.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Load the classifier artifact. A missing or invalid model is fatal:
	// every scoring path depends on it.
	model, err := classifier.Load(cfg.Classifier.ArtifactPath)
	if err != nil {
		slog.Error("failed to load model artifact",
			"path", cfg.Classifier.ArtifactPath,
			"error", err,
		)
		os.Exit(1)
	}
	slog.Info("model loaded",
		"path", cfg.Classifier.ArtifactPath,
		"model_version", model.Version(),
		"features", len(model.FeatureNames()),
	)

	// Initialize Statistics Service
	statsSvc := stats.NewService(st, cacheImpl, cfg.Cache.LocalTTL)
	slog.Info("statistics service initialized", "ttl", cfg.Cache.LocalTTL)

	// Initialize Settings Registry
	registry := settings.NewRegistry(time.Now)

	// Initialize Scoring Engine
	eng, err := engine.New(engine.Config{
		Classifier:       model,
		Store:            st,
		Bus:              busImpl,
		Stats:            statsSvc,
		OverlayCapacity:  cfg.Engine.OverlayCapacity,
		BatchConcurrency: cfg.Engine.DefaultConcurrency,
		RuleWorkers:      cfg.Engine.RuleWorkers,
	})
	if err != nil {
		slog.Error("failed to initialize scoring engine", "error", err)
		os.Exit(1)
	}
	defer eng.Close()
	slog.Info("scoring engine initialized",
		"overlay_capacity", cfg.Engine.OverlayCapacity,
		"batch_concurrency", cfg.Engine.DefaultConcurrency,
	)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, eng, cacheImpl)

		if err := asyncWorker.Start(worker.Config{Concurrency: cfg.Engine.DefaultConcurrency}); err != nil {
			slog.Error("failed to start async worker", "error", err)
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, st, cacheImpl, busImpl, eng, statsSvc, registry, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first so in-flight scores drain
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// applyEnvOverrides lets individual settings be tuned without switching
// the whole tier profile.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("KESTREL_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("KESTREL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			slog.Warn("ignoring invalid KESTREL_PORT", "value", v)
		}
	}
	if v := os.Getenv("KESTREL_SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("KESTREL_POSTGRES_HOST"); v != "" {
		cfg.Store.PostgresHost = v
	}
	if v := os.Getenv("KESTREL_POSTGRES_USER"); v != "" {
		cfg.Store.PostgresUser = v
	}
	if v := os.Getenv("KESTREL_POSTGRES_PASSWORD"); v != "" {
		cfg.Store.PostgresPassword = v
	}
	if v := os.Getenv("KESTREL_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("KESTREL_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("KESTREL_MODEL_PATH"); v != "" {
		cfg.Classifier.ArtifactPath = v
	}
	if v := os.Getenv("KESTREL_OVERLAY_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Engine.OverlayCapacity = n
		} else {
			slog.Warn("ignoring invalid KESTREL_OVERLAY_CAPACITY", "value", v)
		}
	}
	if v := os.Getenv("KESTREL_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Engine.DefaultConcurrency = n
		} else {
			slog.Warn("ignoring invalid KESTREL_CONCURRENCY", "value", v)
		}
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 KESTREL                  ║")
	fmt.Println("  ║     Fraud Decision Fusion Engine          ║")
	fmt.Println("  ║      Every score, calibrated.             ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /score               - Score a transaction (rules + model)")
	fmt.Println("    POST /score/legacy        - Score a PaySim-style record")
	fmt.Println("    POST /simulation/batch    - Run a calibrated batch simulation")
	fmt.Println("    GET  /simulation/overlay  - Rolling simulation overlay")
	fmt.Println("    DELETE /simulation/overlay - Clear the overlay")
	fmt.Println("    GET  /transactions        - List stored transactions")
	fmt.Println("    GET  /transactions/{id}   - Get transaction by ID")
	fmt.Println("    GET  /decisions           - List recent decisions")
	fmt.Println("    GET  /decisions/{id}      - Get decision by transaction ID")
	fmt.Println("    GET  /stats/fraud         - Fraud aggregates")
	fmt.Println("    GET  /stats/channels      - Per-channel aggregates")
	fmt.Println("    GET  /stats/hourly        - Per-hour aggregates")
	fmt.Println("    GET  /settings            - Dashboard settings")
	fmt.Println("    PUT  /settings/{section}  - Update a settings section")
	fmt.Println("    GET  /health              - Health check")
	fmt.Println()
}
