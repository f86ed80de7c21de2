// Talon - Credit risk scoring that deploys in 60 seconds.
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
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/talon/internal/api"
	"github.com/opensource-finance/talon/internal/bus"
	"github.com/opensource-finance/talon/internal/cache"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/flags"
	"github.com/opensource-finance/talon/internal/model"
	"github.com/opensource-finance/talon/internal/repository"
	"github.com/opensource-finance/talon/internal/scoring"
	"github.com/opensource-finance/talon/internal/worker"
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
	if os.Getenv("TALON_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting talon",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("TALON_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	if p := os.Getenv("TALON_MODEL_PATH"); p != "" {
		cfg.ModelPath = p
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
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

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

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

	// Load the default-probability classifier
	predictor := loadPredictor(cfg.ModelPath)

	// Initialize Scoring Engine
	engine := scoring.NewEngine(cfg.Scoring, predictor)
	slog.Info("scoring engine initialized", "version", scoring.EngineVersion)

	// Initialize Policy Flag Engine
	flagEngine, err := flags.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize flag engine", "error", err)
		os.Exit(1)
	}

	// Load policy flags from database (no hardcoded defaults - configure via API)
	if err := loadFlagsFromDatabase(ctx, repo, flagEngine); err != nil {
		slog.Error("failed to load flags", "error", err)
		os.Exit(1)
	}
	slog.Info("flag engine initialized", "flags_count", flagEngine.FlagsCount())

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("TALON_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, engine, flagEngine)

		// Get tenant IDs to process (from environment or default)
		var tenantIDs []string
		if envTenants := os.Getenv("TALON_TENANTS"); envTenants != "" {
			tenantIDs = strings.Split(envTenants, ",")
		}

		workerCfg := worker.Config{
			TenantIDs:   tenantIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, engine, flagEngine, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("talon is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
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

	slog.Info("talon shutdown complete")
}

// GlobalTenantID is used for policy flags that apply to all tenants.
const GlobalTenantID = "*"

// loadPredictor loads the trained classifier bundle, falling back to a
// neutral fixed predictor when no bundle is available.
func loadPredictor(path string) model.Predictor {
	predictor, err := model.Load(path)
	if err != nil {
		slog.Warn("no model bundle loaded, using neutral predictor",
			"path", path,
			"error", err,
		)
		return model.Fixed{Probability: 0.5}
	}
	slog.Info("model bundle loaded", "path", path, "model_version", predictor.Version())
	return predictor
}

// loadFlagsFromDatabase loads policy flags from the database into the engine.
// All flags must be configured via POST /flags API - no hardcoded defaults.
func loadFlagsFromDatabase(ctx context.Context, repo domain.Repository, engine *flags.Engine) error {
	dbFlags, err := repo.ListFlagConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list flags from database", "error", err)
		return nil // Start with empty flags - they can be added via API
	}

	if len(dbFlags) > 0 {
		slog.Info("loading flags from database", "count", len(dbFlags))
		return engine.LoadFlags(dbFlags)
	}

	slog.Info("no flags in database - configure via POST /flags API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🦅 TALON                    ║")
	fmt.Println("  ║       Credit Risk Scoring Engine          ║")
	fmt.Println("  ║      A sharper read on every file.        ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /assess                      - Assess an applicant")
	fmt.Println("    GET  /assessments/{id}            - Get assessment by ID")
	fmt.Println("    GET  /applicants/{id}/assessments - List an applicant's assessments")
	fmt.Println("    GET  /stats                       - Tenant assessment statistics")
	fmt.Println("    GET  /flags                       - List policy flags")
	fmt.Println("    POST /flags                       - Create a policy flag")
	fmt.Println("    DELETE /flags/{id}                - Delete a policy flag")
	fmt.Println("    POST /flags/reload                - Hot-reload flags from database")
	fmt.Println("    GET  /health                      - Health check")
	fmt.Println()
}
