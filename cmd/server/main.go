package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garnizeh/jobmarket/api"
	dbfs "github.com/garnizeh/jobmarket/db"
	"github.com/garnizeh/jobmarket/internal/auth"
	"github.com/garnizeh/jobmarket/internal/config"
	"github.com/garnizeh/jobmarket/internal/db"
	"github.com/garnizeh/jobmarket/internal/files"
	"github.com/garnizeh/jobmarket/internal/marketplace"
	"github.com/garnizeh/jobmarket/internal/outbox"
	"github.com/garnizeh/jobmarket/internal/repository/sqlite"
	"github.com/garnizeh/jobmarket/internal/schema"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	level := slog.LevelInfo
	if config.IsDevelopment() {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	api.SetLogger(logger)

	logger.Info("starting jobmarket server", slog.String("version", version), slog.String("build_time", buildTime))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open database connection
	database, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer database.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
			log.Fatalf("Failed to migrate DB: %v", err)
		}
	}

	repo := sqlite.New(database, logger)

	store, err := files.NewLocalStore(cfg.Upload.Dir, cfg.Upload.BaseURL)
	if err != nil {
		log.Fatalf("Failed to prepare upload dir: %v", err)
	}

	schemas, err := schema.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to compile schemas: %v", err)
	}

	// Events
	var publisher outbox.Publisher = outbox.NewLogPublisher(logger)
	if cfg.RedisURL != "" {
		rdb, err := outbox.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		publisher = outbox.NewRedisPublisher(rdb)
	}
	events := outbox.New(repo, logger, cfg.Outbox.MaxAttempts)
	workers := outbox.NewWorkerPool(repo, publisher, logger, cfg.Outbox.Workers, cfg.Outbox.PollInterval)
	workers.Start(ctx)

	// Services
	accounts := auth.NewAccounts(repo, auth.NewTokens(cfg.JWTSecret, cfg.TokenDuration))
	if cfg.Bootstrap.Email != "" {
		created, err := accounts.EnsureSuperadmin(ctx, cfg.Bootstrap.Name, cfg.Bootstrap.Email, cfg.Bootstrap.Password)
		if err != nil {
			log.Fatalf("Failed to create bootstrap superadmin: %v", err)
		}
		if created {
			logger.Info("bootstrap superadmin created", slog.String("email", cfg.Bootstrap.Email))
		}
	}

	gate := marketplace.NewGate(repo, events, logger)
	handler := api.SetupRoutes(cfg, version, buildTime, api.Services{
		Accounts:     accounts,
		Jobs:         marketplace.NewJobService(repo, gate, events, logger),
		Applications: marketplace.NewApplicationService(repo, repo, repo, events, logger),
		Gate:         gate,
		Files:        store,
		FileAccess:   marketplace.NewFileAccess(repo, repo),
		Schemas:      schemas,
		DB:           database,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-errCh:
		logger.Error("server failed", slog.Any("err", err))
	}

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("err", err))
	}
	workers.Stop()

	logger.Info("server exited")
}
