package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vanishlabs/vanish/internal/api"
	"github.com/vanishlabs/vanish/internal/chat"
	"github.com/vanishlabs/vanish/internal/config"
	"github.com/vanishlabs/vanish/internal/janitor"
	"github.com/vanishlabs/vanish/internal/media"
	"github.com/vanishlabs/vanish/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize the data store: postgres in production, sqlite otherwise
	var db store.DataStore
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")

		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		db = pg
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		path := cfg.SQLitePath
		if path == "" {
			path = "./data/vanish.db"
		}
		sq, err := store.NewSQLiteStore(ctx, path)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		db = sq
		logger.Info().Str("path", path).Msg("using SQLite")
	}
	defer db.Close()

	// Initialize Redis store
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Media blob storage
	blobs, err := media.NewDirStore(cfg.MediaDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("media dir setup failed")
	}

	// Lifecycle engine
	opts := chat.Options{
		ReadBurnGrace:    cfg.ReadBurnGrace,
		SessionRetention: cfg.SessionRetention,
	}
	if redisStore != nil {
		opts.Guard = redisStore
	}
	engine := chat.NewEngine(db, blobs, logger, opts)

	// Background sweep and maintenance
	janitor.Start(ctx, logger,
		janitor.Job{
			Name:  "sweep",
			Every: cfg.SweepInterval,
			Run: func(ctx context.Context) error {
				_, err := engine.Sweep(ctx)
				return err
			},
		},
		janitor.Job{
			Name:  "maintenance",
			Every: cfg.MaintenanceInterval,
			Run: func(ctx context.Context) error {
				_, err := engine.Maintain(ctx)
				return err
			},
		},
	)

	// Create router
	router := api.NewRouter(logger, engine, db, redisStore, cfg.RateLimitPerMinute)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting vanish server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
