package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/vanishlabs/vanish/internal/chat"
	"github.com/vanishlabs/vanish/internal/config"
	"github.com/vanishlabs/vanish/internal/media"
	"github.com/vanishlabs/vanish/internal/store"
)

// One-shot runner for external schedulers: runs a sweep, a maintenance pass,
// or both, then exits non-zero on failure.
func main() {
	task := flag.String("task", "sweep", "task to run: sweep, maintenance or all")
	flag.Parse()

	cfg := config.Load()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var db store.DataStore
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		db = pg
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
	}
	defer db.Close()

	blobs, err := media.NewDirStore(cfg.MediaDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("media dir setup failed")
	}

	opts := chat.Options{
		ReadBurnGrace:    cfg.ReadBurnGrace,
		SessionRetention: cfg.SessionRetention,
	}
	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		opts.Guard = redisStore
	}
	engine := chat.NewEngine(db, blobs, logger, opts)

	failed := false
	if *task == "sweep" || *task == "all" {
		result, err := engine.Sweep(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("sweep failed")
			failed = true
		} else {
			logger.Info().
				Int64("deleted", result.DeletedCount).
				Int64("media_files", result.MediaFilesCount).
				Bool("skipped", result.Skipped).
				Msg("sweep finished")
		}
	}
	if *task == "maintenance" || *task == "all" {
		result, err := engine.Maintain(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("maintenance failed")
			failed = true
		} else {
			logger.Info().
				Int64("empty_sessions", result.EmptySessionsRemoved).
				Int64("orphan_memberships", result.OrphanMembershipsRemoved).
				Int64("rezeroed", result.RezeroedMessages).
				Msg("maintenance finished")
		}
	}
	if *task != "sweep" && *task != "maintenance" && *task != "all" {
		logger.Fatal().Str("task", *task).Msg("unknown task")
	}

	if failed {
		os.Exit(1)
	}
}
