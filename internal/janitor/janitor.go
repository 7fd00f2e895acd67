// Package janitor runs the engine's periodic tasks. The engine itself owns
// no timers: tests invoke sweep and maintenance synchronously, deployments
// wire them up here or call them from external cron via cmd/sweep.
package janitor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Job is a named periodic task.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Start launches one goroutine per job, each ticking at its interval until
// the context is cancelled. Job failures and panics are logged; the ticker
// keeps going.
func Start(ctx context.Context, logger zerolog.Logger, jobs ...Job) {
	for _, job := range jobs {
		go run(ctx, logger, job)
	}
}

func run(ctx context.Context, logger zerolog.Logger, job Job) {
	logger.Info().
		Str("job", job.Name).
		Dur("interval", job.Every).
		Msg("janitor job scheduled")

	ticker := time.NewTicker(job.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Str("job", job.Name).Msg("janitor job stopped")
			return
		case <-ticker.C:
			invoke(ctx, logger, job)
		}
	}
}

func invoke(ctx context.Context, logger zerolog.Logger, job Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("job", job.Name).Interface("panic", r).Msg("janitor job panicked")
		}
	}()

	if err := job.Run(ctx); err != nil {
		logger.Error().Err(err).Str("job", job.Name).Msg("janitor job failed")
	}
}
