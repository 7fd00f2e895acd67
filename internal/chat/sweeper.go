package chat

import (
	"context"
	"time"

	"github.com/vanishlabs/vanish/internal/metrics"
	"github.com/vanishlabs/vanish/internal/models"
	apperrors "github.com/vanishlabs/vanish/pkg/errors"
)

// sweepLockTTL bounds how long a crashed sweep can hold the guard.
const sweepLockTTL = 10 * time.Minute

// Sweep finds every message satisfying an expiry condition and physically
// deletes it in bounded batches. Media blobs are removed only after all DB
// batches commit: a crash in between leaves an orphan blob (harmless,
// reclaimable) rather than a row whose blob has vanished.
//
// Safe to run concurrently with live traffic and with itself: eligibility is
// recomputed from persisted state and a double-attempted delete affects zero
// rows the second time.
func (e *Engine) Sweep(ctx context.Context) (models.SweepResult, error) {
	if e.guard != nil {
		if !e.guard.AcquireSweepLock(ctx, sweepLockTTL) {
			e.logger.Info().Msg("sweep already in progress, skipping")
			metrics.SweepRuns.WithLabelValues("skipped").Inc()
			return models.SweepResult{Skipped: true}, nil
		}
		defer e.guard.ReleaseSweepLock(ctx)
	}

	start := time.Now()
	candidates, err := e.db.SelectPurgeable(ctx, e.now(), e.grace)
	if err != nil {
		metrics.SweepRuns.WithLabelValues("error").Inc()
		return models.SweepResult{}, apperrors.Internal("failed to select purgeable messages", err)
	}

	var result models.SweepResult
	var mediaURLs []string

	for i := 0; i < len(candidates); i += purgeBatchSize {
		end := i + purgeBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[i:end]

		ids := make([]string, len(batch))
		for j, c := range batch {
			ids[j] = c.ID
		}

		deleted, err := e.db.PurgeBatch(ctx, ids)
		if err != nil {
			// A partial sweep is strictly better than none; the next run
			// picks these rows up again. Their blobs stay put too: the
			// rows are still live and still reference them.
			e.logger.Error().Err(err).
				Int("batch_start", i).
				Int("batch_size", len(batch)).
				Msg("purge batch failed")
			continue
		}
		result.DeletedCount += deleted

		// Only blobs of committed deletions are eligible for unlinking.
		for _, c := range batch {
			if c.MediaURL != nil && *c.MediaURL != "" {
				mediaURLs = append(mediaURLs, *c.MediaURL)
			}
		}
	}

	// DB work is committed; only now touch storage.
	for _, url := range mediaURLs {
		e.removeBlob(&url)
	}
	result.MediaFilesCount = int64(len(mediaURLs))

	metrics.SweepRuns.WithLabelValues("ok").Inc()
	metrics.MessagesPurged.WithLabelValues("sweep").Add(float64(result.DeletedCount))

	e.logger.Info().
		Int64("deleted", result.DeletedCount).
		Int64("media_files", result.MediaFilesCount).
		Dur("elapsed", time.Since(start)).
		Msg("sweep completed")

	return result, nil
}

// Maintain is the low-frequency janitor covering invariant drift rather than
// expiry: it removes sessions that never held a message and aged past the
// retention window, re-checks the membership cascade, and re-nulls any
// tombstone that still carries payload. Each step logs and continues on
// failure.
func (e *Engine) Maintain(ctx context.Context) (models.MaintenanceResult, error) {
	var result models.MaintenanceResult
	var firstErr error

	cutoff := e.now().Add(-e.retention)
	sessions, err := e.db.DeleteEmptySessions(ctx, cutoff)
	if err != nil {
		e.logger.Error().Err(err).Msg("empty session cleanup failed")
		firstErr = err
	}
	result.EmptySessionsRemoved = sessions

	memberships, err := e.db.DeleteOrphanMemberships(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("orphan membership cleanup failed")
		if firstErr == nil {
			firstErr = err
		}
	}
	result.OrphanMembershipsRemoved = memberships

	rezeroed, err := e.db.RezeroTombstones(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("tombstone rezero failed")
		if firstErr == nil {
			firstErr = err
		}
	}
	result.RezeroedMessages = rezeroed

	if rezeroed > 0 {
		// The primary purge path should never leave payload behind.
		e.logger.Warn().Int64("count", rezeroed).Msg("tombstones retained payload, re-nulled")
	}

	e.logger.Info().
		Int64("empty_sessions", result.EmptySessionsRemoved).
		Int64("orphan_memberships", result.OrphanMembershipsRemoved).
		Int64("rezeroed", result.RezeroedMessages).
		Msg("maintenance completed")

	if firstErr != nil {
		return result, apperrors.Internal("maintenance pass incomplete", firstErr)
	}
	return result, nil
}
