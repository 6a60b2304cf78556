// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

// Package reaper physically deletes soft-deleted tracks once their grace
// period has elapsed. It is the only component that removes data
// permanently.
//
// Per track the order is fixed: storage objects first, database row last.
// The row is the source of truth for what still needs deleting, so it may
// only disappear after every object is gone. A failure at any step leaves
// the row in place and the track is retried next cycle; object deletion is
// idempotent, so re-deleting an already-removed object is harmless.
package reaper

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/trackvault/internal/logging"
	"github.com/tomtom215/trackvault/internal/metrics"
	"github.com/tomtom215/trackvault/internal/models"
)

// Store is the persistence surface the reaper needs.
type Store interface {
	TracksDueForPurge(ctx context.Context, now time.Time, limit int) ([]*models.Track, error)
	PurgeTrack(ctx context.Context, trackID string, now time.Time) (bool, error)
}

// ObjectDeleter removes stored objects. Deleting an absent object must
// succeed.
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, objectKey string) error
}

// Reaper is the background purge loop.
type Reaper struct {
	store     Store
	objects   ObjectDeleter
	interval  time.Duration
	batchSize int
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	running  bool
	stopping bool
	stopDone chan struct{}
}

// New creates a reaper.
func New(store Store, objects ObjectDeleter, interval time.Duration, batchSize int) *Reaper {
	return &Reaper{
		store:     store,
		objects:   objects,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Start begins the background purge loop.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()

	for r.stopping {
		stopDone := r.stopDone
		r.mu.Unlock()
		<-stopDone
		r.mu.Lock()
	}

	if r.running {
		r.mu.Unlock()
		return nil
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	r.running = true
	r.stopDone = make(chan struct{})

	loopCtx := r.ctx
	done := r.stopDone
	r.mu.Unlock()

	go r.run(loopCtx, done)

	logging.Info().
		Dur("interval", r.interval).
		Int("batch_size", r.batchSize).
		Msg("Reaper started")
	return nil
}

// Stop waits for the loop goroutine to exit. An in-flight cycle finishes
// its current track but not the rest of its batch.
func (r *Reaper) Stop() {
	r.mu.Lock()
	if !r.running || r.stopping {
		r.mu.Unlock()
		return
	}

	r.cancel()
	r.running = false
	r.stopping = true
	stopDone := r.stopDone
	r.mu.Unlock()

	<-stopDone

	r.mu.Lock()
	r.stopping = false
	r.mu.Unlock()

	logging.Info().Msg("Reaper stopped")
}

// IsRunning reports whether the purge loop is active.
func (r *Reaper) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Reaper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce processes one batch of due tracks. Exported for tests.
func (r *Reaper) RunOnce(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.ReaperCycleDuration.Observe(time.Since(start).Seconds())
	}()

	now := r.now().UTC()

	due, err := r.store.TracksDueForPurge(ctx, now, r.batchSize)
	if err != nil {
		logging.Error().Err(err).Msg("Reaper: failed to query due tracks")
		return
	}
	if len(due) == 0 {
		return
	}

	var purged, failed int
	for _, track := range due {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if r.purgeTrack(ctx, track, now) {
			purged++
		} else {
			failed++
		}
	}

	logging.Info().
		Int("purged", purged).
		Int("failed", failed).
		Msg("Reaper cycle complete")
}

// purgeTrack deletes one track's objects and then its row. Returns false
// when the track stays behind for the next cycle.
func (r *Reaper) purgeTrack(ctx context.Context, track *models.Track, now time.Time) bool {
	keys := []string{track.ObjectKey}
	if track.WaveformObjectKey != "" {
		keys = append(keys, track.WaveformObjectKey)
	}

	for _, key := range keys {
		if err := r.objects.DeleteObject(ctx, key); err != nil {
			metrics.ReaperFailures.WithLabelValues("storage_delete").Inc()
			logging.Error().Err(err).
				Str("track_id", track.ID).
				Str("object_key", key).
				Msg("Reaper: object deletion failed, keeping track for retry")
			return false
		}
	}

	purged, err := r.store.PurgeTrack(ctx, track.ID, now)
	if err != nil {
		metrics.ReaperFailures.WithLabelValues("purge").Inc()
		logging.Error().Err(err).
			Str("track_id", track.ID).
			Msg("Reaper: row purge failed")
		return false
	}
	if !purged {
		// The guarded DELETE matched nothing: the track's state changed
		// since the batch was read. Nothing to retry.
		logging.Warn().Str("track_id", track.ID).Msg("Reaper: purge skipped, track state changed")
		return true
	}

	metrics.ReaperPurges.Inc()
	logging.Info().
		Str("track_id", track.ID).
		Str("user_id", track.UserID).
		Int64("file_size_bytes", track.FileSizeBytes).
		Msg("Track purged")
	return true
}
