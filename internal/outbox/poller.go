// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

// Package outbox drains the transactional outbox to the message broker.
//
// The poller reads pending rows oldest-first, publishes each one, and
// deletes the row only after the broker acknowledged it. A crash between
// publish and delete republishes the row next cycle, so delivery is
// at-least-once; the broker deduplicates on the row ID.
package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/trackvault/internal/database"
	"github.com/tomtom215/trackvault/internal/logging"
	"github.com/tomtom215/trackvault/internal/metrics"
	"github.com/tomtom215/trackvault/internal/models"
)

// Store is the outbox persistence surface the poller needs.
type Store interface {
	PendingOutbox(ctx context.Context, limit int) ([]*models.OutboxMessage, error)
	DeleteOutboxMessage(ctx context.Context, id string) error
	RecordOutboxAttempt(ctx context.Context, id, lastError string) error
	OutboxBacklog(ctx context.Context, now time.Time) (database.OutboxStats, error)
}

// Publisher sends one outbox row to the broker.
type Publisher interface {
	Publish(ctx context.Context, row *models.OutboxMessage) error
}

// Poller periodically drains pending outbox rows to the broker.
type Poller struct {
	store     Store
	publisher Publisher
	interval  time.Duration
	batchSize int

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	running  bool
	stopping bool
	stopDone chan struct{}
}

// NewPoller creates an outbox poller.
func NewPoller(store Store, publisher Publisher, interval time.Duration, batchSize int) *Poller {
	return &Poller{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start begins the background drain loop. It runs until Stop is called or
// the context is canceled.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()

	for p.stopping {
		stopDone := p.stopDone
		p.mu.Unlock()
		<-stopDone
		p.mu.Lock()
	}

	if p.running {
		p.mu.Unlock()
		return nil
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	p.stopDone = make(chan struct{})

	loopCtx := p.ctx
	done := p.stopDone
	p.mu.Unlock()

	go p.run(loopCtx, done)

	logging.Info().
		Dur("interval", p.interval).
		Int("batch_size", p.batchSize).
		Msg("Outbox poller started")
	return nil
}

// Stop drains nothing further and waits for the loop goroutine to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running || p.stopping {
		p.mu.Unlock()
		return
	}

	p.cancel()
	p.running = false
	p.stopping = true
	stopDone := p.stopDone
	p.mu.Unlock()

	<-stopDone

	p.mu.Lock()
	p.stopping = false
	p.mu.Unlock()

	logging.Info().Msg("Outbox poller stopped")
}

// IsRunning reports whether the drain loop is active.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.DrainOnce(ctx)
		}
	}
}

// DrainOnce processes one batch of pending rows. Exported so tests and the
// shutdown path can drain without waiting for a tick.
//
// When a publish fails, rows sharing the failed row's partition key are
// skipped for the rest of the batch. Rows are read oldest-first, so this
// preserves per-track event order across retries: a track.restored never
// overtakes the track.deleted stuck in front of it.
func (p *Poller) DrainOnce(ctx context.Context) {
	pending, err := p.store.PendingOutbox(ctx, p.batchSize)
	if err != nil {
		logging.Error().Err(err).Msg("Outbox: failed to read pending rows")
		return
	}

	p.recordBacklog(ctx)

	if len(pending) == 0 {
		return
	}

	failedKeys := make(map[string]struct{})
	var published, failed, skipped int

	for _, row := range pending {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, blocked := failedKeys[row.PartitionKey]; blocked {
			skipped++
			continue
		}

		if err := p.publisher.Publish(ctx, row); err != nil {
			failed++
			failedKeys[row.PartitionKey] = struct{}{}
			metrics.OutboxPublishFailures.Inc()
			logging.Error().Err(err).
				Str("message_id", row.ID).
				Str("message_type", row.MessageType).
				Int("attempts", row.Attempts+1).
				Msg("Outbox: publish failed")

			if recErr := p.store.RecordOutboxAttempt(ctx, row.ID, err.Error()); recErr != nil {
				logging.Error().Err(recErr).Str("message_id", row.ID).
					Msg("Outbox: failed to record attempt")
			}
			continue
		}

		// Delete after the ack. Failing here is tolerable: the row is
		// republished next cycle and deduplicated broker-side.
		if err := p.store.DeleteOutboxMessage(ctx, row.ID); err != nil {
			logging.Error().Err(err).Str("message_id", row.ID).
				Msg("Outbox: failed to delete published row")
		}

		published++
		metrics.OutboxPublished.Inc()
	}

	if failed > 0 || skipped > 0 {
		logging.Warn().
			Int("published", published).
			Int("failed", failed).
			Int("skipped", skipped).
			Msg("Outbox drain incomplete")
	} else {
		logging.Debug().Int("published", published).Msg("Outbox drained")
	}
}

// recordBacklog refreshes the pending-count and oldest-age gauges.
func (p *Poller) recordBacklog(ctx context.Context) {
	stats, err := p.store.OutboxBacklog(ctx, time.Now())
	if err != nil {
		logging.Error().Err(err).Msg("Outbox: failed to read backlog stats")
		return
	}
	metrics.RecordOutboxStats(stats.Pending, stats.OldestAge)
}
