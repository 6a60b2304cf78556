// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/trackvault/internal/database"
	"github.com/tomtom215/trackvault/internal/models"
)

type fakeOutboxStore struct {
	rows     []*models.OutboxMessage
	attempts map[string]int
}

func newFakeOutboxStore(rows ...*models.OutboxMessage) *fakeOutboxStore {
	return &fakeOutboxStore{rows: rows, attempts: make(map[string]int)}
}

func (s *fakeOutboxStore) PendingOutbox(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	if limit > len(s.rows) {
		limit = len(s.rows)
	}
	out := make([]*models.OutboxMessage, limit)
	copy(out, s.rows[:limit])
	return out, nil
}

func (s *fakeOutboxStore) DeleteOutboxMessage(ctx context.Context, id string) error {
	for i, row := range s.rows {
		if row.ID == id {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *fakeOutboxStore) RecordOutboxAttempt(ctx context.Context, id, lastError string) error {
	s.attempts[id]++
	return nil
}

func (s *fakeOutboxStore) OutboxBacklog(ctx context.Context, now time.Time) (database.OutboxStats, error) {
	return database.OutboxStats{Pending: int64(len(s.rows))}, nil
}

// failingPublisher fails for the configured row IDs and records the order of
// successful publishes.
type failingPublisher struct {
	failIDs   map[string]bool
	published []string
}

func (p *failingPublisher) Publish(ctx context.Context, row *models.OutboxMessage) error {
	if p.failIDs[row.ID] {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, row.ID)
	return nil
}

func row(id, partitionKey string, createdAt time.Time) *models.OutboxMessage {
	return &models.OutboxMessage{
		ID:           id,
		MessageType:  "track.deleted",
		Topic:        "tracks.lifecycle",
		PartitionKey: partitionKey,
		Payload:      []byte(`{}`),
		CreatedAt:    createdAt,
	}
}

func TestDrainOncePublishesAndDeletes(t *testing.T) {
	t0 := time.Now().UTC()
	store := newFakeOutboxStore(
		row("m1", "track-1", t0),
		row("m2", "track-2", t0.Add(time.Second)),
	)
	pub := &failingPublisher{}
	p := NewPoller(store, pub, time.Second, 100)

	p.DrainOnce(context.Background())

	if len(pub.published) != 2 {
		t.Fatalf("published %d rows, want 2", len(pub.published))
	}
	if len(store.rows) != 0 {
		t.Errorf("%d rows left pending, want 0", len(store.rows))
	}
}

func TestDrainOnceSkipsFailedPartitionKey(t *testing.T) {
	t0 := time.Now().UTC()
	store := newFakeOutboxStore(
		row("m1", "track-1", t0),                      // will fail
		row("m2", "track-1", t0.Add(time.Second)),     // same track: must be skipped
		row("m3", "track-2", t0.Add(2*time.Second)),   // different track: proceeds
	)
	pub := &failingPublisher{failIDs: map[string]bool{"m1": true}}
	p := NewPoller(store, pub, time.Second, 100)

	p.DrainOnce(context.Background())

	if len(pub.published) != 1 || pub.published[0] != "m3" {
		t.Errorf("published = %v, want [m3]: later events for a stuck track must wait", pub.published)
	}

	// m1 and m2 stay pending; only m1 gets an attempt recorded.
	if len(store.rows) != 2 {
		t.Errorf("%d rows pending, want 2", len(store.rows))
	}
	if store.attempts["m1"] != 1 {
		t.Errorf("attempts[m1] = %d, want 1", store.attempts["m1"])
	}
	if store.attempts["m2"] != 0 {
		t.Errorf("attempts[m2] = %d, want 0 (skipped, not failed)", store.attempts["m2"])
	}
}

func TestDrainOnceRespectsBatchSize(t *testing.T) {
	t0 := time.Now().UTC()
	store := newFakeOutboxStore(
		row("m1", "track-1", t0),
		row("m2", "track-2", t0.Add(time.Second)),
		row("m3", "track-3", t0.Add(2*time.Second)),
	)
	pub := &failingPublisher{}
	p := NewPoller(store, pub, time.Second, 2)

	p.DrainOnce(context.Background())

	if len(pub.published) != 2 {
		t.Errorf("published %d rows, want batch size 2", len(pub.published))
	}
	if len(store.rows) != 1 {
		t.Errorf("%d rows pending, want 1", len(store.rows))
	}
}

func TestStartStop(t *testing.T) {
	store := newFakeOutboxStore()
	p := NewPoller(store, &failingPublisher{}, 10*time.Millisecond, 10)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !p.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	// Second Start is a no-op.
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("second Start() error: %v", err)
	}

	p.Stop()
	if p.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}

	// Stop is idempotent.
	p.Stop()
}
