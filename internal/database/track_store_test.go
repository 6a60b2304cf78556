// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/trackvault/internal/config"
	"github.com/tomtom215/trackvault/internal/models"
)

// newTestDB opens an in-memory DuckDB instance.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&config.DatabaseConfig{Path: ""})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func insertReadyTrack(t *testing.T, db *DB, trackID, userID string) *models.Track {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	track := &models.Track{
		ID:            trackID,
		UserID:        userID,
		Status:        models.TrackStatusReady,
		ObjectKey:     "audio/" + userID + "/" + trackID + ".mp3",
		FileSizeBytes: 1 << 20,
		MimeType:      "audio/mpeg",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.InsertTrack(context.Background(), track); err != nil {
		t.Fatalf("InsertTrack() error: %v", err)
	}
	return track
}

func deletionMessage(trackID string) *models.OutboxMessage {
	payload, _ := json.Marshal(map[string]string{"track_id": trackID})
	return &models.OutboxMessage{
		ID:            uuid.New().String(),
		MessageType:   "track.deleted",
		Topic:         "tracks.lifecycle",
		PartitionKey:  trackID,
		Payload:       payload,
		CorrelationID: uuid.New().String(),
		CreatedAt:     time.Now().UTC(),
	}
}

func TestGetTrackNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetTrack(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTrack(missing) = %v, want ErrNotFound", err)
	}
}

func TestInsertAndGetTrack(t *testing.T) {
	db := newTestDB(t)
	want := insertReadyTrack(t, db, "track-1", "user-1")

	got, err := db.GetTrack(context.Background(), "track-1")
	if err != nil {
		t.Fatalf("GetTrack() error: %v", err)
	}
	if got.UserID != want.UserID || got.Status != models.TrackStatusReady {
		t.Errorf("GetTrack() = %+v", got)
	}
	if !got.IsConsistent() {
		t.Error("loaded track violates deletion invariant")
	}
}

func TestSoftDeleteWritesTrackAndOutboxAtomically(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	insertReadyTrack(t, db, "track-1", "user-1")

	now := time.Now().UTC().Truncate(time.Microsecond)
	deadline := now.Add(24 * time.Hour)
	msg := deletionMessage("track-1")

	err := db.SoftDeleteTrack(ctx, "track-1", models.TrackStatusReady, now, deadline, msg)
	if err != nil {
		t.Fatalf("SoftDeleteTrack() error: %v", err)
	}

	track, err := db.GetTrack(ctx, "track-1")
	if err != nil {
		t.Fatalf("GetTrack() error: %v", err)
	}
	if track.Status != models.TrackStatusDeleted {
		t.Errorf("Status = %s, want deleted", track.Status)
	}
	if track.StatusBeforeDeletion != models.TrackStatusReady {
		t.Errorf("StatusBeforeDeletion = %s, want ready", track.StatusBeforeDeletion)
	}
	if !track.IsConsistent() {
		t.Error("deleted track violates deletion invariant")
	}
	if track.ScheduledDeletionAt == nil || !track.ScheduledDeletionAt.Equal(deadline) {
		t.Errorf("ScheduledDeletionAt = %v, want %s", track.ScheduledDeletionAt, deadline)
	}

	pending, err := db.PendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("PendingOutbox() error: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("len(pending) = %d, want 1", len(pending))
	}
	if pending[0].ID != msg.ID || pending[0].PartitionKey != "track-1" {
		t.Errorf("pending outbox = %+v", pending[0])
	}
}

func TestSoftDeleteTwiceConflicts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	insertReadyTrack(t, db, "track-1", "user-1")

	now := time.Now().UTC()
	deadline := now.Add(24 * time.Hour)

	if err := db.SoftDeleteTrack(ctx, "track-1", models.TrackStatusReady, now, deadline,
		deletionMessage("track-1")); err != nil {
		t.Fatalf("first SoftDeleteTrack() error: %v", err)
	}

	err := db.SoftDeleteTrack(ctx, "track-1", models.TrackStatusReady, now, deadline,
		deletionMessage("track-1"))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("second SoftDeleteTrack() = %v, want ErrConflict", err)
	}

	// The losing call must not leave an extra outbox row behind.
	pending, err := db.PendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("PendingOutbox() error: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("len(pending) = %d, want 1", len(pending))
	}
}

func TestRestoreBeforeDeadline(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	insertReadyTrack(t, db, "track-1", "user-1")

	t0 := time.Now().UTC().Truncate(time.Microsecond)
	deadline := t0.Add(24 * time.Hour)
	if err := db.SoftDeleteTrack(ctx, "track-1", models.TrackStatusReady, t0, deadline,
		deletionMessage("track-1")); err != nil {
		t.Fatalf("SoftDeleteTrack() error: %v", err)
	}

	if err := db.RestoreTrack(ctx, "track-1", t0.Add(23*time.Hour), nil); err != nil {
		t.Fatalf("RestoreTrack() error: %v", err)
	}

	track, err := db.GetTrack(ctx, "track-1")
	if err != nil {
		t.Fatalf("GetTrack() error: %v", err)
	}
	if track.Status != models.TrackStatusReady {
		t.Errorf("Status = %s, want ready", track.Status)
	}
	if track.DeletedAt != nil || track.ScheduledDeletionAt != nil || track.StatusBeforeDeletion != "" {
		t.Errorf("deletion fields not cleared: %+v", track)
	}
	if !track.IsConsistent() {
		t.Error("restored track violates deletion invariant")
	}
}

func TestRestoreAfterDeadlineConflicts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	insertReadyTrack(t, db, "track-1", "user-1")

	t0 := time.Now().UTC().Add(-25 * time.Hour)
	deadline := t0.Add(24 * time.Hour) // already in the past
	if err := db.SoftDeleteTrack(ctx, "track-1", models.TrackStatusReady, t0, deadline,
		deletionMessage("track-1")); err != nil {
		t.Fatalf("SoftDeleteTrack() error: %v", err)
	}

	err := db.RestoreTrack(ctx, "track-1", time.Now().UTC(), nil)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("RestoreTrack() after deadline = %v, want ErrConflict", err)
	}

	// State unchanged: still deleted.
	track, _ := db.GetTrack(ctx, "track-1")
	if track.Status != models.TrackStatusDeleted {
		t.Errorf("Status after failed restore = %s, want deleted", track.Status)
	}
}

func TestRestoreWithOutboxMessage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	insertReadyTrack(t, db, "track-1", "user-1")

	t0 := time.Now().UTC()
	if err := db.SoftDeleteTrack(ctx, "track-1", models.TrackStatusReady, t0,
		t0.Add(24*time.Hour), deletionMessage("track-1")); err != nil {
		t.Fatalf("SoftDeleteTrack() error: %v", err)
	}

	restoreMsg := deletionMessage("track-1")
	restoreMsg.MessageType = "track.restored"
	if err := db.RestoreTrack(ctx, "track-1", t0.Add(time.Hour), restoreMsg); err != nil {
		t.Fatalf("RestoreTrack() error: %v", err)
	}

	pending, err := db.PendingOutbox(ctx, 10)
	if err != nil {
		t.Fatalf("PendingOutbox() error: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("len(pending) = %d, want 2 (delete + restore)", len(pending))
	}
}

func TestTracksDueForPurge(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Past deadline: due.
	insertReadyTrack(t, db, "track-due", "user-1")
	if err := db.SoftDeleteTrack(ctx, "track-due", models.TrackStatusReady,
		now.Add(-25*time.Hour), now.Add(-time.Hour), deletionMessage("track-due")); err != nil {
		t.Fatalf("SoftDeleteTrack() error: %v", err)
	}

	// Future deadline: not due.
	insertReadyTrack(t, db, "track-fresh", "user-1")
	if err := db.SoftDeleteTrack(ctx, "track-fresh", models.TrackStatusReady,
		now, now.Add(24*time.Hour), deletionMessage("track-fresh")); err != nil {
		t.Fatalf("SoftDeleteTrack() error: %v", err)
	}

	// Not deleted at all.
	insertReadyTrack(t, db, "track-live", "user-1")

	due, err := db.TracksDueForPurge(ctx, now, 10)
	if err != nil {
		t.Fatalf("TracksDueForPurge() error: %v", err)
	}
	if len(due) != 1 || due[0].ID != "track-due" {
		t.Errorf("TracksDueForPurge() = %+v, want only track-due", due)
	}
}

func TestPurgeTrackSkipsRestored(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insertReadyTrack(t, db, "track-1", "user-1")
	if err := db.SoftDeleteTrack(ctx, "track-1", models.TrackStatusReady,
		now.Add(-25*time.Hour), now.Add(-time.Hour), deletionMessage("track-1")); err != nil {
		t.Fatalf("SoftDeleteTrack() error: %v", err)
	}

	purged, err := db.PurgeTrack(ctx, "track-1", now)
	if err != nil {
		t.Fatalf("PurgeTrack() error: %v", err)
	}
	if !purged {
		t.Error("PurgeTrack() = false, want true for due track")
	}
	if _, err := db.GetTrack(ctx, "track-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTrack() after purge = %v, want ErrNotFound", err)
	}

	// A track that is no longer deleted is skipped, not an error.
	insertReadyTrack(t, db, "track-2", "user-1")
	purged, err = db.PurgeTrack(ctx, "track-2", now)
	if err != nil {
		t.Fatalf("PurgeTrack() error: %v", err)
	}
	if purged {
		t.Error("PurgeTrack() on live track = true, want false (predicate mismatch)")
	}
}

func TestMarkTrackReady(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	track := &models.Track{
		ID:            "track-1",
		UserID:        "user-1",
		Status:        models.TrackStatusProcessing,
		ObjectKey:     "audio/user-1/track-1.mp3",
		FileSizeBytes: 1,
		MimeType:      "audio/mpeg",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.InsertTrack(ctx, track); err != nil {
		t.Fatalf("InsertTrack() error: %v", err)
	}

	if err := db.MarkTrackReady(ctx, "track-1", now); err != nil {
		t.Fatalf("MarkTrackReady() error: %v", err)
	}

	// Second transition is a conflict: the track is no longer processing.
	if err := db.MarkTrackReady(ctx, "track-1", now); !errors.Is(err, ErrConflict) {
		t.Errorf("second MarkTrackReady() = %v, want ErrConflict", err)
	}
}

func TestListUserTracksHidesDeleted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insertReadyTrack(t, db, "track-1", "user-1")
	insertReadyTrack(t, db, "track-2", "user-1")
	insertReadyTrack(t, db, "track-other", "user-2")

	if err := db.SoftDeleteTrack(ctx, "track-2", models.TrackStatusReady,
		now, now.Add(24*time.Hour), deletionMessage("track-2")); err != nil {
		t.Fatalf("SoftDeleteTrack() error: %v", err)
	}

	tracks, err := db.ListUserTracks(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListUserTracks() error: %v", err)
	}
	if len(tracks) != 1 || tracks[0].ID != "track-1" {
		t.Errorf("ListUserTracks() = %+v, want only track-1", tracks)
	}
}
