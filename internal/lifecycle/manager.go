// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

// Package lifecycle implements the track state machine: soft deletion with
// a restore grace period, restoration, and the processing-to-ready
// transition.
//
// Deletion is logical. A soft-deleted track keeps its database row and its
// objects; only the reaper (internal/reaper) removes anything physically,
// and only after the grace period. Every transition that other systems need
// to observe is paired with a transactional outbox row, so an event exists
// exactly when the state change committed.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/trackvault/internal/database"
	"github.com/tomtom215/trackvault/internal/events"
	"github.com/tomtom215/trackvault/internal/logging"
	"github.com/tomtom215/trackvault/internal/metrics"
	"github.com/tomtom215/trackvault/internal/models"
)

// Store is the persistence surface the manager needs.
type Store interface {
	GetTrack(ctx context.Context, id string) (*models.Track, error)
	ListUserTracks(ctx context.Context, userID string) ([]*models.Track, error)
	MarkTrackReady(ctx context.Context, id string, now time.Time) error
	SoftDeleteTrack(ctx context.Context, trackID string, priorStatus models.TrackStatus,
		deletedAt, scheduledAt time.Time, msg *models.OutboxMessage) error
	RestoreTrack(ctx context.Context, trackID string, now time.Time,
		msg *models.OutboxMessage) error
}

// URLInvalidator drops cached stream URLs when a track's playability
// changes. Implemented by the streaming service.
type URLInvalidator interface {
	InvalidateTrack(ctx context.Context, userID, trackID string)
}

// Manager executes track lifecycle transitions.
type Manager struct {
	store       Store
	invalidator URLInvalidator
	topic       string
	gracePeriod time.Duration
	now         func() time.Time
}

// NewManager creates a lifecycle manager. topic is the outbox event
// subject; gracePeriod is how long soft-deleted tracks stay restorable.
func NewManager(store Store, invalidator URLInvalidator, topic string,
	gracePeriod time.Duration) *Manager {

	return &Manager{
		store:       store,
		invalidator: invalidator,
		topic:       topic,
		gracePeriod: gracePeriod,
		now:         time.Now,
	}
}

// GetTrack loads a track and verifies ownership. Soft-deleted tracks are
// returned too: the owner needs to see the deletion deadline to decide
// whether to restore.
func (m *Manager) GetTrack(ctx context.Context, userID, trackID string) (*models.Track, error) {
	track, err := m.store.GetTrack(ctx, trackID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrTrackNotFound
	}
	if err != nil {
		return nil, err
	}
	if track.UserID != userID {
		return nil, ErrAccessDenied
	}
	return track, nil
}

// ListTracks returns the user's non-deleted tracks.
func (m *Manager) ListTracks(ctx context.Context, userID string) ([]*models.Track, error) {
	return m.store.ListUserTracks(ctx, userID)
}

// MarkReady transitions a track from processing to ready. Called by the
// upload pipeline when transcoding and waveform generation finish.
func (m *Manager) MarkReady(ctx context.Context, trackID string) error {
	err := m.store.MarkTrackReady(ctx, trackID, m.now().UTC())
	if errors.Is(err, database.ErrConflict) {
		return ErrInvalidTransition
	}
	if err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Str("track_id", trackID).Msg("Track ready")
	return nil
}

// SoftDelete marks a track deleted and schedules it for physical deletion
// after the grace period. The track row update and the track.deleted outbox
// row commit in one transaction; cached stream URLs are invalidated
// afterwards on a best-effort basis.
func (m *Manager) SoftDelete(ctx context.Context, userID, trackID string) (*models.Track, error) {
	track, err := m.GetTrack(ctx, userID, trackID)
	if err != nil {
		metrics.RecordLifecycleOperation("soft_delete", "error")
		return nil, err
	}
	if track.IsDeleted() {
		metrics.RecordLifecycleOperation("soft_delete", "conflict")
		return nil, ErrAlreadyDeleted
	}

	now := m.now().UTC()
	deadline := now.Add(m.gracePeriod)
	priorStatus := track.Status

	msg, err := m.deletedMessage(ctx, track, now, deadline)
	if err != nil {
		metrics.RecordLifecycleOperation("soft_delete", "error")
		return nil, err
	}

	err = m.store.SoftDeleteTrack(ctx, trackID, priorStatus, now, deadline, msg)
	if errors.Is(err, database.ErrConflict) {
		// Lost a race with a concurrent delete.
		metrics.RecordLifecycleOperation("soft_delete", "conflict")
		return nil, ErrAlreadyDeleted
	}
	if err != nil {
		metrics.RecordLifecycleOperation("soft_delete", "error")
		return nil, err
	}

	if m.invalidator != nil {
		m.invalidator.InvalidateTrack(ctx, userID, trackID)
	}

	metrics.RecordLifecycleOperation("soft_delete", "success")
	logging.Ctx(ctx).Info().
		Str("track_id", trackID).
		Str("user_id", userID).
		Time("scheduled_deletion_at", deadline).
		Msg("Track soft-deleted")

	track.Status = models.TrackStatusDeleted
	track.StatusBeforeDeletion = priorStatus
	track.DeletedAt = &now
	track.ScheduledDeletionAt = &deadline
	track.UpdatedAt = now
	return track, nil
}

// Restore returns a soft-deleted track to its prior status. Fails with
// ErrRestorationExpired once the grace-period deadline has passed, even if
// the reaper has not physically purged the track yet: the deadline, not the
// purge, is the point of no return.
func (m *Manager) Restore(ctx context.Context, userID, trackID string) (*models.Track, error) {
	track, err := m.GetTrack(ctx, userID, trackID)
	if err != nil {
		metrics.RecordLifecycleOperation("restore", "error")
		return nil, err
	}
	if !track.IsDeleted() {
		metrics.RecordLifecycleOperation("restore", "conflict")
		return nil, ErrNotDeleted
	}

	now := m.now().UTC()
	if !track.RestorableAt(now) {
		metrics.RecordLifecycleOperation("restore", "expired")
		return nil, ErrRestorationExpired
	}

	restoredStatus := track.StatusBeforeDeletion
	msg, err := m.restoredMessage(ctx, track, restoredStatus, now)
	if err != nil {
		metrics.RecordLifecycleOperation("restore", "error")
		return nil, err
	}

	err = m.store.RestoreTrack(ctx, trackID, now, msg)
	if errors.Is(err, database.ErrConflict) {
		// The guarded UPDATE matched nothing: either a concurrent restore
		// won, or the deadline passed between our check and the write.
		metrics.RecordLifecycleOperation("restore", "conflict")
		return nil, m.classifyRestoreConflict(ctx, trackID)
	}
	if err != nil {
		metrics.RecordLifecycleOperation("restore", "error")
		return nil, err
	}

	metrics.RecordLifecycleOperation("restore", "success")
	logging.Ctx(ctx).Info().
		Str("track_id", trackID).
		Str("user_id", userID).
		Str("restored_status", string(restoredStatus)).
		Msg("Track restored")

	track.Status = restoredStatus
	track.StatusBeforeDeletion = ""
	track.DeletedAt = nil
	track.ScheduledDeletionAt = nil
	track.UpdatedAt = now
	return track, nil
}

// classifyRestoreConflict re-reads the track to turn a write conflict into
// the most truthful domain error.
func (m *Manager) classifyRestoreConflict(ctx context.Context, trackID string) error {
	track, err := m.store.GetTrack(ctx, trackID)
	if errors.Is(err, database.ErrNotFound) {
		// Purged between check and write.
		return ErrRestorationExpired
	}
	if err != nil {
		return err
	}
	if !track.IsDeleted() {
		return ErrNotDeleted
	}
	return ErrRestorationExpired
}

// deletedMessage builds the outbox row for a soft deletion.
func (m *Manager) deletedMessage(ctx context.Context, track *models.Track,
	deletedAt, deadline time.Time) (*models.OutboxMessage, error) {

	payload, err := events.Marshal(&events.TrackDeleted{
		SchemaVersion:       events.SchemaVersion,
		TrackID:             track.ID,
		UserID:              track.UserID,
		ObjectKey:           track.ObjectKey,
		WaveformObjectKey:   track.WaveformObjectKey,
		FileSizeBytes:       track.FileSizeBytes,
		DeletedAt:           deletedAt,
		ScheduledDeletionAt: deadline,
		CorrelationID:       logging.CorrelationIDFromContext(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("build track.deleted event: %w", err)
	}
	return m.outboxMessage(ctx, events.TypeTrackDeleted, track.ID, payload, deletedAt), nil
}

// restoredMessage builds the outbox row for a restoration.
func (m *Manager) restoredMessage(ctx context.Context, track *models.Track,
	restoredStatus models.TrackStatus, restoredAt time.Time) (*models.OutboxMessage, error) {

	payload, err := events.Marshal(&events.TrackRestored{
		SchemaVersion:  events.SchemaVersion,
		TrackID:        track.ID,
		UserID:         track.UserID,
		RestoredStatus: string(restoredStatus),
		RestoredAt:     restoredAt,
		CorrelationID:  logging.CorrelationIDFromContext(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("build track.restored event: %w", err)
	}
	return m.outboxMessage(ctx, events.TypeTrackRestored, track.ID, payload, restoredAt), nil
}

func (m *Manager) outboxMessage(ctx context.Context, messageType, trackID string,
	payload []byte, createdAt time.Time) *models.OutboxMessage {

	return &models.OutboxMessage{
		ID:            uuid.New().String(),
		MessageType:   messageType,
		Topic:         m.topic,
		PartitionKey:  trackID,
		Payload:       payload,
		CorrelationID: logging.CorrelationIDFromContext(ctx),
		CreatedAt:     createdAt,
	}
}
