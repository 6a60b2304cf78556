// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

// Package events defines the durable event payloads published on the outbox
// topic. These schemas are a contract with downstream consumers: fields are
// additive only, and any breaking change requires a schema_version bump
// carried in the payload.
//
// Consumers must tolerate duplicates — outbox delivery is at-least-once —
// and deduplicate per correlation ID or track ID.
package events

import (
	"errors"
	"fmt"
	"time"
)

// Message types carried in OutboxMessage.MessageType.
const (
	TypeTrackDeleted  = "track.deleted"
	TypeTrackRestored = "track.restored"
)

// SchemaVersion is the current payload schema version.
const SchemaVersion = 1

// TrackDeleted is published when a track is soft-deleted. It carries
// everything a downstream consumer needs to act on the deletion without
// loading the track, because by the time the event is consumed the track
// document may already have been purged.
type TrackDeleted struct {
	SchemaVersion int    `json:"schema_version"`
	TrackID       string `json:"track_id"`
	UserID        string `json:"user_id"`

	ObjectKey         string `json:"object_key"`
	WaveformObjectKey string `json:"waveform_object_key,omitempty"`
	FileSizeBytes     int64  `json:"file_size_bytes"`

	DeletedAt           time.Time `json:"deleted_at"`
	ScheduledDeletionAt time.Time `json:"scheduled_deletion_at"`

	CorrelationID string `json:"correlation_id"`
}

// Validate checks required fields before serialization.
func (e *TrackDeleted) Validate() error {
	if e.TrackID == "" {
		return errors.New("track_id is required")
	}
	if e.UserID == "" {
		return errors.New("user_id is required")
	}
	if e.ObjectKey == "" {
		return errors.New("object_key is required")
	}
	if e.DeletedAt.IsZero() || e.ScheduledDeletionAt.IsZero() {
		return errors.New("deletion timestamps are required")
	}
	if !e.ScheduledDeletionAt.After(e.DeletedAt) {
		return fmt.Errorf("scheduled_deletion_at %s must be after deleted_at %s",
			e.ScheduledDeletionAt.Format(time.RFC3339), e.DeletedAt.Format(time.RFC3339))
	}
	return nil
}

// TrackRestored is published when a soft-deleted track is restored within
// its grace period, so consumers that reacted to the deletion can undo.
type TrackRestored struct {
	SchemaVersion int    `json:"schema_version"`
	TrackID       string `json:"track_id"`
	UserID        string `json:"user_id"`

	// RestoredStatus is the status the track returned to.
	RestoredStatus string    `json:"restored_status"`
	RestoredAt     time.Time `json:"restored_at"`

	CorrelationID string `json:"correlation_id"`
}

// Validate checks required fields before serialization.
func (e *TrackRestored) Validate() error {
	if e.TrackID == "" {
		return errors.New("track_id is required")
	}
	if e.UserID == "" {
		return errors.New("user_id is required")
	}
	if e.RestoredStatus == "" {
		return errors.New("restored_status is required")
	}
	if e.RestoredAt.IsZero() {
		return errors.New("restored_at is required")
	}
	return nil
}
