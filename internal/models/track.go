// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

// Package models defines the core data structures shared across Trackvault:
// the Track document, its lifecycle states, and the outbox message row.
package models

import (
	"time"
)

// TrackStatus is the lifecycle state of a track.
type TrackStatus string

const (
	// TrackStatusProcessing is set by the ingestion pipeline while the
	// uploaded audio is being processed.
	TrackStatusProcessing TrackStatus = "processing"

	// TrackStatusReady means the track is playable.
	TrackStatusReady TrackStatus = "ready"

	// TrackStatusDeleted means the track is soft-deleted and awaiting
	// either restoration or physical purge by the reaper.
	TrackStatusDeleted TrackStatus = "deleted"
)

// Valid reports whether s is a known track status.
func (s TrackStatus) Valid() bool {
	switch s {
	case TrackStatusProcessing, TrackStatusReady, TrackStatusDeleted:
		return true
	}
	return false
}

// Track is the authoritative document for an uploaded audio track.
//
// Deletion bookkeeping invariant: Status == deleted if and only if
// DeletedAt, ScheduledDeletionAt and StatusBeforeDeletion are all set;
// all three are nil/empty otherwise. IsConsistent checks this.
type Track struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	Status TrackStatus `json:"status"`

	// StatusBeforeDeletion is the status Restore returns the track to.
	// Set only while Status == deleted.
	StatusBeforeDeletion TrackStatus `json:"status_before_deletion,omitempty"`

	// DeletedAt is when the track was soft-deleted.
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	// ScheduledDeletionAt = DeletedAt + grace period. Once this instant
	// passes, the reaper owns the record and restoration must fail.
	ScheduledDeletionAt *time.Time `json:"scheduled_deletion_at,omitempty"`

	// Storage coordinates, immutable after creation.
	ObjectKey         string `json:"object_key"`
	WaveformObjectKey string `json:"waveform_object_key,omitempty"`
	FileSizeBytes     int64  `json:"file_size_bytes"`
	MimeType          string `json:"mime_type"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDeleted reports whether the track is soft-deleted.
func (t *Track) IsDeleted() bool {
	return t.Status == TrackStatusDeleted
}

// IsConsistent verifies the deletion bookkeeping invariant.
func (t *Track) IsConsistent() bool {
	if t.Status == TrackStatusDeleted {
		return t.DeletedAt != nil && t.ScheduledDeletionAt != nil && t.StatusBeforeDeletion != ""
	}
	return t.DeletedAt == nil && t.ScheduledDeletionAt == nil && t.StatusBeforeDeletion == ""
}

// RestorableAt reports whether the track can still be restored at the given
// instant. Restoration is permitted strictly before ScheduledDeletionAt.
func (t *Track) RestorableAt(now time.Time) bool {
	if !t.IsDeleted() || t.ScheduledDeletionAt == nil {
		return false
	}
	return now.Before(*t.ScheduledDeletionAt)
}

// DueForPurge reports whether the grace period has elapsed and the reaper
// may permanently remove the track.
func (t *Track) DueForPurge(now time.Time) bool {
	if !t.IsDeleted() || t.ScheduledDeletionAt == nil {
		return false
	}
	return !now.Before(*t.ScheduledDeletionAt)
}
