// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package models

import (
	"testing"
	"time"
)

func deletedTrack(deletedAt time.Time, grace time.Duration) *Track {
	scheduled := deletedAt.Add(grace)
	return &Track{
		ID:                   "track-1",
		UserID:               "user-1",
		Status:               TrackStatusDeleted,
		StatusBeforeDeletion: TrackStatusReady,
		DeletedAt:            &deletedAt,
		ScheduledDeletionAt:  &scheduled,
		ObjectKey:            "audio/user-1/track-1.mp3",
		MimeType:             "audio/mpeg",
	}
}

func TestTrackStatusValid(t *testing.T) {
	tests := []struct {
		status TrackStatus
		want   bool
	}{
		{TrackStatusProcessing, true},
		{TrackStatusReady, true},
		{TrackStatusDeleted, true},
		{TrackStatus("purged"), false},
		{TrackStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.Valid(); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestIsConsistent(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		track *Track
		want  bool
	}{
		{
			name:  "ready track without deletion fields",
			track: &Track{Status: TrackStatusReady},
			want:  true,
		},
		{
			name:  "deleted track with all fields",
			track: deletedTrack(now, 24*time.Hour),
			want:  true,
		},
		{
			name: "deleted track missing scheduled deadline",
			track: func() *Track {
				tr := deletedTrack(now, 24*time.Hour)
				tr.ScheduledDeletionAt = nil
				return tr
			}(),
			want: false,
		},
		{
			name: "deleted track missing prior status",
			track: func() *Track {
				tr := deletedTrack(now, 24*time.Hour)
				tr.StatusBeforeDeletion = ""
				return tr
			}(),
			want: false,
		},
		{
			name: "ready track with stale deleted_at",
			track: &Track{
				Status:    TrackStatusReady,
				DeletedAt: &now,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.track.IsConsistent(); got != tt.want {
				t.Errorf("IsConsistent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRestorableAtBoundary(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	track := deletedTrack(t0, 24*time.Hour)

	if !track.RestorableAt(t0.Add(23 * time.Hour)) {
		t.Error("restore at t0+23h should be permitted")
	}
	// The deadline instant itself is no longer restorable.
	if track.RestorableAt(t0.Add(24 * time.Hour)) {
		t.Error("restore exactly at the deadline must fail")
	}
	if track.RestorableAt(t0.Add(25 * time.Hour)) {
		t.Error("restore after the deadline must fail")
	}
}

func TestDueForPurge(t *testing.T) {
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	track := deletedTrack(t0, 24*time.Hour)

	if track.DueForPurge(t0.Add(time.Hour)) {
		t.Error("track inside grace period must not be due for purge")
	}
	if !track.DueForPurge(t0.Add(24 * time.Hour)) {
		t.Error("track at the deadline must be due for purge")
	}

	ready := &Track{Status: TrackStatusReady}
	if ready.DueForPurge(t0) {
		t.Error("non-deleted track must never be due for purge")
	}
}
