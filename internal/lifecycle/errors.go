// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package lifecycle

import "errors"

var (
	// ErrTrackNotFound is returned when the track does not exist.
	ErrTrackNotFound = errors.New("track not found")

	// ErrAccessDenied is returned when the caller does not own the track.
	ErrAccessDenied = errors.New("track belongs to another user")

	// ErrAlreadyDeleted is returned when deleting a track that is already
	// soft-deleted.
	ErrAlreadyDeleted = errors.New("track is already deleted")

	// ErrNotDeleted is returned when restoring a track that is not
	// soft-deleted.
	ErrNotDeleted = errors.New("track is not deleted")

	// ErrRestorationExpired is returned when the grace period has elapsed;
	// the track is owned by the reaper and can no longer be restored.
	ErrRestorationExpired = errors.New("restoration window has expired")

	// ErrInvalidTransition is returned when a status transition's
	// precondition does not hold, e.g. marking a non-processing track ready.
	ErrInvalidTransition = errors.New("invalid track status transition")
)
