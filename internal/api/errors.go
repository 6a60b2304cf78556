// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/trackvault/internal/lifecycle"
	"github.com/tomtom215/trackvault/internal/logging"
	"github.com/tomtom215/trackvault/internal/objectstore"
	"github.com/tomtom215/trackvault/internal/streaming"
)

// respondDomainError maps domain errors to HTTP status codes and envelope
// error codes. Unknown errors become opaque 500s; the detail goes to the
// log, not the client.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrTrackNotFound):
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "track not found")
	case errors.Is(err, lifecycle.ErrAccessDenied):
		respondError(w, r, http.StatusForbidden, "ACCESS_DENIED", "track belongs to another user")
	case errors.Is(err, lifecycle.ErrAlreadyDeleted):
		respondError(w, r, http.StatusConflict, "ALREADY_DELETED", "track is already deleted")
	case errors.Is(err, lifecycle.ErrNotDeleted):
		respondError(w, r, http.StatusConflict, "NOT_DELETED", "track is not deleted")
	case errors.Is(err, lifecycle.ErrRestorationExpired):
		respondError(w, r, http.StatusGone, "RESTORATION_EXPIRED",
			"the restoration window has expired")
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		respondError(w, r, http.StatusConflict, "INVALID_TRANSITION",
			"track is not in the required state")
	case errors.Is(err, streaming.ErrNotPlayable):
		respondError(w, r, http.StatusConflict, "NOT_PLAYABLE",
			"track is deleted or still processing")
	case errors.Is(err, objectstore.ErrUnavailable):
		respondError(w, r, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE",
			"object storage is temporarily unavailable")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Unhandled error")
		respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR",
			"internal server error")
	}
}
