// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/trackvault/internal/middleware"
	"github.com/tomtom215/trackvault/internal/models"
	"github.com/tomtom215/trackvault/internal/streaming"
)

// LifecycleService is the lifecycle surface the handlers need.
type LifecycleService interface {
	GetTrack(ctx context.Context, userID, trackID string) (*models.Track, error)
	ListTracks(ctx context.Context, userID string) ([]*models.Track, error)
	SoftDelete(ctx context.Context, userID, trackID string) (*models.Track, error)
	Restore(ctx context.Context, userID, trackID string) (*models.Track, error)
	MarkReady(ctx context.Context, trackID string) error
}

// StreamService issues presigned stream URL payloads.
type StreamService interface {
	GetStreamURL(ctx context.Context, userID, trackID string) (*streaming.StreamURL, error)
}

// Handler serves the track endpoints.
type Handler struct {
	lifecycle LifecycleService
	streaming StreamService
	health    *HealthHandler
}

// NewHandler creates the API handler.
func NewHandler(lifecycle LifecycleService, streaming StreamService, health *HealthHandler) *Handler {
	return &Handler{
		lifecycle: lifecycle,
		streaming: streaming,
		health:    health,
	}
}

// handleListTracks returns the caller's non-deleted tracks.
//
//	GET /api/v1/tracks
func (h *Handler) handleListTracks(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	tracks, err := h.lifecycle.ListTracks(r.Context(), userID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if tracks == nil {
		tracks = []*models.Track{}
	}

	respondSuccess(w, r, http.StatusOK, map[string]any{
		"tracks": tracks,
		"total":  len(tracks),
	})
}

// handleGetTrack returns one track, including soft-deleted ones so the
// owner can see the restoration deadline.
//
//	GET /api/v1/tracks/{trackID}
func (h *Handler) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	trackID := chi.URLParam(r, "trackID")

	track, err := h.lifecycle.GetTrack(r.Context(), userID, trackID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondSuccess(w, r, http.StatusOK, track)
}

// handleDeleteTrack soft-deletes a track.
//
//	DELETE /api/v1/tracks/{trackID}
func (h *Handler) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	trackID := chi.URLParam(r, "trackID")

	track, err := h.lifecycle.SoftDelete(r.Context(), userID, trackID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondSuccess(w, r, http.StatusOK, map[string]any{
		"track":                 track,
		"scheduled_deletion_at": track.ScheduledDeletionAt,
	})
}

// handleRestoreTrack restores a soft-deleted track within its grace
// period.
//
//	POST /api/v1/tracks/{trackID}/restore
func (h *Handler) handleRestoreTrack(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	trackID := chi.URLParam(r, "trackID")

	track, err := h.lifecycle.Restore(r.Context(), userID, trackID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondSuccess(w, r, http.StatusOK, track)
}

// handleStreamURL returns a presigned, time-limited download URL for the
// track's audio.
//
//	GET /api/v1/tracks/{trackID}/stream-url
func (h *Handler) handleStreamURL(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	trackID := chi.URLParam(r, "trackID")

	presigned, err := h.streaming.GetStreamURL(r.Context(), userID, trackID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondSuccess(w, r, http.StatusOK, presigned)
}

// handleMarkReady transitions a track from processing to ready. Called by
// the upload pipeline, not end users, so it lives under /internal and is
// not subject to ownership checks.
//
//	POST /internal/v1/tracks/{trackID}/ready
func (h *Handler) handleMarkReady(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")

	if err := h.lifecycle.MarkReady(r.Context(), trackID); err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondSuccess(w, r, http.StatusOK, map[string]string{
		"track_id": trackID,
		"status":   string(models.TrackStatusReady),
	})
}
