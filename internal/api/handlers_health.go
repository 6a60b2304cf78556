// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/trackvault/internal/database"
)

// Pinger checks database liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OutboxInspector exposes the outbox backlog for health reporting.
type OutboxInspector interface {
	OutboxBacklog(ctx context.Context, now time.Time) (database.OutboxStats, error)
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db     Pinger
	outbox OutboxInspector

	// maxBacklogAge marks readiness degraded when the oldest pending
	// outbox row exceeds it. Events are delayed, not lost, so this warns
	// without failing the probe.
	maxBacklogAge time.Duration
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(db Pinger, outbox OutboxInspector, maxBacklogAge time.Duration) *HealthHandler {
	return &HealthHandler{db: db, outbox: outbox, maxBacklogAge: maxBacklogAge}
}

// handleLiveness always succeeds while the process serves requests.
//
//	GET /healthz
func (h *HealthHandler) handleLiveness(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// handleReadiness checks the database and reports outbox backlog health.
//
//	GET /readyz
func (h *HealthHandler) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		respondError(w, r, http.StatusServiceUnavailable, "DATABASE_UNAVAILABLE",
			"database ping failed")
		return
	}

	status := "ready"
	detail := map[string]any{}

	stats, err := h.outbox.OutboxBacklog(ctx, time.Now())
	if err == nil {
		detail["outbox_pending"] = stats.Pending
		detail["outbox_oldest_age_seconds"] = int64(stats.OldestAge.Seconds())
		if stats.OldestAge > h.maxBacklogAge {
			status = "degraded"
		}
	}

	detail["status"] = status
	respondSuccess(w, r, http.StatusOK, detail)
}
