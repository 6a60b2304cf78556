// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

// Package metrics provides Prometheus instrumentation for Trackvault.
//
// Covered subsystems:
//   - Track lifecycle operations (soft delete, restore)
//   - Outbox publisher (pending backlog, publishes, failures)
//   - Physical deletion reaper (purges, storage failures, cycle duration)
//   - Stream URL cache (hits, misses, invalidations)
//   - Object store presigning (latency, failures)
//   - HTTP request latency and status codes
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Lifecycle metrics

	LifecycleOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackvault_lifecycle_operations_total",
			Help: "Track lifecycle operations by type and outcome",
		},
		[]string{"operation", "outcome"}, // operation: soft_delete, restore, mark_ready
	)

	// Outbox metrics

	OutboxPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trackvault_outbox_pending",
			Help: "Number of outbox messages awaiting publication",
		},
	)

	OutboxOldestAgeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trackvault_outbox_oldest_age_seconds",
			Help: "Age of the oldest pending outbox message",
		},
	)

	OutboxPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackvault_outbox_published_total",
			Help: "Outbox messages successfully published to the broker",
		},
	)

	OutboxPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackvault_outbox_publish_failures_total",
			Help: "Outbox publish attempts that failed and were left for retry",
		},
	)

	// Reaper metrics

	ReaperPurges = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackvault_reaper_purged_total",
			Help: "Tracks permanently purged by the reaper",
		},
	)

	ReaperFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackvault_reaper_failures_total",
			Help: "Reaper failures by stage (storage_delete, purge)",
		},
		[]string{"stage"},
	)

	ReaperCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trackvault_reaper_cycle_duration_seconds",
			Help:    "Duration of a single reaper poll cycle",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	// Stream URL cache metrics

	StreamCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackvault_stream_cache_hits_total",
			Help: "Stream URL requests served from cache",
		},
	)

	StreamCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackvault_stream_cache_misses_total",
			Help: "Stream URL requests that required a fresh presign",
		},
	)

	StreamCacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackvault_stream_cache_invalidations_total",
			Help: "Explicit cache invalidations by scope (track, user)",
		},
		[]string{"scope"},
	)

	// Object store metrics

	PresignDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trackvault_presign_duration_seconds",
			Help:    "Latency of presigned URL generation",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	PresignFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackvault_presign_failures_total",
			Help: "Presign attempts that failed (including circuit breaker rejections)",
		},
	)

	// HTTP metrics

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trackvault_http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordLifecycleOperation records a lifecycle operation outcome.
// outcome is "success" or the domain error code that was returned.
func RecordLifecycleOperation(operation, outcome string) {
	LifecycleOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordOutboxStats updates the backlog gauges after a poll cycle.
func RecordOutboxStats(pending int64, oldestAge time.Duration) {
	OutboxPending.Set(float64(pending))
	OutboxOldestAgeSeconds.Set(oldestAge.Seconds())
}

// RecordHTTPRequest records one completed HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).
		Observe(duration.Seconds())
}
