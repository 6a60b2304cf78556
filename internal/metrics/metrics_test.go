// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordLifecycleOperation(t *testing.T) {
	before := testutil.ToFloat64(LifecycleOperations.WithLabelValues("soft_delete", "success"))
	RecordLifecycleOperation("soft_delete", "success")
	after := testutil.ToFloat64(LifecycleOperations.WithLabelValues("soft_delete", "success"))

	if after != before+1 {
		t.Errorf("counter = %f, want %f", after, before+1)
	}
}

func TestRecordOutboxStats(t *testing.T) {
	RecordOutboxStats(7, 90*time.Second)

	if got := testutil.ToFloat64(OutboxPending); got != 7 {
		t.Errorf("OutboxPending = %f, want 7", got)
	}
	if got := testutil.ToFloat64(OutboxOldestAgeSeconds); got != 90 {
		t.Errorf("OutboxOldestAgeSeconds = %f, want 90", got)
	}

	// A drained backlog resets both gauges.
	RecordOutboxStats(0, 0)
	if got := testutil.ToFloat64(OutboxPending); got != 0 {
		t.Errorf("OutboxPending after drain = %f, want 0", got)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		route    string
		status   int
		duration time.Duration
	}{
		{"successful delete", "DELETE", "/api/v1/tracks/{trackID}", 200, 20 * time.Millisecond},
		{"not found", "GET", "/api/v1/tracks/{trackID}/stream-url", 404, 2 * time.Millisecond},
		{"restore gone", "POST", "/api/v1/tracks/{trackID}/restore", 410, 15 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Must not panic; histogram contents are not inspected.
			RecordHTTPRequest(tt.method, tt.route, tt.status, tt.duration)
		})
	}
}
