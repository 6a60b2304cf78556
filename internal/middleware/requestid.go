// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

// Package middleware provides the HTTP middleware stack: request
// identification, bearer-token authentication, rate limiting and metrics.
package middleware

import (
	"net/http"

	"github.com/tomtom215/trackvault/internal/logging"
)

// Header names for request tracing.
const (
	HeaderRequestID     = "X-Request-Id"
	HeaderCorrelationID = "X-Correlation-Id"
)

// RequestID assigns every request a request ID and a correlation ID and
// stores both in the context. An inbound X-Correlation-Id is honored so a
// caller can stitch Trackvault's events into its own trace; the request ID
// is always generated fresh.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := logging.GenerateRequestID()

		correlationID := r.Header.Get(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}

		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		ctx = logging.ContextWithCorrelationID(ctx, correlationID)

		w.Header().Set(HeaderRequestID, requestID)
		w.Header().Set(HeaderCorrelationID, correlationID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
