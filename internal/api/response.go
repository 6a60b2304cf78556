// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

// Package api provides the HTTP surface of Trackvault: track lifecycle
// endpoints, stream URL issuance, and health checks.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/trackvault/internal/logging"
)

// APIResponse is the uniform response envelope.
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {"code": "RESTORATION_EXPIRED", "message": "..."},
//	  "metadata": {"timestamp": "2026-08-25T12:00:00Z", "request_id": "..."}
//	}
type APIResponse struct {
	Status   string    `json:"status"`
	Data     any       `json:"data,omitempty"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

// Metadata carries per-response observability fields.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// APIError is the structured error payload.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondSuccess(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeResponse(w, r, status, &APIResponse{
		Status: "success",
		Data:   data,
	})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeResponse(w, r, status, &APIResponse{
		Status: "error",
		Error:  &APIError{Code: code, Message: message},
	})
}

func writeResponse(w http.ResponseWriter, r *http.Request, status int, resp *APIResponse) {
	resp.Metadata = Metadata{
		Timestamp: time.Now().UTC(),
		RequestID: logging.RequestIDFromContext(r.Context()),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode response")
	}
}
