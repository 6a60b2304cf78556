// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/trackvault/internal/middleware"
)

// NewRouter assembles the HTTP routes and middleware stack.
//
// Probes and metrics stay outside authentication; everything under
// /api/v1 and /internal/v1 requires a bearer token and is rate limited.
// CORS covers /api/v1 only: browser audio players are the consumer, the
// internal hooks and probes are not called cross-origin.
func NewRouter(handler *Handler, auth *middleware.Authenticator,
	limiter *middleware.RateLimiter, corsOrigins []string) http.Handler {

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", handler.health.handleLiveness)
	r.Get("/readyz", handler.health.handleReadiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// CORS first so preflights are answered before authentication.
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type", middleware.HeaderCorrelationID},
			ExposedHeaders: []string{middleware.HeaderRequestID, middleware.HeaderCorrelationID},
			MaxAge:         300,
		}))
		r.Use(auth.Middleware)
		r.Use(limiter.Middleware)

		r.Route("/tracks", func(r chi.Router) {
			r.Get("/", handler.handleListTracks)
			r.Route("/{trackID}", func(r chi.Router) {
				r.Get("/", handler.handleGetTrack)
				r.Delete("/", handler.handleDeleteTrack)
				r.Post("/restore", handler.handleRestoreTrack)
				r.Get("/stream-url", handler.handleStreamURL)
			})
		})
	})

	r.Route("/internal/v1", func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Post("/tracks/{trackID}/ready", handler.handleMarkReady)
	})

	return r
}
