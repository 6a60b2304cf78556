// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/trackvault/internal/logging"
)

// StartStopper matches the outbox poller and reaper lifecycle. The
// interface keeps this package free of imports of the loops it wraps.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// LoopService adapts a Start/Stop loop to suture's Serve contract: start,
// block on the context, stop, and let suture decide about restarts.
type LoopService struct {
	loop StartStopper
	name string
}

// NewLoopService wraps a background loop as a supervised service.
func NewLoopService(name string, loop StartStopper) *LoopService {
	return &LoopService{loop: loop, name: name}
}

// Serve implements suture.Service.
func (s *LoopService) Serve(ctx context.Context) error {
	if err := s.loop.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}

	<-ctx.Done()

	// Stop blocks until the loop goroutine has exited.
	s.loop.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for suture's service naming.
func (s *LoopService) String() string {
	return s.name
}

// HTTPService runs the HTTP server as a supervised service with graceful
// shutdown.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPService wraps an http.Server.
func NewHTTPService(server *http.Server, shutdownTimeout time.Duration) *HTTPService {
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. Listen failures are returned so suture
// restarts with backoff; a context cancellation shuts down gracefully.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		logging.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("HTTP server shutdown incomplete, closing")
		_ = s.server.Close()
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture's service naming.
func (s *HTTPService) String() string {
	return "http-server"
}
