// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

// Command server runs the Trackvault backend: the track lifecycle API,
// the outbox event publisher, and the physical-deletion reaper.
//
// Startup order matters and is fixed:
//
//  1. Configuration and logging
//  2. DuckDB document store (tracks + outbox)
//  3. Stream URL cache and object storage client
//  4. NATS (embedded server if configured), JetStream stream, publisher
//  5. Domain services: lifecycle manager, streaming service
//  6. Supervision tree: outbox poller, reaper, HTTP server
//
// Shutdown runs in reverse via the supervision tree on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/trackvault/internal/api"
	"github.com/tomtom215/trackvault/internal/cache"
	"github.com/tomtom215/trackvault/internal/config"
	"github.com/tomtom215/trackvault/internal/database"
	"github.com/tomtom215/trackvault/internal/lifecycle"
	"github.com/tomtom215/trackvault/internal/logging"
	"github.com/tomtom215/trackvault/internal/messaging"
	"github.com/tomtom215/trackvault/internal/middleware"
	"github.com/tomtom215/trackvault/internal/objectstore"
	"github.com/tomtom215/trackvault/internal/outbox"
	"github.com/tomtom215/trackvault/internal/reaper"
	"github.com/tomtom215/trackvault/internal/streaming"
	"github.com/tomtom215/trackvault/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Timestamp: true,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Dur("grace_period", cfg.Lifecycle.GracePeriod).
		Msg("Trackvault starting")

	// Document store.
	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Database close failed")
		}
	}()

	// Stream URL cache.
	urlCache, err := cache.New(&cfg.Cache, cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() {
		if err := urlCache.Close(); err != nil {
			logging.Error().Err(err).Msg("Cache close failed")
		}
	}()

	// Object storage.
	store, err := objectstore.New(&cfg.ObjectStore)
	if err != nil {
		return fmt.Errorf("create object storage client: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Messaging: embedded server, stream, publisher.
	publisher, cleanup, err := setupMessaging(ctx, &cfg.NATS)
	if err != nil {
		return err
	}
	defer cleanup()

	// Domain services.
	streamSvc := streaming.NewService(nil, store, urlCache,
		cfg.ObjectStore.PresignTTL, cfg.Cache.TTLBuffer)
	manager := lifecycle.NewManager(db, streamSvc, cfg.NATS.Topic, cfg.Lifecycle.GracePeriod)
	streamSvc.SetTrackLoader(manager)

	// Background loops.
	poller := outbox.NewPoller(db, publisher, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize)
	reap := reaper.New(db, store, cfg.Reaper.PollInterval, cfg.Reaper.BatchSize)

	// HTTP.
	health := api.NewHealthHandler(db, db, 5*time.Minute)
	handler := api.NewHandler(manager, streamSvc, health)
	router := api.NewRouter(handler,
		middleware.NewAuthenticator(cfg.Auth.JWTSecret),
		middleware.NewRateLimiter(cfg.Server.RateLimit),
		cfg.Server.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Supervision tree.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(supervisor.NewLoopService("outbox-poller", poller))
	tree.AddDataService(supervisor.NewLoopService("reaper", reap))
	tree.AddAPIService(supervisor.NewHTTPService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Msg("Trackvault started")

	err = <-tree.ServeBackground(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor: %w", err)
	}

	logging.Info().Msg("Trackvault stopped")
	return nil
}

// setupMessaging brings up the broker side of the outbox pipeline. With
// NATS disabled it returns a publisher that drops events, so the rest of
// the system runs unchanged in single-binary evaluation setups.
func setupMessaging(ctx context.Context, cfg *config.NATSConfig) (outbox.Publisher, func(), error) {
	if !cfg.Enabled {
		logging.Warn().Msg("NATS disabled, lifecycle events will not be published")
		return messaging.NewDiscardPublisher(), func() {}, nil
	}

	url := cfg.URL
	var embedded *messaging.EmbeddedServer

	if cfg.EmbeddedServer {
		var err error
		embedded, err = messaging.NewEmbeddedServer(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded NATS server: %w", err)
		}
		url = embedded.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	if err := messaging.EnsureStream(ctx, url, cfg); err != nil {
		shutdownEmbedded(embedded)
		return nil, nil, fmt.Errorf("provision stream: %w", err)
	}

	publisher, err := messaging.NewPublisher(url, cfg)
	if err != nil {
		shutdownEmbedded(embedded)
		return nil, nil, fmt.Errorf("create publisher: %w", err)
	}

	cleanup := func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Publisher close failed")
		}
		shutdownEmbedded(embedded)
	}
	return publisher, cleanup, nil
}

func shutdownEmbedded(embedded *messaging.EmbeddedServer) {
	if embedded == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := embedded.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("Embedded NATS shutdown failed")
	}
}
