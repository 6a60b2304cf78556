// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package messaging

import (
	"context"
	"errors"
	"fmt"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/trackvault/internal/config"
	"github.com/tomtom215/trackvault/internal/logging"
)

// EnsureStream creates or updates the JetStream stream that receives
// lifecycle events. It runs before the publisher starts so the first
// publish never races stream creation, and it is idempotent.
//
// The stream keeps a duplicate-suppression window sized from config: the
// outbox poller republishes on crash recovery, and the Nats-Msg-Id header
// lets JetStream drop those duplicates broker-side.
func EnsureStream(ctx context.Context, url string, cfg *config.NATSConfig) error {
	nc, err := natsgo.Connect(url)
	if err != nil {
		return fmt.Errorf("connect for stream init: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create jetstream context: %w", err)
	}

	streamCfg := jetstream.StreamConfig{
		Name:       cfg.Stream,
		Subjects:   []string{cfg.Topic},
		Retention:  jetstream.LimitsPolicy,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
		Duplicates: cfg.DuplicateWindow,
	}

	_, err = js.Stream(ctx, cfg.Stream)
	switch {
	case err == nil:
		if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("update stream %s: %w", cfg.Stream, err)
		}
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := js.CreateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Stream, err)
		}
	default:
		return fmt.Errorf("check stream %s: %w", cfg.Stream, err)
	}

	logging.Info().
		Str("stream", cfg.Stream).
		Str("subject", cfg.Topic).
		Msg("JetStream stream ready")
	return nil
}
