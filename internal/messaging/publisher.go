// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

// Package messaging publishes track lifecycle events to NATS JetStream via
// Watermill. It provides the broker side of the outbox pipeline: the outbox
// poller hands it rows, it hands JetStream messages with broker-side
// deduplication keyed on the outbox row ID.
package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/trackvault/internal/config"
	"github.com/tomtom215/trackvault/internal/logging"
	"github.com/tomtom215/trackvault/internal/models"
)

// Publisher wraps a Watermill NATS publisher with reconnect handling and a
// circuit breaker. Safe for concurrent use.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[any]
	timeout   time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewPublisher connects to NATS at url and returns a JetStream publisher.
// The connection retries forever in the background (MaxReconnects from
// config, -1 = unlimited); publish calls fail fast while disconnected and
// the outbox keeps the rows until the broker returns.
func NewPublisher(url string, cfg *config.NATSConfig) (*Publisher, error) {
	logger := NewWatermillLogger()

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false, // stream is pre-created by EnsureStream
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "nats-publish",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Publish circuit breaker state changed")
		},
	})

	return &Publisher{
		publisher: pub,
		breaker:   breaker,
		timeout:   cfg.PublishTimeout,
	}, nil
}

// Publish sends one outbox row to its topic. The outbox row ID becomes the
// message UUID and the Nats-Msg-Id header, so a redelivered row after a
// crash is deduplicated by the stream's duplicate window rather than
// reaching subscribers twice.
func (p *Publisher) Publish(ctx context.Context, row *models.OutboxMessage) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("publisher is closed")
	}
	p.mu.RUnlock()

	msg := message.NewMessage(row.ID, []byte(row.Payload))
	msg.Metadata.Set(natsgo.MsgIdHdr, row.ID)
	msg.Metadata.Set("message_type", row.MessageType)
	msg.Metadata.Set("partition_key", row.PartitionKey)
	msg.Metadata.Set("correlation_id", row.CorrelationID)

	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(row.Topic, msg)
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", row.ID, row.Topic, err)
	}
	return nil
}

// Close shuts down the publisher. Idempotent.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
