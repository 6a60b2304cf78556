// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// OutboxMessage is one pending event row in the transactional outbox.
//
// Rows are inserted only by the lifecycle manager, inside the same database
// transaction as the track state change, and consumed only by the outbox
// publisher. A row exists exactly as long as the event has not been
// acknowledged by the broker, so the table doubles as the retry backlog.
type OutboxMessage struct {
	ID string `json:"id"`

	// MessageType identifies the event schema, e.g. "track.deleted".
	MessageType string `json:"message_type"`

	// Topic is the broker subject the payload is published on.
	Topic string `json:"topic"`

	// PartitionKey orders events at the transport level. Set to the track
	// ID so all events for one track land on the same partition.
	PartitionKey string `json:"partition_key"`

	// Payload is the serialized event.
	Payload json.RawMessage `json:"payload"`

	// CorrelationID ties the event back to the request that caused it.
	CorrelationID string `json:"correlation_id"`

	CreatedAt time.Time `json:"created_at"`

	// Attempts counts failed publish attempts; diagnostic only.
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
}
