// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package messaging

import (
	"context"

	"github.com/tomtom215/trackvault/internal/logging"
	"github.com/tomtom215/trackvault/internal/models"
)

// DiscardPublisher acknowledges every row without a broker. Used when NATS
// is disabled: the outbox still drains, lifecycle operations still commit
// their event rows, and nothing downstream receives them.
type DiscardPublisher struct{}

// NewDiscardPublisher creates a publisher that drops all events.
func NewDiscardPublisher() *DiscardPublisher {
	return &DiscardPublisher{}
}

// Publish logs the dropped event at debug level and succeeds.
func (p *DiscardPublisher) Publish(ctx context.Context, row *models.OutboxMessage) error {
	logging.Debug().
		Str("message_id", row.ID).
		Str("message_type", row.MessageType).
		Msg("Event discarded, NATS disabled")
	return nil
}

// Close is a no-op.
func (p *DiscardPublisher) Close() error {
	return nil
}
