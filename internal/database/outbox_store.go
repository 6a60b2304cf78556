// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/trackvault/internal/models"
)

// insertOutbox writes one outbox row inside an open transaction. It is the
// outbox "writer": callers must pass the transaction that carries the
// triggering state change so both commit or neither does.
func insertOutbox(ctx context.Context, tx *sql.Tx, msg *models.OutboxMessage) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox (id, message_type, topic, partition_key, payload,
		                     correlation_id, created_at, attempts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		msg.ID, msg.MessageType, msg.Topic, msg.PartitionKey,
		[]byte(msg.Payload), msg.CorrelationID, msg.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert outbox message %s: %w", msg.ID, err)
	}
	return nil
}

// PendingOutbox returns unpublished outbox messages, oldest first. The
// insertion sequence breaks created_at ties, so drain order matches commit
// order even for rows written in the same microsecond.
func (db *DB) PendingOutbox(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, message_type, topic, partition_key, payload,
		        correlation_id, created_at, attempts, last_error
		 FROM outbox
		 ORDER BY created_at, seq
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending outbox: %w", err)
	}
	defer rows.Close()

	var messages []*models.OutboxMessage
	for rows.Next() {
		var (
			m         models.OutboxMessage
			payload   []byte
			lastError sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.MessageType, &m.Topic, &m.PartitionKey,
			&payload, &m.CorrelationID, &m.CreatedAt, &m.Attempts, &lastError); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		m.Payload = payload
		m.LastError = lastError.String
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// DeleteOutboxMessage removes an outbox row after the broker acknowledged
// the publish. A crash between publish and delete leaves the row in place,
// which yields a duplicate publish on the next poll: at-least-once.
func (db *DB) DeleteOutboxMessage(ctx context.Context, id string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete outbox message %s: %w", id, err)
	}
	return nil
}

// RecordOutboxAttempt increments the attempt counter after a failed
// publish. Diagnostic only; the row stays pending either way.
func (db *DB) RecordOutboxAttempt(ctx context.Context, id, lastError string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE outbox SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
		lastError, id)
	if err != nil {
		return fmt.Errorf("record outbox attempt %s: %w", id, err)
	}
	return nil
}

// OutboxStats summarizes the pending backlog for metrics and health checks.
type OutboxStats struct {
	Pending   int64
	OldestAge time.Duration
}

// OutboxBacklog returns the current backlog stats.
func (db *DB) OutboxBacklog(ctx context.Context, now time.Time) (OutboxStats, error) {
	var (
		stats  OutboxStats
		oldest sql.NullTime
	)

	row := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(created_at) FROM outbox`)
	if err := row.Scan(&stats.Pending, &oldest); err != nil {
		return OutboxStats{}, fmt.Errorf("query outbox backlog: %w", err)
	}

	if oldest.Valid {
		stats.OldestAge = now.UTC().Sub(oldest.Time.UTC())
	}
	return stats, nil
}
