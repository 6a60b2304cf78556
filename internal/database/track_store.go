// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/trackvault/internal/models"
)

const trackColumns = `id, user_id, status, status_before_deletion, deleted_at,
	scheduled_deletion_at, object_key, waveform_object_key, file_size_bytes,
	mime_type, created_at, updated_at`

// scanTrack reads one track row.
func scanTrack(row interface{ Scan(...any) error }) (*models.Track, error) {
	var (
		t                    models.Track
		statusBefore         sql.NullString
		deletedAt, scheduled sql.NullTime
		waveformKey          sql.NullString
	)

	err := row.Scan(&t.ID, &t.UserID, (*string)(&t.Status), &statusBefore,
		&deletedAt, &scheduled, &t.ObjectKey, &waveformKey, &t.FileSizeBytes,
		&t.MimeType, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.StatusBeforeDeletion = models.TrackStatus(statusBefore.String)
	t.DeletedAt = nullTime(deletedAt)
	t.ScheduledDeletionAt = nullTime(scheduled)
	t.WaveformObjectKey = waveformKey.String
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

// InsertTrack stores a new track document. Used by the upload pipeline
// integration and by tests.
func (db *DB) InsertTrack(ctx context.Context, t *models.Track) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO tracks (`+trackColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, string(t.Status),
		nullString(string(t.StatusBeforeDeletion)),
		t.DeletedAt, t.ScheduledDeletionAt,
		t.ObjectKey, nullString(t.WaveformObjectKey),
		t.FileSizeBytes, t.MimeType, t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert track %s: %w", t.ID, err)
	}
	return nil
}

// GetTrack loads a track by id. Returns ErrNotFound if it does not exist.
func (db *DB) GetTrack(ctx context.Context, id string) (*models.Track, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)

	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get track %s: %w", id, err)
	}
	return t, nil
}

// ListUserTracks returns all non-deleted tracks owned by a user, newest
// first. Soft-deleted tracks are hidden from listings but still loadable
// by id (the restore path needs them).
func (db *DB) ListUserTracks(ctx context.Context, userID string) ([]*models.Track, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks
		 WHERE user_id = ? AND status <> ?
		 ORDER BY created_at DESC`,
		userID, string(models.TrackStatusDeleted))
	if err != nil {
		return nil, fmt.Errorf("list tracks for %s: %w", userID, err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// MarkTrackReady transitions a track from processing to ready. Returns
// ErrConflict if the track is not currently processing.
func (db *DB) MarkTrackReady(ctx context.Context, id string, now time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE tracks SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(models.TrackStatusReady), now.UTC(), id,
		string(models.TrackStatusProcessing))
	if err != nil {
		return fmt.Errorf("mark track %s ready: %w", id, err)
	}
	return oneRowOr(res, ErrConflict)
}

// SoftDeleteTrack marks the track deleted and inserts the outbox row in one
// transaction. The WHERE predicate excludes already-deleted tracks, so a
// concurrent delete surfaces as ErrConflict instead of double-writing.
func (db *DB) SoftDeleteTrack(ctx context.Context, trackID string, priorStatus models.TrackStatus,
	deletedAt, scheduledAt time.Time, msg *models.OutboxMessage) error {

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin soft delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx,
		`UPDATE tracks
		 SET status = ?, status_before_deletion = ?, deleted_at = ?,
		     scheduled_deletion_at = ?, updated_at = ?
		 WHERE id = ? AND status <> ?`,
		string(models.TrackStatusDeleted), string(priorStatus),
		deletedAt.UTC(), scheduledAt.UTC(), deletedAt.UTC(),
		trackID, string(models.TrackStatusDeleted))
	if err != nil {
		return fmt.Errorf("soft delete track %s: %w", trackID, err)
	}
	if err := oneRowOr(res, ErrConflict); err != nil {
		return err
	}

	if err := insertOutbox(ctx, tx, msg); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit soft delete: %w", err)
	}
	return nil
}

// RestoreTrack returns a soft-deleted track to its prior status and clears
// the deletion fields, guarded by the grace-period deadline. The msg row,
// if non-nil, is written in the same transaction. ErrConflict means the
// track is no longer deleted or the deadline passed (the reaper may already
// own it).
func (db *DB) RestoreTrack(ctx context.Context, trackID string, now time.Time,
	msg *models.OutboxMessage) error {

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx,
		`UPDATE tracks
		 SET status = status_before_deletion, status_before_deletion = NULL,
		     deleted_at = NULL, scheduled_deletion_at = NULL, updated_at = ?
		 WHERE id = ? AND status = ? AND scheduled_deletion_at > ?`,
		now.UTC(), trackID, string(models.TrackStatusDeleted), now.UTC())
	if err != nil {
		return fmt.Errorf("restore track %s: %w", trackID, err)
	}
	if err := oneRowOr(res, ErrConflict); err != nil {
		return err
	}

	if msg != nil {
		if err := insertOutbox(ctx, tx, msg); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore: %w", err)
	}
	return nil
}

// TracksDueForPurge returns soft-deleted tracks whose grace period has
// elapsed, oldest deadline first.
func (db *DB) TracksDueForPurge(ctx context.Context, now time.Time, limit int) ([]*models.Track, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks
		 WHERE status = ? AND scheduled_deletion_at <= ?
		 ORDER BY scheduled_deletion_at
		 LIMIT ?`,
		string(models.TrackStatusDeleted), now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query tracks due for purge: %w", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// PurgeTrack permanently removes a track document. The predicate repeats
// the reaper's precondition: if a restore committed in the meantime the
// DELETE matches nothing and the purge is skipped (returns false, nil).
func (db *DB) PurgeTrack(ctx context.Context, trackID string, now time.Time) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM tracks
		 WHERE id = ? AND status = ? AND scheduled_deletion_at <= ?`,
		trackID, string(models.TrackStatusDeleted), now.UTC())
	if err != nil {
		return false, fmt.Errorf("purge track %s: %w", trackID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("purge track %s: rows affected: %w", trackID, err)
	}
	return n == 1, nil
}

// nullString converts "" to NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// oneRowOr returns conflictErr unless exactly one row was affected.
func oneRowOr(res sql.Result, conflictErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return conflictErr
	}
	return nil
}
