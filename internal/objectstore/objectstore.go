// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

// Package objectstore wraps the S3-compatible object storage that holds
// audio files and waveform sidecars. Trackvault never proxies object bytes:
// clients download through presigned URLs, and the reaper deletes objects
// directly.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/trackvault/internal/config"
	"github.com/tomtom215/trackvault/internal/logging"
	"github.com/tomtom215/trackvault/internal/metrics"
)

// ErrUnavailable is returned when the storage circuit breaker is open.
var ErrUnavailable = errors.New("object storage unavailable")

// PresignedURL is a time-limited download URL for a stored object.
type PresignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store provides presigned access and deletion for a single bucket.
type Store struct {
	client  *minio.Client
	cfg     *config.ObjectStoreConfig
	breaker *gobreaker.CircuitBreaker[*url.URL]
	now     func() time.Time
}

// New creates a Store for the configured endpoint and bucket. The endpoint
// is not probed here; the first presign or delete surfaces connectivity
// problems, and the circuit breaker keeps a dead endpoint from stalling
// every playback request.
func New(cfg *config.ObjectStoreConfig) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[*url.URL](gobreaker.Settings{
		Name:    "objectstore-presign",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Object storage circuit breaker state changed")
		},
	})

	return &Store{
		client:  client,
		cfg:     cfg,
		breaker: breaker,
		now:     time.Now,
	}, nil
}

// PresignGet generates a presigned GET URL for an object, valid for the
// configured presign TTL. ExpiresAt is captured before the storage call so
// the reported expiry is never later than the URL's actual one.
func (s *Store) PresignGet(ctx context.Context, objectKey string) (*PresignedURL, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PresignTimeout)
	defer cancel()

	issuedAt := s.now()
	start := issuedAt

	signed, err := s.breaker.Execute(func() (*url.URL, error) {
		return s.client.PresignedGetObject(ctx, s.cfg.Bucket, objectKey,
			s.cfg.PresignTTL, url.Values{})
	})
	metrics.PresignDuration.Observe(time.Since(start).Seconds())

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.PresignFailures.Inc()
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	if err != nil {
		metrics.PresignFailures.Inc()
		return nil, fmt.Errorf("presign object %s: %w", objectKey, err)
	}

	return &PresignedURL{
		URL:       signed.String(),
		ExpiresAt: issuedAt.Add(s.cfg.PresignTTL),
	}, nil
}

// DeleteObject removes an object. Deleting an absent object succeeds, so a
// retried purge cycle does not fail on work the previous cycle half
// finished.
func (s *Store) DeleteObject(ctx context.Context, objectKey string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DeleteTimeout)
	defer cancel()

	err := s.client.RemoveObject(ctx, s.cfg.Bucket, objectKey, minio.RemoveObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil
		}
		return fmt.Errorf("delete object %s: %w", objectKey, err)
	}
	return nil
}

// BreakerState reports the presign circuit breaker state for health checks.
func (s *Store) BreakerState() string {
	return s.breaker.State().String()
}
