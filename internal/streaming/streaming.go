// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

// Package streaming hands out presigned stream URLs with a read-through
// cache in front of the object store.
//
// Cache entries expire a configurable buffer before the presigned URL
// itself does, so a cache hit always carries enough remaining validity for
// the client to start the download. The cache is best-effort in both
// directions: a cache read or write failure degrades to a fresh presign,
// never to a request failure. The presign itself is the opposite; if the
// object store cannot sign, the request fails.
package streaming

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/trackvault/internal/cache"
	"github.com/tomtom215/trackvault/internal/logging"
	"github.com/tomtom215/trackvault/internal/metrics"
	"github.com/tomtom215/trackvault/internal/models"
	"github.com/tomtom215/trackvault/internal/objectstore"
)

// ErrNotPlayable is returned when the track exists but cannot be streamed,
// because it is soft-deleted or still processing.
var ErrNotPlayable = errors.New("track is not playable")

// StreamURL is the playback payload handed to clients: the presigned
// download URL plus the media attributes a player needs before the first
// byte arrives. The whole payload is cached, so a hit never touches the
// track store for the content type or size.
type StreamURL struct {
	URL           string    `json:"url"`
	ExpiresAt     time.Time `json:"expires_at"`
	ContentType   string    `json:"content_type"`
	FileSizeBytes int64     `json:"file_size_bytes"`
}

// TrackLoader loads a track with ownership enforced. Implemented by the
// lifecycle manager.
type TrackLoader interface {
	GetTrack(ctx context.Context, userID, trackID string) (*models.Track, error)
}

// Presigner generates presigned download URLs. Implemented by the object
// store.
type Presigner interface {
	PresignGet(ctx context.Context, objectKey string) (*objectstore.PresignedURL, error)
}

// URLCache is the cache surface the service needs.
type URLCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	RemoveByPattern(ctx context.Context, pattern string) (int, error)
}

// Service serves and invalidates stream URLs.
type Service struct {
	tracks    TrackLoader
	presigner Presigner
	cache     URLCache

	presignTTL time.Duration
	ttlBuffer  time.Duration
	now        func() time.Time
}

// NewService creates a streaming service. ttlBuffer must be smaller than
// presignTTL; config validation enforces this.
func NewService(tracks TrackLoader, presigner Presigner, urlCache URLCache,
	presignTTL, ttlBuffer time.Duration) *Service {

	return &Service{
		tracks:     tracks,
		presigner:  presigner,
		cache:      urlCache,
		presignTTL: presignTTL,
		ttlBuffer:  ttlBuffer,
		now:        time.Now,
	}
}

// SetTrackLoader installs the track loader. The streaming service and the
// lifecycle manager reference each other (stream URLs need tracks, deletion
// invalidates stream URLs), so one side is wired after construction.
func (s *Service) SetTrackLoader(tracks TrackLoader) {
	s.tracks = tracks
}

// GetStreamURL returns a presigned download URL for the track's audio
// object plus its content type and size, from cache when a sufficiently
// fresh entry exists.
func (s *Service) GetStreamURL(ctx context.Context, userID, trackID string) (*StreamURL, error) {
	track, err := s.tracks.GetTrack(ctx, userID, trackID)
	if err != nil {
		return nil, err
	}
	if track.Status != models.TrackStatusReady {
		return nil, ErrNotPlayable
	}

	key := cacheKey(userID, trackID)
	if cached := s.lookup(ctx, key); cached != nil {
		metrics.StreamCacheHits.Inc()
		return cached, nil
	}
	metrics.StreamCacheMisses.Inc()

	presigned, err := s.presigner.PresignGet(ctx, track.ObjectKey)
	if err != nil {
		return nil, err
	}

	result := &StreamURL{
		URL:           presigned.URL,
		ExpiresAt:     presigned.ExpiresAt,
		ContentType:   track.MimeType,
		FileSizeBytes: track.FileSizeBytes,
	}
	s.store(ctx, key, result)
	return result, nil
}

// InvalidateTrack drops the cached URL for one track. Best-effort: a cache
// failure is logged and swallowed, the entry's TTL bounds the staleness.
func (s *Service) InvalidateTrack(ctx context.Context, userID, trackID string) {
	if err := s.cache.Remove(ctx, cacheKey(userID, trackID)); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("track_id", trackID).
			Msg("Stream URL invalidation failed")
		return
	}
	metrics.StreamCacheInvalidations.WithLabelValues("track").Inc()
}

// InvalidateUser drops every cached URL belonging to a user, e.g. after a
// credential change.
func (s *Service) InvalidateUser(ctx context.Context, userID string) {
	n, err := s.cache.RemoveByPattern(ctx, cacheKey(userID, "*"))
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("user_id", userID).
			Msg("User stream URL invalidation failed")
		return
	}
	if n > 0 {
		metrics.StreamCacheInvalidations.WithLabelValues("user").Add(float64(n))
	}
}

// lookup returns a cached payload that is still valid past the buffer, or
// nil.
func (s *Service) lookup(ctx context.Context, key string) *StreamURL {
	data, err := s.cache.Get(ctx, key)
	if errors.Is(err, cache.ErrNotFound) {
		return nil
	}
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Stream URL cache read failed")
		return nil
	}

	var cached StreamURL
	if err := json.Unmarshal(data, &cached); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Stream URL cache entry corrupt")
		return nil
	}

	// The entry's TTL should already enforce this, but the check is what
	// the guarantee actually rests on.
	if !cached.ExpiresAt.After(s.now().Add(s.ttlBuffer)) {
		return nil
	}
	return &cached
}

// store writes a freshly presigned payload to the cache, expiring
// ttlBuffer before the URL itself.
func (s *Service) store(ctx context.Context, key string, presigned *StreamURL) {
	data, err := json.Marshal(presigned)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Stream URL cache encode failed")
		return
	}
	if err := s.cache.Set(ctx, key, data, s.presignTTL-s.ttlBuffer); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Stream URL cache write failed")
	}
}

func cacheKey(userID, trackID string) string {
	return fmt.Sprintf("stream_url:%s:%s", userID, trackID)
}
