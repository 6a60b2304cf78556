// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

// Package cache provides a BadgerDB-backed key-value cache with per-entry
// TTLs and encrypted values. Its one consumer is the streaming layer, which
// caches presigned URLs keyed by user and track.
package cache

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/trackvault/internal/config"
	"github.com/tomtom215/trackvault/internal/logging"
)

// ErrNotFound is returned when a key is absent or its TTL has elapsed.
var ErrNotFound = errors.New("cache: key not found")

// Cache is a durable key-value cache. Values are encrypted at rest and
// expire via Badger's native TTL support.
type Cache struct {
	db  *badger.DB
	enc *encryptor
}

// New opens the cache at cfg.Path. An empty path opens an in-memory
// instance (used by tests). jwtSecret seeds the value-encryption key.
func New(cfg *config.CacheConfig, jwtSecret string) (*Cache, error) {
	enc, err := newEncryptor(jwtSecret)
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Cache opened")
	return &Cache{db: db, enc: enc}, nil
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Set stores a value under key with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	sealed, err := c.enc.seal(value)
	if err != nil {
		return fmt.Errorf("seal cache value: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), sealed).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
}

// Get returns the value stored under key, or ErrNotFound if the key is
// absent, expired, or fails authentication (a tampered or re-keyed entry
// behaves like a miss rather than an error).
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	var sealed []byte

	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get cache key: %w", err)
		}
		sealed, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	value, err := c.enc.open(sealed)
	if errors.Is(err, ErrDecryptionFailed) {
		return nil, ErrNotFound
	}
	return value, err
}

// Remove deletes a single key. Removing an absent key is not an error.
func (c *Cache) Remove(ctx context.Context, key string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// RemoveByPattern deletes every key matching a path.Match-style pattern,
// for example "stream_url:user-1:*". The literal portion before the first
// wildcard seeds the prefix scan so the iterator skips unrelated keys.
// Returns the number of keys removed.
func (c *Cache) RemoveByPattern(ctx context.Context, pattern string) (int, error) {
	prefix := literalPrefix(pattern)

	var keys [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			key := it.Item().KeyCopy(nil)
			ok, err := path.Match(pattern, string(key))
			if err != nil {
				return fmt.Errorf("invalid pattern %q: %w", pattern, err)
			}
			if ok {
				keys = append(keys, key)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	count := 0
	for _, key := range keys {
		err := c.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return count, fmt.Errorf("delete cache key %s: %w", key, err)
		}
		count++
	}
	return count, nil
}

// literalPrefix returns the pattern's leading literal segment, up to the
// first metacharacter.
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, "*?["); i >= 0 {
		return pattern[:i]
	}
	return pattern
}
