// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package cache

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/trackvault/internal/config"
)

const testSecret = "test-jwt-secret-0123456789abcdef"

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(&config.CacheConfig{Path: ""}, testSecret)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewRejectsEmptySecret(t *testing.T) {
	_, err := New(&config.CacheConfig{Path: ""}, "")
	if !errors.Is(err, ErrEmptySecret) {
		t.Errorf("New(\"\") = %v, want ErrEmptySecret", err)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	value := []byte(`{"url":"https://store/bucket/key?sig=abc","expires_at":"2026-08-25T12:00:00Z"}`)
	if err := c.Set(ctx, "stream_url:user-1:track-1", value, time.Minute); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, err := c.Get(ctx, "stream_url:user-1:track-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get() = %s, want %s", got, value)
	}
}

func TestGetMissingKey(t *testing.T) {
	c := newTestCache(t)

	_, err := c.Get(context.Background(), "absent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(absent) = %v, want ErrNotFound", err)
	}
}

func TestValuesAreEncryptedAtRest(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	plain := []byte("https://store/bucket/secret-signed-url")
	if err := c.Set(ctx, "k", plain, time.Minute); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	sealed, err := c.enc.seal(plain)
	if err != nil {
		t.Fatalf("seal() error: %v", err)
	}
	if bytes.Contains(sealed, plain) {
		t.Error("sealed value contains plaintext")
	}

	// A cache opened with a different secret cannot read the value; the
	// failure surfaces as a miss.
	other, err := newEncryptor("another-secret-0123456789abcdefgh")
	if err != nil {
		t.Fatalf("newEncryptor() error: %v", err)
	}
	if _, err := other.open(sealed); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("open() with wrong key = %v, want ErrDecryptionFailed", err)
	}
}

func TestRemove(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := c.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Remove = %v, want ErrNotFound", err)
	}

	// Removing an absent key is idempotent.
	if err := c.Remove(ctx, "k"); err != nil {
		t.Errorf("second Remove() error: %v", err)
	}
}

func TestRemoveByPattern(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	keys := []string{
		"stream_url:user-1:track-1",
		"stream_url:user-1:track-2",
		"stream_url:user-2:track-1",
	}
	for _, k := range keys {
		if err := c.Set(ctx, k, []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set(%s) error: %v", k, err)
		}
	}

	n, err := c.RemoveByPattern(ctx, "stream_url:user-1:*")
	if err != nil {
		t.Fatalf("RemoveByPattern() error: %v", err)
	}
	if n != 2 {
		t.Errorf("RemoveByPattern() removed %d keys, want 2", n)
	}

	if _, err := c.Get(ctx, "stream_url:user-1:track-1"); !errors.Is(err, ErrNotFound) {
		t.Error("user-1 track-1 survived pattern removal")
	}
	if _, err := c.Get(ctx, "stream_url:user-2:track-1"); err != nil {
		t.Errorf("user-2 entry removed by unrelated pattern: %v", err)
	}
}

func TestLiteralPrefix(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"stream_url:user-1:*", "stream_url:user-1:"},
		{"exact-key", "exact-key"},
		{"a?b", "a"},
		{"*", ""},
	}
	for _, tt := range tests {
		if got := literalPrefix(tt.pattern); got != tt.want {
			t.Errorf("literalPrefix(%q) = %q, want %q", tt.pattern, got, tt.want)
		}
	}
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "short", []byte("v"), 50*time.Millisecond); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	time.Sleep(120 * time.Millisecond)

	if _, err := c.Get(ctx, "short"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after TTL = %v, want ErrNotFound", err)
	}
}
