// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

// Package config provides configuration management for Trackvault.
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml, or CONFIG_PATH)
//  3. TRACKVAULT_* environment variables
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the root configuration for the Trackvault server.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Auth        AuthConfig        `koanf:"auth"`
	Database    DatabaseConfig    `koanf:"database"`
	NATS        NATSConfig        `koanf:"nats"`
	ObjectStore ObjectStoreConfig `koanf:"objectstore"`
	Cache       CacheConfig       `koanf:"cache"`
	Lifecycle   LifecycleConfig   `koanf:"lifecycle"`
	Outbox      OutboxConfig      `koanf:"outbox"`
	Reaper      ReaperConfig      `koanf:"reaper"`
	Log         LogConfig         `koanf:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimit is the per-user request budget in requests per minute.
	RateLimit int `koanf:"rate_limit"`

	// CORSAllowedOrigins lists origins allowed to call the API from a
	// browser, e.g. a web audio player fetching stream URLs.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// AuthConfig holds bearer-token validation settings. Token issuance is
// handled by the surrounding identity service; Trackvault only validates.
type AuthConfig struct {
	// JWTSecret signs/verifies HS256 bearer tokens and seeds the cache
	// value encryption key. Minimum 32 characters.
	JWTSecret string `koanf:"jwt_secret"`
}

// DatabaseConfig holds DuckDB settings for the track document store.
type DatabaseConfig struct {
	// Path is the DuckDB database file. Empty means in-memory (tests).
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads limits DuckDB worker threads. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// NATSConfig holds message bus settings for outbox event publishing.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`
	// EmbeddedServer runs an in-process NATS JetStream server instead of
	// connecting to an external one.
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	// Stream is the JetStream stream name; Topic is the subject outbox
	// events are published on.
	Stream string `koanf:"stream"`
	Topic  string `koanf:"topic"`

	MaxReconnects   int           `koanf:"max_reconnects"`
	ReconnectWait   time.Duration `koanf:"reconnect_wait"`
	PublishTimeout  time.Duration `koanf:"publish_timeout"`
	DuplicateWindow time.Duration `koanf:"duplicate_window"`
}

// ObjectStoreConfig holds S3-compatible object storage settings.
type ObjectStoreConfig struct {
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Bucket    string `koanf:"bucket"`
	UseSSL    bool   `koanf:"use_ssl"`

	// PresignTTL is the validity window of generated download URLs.
	PresignTTL time.Duration `koanf:"presign_ttl"`
	// PresignTimeout bounds presign calls. Kept short: presigning sits on
	// the user-facing playback path.
	PresignTimeout time.Duration `koanf:"presign_timeout"`
	// DeleteTimeout bounds object deletion calls made by the reaper.
	DeleteTimeout time.Duration `koanf:"delete_timeout"`
}

// CacheConfig holds the encrypted stream-URL cache settings.
type CacheConfig struct {
	// Path is the BadgerDB directory. Empty means in-memory (tests).
	Path string `koanf:"path"`
	// TTLBuffer is subtracted from the presign TTL when caching stream
	// URLs, so cache entries always expire strictly before the URL does.
	TTLBuffer time.Duration `koanf:"ttl_buffer"`
}

// LifecycleConfig holds track lifecycle settings.
type LifecycleConfig struct {
	// GracePeriod is how long a soft-deleted track can be restored before
	// the reaper purges it permanently.
	GracePeriod time.Duration `koanf:"grace_period"`
}

// OutboxConfig holds outbox publisher poller settings.
type OutboxConfig struct {
	PollInterval time.Duration `koanf:"poll_interval"`
	BatchSize    int           `koanf:"batch_size"`
}

// ReaperConfig holds physical deletion reaper settings.
type ReaperConfig struct {
	PollInterval time.Duration `koanf:"poll_interval"`
	BatchSize    int           `koanf:"batch_size"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Addr returns the host:port the HTTP server listens on.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// minJWTSecretLength is the minimum accepted JWT secret length.
// 32 bytes gives a full-strength HMAC-SHA256 key.
const minJWTSecretLength = 32

// Validate checks the configuration for internally inconsistent or unusable
// values. It is called by Load after all layers are merged.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d characters", minJWTSecretLength)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.RateLimit <= 0 {
		return errors.New("server.rate_limit must be positive")
	}
	if c.Lifecycle.GracePeriod <= 0 {
		return errors.New("lifecycle.grace_period must be positive")
	}
	if c.Outbox.PollInterval <= 0 {
		return errors.New("outbox.poll_interval must be positive")
	}
	if c.Outbox.BatchSize <= 0 {
		return errors.New("outbox.batch_size must be positive")
	}
	if c.Reaper.PollInterval <= 0 {
		return errors.New("reaper.poll_interval must be positive")
	}
	if c.Reaper.BatchSize <= 0 {
		return errors.New("reaper.batch_size must be positive")
	}
	if c.ObjectStore.Endpoint == "" {
		return errors.New("objectstore.endpoint is required")
	}
	if c.ObjectStore.Bucket == "" {
		return errors.New("objectstore.bucket is required")
	}
	if c.ObjectStore.PresignTTL <= 0 {
		return errors.New("objectstore.presign_ttl must be positive")
	}
	// Cache entries must expire strictly before the presigned URL itself,
	// otherwise a cache hit could hand out an already-invalid URL.
	if c.Cache.TTLBuffer <= 0 || c.Cache.TTLBuffer >= c.ObjectStore.PresignTTL {
		return fmt.Errorf("cache.ttl_buffer must be in (0, presign_ttl); got %s with presign_ttl %s",
			c.Cache.TTLBuffer, c.ObjectStore.PresignTTL)
	}
	if c.NATS.Enabled && !c.NATS.EmbeddedServer && c.NATS.URL == "" {
		return errors.New("nats.url is required when nats.embedded_server is false")
	}
	return nil
}
