// Trackvault - Media Library Track Lifecycle and Streaming Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trackvault

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/trackvault/config.yaml",
	"/etc/trackvault/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix namespaces Trackvault environment variables:
// TRACKVAULT_LIFECYCLE_GRACE_PERIOD -> lifecycle.grace_period
const envPrefix = "TRACKVAULT_"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       300,
			CORSAllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost:8080",
			},
		},
		Auth: AuthConfig{
			JWTSecret: "",
		},
		Database: DatabaseConfig{
			Path:      "/data/trackvault.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		NATS: NATSConfig{
			Enabled:         true,
			URL:             "nats://127.0.0.1:4222",
			EmbeddedServer:  true,
			StoreDir:        "/data/nats/jetstream",
			Stream:          "TRACKS",
			Topic:           "tracks.lifecycle",
			MaxReconnects:   -1, // retry forever
			ReconnectWait:   2 * time.Second,
			PublishTimeout:  5 * time.Second,
			DuplicateWindow: 2 * time.Minute,
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:       "127.0.0.1:9000",
			AccessKey:      "",
			SecretKey:      "",
			Bucket:         "trackvault-audio",
			UseSSL:         false,
			PresignTTL:     10 * time.Minute,
			PresignTimeout: 5 * time.Second,
			DeleteTimeout:  30 * time.Second,
		},
		Cache: CacheConfig{
			Path:      "/data/trackvault-cache",
			TTLBuffer: time.Minute,
		},
		Lifecycle: LifecycleConfig{
			GracePeriod: 24 * time.Hour,
		},
		Outbox: OutboxConfig{
			PollInterval: 5 * time.Second,
			BatchSize:    100,
		},
		Reaper: ReaperConfig{
			PollInterval: time.Minute,
			BatchSize:    50,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if it exists)
//  3. Environment variables: TRACKVAULT_* overrides any setting
//
// The merged configuration is validated before being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	envProvider := env.Provider(envPrefix, ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// envTransform maps environment variable names to koanf paths. The first
// underscore-delimited token after the prefix selects the section; the rest
// keeps its underscores:
//
//	TRACKVAULT_SERVER_PORT              -> server.port
//	TRACKVAULT_OBJECTSTORE_PRESIGN_TTL  -> objectstore.presign_ttl
//	TRACKVAULT_LIFECYCLE_GRACE_PERIOD   -> lifecycle.grace_period
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(s, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

// findConfigFile searches for a config file in the default paths.
// Returns the first file found, or empty string if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
