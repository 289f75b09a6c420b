// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

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
	"/etc/stridesync/config.yaml",
	"/etc/stridesync/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Origin: OriginConfig{
			URL:               "http://127.0.0.1:8080",
			Timeout:           30 * time.Second,
			TZOffsetSeconds:   0,
			RequestsPerSecond: 5,
			RequestBurst:      10,
		},
		Live: LiveConfig{
			Enabled:           true,
			ReconnectBase:     5 * time.Second,
			ReconnectMax:      60 * time.Second,
			HeartbeatInterval: 30 * time.Second,
			ReadTimeout:       90 * time.Second,
			HandshakeTimeout:  10 * time.Second,
			SubscriberBuffer:  64,
		},
		Sync: SyncConfig{
			Interval:         15 * time.Minute,
			Budget:           2 * time.Minute,
			TriggerOnConnect: true,
			TriggerDebounce:  30 * time.Second,
		},
		Ledger: LedgerConfig{
			Path:     "/data/stridesync/ledger",
			InMemory: false,
		},
		Sink: SinkConfig{
			Mode:       "log",
			WebhookURL: "",
			Timeout:    30 * time.Second,
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    9137,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
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

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so random environment entries cannot
// pollute the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Origin (capture service)
		"origin_url":                 "origin.url",
		"origin_timeout":             "origin.timeout",
		"origin_tz_offset_seconds":   "origin.tz_offset_seconds",
		"origin_requests_per_second": "origin.requests_per_second",
		"origin_request_burst":       "origin.request_burst",

		// Live connection
		"live_enabled":            "live.enabled",
		"live_reconnect_base":     "live.reconnect_base",
		"live_reconnect_max":      "live.reconnect_max",
		"live_heartbeat_interval": "live.heartbeat_interval",
		"live_read_timeout":       "live.read_timeout",
		"live_handshake_timeout":  "live.handshake_timeout",
		"live_subscriber_buffer":  "live.subscriber_buffer",

		// Sync scheduler
		"sync_interval":           "sync.interval",
		"sync_budget":             "sync.budget",
		"sync_trigger_on_connect": "sync.trigger_on_connect",
		"sync_trigger_debounce":   "sync.trigger_debounce",

		// Ledger
		"ledger_path":      "ledger.path",
		"ledger_in_memory": "ledger.in_memory",

		// Sink
		"sink_mode":        "sink.mode",
		"sink_webhook_url": "sink.webhook_url",
		"sink_timeout":     "sink.timeout",

		// Status server
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
