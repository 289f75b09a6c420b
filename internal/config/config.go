// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

// Package config loads and validates Stridesync configuration from layered
// sources (defaults, YAML file, environment variables) using Koanf v2.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Stridesync daemon.
type Config struct {
	Origin  OriginConfig  `koanf:"origin"`
	Live    LiveConfig    `koanf:"live"`
	Sync    SyncConfig    `koanf:"sync"`
	Ledger  LedgerConfig  `koanf:"ledger"`
	Sink    SinkConfig    `koanf:"sink"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// OriginConfig describes the capture service endpoint.
type OriginConfig struct {
	// URL is the base HTTP URL of the capture service, e.g. http://treadmill:8080.
	URL string `koanf:"url" validate:"required,url"`

	// Timeout applies to each request/response call.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// TZOffsetSeconds is this host's offset from UTC, passed to the origin so
	// it aggregates counters by the local calendar day. 0 means UTC.
	TZOffsetSeconds int `koanf:"tz_offset_seconds" validate:"gte=-43200,lte=50400"`

	// RequestsPerSecond caps outbound request rate to the origin.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gt=0"`

	// RequestBurst is the rate limiter burst size.
	RequestBurst int `koanf:"request_burst" validate:"gt=0"`
}

// LiveConfig controls the persistent streaming connection.
type LiveConfig struct {
	// Enabled starts the live connection manager at boot.
	Enabled bool `koanf:"enabled"`

	// ReconnectBase is the first reconnect delay after a transport failure.
	ReconnectBase time.Duration `koanf:"reconnect_base" validate:"gt=0"`

	// ReconnectMax caps the doubling reconnect delay.
	ReconnectMax time.Duration `koanf:"reconnect_max" validate:"gtefield=ReconnectBase"`

	// HeartbeatInterval is how often a keep-alive probe is written while
	// connected. The origin sends its own heartbeat every 30s.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval" validate:"gt=0"`

	// ReadTimeout is the per-read deadline; expiry is treated as a transport
	// failure. Must comfortably exceed the origin's heartbeat interval.
	ReadTimeout time.Duration `koanf:"read_timeout" validate:"gt=0"`

	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration `koanf:"handshake_timeout" validate:"gt=0"`

	// SubscriberBuffer is the channel depth for each state/sample subscriber.
	// A slow subscriber drops messages rather than stalling the receive loop.
	SubscriberBuffer int `koanf:"subscriber_buffer" validate:"gt=0"`
}

// SyncConfig controls the background sync scheduler.
type SyncConfig struct {
	// Interval between scheduled sync cycles.
	Interval time.Duration `koanf:"interval" validate:"gt=0"`

	// Budget bounds one scheduled cycle; on expiry the cycle is cancelled
	// cooperatively between days, never mid-commit.
	Budget time.Duration `koanf:"budget" validate:"gt=0"`

	// TriggerOnConnect runs an opportunistic cycle when the live connection
	// transitions to connected.
	TriggerOnConnect bool `koanf:"trigger_on_connect"`

	// TriggerDebounce suppresses opportunistic runs that would fire within
	// this window of the previous one.
	TriggerDebounce time.Duration `koanf:"trigger_debounce" validate:"gte=0"`
}

// LedgerConfig controls the durable sync ledger.
type LedgerConfig struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string `koanf:"path" validate:"required_unless=InMemory true"`

	// InMemory runs the ledger without persistence. Test/dev only.
	InMemory bool `koanf:"in_memory"`
}

// SinkConfig selects the health sink implementation.
type SinkConfig struct {
	// Mode is the sink backend: "log" (dry-run, commit is a log line) or
	// "webhook" (POST each day to WebhookURL).
	Mode string `koanf:"mode" validate:"oneof=log webhook"`

	// WebhookURL receives committed days when Mode is "webhook".
	WebhookURL string `koanf:"webhook_url" validate:"required_if=Mode webhook,omitempty,url"`

	// Timeout applies to each commit call.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// ServerConfig controls the local status/debug HTTP server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gt=0,lte=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// validate is shared; validator instances are safe for concurrent use.
var validate = validator.New()

// Validate checks the configuration for structural errors. It is called by
// Load after all layers are merged.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("config: field %s failed %q validation", f.Namespace(), f.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns this concrete type
	if ok {
		*target = verrs
	}
	return ok
}
