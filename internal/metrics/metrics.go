// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

// Package metrics exposes Prometheus instrumentation for the live
// connection, the sync orchestrator, the ledger, and the origin client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Live connection metrics
	LiveConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_connection_state",
			Help: "Current live connection state (0=disconnected, 1=connecting, 2=connected, 3=failed)",
		},
	)

	LiveReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_reconnect_attempts_total",
			Help: "Total number of reconnect attempts scheduled after transport failures",
		},
	)

	LiveSamplesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_samples_received_total",
			Help: "Total number of live samples received on the streaming connection",
		},
	)

	LiveHeartbeatsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_heartbeats_received_total",
			Help: "Total number of heartbeat messages received",
		},
	)

	LiveDecodeDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "live_decode_drops_total",
			Help: "Total number of inbound messages dropped because they failed to decode",
		},
	)

	LiveSubscriberDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_subscriber_drops_total",
			Help: "Total number of messages dropped because a subscriber channel was full",
		},
		[]string{"stream"}, // "state", "sample"
	)

	// Sync cycle metrics
	SyncCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_cycle_duration_seconds",
			Help:    "Duration of sync cycles in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	SyncDaysCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_days_committed_total",
			Help: "Total number of days committed to the health sink",
		},
	)

	SyncDaysSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_days_skipped_total",
			Help: "Total number of days skipped because the ledger showed them current",
		},
	)

	SyncDayFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_day_failures_total",
			Help: "Total number of per-day failures during sync cycles",
		},
		[]string{"stage"}, // "summary_fetch", "samples_fetch", "sink_commit", "ledger_write"
	)

	SyncCyclesCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_cycles_coalesced_total",
			Help: "Total number of cycle requests coalesced into an already-running cycle",
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of the last completed sync cycle",
		},
	)

	// Ledger metrics
	LedgerRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_records",
			Help: "Current number of committed-day records in the ledger",
		},
	)

	LedgerWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_writes_total",
			Help: "Total number of ledger upserts",
		},
	)

	// Origin client metrics
	OriginRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "origin_requests_total",
			Help: "Total number of requests to the capture service",
		},
		[]string{"endpoint", "outcome"}, // outcome: "success", "failure", "rejected"
	)

	OriginRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "origin_request_duration_seconds",
			Help:    "Origin request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)
