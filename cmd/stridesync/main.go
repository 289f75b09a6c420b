// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

// Package main is the entry point for the Stridesync daemon.
//
// Stridesync mirrors workout activity from a treadmill capture service into
// a daily health record sink. It keeps a durable ledger of committed days
// so repeated cycles stay idempotent, follows the treadmill's live feed
// over WebSocket, and re-syncs opportunistically whenever the treadmill
// comes back online.
//
// # Application Architecture
//
// The daemon initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered load (defaults, config.yaml, env vars)
//  2. Ledger: BadgerDB store of per-day sync records
//  3. Origin client: HTTP client for the capture service, wrapped in a
//     circuit breaker
//  4. Live manager: WebSocket connection with capped-backoff reconnect
//  5. Sync orchestrator and scheduler
//  6. HTTP status server
//
// All long-running components run under a Suture supervisor tree.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file, built-in defaults.
//
//	export ORIGIN_URL=http://treadmill-capture:8080
//	export SINK_MODE=webhook
//	export SINK_WEBHOOK_URL=http://health-bridge:9000/workouts
//	./stridesync
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the live connection is
// closed, any in-flight sync cycle finishes its current day, and the
// ledger is flushed and closed.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/stridesync/internal/api"
	"github.com/tomtom215/stridesync/internal/config"
	"github.com/tomtom215/stridesync/internal/ledger"
	"github.com/tomtom215/stridesync/internal/live"
	"github.com/tomtom215/stridesync/internal/logging"
	"github.com/tomtom215/stridesync/internal/models"
	"github.com/tomtom215/stridesync/internal/origin"
	"github.com/tomtom215/stridesync/internal/scheduler"
	"github.com/tomtom215/stridesync/internal/sink"
	"github.com/tomtom215/stridesync/internal/supervisor"
	"github.com/tomtom215/stridesync/internal/syncer"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("origin_url", cfg.Origin.URL).
		Str("sink_mode", cfg.Sink.Mode).
		Bool("live_enabled", cfg.Live.Enabled).
		Msg("Starting Stridesync")

	// Ledger first: nothing else is worth starting if the store is broken.
	ledgerPath := cfg.Ledger.Path
	if cfg.Ledger.InMemory {
		ledgerPath = ""
	}
	store, err := ledger.Open(ledgerPath)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Ledger.Path).Msg("Failed to open sync ledger")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing sync ledger")
		}
	}()

	// Origin client with circuit breaker. A down treadmill must not turn
	// into a retry storm; the breaker fails cycles fast until it recovers.
	client := origin.NewBreakerClient(origin.NewHTTPClient(cfg.Origin))
	if err := client.Ping(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Capture service not reachable at startup, will retry")
	} else {
		logging.Info().Msg("Connected to capture service")
	}

	var healthSink sink.Sink
	switch cfg.Sink.Mode {
	case "webhook":
		healthSink = sink.NewWebhookSink(cfg.Sink.WebhookURL, cfg.Sink.Timeout)
		logging.Info().Str("url", cfg.Sink.WebhookURL).Msg("Webhook health sink enabled")
	default:
		healthSink = sink.NewLogSink()
		logging.Info().Msg("Log health sink enabled (dry run, nothing leaves the process)")
	}

	orchestrator := syncer.NewManager(client, store, healthSink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	// The live manager feeds connection transitions to the scheduler so a
	// reconnect can trigger an immediate catch-up cycle.
	var liveManager *live.Manager
	var states <-chan models.StateChange
	if cfg.Live.Enabled {
		liveManager = live.NewManager(cfg.Live, client.WebSocketURL)
		stateCh, _ := liveManager.SubscribeState()
		states = stateCh
		tree.AddLiveService(supervisor.NewLiveService(liveManager))
	}

	sched := scheduler.New(cfg.Sync, orchestrator, states)
	tree.AddSyncService(supervisor.NewSchedulerService(sched))

	var liveStatus api.LiveStatus
	if liveManager != nil {
		liveStatus = liveManager
	}
	handler := api.NewHandler(liveStatus, orchestrator, sched, store)
	server := api.NewServer(handler, cfg.Server)
	tree.AddAPIService(supervisor.NewHTTPService("status-api", server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Stridesync stopped gracefully")
}
