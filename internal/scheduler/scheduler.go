// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

// Package scheduler drives periodic sync cycles and reacts to live
// connection events with an opportunistic, debounced trigger.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/stridesync/internal/config"
	"github.com/tomtom215/stridesync/internal/logging"
	"github.com/tomtom215/stridesync/internal/models"
	"github.com/tomtom215/stridesync/internal/syncer"
)

// Scheduler runs sync cycles on a fixed interval, on manual trigger, and
// opportunistically when the treadmill comes online. Every cycle runs
// under the configured time budget; the orchestrator's own guard makes
// overlapping requests coalesce rather than queue.
type Scheduler struct {
	cfg    config.SyncConfig
	syncer *syncer.Manager

	// states carries live connection transitions; nil when the live
	// manager is disabled, which leaves the select arm permanently idle.
	states <-chan models.StateChange

	// triggerCh holds at most one pending out-of-band request.
	triggerCh chan struct{}

	mu            sync.Mutex
	lastConnected time.Time
}

// New creates a scheduler. states may be nil when no live manager runs.
func New(cfg config.SyncConfig, m *syncer.Manager, states <-chan models.StateChange) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		syncer:    m,
		states:    states,
		triggerCh: make(chan struct{}, 1),
	}
}

// Trigger requests an out-of-band sync cycle. Requests arriving while one
// is already queued are dropped; the queued cycle covers them.
func (s *Scheduler) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled, running one cycle immediately and
// then on every interval tick, manual trigger, or debounced reconnect.
func (s *Scheduler) Run(ctx context.Context) error {
	logging.Info().
		Dur("interval", s.cfg.Interval).
		Dur("budget", s.cfg.Budget).
		Msg("Sync scheduler started")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// Catch up on anything missed while the process was down.
	s.runOnce(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Sync scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx, "interval")
		case <-s.triggerCh:
			s.runOnce(ctx, "manual")
		case change, ok := <-s.states:
			if !ok {
				s.states = nil
				continue
			}
			if s.shouldTriggerOnConnect(change) {
				s.runOnce(ctx, "reconnect")
			}
		}
	}
}

// shouldTriggerOnConnect reports whether a state change warrants an
// opportunistic cycle. Connections flapping inside the debounce window
// collapse into a single trigger.
func (s *Scheduler) shouldTriggerOnConnect(change models.StateChange) bool {
	if !s.cfg.TriggerOnConnect || change.State != models.StateConnected {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if now.Sub(s.lastConnected) < s.cfg.TriggerDebounce {
		return false
	}
	s.lastConnected = now
	return true
}

// runOnce executes a single cycle under the configured budget. Errors are
// logged, never propagated: a failed cycle must not take the loop down.
func (s *Scheduler) runOnce(ctx context.Context, reason string) {
	if ctx.Err() != nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, s.cfg.Budget)
	defer cancel()

	result, err := s.syncer.RunCycle(cctx)
	if err != nil {
		logging.Warn().Err(err).Str("reason", reason).Msg("Sync cycle did not complete")
		return
	}
	if result == nil {
		// Coalesced into a cycle already in flight.
		return
	}
	logging.Debug().
		Str("reason", reason).
		Int("committed", result.Committed).
		Msg("Scheduled sync cycle finished")
}
