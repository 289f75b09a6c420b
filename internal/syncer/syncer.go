// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

/*
syncer.go - Sync Orchestrator

Drives one sync cycle at a time end-to-end: enumerate candidate days from
the capture service, fetch each day's metrics, push days the ledger marks
stale to the health sink, and record successes back into the ledger.

Failure discipline: a single unreachable or rejected day never aborts the
cycle; it is counted and the loop moves on. Only the concurrent-cycle guard
and cooperative cancellation stop a cycle early, and cancellation is only
observed between days, never mid-commit. The ledger is updated strictly
after a confirmed sink success, so the worst crash outcome is one redundant
future re-commit of an idempotent operation.
*/

package syncer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/stridesync/internal/ledger"
	"github.com/tomtom215/stridesync/internal/logging"
	"github.com/tomtom215/stridesync/internal/metrics"
	"github.com/tomtom215/stridesync/internal/origin"
	"github.com/tomtom215/stridesync/internal/sink"
)

// CycleResult summarizes one completed (or cancelled) sync cycle.
type CycleResult struct {
	CycleID    string    `json:"cycle_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Candidates int       `json:"candidates"`
	Committed  int       `json:"committed"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
}

// Stats is a point-in-time view of the orchestrator's aggregate counters,
// served by the status API.
type Stats struct {
	LastCycleTime  time.Time    `json:"last_cycle_time"`
	LastResult     *CycleResult `json:"last_result,omitempty"`
	CyclesTotal    uint64       `json:"cycles_total"`
	CommittedTotal uint64       `json:"committed_total"`
}

// Manager orchestrates sync cycles against the origin, sink, and ledger.
type Manager struct {
	client origin.Client
	ledger *ledger.Ledger
	sink   sink.Sink

	// cycleMu enforces at-most-one-cycle-in-flight. RunCycle uses TryLock
	// so a second caller coalesces instead of queueing.
	cycleMu sync.Mutex

	mu             sync.RWMutex
	lastCycleTime  time.Time
	lastResult     *CycleResult
	cyclesTotal    uint64
	committedTotal uint64
	onCompleted    func(CycleResult)
}

// NewManager creates a sync orchestrator.
func NewManager(client origin.Client, l *ledger.Ledger, s sink.Sink) *Manager {
	return &Manager{
		client: client,
		ledger: l,
		sink:   s,
	}
}

// SetOnCycleCompleted registers a callback invoked after each completed
// cycle with its result. Set before the first cycle runs.
func (m *Manager) SetOnCycleCompleted(fn func(CycleResult)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCompleted = fn
}

// Stats returns the orchestrator's aggregate counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		LastCycleTime:  m.lastCycleTime,
		LastResult:     m.lastResult,
		CyclesTotal:    m.cyclesTotal,
		CommittedTotal: m.committedTotal,
	}
}

// RunCycle runs one sync cycle. If a cycle is already in flight the call
// coalesces: it returns (nil, nil) immediately with no side effects. An
// error is returned only when the cycle could not complete end-to-end
// (origin unreachable at enumeration, or cancelled between days); per-day
// failures are reported in CycleResult.Failed.
func (m *Manager) RunCycle(ctx context.Context) (*CycleResult, error) {
	if !m.cycleMu.TryLock() {
		metrics.SyncCyclesCoalesced.Inc()
		logging.Debug().Msg("Sync cycle already in flight, coalescing")
		return nil, nil
	}
	defer m.cycleMu.Unlock()

	result := &CycleResult{
		CycleID:   uuid.NewString(),
		StartedAt: time.Now(),
	}
	clog := logging.With().Str("cycle_id", result.CycleID).Logger()

	if err := m.client.Ping(ctx); err != nil {
		clog.Warn().Err(err).Msg("Origin not reachable, skipping cycle")
		return nil, fmt.Errorf("origin liveness probe failed: %w", err)
	}

	days, err := m.client.ListDates(ctx)
	if err != nil {
		clog.Warn().Err(err).Msg("Failed to enumerate activity days")
		return nil, fmt.Errorf("enumerate days: %w", err)
	}
	result.Candidates = len(days)
	clog.Info().Int("candidates", len(days)).Msg("Sync cycle started")

	for _, day := range days {
		// Cancellation is honored between days only; a day in progress
		// always finishes so the ledger never observes a half commit.
		if ctx.Err() != nil {
			clog.Warn().Int("committed", result.Committed).Msg("Sync cycle cancelled")
			return result, ctx.Err()
		}
		m.syncDay(ctx, &clog, day, result)
	}

	result.FinishedAt = time.Now()
	m.completeCycle(result)
	clog.Info().
		Int("committed", result.Committed).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
		Msg("Sync cycle completed")

	return result, nil
}

// syncDay processes one candidate day. Every failure path counts and
// returns; nothing here aborts the surrounding cycle.
func (m *Manager) syncDay(ctx context.Context, clog *zerolog.Logger, day string, result *CycleResult) {
	summary, err := m.client.GetDailySummary(ctx, day)
	if err != nil {
		metrics.SyncDayFailures.WithLabelValues("summary_fetch").Inc()
		result.Failed++
		clog.Warn().Err(err).Str("day", day).Msg("Skipping day, summary fetch failed")
		return
	}

	needs, err := m.ledger.NeedsCommit(*summary)
	if err != nil {
		metrics.SyncDayFailures.WithLabelValues("ledger_read").Inc()
		result.Failed++
		clog.Error().Err(err).Str("day", day).Msg("Skipping day, ledger read failed")
		return
	}
	if !needs {
		metrics.SyncDaysSkipped.Inc()
		result.Skipped++
		return
	}

	samples, err := m.client.GetDaySamples(ctx, day)
	if err != nil {
		metrics.SyncDayFailures.WithLabelValues("samples_fetch").Inc()
		result.Failed++
		clog.Warn().Err(err).Str("day", day).Msg("Skipping day, samples fetch failed")
		return
	}

	receipt, err := m.sink.CommitWorkout(ctx, *summary, samples)
	if err != nil {
		metrics.SyncDayFailures.WithLabelValues("sink_commit").Inc()
		result.Failed++
		clog.Warn().Err(err).Str("day", day).Msg("Sink rejected day, will retry next cycle")
		return
	}

	// Ledger write happens only after the sink confirmed the commit. If
	// this write fails the day stays a candidate and the next cycle
	// re-commits it, which the sink's idempotency makes safe.
	if err := m.ledger.RecordCommit(*summary); err != nil {
		metrics.SyncDayFailures.WithLabelValues("ledger_write").Inc()
		result.Failed++
		clog.Error().Err(err).Str("day", day).Msg("Ledger write failed after sink success")
		return
	}

	metrics.SyncDaysCommitted.Inc()
	result.Committed++
	clog.Info().Str("day", day).Str("receipt", receipt.ID).Msg("Committed day to health sink")
}

// completeCycle records the cycle outcome and fires the completion callback.
func (m *Manager) completeCycle(result *CycleResult) {
	metrics.SyncCycleDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	metrics.SyncLastSuccess.Set(float64(result.FinishedAt.Unix()))

	m.mu.Lock()
	m.lastCycleTime = result.FinishedAt
	m.lastResult = result
	m.cyclesTotal++
	m.committedTotal += uint64(result.Committed)
	callback := m.onCompleted
	m.mu.Unlock()

	if callback != nil {
		callback(*result)
	}
}
