// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

package sink

import (
	"context"

	"github.com/tomtom215/stridesync/internal/logging"
	"github.com/tomtom215/stridesync/internal/models"
)

// LogSink is the dry-run sink: a commit is a log line. Trivially idempotent.
// Useful for first-run validation of the sync pipeline before pointing the
// daemon at a real health store.
type LogSink struct{}

// NewLogSink creates a dry-run sink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

// CommitWorkout logs the day and succeeds.
func (s *LogSink) CommitWorkout(_ context.Context, m models.DailyMetrics, samples []models.LiveSample) (*Receipt, error) {
	logging.Info().
		Str("day", m.Day).
		Int64("steps", m.Steps).
		Int64("distance_m", m.DistanceMeters).
		Int64("calories", m.Calories).
		Int("samples", len(samples)).
		Msg("Dry-run commit")
	return &Receipt{ID: "dry-run:" + m.Day}, nil
}
