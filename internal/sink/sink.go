// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

// Package sink defines the health-record sink contract and the built-in
// implementations. The sink proper (health-record storage internals) is an
// external collaborator; the only requirement this daemon places on it is
// that CommitWorkout is idempotent, because a crash between a sink success
// and the ledger write legitimately produces one redundant re-commit.
package sink

import (
	"context"
	"errors"

	"github.com/tomtom215/stridesync/internal/models"
)

// ErrRejected means the sink refused a commit. The affected day is not
// retried within the same cycle; because the ledger is only updated after
// a sink success, the day remains a candidate for the next cycle.
var ErrRejected = errors.New("sink: commit rejected")

// Receipt is the sink's opaque acknowledgement of a committed workout.
type Receipt struct {
	ID string `json:"id"`
}

// Sink durably stores one day's workout. Implementations must make
// CommitWorkout idempotent with respect to the day key.
type Sink interface {
	// CommitWorkout writes a full day (aggregated metrics plus raw samples)
	// to the health store and returns an opaque receipt.
	CommitWorkout(ctx context.Context, metrics models.DailyMetrics, samples []models.LiveSample) (*Receipt, error)
}
