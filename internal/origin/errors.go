// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

package origin

import "errors"

// Error taxonomy for origin calls. Callers branch on these with errors.Is:
// an invalid endpoint is never retried, an unreachable origin is retried by
// the caller's own policy (backoff for the live feed, next cycle for the
// orchestrator), and a decode failure marks the affected item bad without
// aborting surrounding work.
var (
	// ErrInvalidEndpoint means the configured URL or a derived request URL is
	// malformed. Fatal to the attempted operation.
	ErrInvalidEndpoint = errors.New("origin: invalid endpoint")

	// ErrUnreachable means the origin could not be reached (DNS failure,
	// connection refused, timeout).
	ErrUnreachable = errors.New("origin: unreachable")

	// ErrDecode means the origin responded with a payload that could not be
	// decoded into the expected shape.
	ErrDecode = errors.New("origin: decode failure")

	// ErrNotFound means the origin has no data for the requested day.
	ErrNotFound = errors.New("origin: not found")
)
