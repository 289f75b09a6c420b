// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

package origin

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/stridesync/internal/logging"
	"github.com/tomtom215/stridesync/internal/metrics"
	"github.com/tomtom215/stridesync/internal/models"
)

// BreakerClient wraps a Client with a circuit breaker so a down or slow
// capture service fails fast instead of stacking up timed-out requests.
//
// The breaker uses real time for its interval and timeout calculations;
// tests should exercise the wrapped client directly.
type BreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

// Ensure BreakerClient implements Client.
var _ Client = (*BreakerClient)(nil)

// NewBreakerClient wraps client with a circuit breaker.
// The circuit opens after a 60% failure rate over at least 10 requests,
// resets its counts every minute while closed, and probes recovery after
// 2 minutes open. ErrNotFound is a valid origin answer, not a failure.
func NewBreakerClient(client Client) *BreakerClient {
	cbName := "origin-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},

		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := breakerStateString(from)
			toStr := breakerStateString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("Origin circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// execute runs fn under the breaker, translating open-circuit rejections
// into ErrUnreachable so callers keep a single taxonomy.
func (b *BreakerClient) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.OriginRequests.WithLabelValues("breaker", "rejected").Inc()
			return nil, fmt.Errorf("%w: circuit open", ErrUnreachable)
		}
		return nil, err
	}
	return result, nil
}

// castResult type-casts a breaker result with error checking.
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// Ping verifies origin connectivity with breaker protection.
func (b *BreakerClient) Ping(ctx context.Context) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.client.Ping(ctx)
	})
	return err
}

// ListDates lists activity days with breaker protection.
func (b *BreakerClient) ListDates(ctx context.Context) ([]string, error) {
	return castResult[[]string](b.execute(func() (any, error) {
		return b.client.ListDates(ctx)
	}))
}

// GetDailySummary fetches one day's counters with breaker protection.
func (b *BreakerClient) GetDailySummary(ctx context.Context, day string) (*models.DailyMetrics, error) {
	return castResult[*models.DailyMetrics](b.execute(func() (any, error) {
		return b.client.GetDailySummary(ctx, day)
	}))
}

// GetDaySamples fetches one day's raw samples with breaker protection.
func (b *BreakerClient) GetDaySamples(ctx context.Context, day string) ([]models.LiveSample, error) {
	return castResult[[]models.LiveSample](b.execute(func() (any, error) {
		return b.client.GetDaySamples(ctx, day)
	}))
}

// WebSocketURL passes through; no network call is involved.
func (b *BreakerClient) WebSocketURL() (string, error) {
	return b.client.WebSocketURL()
}

func breakerStateFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func breakerStateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
