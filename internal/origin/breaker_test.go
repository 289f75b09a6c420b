// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

package origin

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/stridesync/internal/models"
)

// stubClient is a scriptable Client for breaker tests.
type stubClient struct {
	pingErr    error
	dates      []string
	datesErr   error
	summary    *models.DailyMetrics
	summaryErr error
	calls      int
}

func (s *stubClient) Ping(context.Context) error {
	s.calls++
	return s.pingErr
}

func (s *stubClient) ListDates(context.Context) ([]string, error) {
	s.calls++
	return s.dates, s.datesErr
}

func (s *stubClient) GetDailySummary(context.Context, string) (*models.DailyMetrics, error) {
	s.calls++
	return s.summary, s.summaryErr
}

func (s *stubClient) GetDaySamples(context.Context, string) ([]models.LiveSample, error) {
	s.calls++
	return nil, nil
}

func (s *stubClient) WebSocketURL() (string, error) {
	return "ws://stub/ws/live", nil
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	t.Parallel()

	stub := &stubClient{dates: []string{"2026-03-14"}}
	b := NewBreakerClient(stub)

	dates, err := b.ListDates(context.Background())
	if err != nil {
		t.Fatalf("list dates: %v", err)
	}
	if len(dates) != 1 || dates[0] != "2026-03-14" {
		t.Errorf("unexpected dates: %v", dates)
	}
}

func TestBreakerPassesThroughTypedResult(t *testing.T) {
	t.Parallel()

	stub := &stubClient{summary: &models.DailyMetrics{Day: "2026-03-14", Steps: 100}}
	b := NewBreakerClient(stub)

	m, err := b.GetDailySummary(context.Background(), "2026-03-14")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if m.Steps != 100 {
		t.Errorf("unexpected summary: %+v", m)
	}
}

func TestBreakerOpensAfterFailureRun(t *testing.T) {
	t.Parallel()

	stub := &stubClient{pingErr: ErrUnreachable}
	b := NewBreakerClient(stub)

	// Drive enough consecutive failures to trip the 60%/10-request rule.
	for i := 0; i < 10; i++ {
		if err := b.Ping(context.Background()); err == nil {
			t.Fatal("expected failure")
		}
	}

	before := stub.calls
	err := b.Ping(context.Background())
	if !errors.Is(err, ErrUnreachable) {
		t.Errorf("expected ErrUnreachable from open circuit, got %v", err)
	}
	if stub.calls != before {
		t.Errorf("open circuit must not reach the origin, calls went %d -> %d", before, stub.calls)
	}
}

func TestBreakerTreatsNotFoundAsSuccess(t *testing.T) {
	t.Parallel()

	stub := &stubClient{summaryErr: ErrNotFound}
	b := NewBreakerClient(stub)

	for i := 0; i < 20; i++ {
		if _, err := b.GetDailySummary(context.Background(), "2026-03-14"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}

	// 20 NotFound answers must leave the circuit closed.
	before := stub.calls
	_, _ = b.GetDailySummary(context.Background(), "2026-03-14")
	if stub.calls != before+1 {
		t.Error("circuit should still be closed after NotFound answers")
	}
}

func TestBreakerWebSocketURLBypassesBreaker(t *testing.T) {
	t.Parallel()

	stub := &stubClient{pingErr: ErrUnreachable}
	b := NewBreakerClient(stub)
	for i := 0; i < 10; i++ {
		_ = b.Ping(context.Background())
	}

	url, err := b.WebSocketURL()
	if err != nil {
		t.Fatalf("websocket url: %v", err)
	}
	if url != "ws://stub/ws/live" {
		t.Errorf("unexpected url %q", url)
	}
}
