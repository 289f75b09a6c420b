// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

package origin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/stridesync/internal/config"
)

func testClient(t *testing.T, handler http.Handler) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewHTTPClient(config.OriginConfig{
		URL:               srv.URL,
		Timeout:           5 * time.Second,
		TZOffsetSeconds:   -28800,
		RequestsPerSecond: 100,
		RequestBurst:      100,
	}), srv
}

func TestPing(t *testing.T) {
	t.Parallel()

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))

	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}

func TestPingUnhealthy(t *testing.T) {
	t.Parallel()

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	if err := c.Ping(context.Background()); !errors.Is(err, ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
}

func TestListDates(t *testing.T) {
	t.Parallel()

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("tz_offset"); got != "-28800" {
			t.Errorf("expected tz_offset=-28800, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"dates":["2026-03-13","2026-03-14"]}`))
	}))

	dates, err := c.ListDates(context.Background())
	if err != nil {
		t.Fatalf("list dates: %v", err)
	}
	if len(dates) != 2 || dates[0] != "2026-03-13" {
		t.Errorf("unexpected dates: %v", dates)
	}
}

func TestListDatesDecodeError(t *testing.T) {
	t.Parallel()

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"dates": not json`))
	}))

	_, err := c.ListDates(context.Background())
	if !errors.Is(err, ErrDecode) {
		t.Errorf("expected ErrDecode, got %v", err)
	}
}

func TestGetDailySummary(t *testing.T) {
	t.Parallel()

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dates/2026-03-14/summary" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"date":"2026-03-14","steps":8200,"distance_meters":6400,"calories":410,"avg_speed":4.7,"max_speed":8.2}`))
	}))

	m, err := c.GetDailySummary(context.Background(), "2026-03-14")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if m.Day != "2026-03-14" || m.Steps != 8200 {
		t.Errorf("unexpected summary: %+v", m)
	}
}

func TestGetDailySummaryFillsDay(t *testing.T) {
	t.Parallel()

	// Some origin builds omit the date field in single-day responses.
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"steps":100}`))
	}))

	m, err := c.GetDailySummary(context.Background(), "2026-03-14")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if m.Day != "2026-03-14" {
		t.Errorf("expected day filled from request, got %q", m.Day)
	}
}

func TestGetDailySummaryNotFound(t *testing.T) {
	t.Parallel()

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.GetDailySummary(context.Background(), "2026-03-14")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetDailySummaryRejectsBadDay(t *testing.T) {
	t.Parallel()

	c, _ := testClient(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("request must not reach the server for a bad day key")
	}))

	_, err := c.GetDailySummary(context.Background(), "14-03-2026")
	if !errors.Is(err, ErrInvalidEndpoint) {
		t.Errorf("expected ErrInvalidEndpoint, got %v", err)
	}
}

func TestGetDaySamples(t *testing.T) {
	t.Parallel()

	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dates/2026-03-14/samples" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"date":"2026-03-14","samples":[{"timestamp":1767225600,"speed":5.2,"steps_delta":12}]}`))
	}))

	samples, err := c.GetDaySamples(context.Background(), "2026-03-14")
	if err != nil {
		t.Fatalf("get samples: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}
	if samples[0].StepsDelta == nil || *samples[0].StepsDelta != 12 {
		t.Errorf("unexpected sample: %+v", samples[0])
	}
}

func TestUnreachableHost(t *testing.T) {
	t.Parallel()

	c := NewHTTPClient(config.OriginConfig{
		URL:               "http://127.0.0.1:1",
		Timeout:           time.Second,
		RequestsPerSecond: 100,
		RequestBurst:      100,
	})

	if err := c.Ping(context.Background()); !errors.Is(err, ErrUnreachable) {
		t.Errorf("expected ErrUnreachable, got %v", err)
	}
}

func TestWebSocketURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		baseURL  string
		expected string
		wantErr  bool
	}{
		{"http", "http://treadmill:8080", "ws://treadmill:8080/ws/live", false},
		{"https", "https://treadmill.local", "wss://treadmill.local/ws/live", false},
		{"trailing slash", "http://treadmill:8080/", "ws://treadmill:8080/ws/live", false},
		{"bad scheme", "ftp://treadmill", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewHTTPClient(config.OriginConfig{
				URL:               tt.baseURL,
				RequestsPerSecond: 1,
				RequestBurst:      1,
			})
			got, err := c.WebSocketURL()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEndpoint) {
					t.Errorf("expected ErrInvalidEndpoint, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("websocket url: %v", err)
			}
			if got != tt.expected {
				t.Errorf("WebSocketURL() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestMetricLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		endpoint string
		expected string
	}{
		{"/api/health", "health"},
		{"/api/dates", "dates"},
		{"/api/dates/2026-03-14/summary", "summary"},
		{"/api/dates/2026-03-14/samples", "samples"},
		{"/api/unknown", "other"},
	}

	for _, tt := range tests {
		if got := metricLabel(tt.endpoint); got != tt.expected {
			t.Errorf("metricLabel(%q) = %q, want %q", tt.endpoint, got, tt.expected)
		}
	}
}
