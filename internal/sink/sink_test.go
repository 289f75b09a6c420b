// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

package sink

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/stridesync/internal/models"
)

func testMetrics() models.DailyMetrics {
	return models.DailyMetrics{
		Day:            "2026-03-14",
		Steps:          8200,
		DistanceMeters: 6400,
		Calories:       410,
	}
}

func TestLogSinkCommit(t *testing.T) {
	t.Parallel()

	s := NewLogSink()
	receipt, err := s.CommitWorkout(context.Background(), testMetrics(), nil)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if receipt.ID != "dry-run:2026-03-14" {
		t.Errorf("unexpected receipt: %q", receipt.ID)
	}
}

func TestWebhookSinkCommit(t *testing.T) {
	t.Parallel()

	var received workoutPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "hk-77123"})
	}))
	defer srv.Close()

	s := NewWebhookSink(srv.URL, 5*time.Second)
	speed := 5.2
	samples := []models.LiveSample{{Timestamp: 1767225600, Speed: &speed}}

	receipt, err := s.CommitWorkout(context.Background(), testMetrics(), samples)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	if receipt.ID != "hk-77123" {
		t.Errorf("expected receipt from ack body, got %q", receipt.ID)
	}
	if received.Day != "2026-03-14" {
		t.Errorf("expected day in payload, got %q", received.Day)
	}
	if received.Metrics.Steps != 8200 {
		t.Errorf("expected metrics in payload, got %+v", received.Metrics)
	}
	if len(received.Samples) != 1 {
		t.Errorf("expected 1 sample in payload, got %d", len(received.Samples))
	}
}

func TestWebhookSinkReceiptWithoutAckBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewWebhookSink(srv.URL, 5*time.Second)
	receipt, err := s.CommitWorkout(context.Background(), testMetrics(), nil)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if receipt.ID != "2026-03-14" {
		t.Errorf("expected day fallback receipt, got %q", receipt.ID)
	}
}

func TestWebhookSinkRejection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "duplicate workout", http.StatusConflict)
	}))
	defer srv.Close()

	s := NewWebhookSink(srv.URL, 5*time.Second)
	_, err := s.CommitWorkout(context.Background(), testMetrics(), nil)
	if !errors.Is(err, ErrRejected) {
		t.Errorf("expected ErrRejected, got %v", err)
	}
}

func TestWebhookSinkUnreachable(t *testing.T) {
	t.Parallel()

	s := NewWebhookSink("http://127.0.0.1:1", time.Second)
	_, err := s.CommitWorkout(context.Background(), testMetrics(), nil)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if errors.Is(err, ErrRejected) {
		t.Error("transport failure must not read as a rejection")
	}
}
