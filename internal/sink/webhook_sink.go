// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

package sink

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/stridesync/internal/models"
)

// WebhookSink POSTs each committed day to a configured endpoint. The
// receiving bridge (for example a HealthKit shortcut relay) is responsible
// for idempotent storage; the day key in the payload is its dedupe handle.
type WebhookSink struct {
	url        string
	httpClient *http.Client
}

// workoutPayload is the wire shape POSTed to the webhook.
type workoutPayload struct {
	Day     string              `json:"day"`
	Metrics models.DailyMetrics `json:"metrics"`
	Samples []models.LiveSample `json:"samples"`
}

// NewWebhookSink creates a webhook sink targeting url.
func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CommitWorkout POSTs the day. Any non-2xx response is ErrRejected; the
// response body's "id" field, when present, becomes the receipt.
func (s *WebhookSink) CommitWorkout(ctx context.Context, m models.DailyMetrics, samples []models.LiveSample) (*Receipt, error) {
	body, err := json.Marshal(workoutPayload{
		Day:     m.Day,
		Metrics: m,
		Samples: samples,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal workout payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook commit for %s: %w", m.Day, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: webhook returned status %d for %s", ErrRejected, resp.StatusCode, m.Day)
	}

	receipt := &Receipt{ID: m.Day}
	var ack struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err == nil && ack.ID != "" {
		receipt.ID = ack.ID
	}
	return receipt, nil
}
