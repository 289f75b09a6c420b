// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

// Package origin implements the typed request/response client for the
// treadmill capture service's REST API, plus a circuit-breaker wrapper.
//
// Endpoints consumed:
//
//	GET /api/health                 liveness probe
//	GET /api/dates                  days with recorded activity
//	GET /api/dates/{date}/summary   aggregated counters for one day
//	GET /api/dates/{date}/samples   raw samples for one day
//
// The capture service aggregates counters by local calendar day, so every
// date-scoped request carries the configured tz_offset.
package origin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/stridesync/internal/config"
	"github.com/tomtom215/stridesync/internal/metrics"
	"github.com/tomtom215/stridesync/internal/models"
)

// Client defines the capture-service API surface used by the rest of the
// daemon. Both HTTPClient and BreakerClient implement it.
type Client interface {
	Ping(ctx context.Context) error
	ListDates(ctx context.Context) ([]string, error)
	GetDailySummary(ctx context.Context, day string) (*models.DailyMetrics, error)
	GetDaySamples(ctx context.Context, day string) ([]models.LiveSample, error)
	WebSocketURL() (string, error)
}

// Ensure HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// HTTPClient is the concrete REST client for the capture service.
type HTTPClient struct {
	baseURL    string
	tzOffset   int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// datesResponse is the wire shape of GET /api/dates.
type datesResponse struct {
	Dates []string `json:"dates"`
}

// samplesResponse is the wire shape of GET /api/dates/{date}/samples.
type samplesResponse struct {
	Date    string              `json:"date"`
	Samples []models.LiveSample `json:"samples"`
}

// NewHTTPClient creates a capture-service client from configuration.
func NewHTTPClient(cfg config.OriginConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimSuffix(cfg.URL, "/"),
		tzOffset: cfg.TZOffsetSeconds,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestBurst),
	}
}

// Ping checks the capture service's liveness endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	resp, err := c.doRequest(ctx, "/api/health", false)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned status %d", ErrUnreachable, resp.StatusCode)
	}
	return nil
}

// ListDates returns every day key with recorded activity, as reported by
// the origin. Order is origin-defined; callers must not rely on it.
func (c *HTTPClient) ListDates(ctx context.Context) ([]string, error) {
	resp, err := c.doRequest(ctx, "/api/dates", true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: dates returned status %d", ErrUnreachable, resp.StatusCode)
	}

	var out datesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: dates: %v", ErrDecode, err)
	}
	return out.Dates, nil
}

// GetDailySummary fetches the aggregated counters for one day.
func (c *HTTPClient) GetDailySummary(ctx context.Context, day string) (*models.DailyMetrics, error) {
	if _, err := time.Parse(models.DayFormat, day); err != nil {
		return nil, fmt.Errorf("%w: bad day key %q", ErrInvalidEndpoint, day)
	}

	resp, err := c.doRequest(ctx, "/api/dates/"+day+"/summary", true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: no summary for %s", ErrNotFound, day)
	default:
		return nil, fmt.Errorf("%w: summary returned status %d", ErrUnreachable, resp.StatusCode)
	}

	var m models.DailyMetrics
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: summary for %s: %v", ErrDecode, day, err)
	}
	if m.Day == "" {
		m.Day = day
	}
	return &m, nil
}

// GetDaySamples fetches the raw samples recorded for one day.
func (c *HTTPClient) GetDaySamples(ctx context.Context, day string) ([]models.LiveSample, error) {
	if _, err := time.Parse(models.DayFormat, day); err != nil {
		return nil, fmt.Errorf("%w: bad day key %q", ErrInvalidEndpoint, day)
	}

	resp, err := c.doRequest(ctx, "/api/dates/"+day+"/samples", true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: no samples for %s", ErrNotFound, day)
	default:
		return nil, fmt.Errorf("%w: samples returned status %d", ErrUnreachable, resp.StatusCode)
	}

	var out samplesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: samples for %s: %v", ErrDecode, day, err)
	}
	return out.Samples, nil
}

// WebSocketURL derives the live-feed URL from the configured base URL.
func (c *HTTPClient) WebSocketURL() (string, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}

	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, parsed.Scheme)
	}

	parsed.Path = "/ws/live"
	return parsed.String(), nil
}

// doRequest performs a rate-limited GET against the capture service.
// endpoint is instrumented by path prefix; withTZ appends the tz_offset
// query parameter for date-scoped endpoints.
func (c *HTTPClient) doRequest(ctx context.Context, endpoint string, withTZ bool) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrUnreachable, err)
	}

	fullURL := c.baseURL + endpoint
	if withTZ && c.tzOffset != 0 {
		fullURL += "?tz_offset=" + strconv.Itoa(c.tzOffset)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	label := metricLabel(endpoint)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.OriginRequestDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.OriginRequests.WithLabelValues(label, "failure").Inc()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		return nil, fmt.Errorf("origin request failed: %w", err)
	}

	metrics.OriginRequests.WithLabelValues(label, "success").Inc()
	return resp, nil
}

// metricLabel collapses date-scoped paths to a stable label.
func metricLabel(endpoint string) string {
	switch {
	case endpoint == "/api/health":
		return "health"
	case endpoint == "/api/dates":
		return "dates"
	case strings.HasSuffix(endpoint, "/summary"):
		return "summary"
	case strings.HasSuffix(endpoint, "/samples"):
		return "samples"
	default:
		return "other"
	}
}
