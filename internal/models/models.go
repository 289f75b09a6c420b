// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

// Package models defines the core data types shared across Stridesync
// components: daily activity metrics fetched from the capture service, live
// samples pushed over the streaming connection, and the durable sync records
// kept in the ledger.
package models

import (
	"time"
)

// DayFormat is the calendar-date key format used by the capture service.
// A "day" is the unit of synchronization granularity.
const DayFormat = "2006-01-02"

// DailyMetrics is an immutable snapshot of one logical day's activity as
// reported by the capture service. Counters (Steps, DistanceMeters, Calories)
// are non-decreasing within a day; a later fetch with the same Day supersedes
// an earlier one whenever any counter increased.
type DailyMetrics struct {
	Day             string  `json:"date"`
	TotalSamples    int64   `json:"total_samples"`
	DurationSeconds int64   `json:"duration_seconds"`
	DistanceMeters  int64   `json:"distance_meters"`
	Calories        int64   `json:"calories"`
	Steps           int64   `json:"steps"`
	AvgSpeed        float64 `json:"avg_speed"`
	MaxSpeed        float64 `json:"max_speed"`
}

// LiveSample is an ephemeral push message from the live feed. Delta fields
// carry the increment since the previous sample so consumers never have to
// re-derive deltas from cumulative counters that may reset.
type LiveSample struct {
	Timestamp     int64    `json:"timestamp"`
	Speed         *float64 `json:"speed,omitempty"`
	DistanceDelta *int64   `json:"distance_delta,omitempty"`
	CaloriesDelta *int64   `json:"calories_delta,omitempty"`
	StepsDelta    *int64   `json:"steps_delta,omitempty"`
}

// Time returns the sample timestamp as a time.Time.
func (s LiveSample) Time() time.Time {
	return time.Unix(s.Timestamp, 0).UTC()
}

// SyncRecord is the durable local record of the last successful commit of a
// day to the health sink. There is at most one live record per day; a
// re-commit overwrites it. Existence of a SyncRecord is the sole source of
// truth for "has this day ever been committed".
type SyncRecord struct {
	Day            string    `json:"day"`
	CommittedAt    time.Time `json:"committed_at"`
	Steps          int64     `json:"steps"`
	DistanceMeters int64     `json:"distance_meters"`
	Calories       int64     `json:"calories"`
}

// NewSyncRecord captures the counters of m at commit time.
func NewSyncRecord(m DailyMetrics, committedAt time.Time) SyncRecord {
	return SyncRecord{
		Day:            m.Day,
		CommittedAt:    committedAt,
		Steps:          m.Steps,
		DistanceMeters: m.DistanceMeters,
		Calories:       m.Calories,
	}
}

// SupersededBy reports whether m carries strictly more activity than the
// counters captured in r. Only counter increases trigger a re-commit;
// a same-day counter decrease is an origin-side anomaly this service
// deliberately does not reconcile.
func (r SyncRecord) SupersededBy(m DailyMetrics) bool {
	return m.Steps > r.Steps ||
		m.DistanceMeters > r.DistanceMeters ||
		m.Calories > r.Calories
}
