// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

// Package ledger is the durable, idempotent record of which days have been
// committed to the health sink, and with what counter values.
//
// A SyncRecord's existence for a day is the sole source of truth for "has
// this day ever been committed". A day needs (re-)commit iff no record
// exists, or a freshly fetched DailyMetrics shows any counter strictly
// greater than the recorded value. Records are only ever removed by the
// explicit Clear/ClearAll reset operations.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/stridesync/internal/metrics"
	"github.com/tomtom215/stridesync/internal/models"
)

// dayKeyPrefix namespaces committed-day records in BadgerDB.
const dayKeyPrefix = "day:"

// Ledger is a BadgerDB-backed sync ledger.
//
// Mutating operations are serialized by writeMu (single-writer discipline)
// on top of Badger's own transaction isolation: each upsert reads and
// writes inside one transaction, so a read-modify-write race across the
// whole table cannot lose an update. Reads run concurrently with each
// other and only ever observe fully applied writes.
type Ledger struct {
	db      *badger.DB
	writeMu sync.Mutex
	nowFn   func() time.Time
}

// Open opens (or creates) a ledger at dir. An empty dir opens an in-memory
// ledger with no persistence, for tests and dry runs.
func Open(dir string) (*Ledger, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // badger's logger is noisy; we log our own operations
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	l := &Ledger{db: db, nowFn: time.Now}
	l.refreshRecordGauge()
	return l, nil
}

// Close releases the underlying store.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// SetNowFunc overrides the commit timestamp source. Test hook.
func (l *Ledger) SetNowFunc(fn func() time.Time) {
	l.nowFn = fn
}

func dayKey(day string) []byte {
	return []byte(dayKeyPrefix + day)
}

// RecordCommit upserts the SyncRecord for metrics.Day with the metrics'
// current counters and the current timestamp. Overwrites any prior record
// for the same day; there is never more than one live record per day.
func (l *Ledger) RecordCommit(m models.DailyMetrics) error {
	if m.Day == "" {
		return errors.New("ledger: empty day key")
	}

	rec := models.NewSyncRecord(m, l.nowFn())
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal sync record: %w", err)
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(dayKey(m.Day), data)
	})
	if err != nil {
		return fmt.Errorf("record commit for %s: %w", m.Day, err)
	}

	metrics.LedgerWrites.Inc()
	l.refreshRecordGauge()
	return nil
}

// Get returns the SyncRecord for day, or (nil, nil) if none exists.
func (l *Ledger) Get(day string) (*models.SyncRecord, error) {
	var rec models.SyncRecord
	found := false

	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dayKey(day))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get sync record for %s: %w", day, err)
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

// IsCommitted reports whether day has ever been committed.
func (l *Ledger) IsCommitted(day string) (bool, error) {
	rec, err := l.Get(day)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// NeedsCommit reports whether m must be (re-)committed: true when no record
// exists for m.Day, or when any of m's counters exceeds the recorded value.
// Counter decreases do not trigger a re-commit.
func (l *Ledger) NeedsCommit(m models.DailyMetrics) (bool, error) {
	rec, err := l.Get(m.Day)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return true, nil
	}
	return rec.SupersededBy(m), nil
}

// Clear removes the record for one day. Explicit reset only; nothing in
// the sync path calls this.
func (l *Ledger) Clear(day string) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	err := l.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(dayKey(day))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("clear %s: %w", day, err)
	}

	l.refreshRecordGauge()
	return nil
}

// ClearAll removes every record. Explicit reset only, used for forced
// re-sync or debugging.
func (l *Ledger) ClearAll() error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	days, err := l.listDays()
	if err != nil {
		return err
	}

	err = l.db.Update(func(txn *badger.Txn) error {
		for _, day := range days {
			if err := txn.Delete(dayKey(day)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear all: %w", err)
	}

	l.refreshRecordGauge()
	return nil
}

// ListCommittedDays returns every committed day key, most recent first.
func (l *Ledger) ListCommittedDays() ([]string, error) {
	days, err := l.listDays()
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days, nil
}

// listDays scans the day keyspace in store order.
func (l *Ledger) listDays() ([]string, error) {
	var days []string

	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(dayKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			days = append(days, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list committed days: %w", err)
	}
	return days, nil
}

// refreshRecordGauge recounts records for the ledger_records gauge.
// Fully scanning is fine at this scale (one record per day).
func (l *Ledger) refreshRecordGauge() {
	days, err := l.listDays()
	if err != nil {
		return
	}
	metrics.LedgerRecords.Set(float64(len(days)))
}
