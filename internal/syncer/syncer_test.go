// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/stridesync/internal/ledger"
	"github.com/tomtom215/stridesync/internal/models"
	"github.com/tomtom215/stridesync/internal/sink"
)

// fakeOrigin is a scriptable capture-service client.
type fakeOrigin struct {
	mu         sync.Mutex
	pingErr    error
	dates      []string
	datesErr   error
	summaries  map[string]models.DailyMetrics
	summaryErr map[string]error
	samples    map[string][]models.LiveSample
	samplesErr map[string]error
}

func newFakeOrigin(days ...models.DailyMetrics) *fakeOrigin {
	f := &fakeOrigin{
		summaries:  make(map[string]models.DailyMetrics),
		summaryErr: make(map[string]error),
		samples:    make(map[string][]models.LiveSample),
		samplesErr: make(map[string]error),
	}
	for _, d := range days {
		f.dates = append(f.dates, d.Day)
		f.summaries[d.Day] = d
	}
	return f
}

func (f *fakeOrigin) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeOrigin) ListDates(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dates, f.datesErr
}

func (f *fakeOrigin) GetDailySummary(_ context.Context, day string) (*models.DailyMetrics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.summaryErr[day]; err != nil {
		return nil, err
	}
	m, ok := f.summaries[day]
	if !ok {
		return nil, fmt.Errorf("no summary for %s", day)
	}
	return &m, nil
}

func (f *fakeOrigin) GetDaySamples(_ context.Context, day string) ([]models.LiveSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.samplesErr[day]; err != nil {
		return nil, err
	}
	return f.samples[day], nil
}

func (f *fakeOrigin) WebSocketURL() (string, error) {
	return "ws://fake/ws/live", nil
}

// recordingSink remembers committed days and can be scripted to reject or
// block.
type recordingSink struct {
	mu        sync.Mutex
	committed []string
	rejectDay string
	onCommit  func(day string)
}

func (s *recordingSink) CommitWorkout(_ context.Context, m models.DailyMetrics, _ []models.LiveSample) (*sink.Receipt, error) {
	s.mu.Lock()
	reject := s.rejectDay == m.Day
	hook := s.onCommit
	if !reject {
		s.committed = append(s.committed, m.Day)
	}
	s.mu.Unlock()

	if hook != nil {
		hook(m.Day)
	}
	if reject {
		return nil, sink.ErrRejected
	}
	return &sink.Receipt{ID: "r-" + m.Day}, nil
}

func (s *recordingSink) days() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.committed...)
}

func openTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open("")
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func day(d string, steps int64) models.DailyMetrics {
	return models.DailyMetrics{Day: d, Steps: steps, DistanceMeters: steps, Calories: steps / 10}
}

func TestRunCycleCommitsNewDays(t *testing.T) {
	t.Parallel()

	origin := newFakeOrigin(day("2026-03-13", 5000), day("2026-03-14", 8200))
	store := openTestLedger(t)
	hs := &recordingSink{}
	m := NewManager(origin, store, hs)

	result, err := m.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if result.Committed != 2 || result.Skipped != 0 || result.Failed != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.CycleID == "" {
		t.Error("expected a cycle id")
	}

	for _, d := range []string{"2026-03-13", "2026-03-14"} {
		ok, err := store.IsCommitted(d)
		if err != nil || !ok {
			t.Errorf("expected %s committed in ledger (err=%v)", d, err)
		}
	}
}

func TestRunCycleSkipsCommittedDays(t *testing.T) {
	t.Parallel()

	origin := newFakeOrigin(day("2026-03-14", 8200))
	store := openTestLedger(t)
	hs := &recordingSink{}
	m := NewManager(origin, store, hs)

	if _, err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	result, err := m.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if result.Committed != 0 || result.Skipped != 1 {
		t.Errorf("expected pure skip cycle, got %+v", result)
	}
	if got := len(hs.days()); got != 1 {
		t.Errorf("sink saw %d commits, want 1", got)
	}
}

func TestRunCycleRecommitsGrownDay(t *testing.T) {
	t.Parallel()

	origin := newFakeOrigin(day("2026-03-14", 8200))
	store := openTestLedger(t)
	hs := &recordingSink{}
	m := NewManager(origin, store, hs)

	if _, err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	// The day grew: more steps reported on a later fetch.
	origin.mu.Lock()
	origin.summaries["2026-03-14"] = day("2026-03-14", 9000)
	origin.mu.Unlock()

	result, err := m.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}
	if result.Committed != 1 {
		t.Errorf("expected re-commit of grown day, got %+v", result)
	}

	rec, err := store.Get("2026-03-14")
	if err != nil || rec == nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.Steps != 9000 {
		t.Errorf("ledger holds stale counters: %+v", rec)
	}
}

func TestRunCycleContinuesPastFailedDay(t *testing.T) {
	t.Parallel()

	origin := newFakeOrigin(day("2026-03-12", 1000), day("2026-03-13", 2000), day("2026-03-14", 3000))
	origin.summaryErr["2026-03-13"] = errors.New("summary exploded")
	store := openTestLedger(t)
	hs := &recordingSink{}
	m := NewManager(origin, store, hs)

	result, err := m.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if result.Committed != 2 || result.Failed != 1 {
		t.Errorf("expected 2 committed 1 failed, got %+v", result)
	}

	ok, _ := store.IsCommitted("2026-03-13")
	if ok {
		t.Error("failed day must not reach the ledger")
	}
}

func TestRunCycleSinkRejectionLeavesDayUncommitted(t *testing.T) {
	t.Parallel()

	origin := newFakeOrigin(day("2026-03-14", 8200))
	store := openTestLedger(t)
	hs := &recordingSink{rejectDay: "2026-03-14"}
	m := NewManager(origin, store, hs)

	result, err := m.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if result.Failed != 1 || result.Committed != 0 {
		t.Errorf("unexpected result: %+v", result)
	}

	ok, _ := store.IsCommitted("2026-03-14")
	if ok {
		t.Error("rejected day must stay a candidate for the next cycle")
	}
}

func TestRunCycleFailsWhenEnumerationFails(t *testing.T) {
	t.Parallel()

	origin := newFakeOrigin()
	origin.datesErr = errors.New("origin down")
	store := openTestLedger(t)
	m := NewManager(origin, store, &recordingSink{})

	if _, err := m.RunCycle(context.Background()); err == nil {
		t.Error("expected error when enumeration fails")
	}
}

func TestRunCycleCoalesces(t *testing.T) {
	t.Parallel()

	origin := newFakeOrigin(day("2026-03-14", 8200))
	store := openTestLedger(t)

	inCycle := make(chan struct{})
	release := make(chan struct{})
	hs := &recordingSink{}
	hs.onCommit = func(string) {
		close(inCycle)
		<-release
	}
	m := NewManager(origin, store, hs)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := m.RunCycle(context.Background()); err != nil {
			t.Errorf("first cycle: %v", err)
		}
	}()

	<-inCycle
	result, err := m.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("coalesced cycle: %v", err)
	}
	if result != nil {
		t.Errorf("expected coalesced call to return nil result, got %+v", result)
	}

	close(release)
	<-done
}

func TestRunCycleCancellationBetweenDays(t *testing.T) {
	t.Parallel()

	origin := newFakeOrigin(day("2026-03-12", 1000), day("2026-03-13", 2000), day("2026-03-14", 3000))
	store := openTestLedger(t)

	ctx, cancel := context.WithCancel(context.Background())
	hs := &recordingSink{}
	hs.onCommit = func(d string) {
		if d == "2026-03-12" {
			cancel()
		}
	}
	m := NewManager(origin, store, hs)

	result, err := m.RunCycle(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result == nil || result.Committed != 1 {
		t.Errorf("expected one committed day before cancellation, got %+v", result)
	}

	// The day in flight finished; the remaining days were never started.
	if got := hs.days(); len(got) != 1 || got[0] != "2026-03-12" {
		t.Errorf("unexpected sink commits: %v", got)
	}
	ok, _ := store.IsCommitted("2026-03-12")
	if !ok {
		t.Error("in-flight day must complete its ledger write despite cancellation")
	}
}

func TestCompletionCallbackAndStats(t *testing.T) {
	t.Parallel()

	origin := newFakeOrigin(day("2026-03-14", 8200))
	store := openTestLedger(t)
	m := NewManager(origin, store, &recordingSink{})

	var cbResult CycleResult
	cbDone := make(chan struct{})
	m.SetOnCycleCompleted(func(r CycleResult) {
		cbResult = r
		close(cbDone)
	})

	before := time.Now()
	if _, err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}

	select {
	case <-cbDone:
	case <-time.After(time.Second):
		t.Fatal("completion callback never fired")
	}
	if cbResult.Committed != 1 {
		t.Errorf("callback saw %+v", cbResult)
	}

	stats := m.Stats()
	if stats.CyclesTotal != 1 || stats.CommittedTotal != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.LastCycleTime.Before(before) {
		t.Errorf("last cycle time not updated: %v", stats.LastCycleTime)
	}
	if stats.LastResult == nil || stats.LastResult.CycleID != cbResult.CycleID {
		t.Error("stats last result does not match callback result")
	}
}

func TestCancelledCycleDoesNotCountAsCompleted(t *testing.T) {
	t.Parallel()

	origin := newFakeOrigin(day("2026-03-12", 1000), day("2026-03-13", 2000))
	store := openTestLedger(t)

	ctx, cancel := context.WithCancel(context.Background())
	hs := &recordingSink{}
	hs.onCommit = func(string) { cancel() }
	m := NewManager(origin, store, hs)

	_, _ = m.RunCycle(ctx)

	if stats := m.Stats(); stats.CyclesTotal != 0 {
		t.Errorf("cancelled cycle counted as completed: %+v", stats)
	}
}
