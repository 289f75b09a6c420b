// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

// Package api provides the HTTP status and control surface for Stridesync.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/stridesync/internal/ledger"
	"github.com/tomtom215/stridesync/internal/logging"
	"github.com/tomtom215/stridesync/internal/models"
	"github.com/tomtom215/stridesync/internal/syncer"
)

// LiveStatus exposes the connection manager state to the status handler.
// Nil is allowed when the live stream is disabled.
type LiveStatus interface {
	State() models.StateChange
}

// SyncTrigger requests an out-of-band sync cycle.
type SyncTrigger interface {
	Trigger()
}

// Handler serves the status and control endpoints.
type Handler struct {
	live    LiveStatus
	syncer  *syncer.Manager
	trigger SyncTrigger
	ledger  *ledger.Ledger
	started time.Time
}

// NewHandler creates the API handler. live may be nil when the live
// stream is disabled.
func NewHandler(live LiveStatus, sm *syncer.Manager, trigger SyncTrigger, l *ledger.Ledger) *Handler {
	return &Handler{
		live:    live,
		syncer:  sm,
		trigger: trigger,
		ledger:  l,
		started: time.Now(),
	}
}

// writeJSON encodes data as JSON and writes it with the given status.
// Encode errors are logged only; headers are already on the wire.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error envelope.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Healthz reports process liveness.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse is the envelope for GET /api/v1/status.
type statusResponse struct {
	UptimeSeconds int64        `json:"uptime_seconds"`
	Live          *liveStatus  `json:"live,omitempty"`
	Sync          syncer.Stats `json:"sync"`
	LedgerDays    int          `json:"ledger_days"`
}

type liveStatus struct {
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

// Status reports live connection state, sync counters, and ledger size.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	days, err := h.ledger.ListCommittedDays()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to list ledger days for status")
		writeError(w, http.StatusInternalServerError, "ledger read failed")
		return
	}

	resp := statusResponse{
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Sync:          h.syncer.Stats(),
		LedgerDays:    len(days),
	}
	if h.live != nil {
		state := h.live.State()
		resp.Live = &liveStatus{State: state.State.String(), Reason: state.Reason}
	}
	writeJSON(w, http.StatusOK, resp)
}

// LedgerDays lists committed days, most recent first.
func (h *Handler) LedgerDays(w http.ResponseWriter, _ *http.Request) {
	days, err := h.ledger.ListCommittedDays()
	if err != nil {
		logging.Error().Err(err).Msg("Failed to list ledger days")
		writeError(w, http.StatusInternalServerError, "ledger read failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"days": days, "count": len(days)})
}

// LedgerDay returns the sync record for a single day.
func (h *Handler) LedgerDay(w http.ResponseWriter, r *http.Request) {
	day := chi.URLParam(r, "day")
	if _, err := time.Parse(models.DayFormat, day); err != nil {
		writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}

	rec, err := h.ledger.Get(day)
	if err != nil {
		logging.Error().Err(err).Str("day", day).Msg("Failed to read ledger record")
		writeError(w, http.StatusInternalServerError, "ledger read failed")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "day not committed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// TriggerSync queues an out-of-band sync cycle and returns immediately.
func (h *Handler) TriggerSync(w http.ResponseWriter, _ *http.Request) {
	h.trigger.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

// ClearLedgerDay forgets one day so the next cycle re-commits it.
func (h *Handler) ClearLedgerDay(w http.ResponseWriter, r *http.Request) {
	day := chi.URLParam(r, "day")
	if _, err := time.Parse(models.DayFormat, day); err != nil {
		writeError(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}

	if err := h.ledger.Clear(day); err != nil {
		logging.Error().Err(err).Str("day", day).Msg("Failed to clear ledger day")
		writeError(w, http.StatusInternalServerError, "ledger write failed")
		return
	}
	logging.Info().Str("day", day).Msg("Ledger day cleared via API")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "day": day})
}

// ClearLedger forgets every committed day. A full resync follows.
func (h *Handler) ClearLedger(w http.ResponseWriter, _ *http.Request) {
	if err := h.ledger.ClearAll(); err != nil {
		logging.Error().Err(err).Msg("Failed to clear ledger")
		writeError(w, http.StatusInternalServerError, "ledger write failed")
		return
	}
	logging.Warn().Msg("Ledger cleared via API, next cycle performs a full resync")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
