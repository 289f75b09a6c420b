// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/stridesync/internal/config"
)

// NewRouter builds the chi router for the status surface.
func NewRouter(handler *Handler, cfg config.ServerConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.Timeout))

	r.Get("/healthz", handler.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", handler.Status)
		r.Post("/sync/trigger", handler.TriggerSync)

		r.Route("/ledger", func(r chi.Router) {
			r.Get("/days", handler.LedgerDays)
			r.Get("/days/{day}", handler.LedgerDay)
			r.Delete("/days/{day}", handler.ClearLedgerDay)
			r.Delete("/", handler.ClearLedger)
		})
	})

	return r
}

// NewServer builds the http.Server serving the status surface.
func NewServer(handler *Handler, cfg config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           NewRouter(handler, cfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Timeout,
		WriteTimeout:      cfg.Timeout,
		IdleTimeout:       60 * time.Second,
	}
}
