// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

// Service wrappers adapting Stridesync components to the suture.Service
// interface. Each wrapper owns the component's lifecycle: start on Serve,
// tear down on context cancellation.

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/stridesync/internal/live"
	"github.com/tomtom215/stridesync/internal/logging"
	"github.com/tomtom215/stridesync/internal/scheduler"
)

// LiveService supervises the treadmill WebSocket connection manager.
type LiveService struct {
	manager *live.Manager
}

// NewLiveService wraps a live connection manager as a suture service.
func NewLiveService(m *live.Manager) *LiveService {
	return &LiveService{manager: m}
}

// Serve starts the connection manager and blocks until ctx is cancelled.
// The manager reconnects on its own; this service only restarts when the
// manager itself is torn down unexpectedly.
func (s *LiveService) Serve(ctx context.Context) error {
	logging.Info().Msg("Starting live connection service")

	s.manager.Connect(ctx)
	<-ctx.Done()
	s.manager.Disconnect()

	logging.Info().Msg("Live connection service stopped")
	return nil
}

// SchedulerService supervises the periodic sync scheduler.
type SchedulerService struct {
	sched *scheduler.Scheduler
}

// NewSchedulerService wraps a scheduler as a suture service.
func NewSchedulerService(s *scheduler.Scheduler) *SchedulerService {
	return &SchedulerService{sched: s}
}

// Serve runs the scheduler loop until ctx is cancelled.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// HTTPService supervises an HTTP server with graceful shutdown.
type HTTPService struct {
	name            string
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPService wraps an http.Server as a suture service.
func NewHTTPService(name string, server *http.Server, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout == 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{
		name:            name,
		server:          server,
		shutdownTimeout: shutdownTimeout,
	}
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully within the shutdown timeout.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("service", s.name).Str("addr", s.server.Addr).Msg("HTTP server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Str("service", s.name).Msg("HTTP server shutdown did not complete cleanly")
	}
	<-errCh

	logging.Info().Str("service", s.name).Msg("HTTP server stopped")
	return nil
}
