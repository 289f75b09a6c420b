// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

/*
manager.go - Live Connection Manager

Owns zero-or-one WebSocket connection to the capture service's /ws/live feed,
decodes inbound messages, and publishes connection-state transitions and live
samples to subscribers.

State machine:

	Disconnected -(Connect)-> Connecting -(first message)-> Connected
	Connecting/Connected -(transport error)-> Failed
	Failed -(backoff elapses, auto-reconnect set)-> Connecting

Disconnect() is terminal from any state; nothing reconnects until Connect()
is called again.

A connection is declared Connected only after the first message is received,
not when the handshake succeeds: handshakes against non-upgradable endpoints
can "succeed" without ever delivering traffic. Reconnect delays double from
the configured base up to the cap, and reset to the base after any received
message.
*/

package live

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/stridesync/internal/config"
	"github.com/tomtom215/stridesync/internal/logging"
	"github.com/tomtom215/stridesync/internal/metrics"
	"github.com/tomtom215/stridesync/internal/models"
)

// Inbound message types on the live feed. Anything else is a decode error.
const (
	msgTypeNewSample = "NewSample"
	msgTypeHeartbeat = "Heartbeat"
)

// wsMessage is the envelope for inbound live-feed messages.
type wsMessage struct {
	Type   string             `json:"type"`
	Sample *models.LiveSample `json:"sample,omitempty"`
}

// Manager maintains the persistent streaming connection to the capture
// service. All fields behind mu; the transport handle is owned by the
// connection goroutine and never touched by other components.
type Manager struct {
	cfg   config.LiveConfig
	urlFn func() (string, error)

	mu             sync.Mutex
	state          models.ConnectionState
	lastReason     string
	autoReconnect  bool
	conn           *websocket.Conn
	gen            uint64
	backoff        time.Duration
	reconnectTimer *time.Timer
	baseCtx        context.Context
	wg             sync.WaitGroup

	subMu      sync.RWMutex
	stateSubs  map[int]chan models.StateChange
	sampleSubs map[int]chan models.LiveSample
	nextSubID  int
}

// NewManager creates a live connection manager. urlFn resolves the live-feed
// URL at connect time (it comes from the origin client so the two stay in
// sync when configuration changes).
func NewManager(cfg config.LiveConfig, urlFn func() (string, error)) *Manager {
	return &Manager{
		cfg:        cfg,
		urlFn:      urlFn,
		state:      models.StateDisconnected,
		backoff:    cfg.ReconnectBase,
		stateSubs:  make(map[int]chan models.StateChange),
		sampleSubs: make(map[int]chan models.LiveSample),
	}
}

// State returns the current connection state and, for a failed state, the
// reason of the last transport failure.
func (m *Manager) State() models.StateChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.StateChange{State: m.state, Reason: m.lastReason}
}

// SubscribeState registers a subscriber for connection-state transitions.
// The returned cancel function must be called to release the subscription.
// A slow subscriber drops transitions rather than stalling the manager.
func (m *Manager) SubscribeState() (<-chan models.StateChange, func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan models.StateChange, m.cfg.SubscriberBuffer)
	m.stateSubs[id] = ch

	return ch, func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if existing, ok := m.stateSubs[id]; ok {
			delete(m.stateSubs, id)
			close(existing)
		}
	}
}

// SubscribeSamples registers a subscriber for live samples. Samples are
// delivered in receipt order; a slow subscriber drops samples.
func (m *Manager) SubscribeSamples() (<-chan models.LiveSample, func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan models.LiveSample, m.cfg.SubscriberBuffer)
	m.sampleSubs[id] = ch

	return ch, func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if existing, ok := m.sampleSubs[id]; ok {
			delete(m.sampleSubs, id)
			close(existing)
		}
	}
}

// Connect opens the live connection. It is idempotent: a call while already
// connecting or connected is a no-op, so duplicate concurrent attempts are
// impossible. The provided context bounds the connection's whole lifetime
// including reconnect attempts.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	if m.state == models.StateConnecting || m.state == models.StateConnected {
		m.mu.Unlock()
		return
	}

	m.autoReconnect = true
	m.baseCtx = ctx
	m.backoff = m.cfg.ReconnectBase
	m.gen++
	gen := m.gen
	m.setStateLocked(models.StateConnecting, "")
	// Register with the WaitGroup before releasing mu so a racing
	// Disconnect cannot pass wg.Wait before this goroutine exists.
	m.wg.Add(1)
	m.mu.Unlock()

	go m.runConnection(ctx, gen)
}

// Disconnect tears down the connection and cancels any pending reconnect.
// Terminal: no further reconnect attempts occur until Connect is called
// again. Safe to call from any state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.autoReconnect = false
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.gen++ // invalidate in-flight attempts and loops
	m.closeConnLocked()
	m.setStateLocked(models.StateDisconnected, "")
	m.mu.Unlock()

	m.wg.Wait()
}

// runConnection dials the live feed and, on success, runs the receive loop.
// It owns the transport handle for its lifetime.
func (m *Manager) runConnection(ctx context.Context, gen uint64) {
	defer m.wg.Done()

	wsURL, err := m.urlFn()
	if err != nil {
		// Malformed endpoint: fatal to this attempt, never retried.
		logging.Error().Err(err).Msg("Live feed URL invalid")
		m.mu.Lock()
		if m.gen == gen {
			m.autoReconnect = false
			m.setStateLocked(models.StateFailed, err.Error())
		}
		m.mu.Unlock()
		return
	}

	logging.Info().Str("url", wsURL).Msg("Connecting to live feed")

	dialer := websocket.Dialer{
		HandshakeTimeout: m.cfg.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		m.connectionFailed(gen, err)
		return
	}

	m.mu.Lock()
	if m.gen != gen || m.state != models.StateConnecting {
		// Disconnect raced the dial; discard the fresh connection.
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.mu.Unlock()

	stop := make(chan struct{})
	m.wg.Add(1)
	go m.pingLoop(ctx, conn, stop)

	m.receiveLoop(ctx, conn, gen)
	close(stop)
}

// receiveLoop blocks on inbound messages until the transport fails or the
// context is cancelled. The first received message proves the connection.
func (m *Manager) receiveLoop(ctx context.Context, conn *websocket.Conn, gen uint64) {
	first := true

	for {
		if err := conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout)); err != nil {
			m.connectionFailed(gen, err)
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.connectionFailed(gen, err)
			return
		}

		m.mu.Lock()
		if m.gen != gen {
			m.mu.Unlock()
			return
		}
		// Any received message proves liveness and resets the backoff.
		m.backoff = m.cfg.ReconnectBase
		if first {
			m.setStateLocked(models.StateConnected, "")
			logging.Info().Msg("Live feed connected")
		}
		m.mu.Unlock()
		first = false

		m.handleMessage(data)
	}
}

// handleMessage decodes one inbound message. Unparseable payloads are
// dropped with a log; they never tear down the connection.
func (m *Manager) handleMessage(data []byte) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		metrics.LiveDecodeDrops.Inc()
		logging.Warn().Err(err).Msg("Dropping unparseable live message")
		return
	}

	switch msg.Type {
	case msgTypeNewSample:
		if msg.Sample == nil {
			metrics.LiveDecodeDrops.Inc()
			logging.Warn().Msg("Dropping NewSample message without sample")
			return
		}
		metrics.LiveSamplesReceived.Inc()
		m.publishSample(*msg.Sample)

	case msgTypeHeartbeat:
		metrics.LiveHeartbeatsReceived.Inc()

	default:
		metrics.LiveDecodeDrops.Inc()
		logging.Warn().Str("type", msg.Type).Msg("Dropping live message with unknown type")
	}
}

// pingLoop writes a keep-alive probe while connected. A failed write is a
// transport error: the connection is closed so the receive loop observes
// the failure and drives the normal disconnection path.
func (m *Manager) pingLoop(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				logging.Warn().Err(err).Msg("Keep-alive probe failed")
				_ = conn.Close()
				return
			}
		}
	}
}

// connectionFailed records a transport failure and, if auto-reconnect is
// still set, schedules exactly one reconnect attempt after the current
// backoff interval.
func (m *Manager) connectionFailed(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen != gen {
		// A newer connection or an explicit Disconnect superseded this one.
		return
	}

	m.closeConnLocked()
	m.setStateLocked(models.StateFailed, err.Error())

	if !m.autoReconnect || m.baseCtx.Err() != nil {
		return
	}

	delay := m.backoff
	m.backoff *= 2
	if m.backoff > m.cfg.ReconnectMax {
		m.backoff = m.cfg.ReconnectMax
	}

	logging.Warn().Err(err).Dur("delay", delay).Msg("Live feed lost, reconnect scheduled")
	metrics.LiveReconnects.Inc()

	m.gen++
	nextGen := m.gen
	ctx := m.baseCtx
	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.attemptReconnect(ctx, nextGen)
	})
}

// attemptReconnect fires from the backoff timer. Disconnect called in the
// meantime invalidates the generation, so the attempt dissolves quietly.
func (m *Manager) attemptReconnect(ctx context.Context, gen uint64) {
	m.mu.Lock()
	if m.gen != gen || !m.autoReconnect || ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.reconnectTimer = nil
	m.setStateLocked(models.StateConnecting, "")
	m.wg.Add(1)
	m.mu.Unlock()

	go m.runConnection(ctx, gen)
}

// closeConnLocked closes the transport handle if open. Caller holds mu.
func (m *Manager) closeConnLocked() {
	if m.conn == nil {
		return
	}
	deadline := time.Now().Add(time.Second)
	_ = m.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = m.conn.Close()
	m.conn = nil
}

// setStateLocked transitions the state machine and notifies subscribers.
// Caller holds mu; subscriber sends are non-blocking so holding the lock
// is safe.
func (m *Manager) setStateLocked(state models.ConnectionState, reason string) {
	if m.state == state && m.lastReason == reason {
		return
	}
	m.state = state
	m.lastReason = reason
	metrics.LiveConnectionState.Set(float64(state))

	change := models.StateChange{State: state, Reason: reason}
	m.subMu.RLock()
	for _, ch := range m.stateSubs {
		select {
		case ch <- change:
		default:
			metrics.LiveSubscriberDrops.WithLabelValues("state").Inc()
		}
	}
	m.subMu.RUnlock()
}

// publishSample forwards a decoded sample to all subscribers in receipt
// order. Called only from the receive loop, so ordering is inherent.
func (m *Manager) publishSample(sample models.LiveSample) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	for _, ch := range m.sampleSubs {
		select {
		case ch <- sample:
		default:
			metrics.LiveSubscriberDrops.WithLabelValues("sample").Inc()
		}
	}
}
