// Stridesync - Treadmill Activity to Health Record Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridesync

package models

// ConnectionState describes the lifecycle of the live streaming connection.
// It is owned exclusively by the live connection manager; subscribers observe
// transitions but never mutate state.
type ConnectionState int

const (
	// StateDisconnected means no connection exists and none is being attempted.
	StateDisconnected ConnectionState = iota

	// StateConnecting means a transport open is in flight, or the connection
	// is open but has not yet been proven by a received message.
	StateConnecting

	// StateConnected means at least one message has been received on the
	// current connection. A successful handshake alone is not sufficient:
	// opens against non-upgradable endpoints can "succeed" without ever
	// delivering traffic.
	StateConnected

	// StateFailed means the transport errored or closed; a reconnect may be
	// pending depending on the auto-reconnect flag.
	StateFailed
)

// String implements fmt.Stringer.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StateChange is a single connection-state transition delivered to
// subscribers. Reason is set only for StateFailed.
type StateChange struct {
	State  ConnectionState `json:"state"`
	Reason string          `json:"reason,omitempty"`
}
