package models

import (
	"encoding/json"
	"time"
)

// Role identifies which side of a support session a caller acts as.
type Role string

const (
	// RoleHost is the customer's device sharing its screen.
	RoleHost Role = "host"
	// RoleViewer is the support technician driving the session.
	RoleViewer Role = "viewer"
)

// Valid reports whether the role is one of host/viewer.
func (r Role) Valid() bool {
	return r == RoleHost || r == RoleViewer
}

// Opposite returns the other role of a session.
func (r Role) Opposite() Role {
	if r == RoleHost {
		return RoleViewer
	}
	return RoleHost
}

// SessionStatus is the lifecycle state of a support session.
type SessionStatus string

const (
	StatusPending      SessionStatus = "pending"
	StatusConnected    SessionStatus = "connected"
	StatusDisconnected SessionStatus = "disconnected"
	StatusExpired      SessionStatus = "expired"
)

// Terminal reports whether no further status transitions are allowed.
func (s SessionStatus) Terminal() bool {
	return s == StatusDisconnected || s == StatusExpired
}

// Session is a snapshot of a support session. The secrets are never
// serialized as part of a session payload; handlers hand each one out
// through its own response.
type Session struct {
	Code                 string        `json:"code"`
	HostSecret           string        `json:"-"`
	ViewerSecret         string        `json:"-"`
	Status               SessionStatus `json:"status"`
	RemoteControlEnabled bool          `json:"remote_control_enabled"`
	CreatedAt            time.Time     `json:"created_at"`
	ExpiresAt            time.Time     `json:"expires_at"`
}

// SignalType is the kind of negotiation message relayed between peers.
type SignalType string

const (
	SignalOffer     SignalType = "offer"
	SignalAnswer    SignalType = "answer"
	SignalCandidate SignalType = "candidate"
	SignalControl   SignalType = "control"
)

// Valid reports whether the signal type is one the relay accepts.
func (t SignalType) Valid() bool {
	switch t {
	case SignalOffer, SignalAnswer, SignalCandidate, SignalControl:
		return true
	}
	return false
}

// Signal is a single relayed negotiation message. Data is opaque to the
// relay. Timestamp is unix milliseconds and doubles as the poll cursor.
type Signal struct {
	From      Role            `json:"from"`
	Type      SignalType      `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}
