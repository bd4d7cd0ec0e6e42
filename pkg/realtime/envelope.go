package realtime

import (
	"encoding/json"
	"time"
)

// Envelope types spoken on the realtime wire.
const (
	EnvelopeBacklog   = "backlog"
	EnvelopeEvent     = "event"
	EnvelopeKeepalive = "keepalive"
	EnvelopeError     = "error"
)

// BacklogCap bounds how many operations the backlog envelope may carry. A
// client further behind than this must finish catching up with a pull loop
// before relying on the stream being complete.
const BacklogCap = 500

// KeepaliveInterval is how often a keepalive envelope is sent on an open
// subscription.
const KeepaliveInterval = 20 * time.Second

// BacklogEntry is one operation inside a backlog envelope.
type BacklogEntry struct {
	Seq       int64           `json:"seq"`
	OpType    string          `json:"opType"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// BacklogEnvelope is sent once, immediately after a successful subscribe.
type BacklogEnvelope struct {
	Type   string         `json:"type"`
	Events []BacklogEntry `json:"events"`
}

// NewBacklogEnvelope wraps entries in a backlog envelope. A nil slice is
// normalized to an empty array so the wire always carries "events":[].
func NewBacklogEnvelope(events []BacklogEntry) BacklogEnvelope {
	if events == nil {
		events = []BacklogEntry{}
	}
	return BacklogEnvelope{Type: EnvelopeBacklog, Events: events}
}

// EventEnvelope carries one live operation.
type EventEnvelope struct {
	Type      string          `json:"type"`
	VaultID   string          `json:"vaultId"`
	Seq       int64           `json:"seq"`
	OpType    string          `json:"opType"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewEventEnvelope wraps a bus event for the wire.
func NewEventEnvelope(e Event) EventEnvelope {
	return EventEnvelope{
		Type:      EnvelopeEvent,
		VaultID:   e.VaultID,
		Seq:       e.Seq,
		OpType:    e.OpType,
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt,
	}
}

// KeepaliveEnvelope is sent periodically while the socket is open.
type KeepaliveEnvelope struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"`
}

// NewKeepaliveEnvelope stamps a keepalive with the current unix time.
func NewKeepaliveEnvelope(now time.Time) KeepaliveEnvelope {
	return KeepaliveEnvelope{Type: EnvelopeKeepalive, TS: now.Unix()}
}

// ErrorEnvelope is sent immediately before close on auth or access failure.
type ErrorEnvelope struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	Remediation string `json:"remediation,omitempty"`
}
