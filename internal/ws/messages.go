package ws

import (
	"encoding/json"

	"pairsignal/internal/session"
)

// Inbound event names.
const (
	EventJoinQueue = "joinQueue"
	EventSignal    = "signal"
	EventNext      = "next"
	EventLeave     = "leave"
)

// Envelope wraps every inbound WS frame.
type Envelope struct {
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body,omitempty"`
}

// EmptyBody is the body of events that carry no payload.
type EmptyBody struct{}

// SignalRequest is the body for "signal". To may be left empty to address
// the current partner.
type SignalRequest struct {
	To     session.ClientID `json:"to"     validate:"omitempty,max=128"`
	Signal json.RawMessage  `json:"signal" validate:"required"`
}
