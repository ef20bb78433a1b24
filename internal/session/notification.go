package session

import "encoding/json"

// ClientID is the opaque identifier of one connected participant.
type ClientID string

// Outbound event names.
const (
	EventWelcome      = "welcome"
	EventMatched      = "matched"
	EventSignal       = "signal"
	EventPartnerLeft  = "partnerLeft"
	EventJoiningQueue = "joiningQueue"
)

// Notification is a single outbound message addressed to one client.
type Notification struct {
	Event string `json:"event"`
	Body  any    `json:"body,omitempty"`
}

type WelcomeBody struct {
	ID ClientID `json:"id"`
}

type MatchedBody struct {
	PartnerID ClientID `json:"partnerId"`
	Initiator bool     `json:"initiator"`
}

// SignalBody carries an opaque connection-setup payload. The payload is
// forwarded as received and never decoded.
type SignalBody struct {
	Signal json.RawMessage `json:"signal"`
	From   ClientID        `json:"from"`
}

// ClientHandle is the send capability of a live connection.
//
// Send is called while the Store lock is held, so it must never block. An
// error means the connection is gone; the notification is dropped.
type ClientHandle interface {
	Send(n Notification) error
}
