package session

import (
	"encoding/json"

	"pairsignal/internal/metrics"

	"go.uber.org/zap"
)

// Relay forwards payload from one room member to the other, unchanged and
// tagged with the sender. An empty to means "my partner". Anything else
// that is not the sender's current partner, or is no longer connected, is
// dropped silently. It reports whether the payload was handed to the
// target's transport.
func (s *Store) Relay(from, to ClientID, payload json.RawMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.rooms.Lookup(from)
	if !ok || (to != "" && to != p.PartnerID) {
		s.dropSignal(from, to, "not_partner")
		return false
	}

	if !s.notify(p.PartnerID, Notification{
		Event: EventSignal,
		Body:  SignalBody{Signal: payload, From: from},
	}) {
		s.dropSignal(from, p.PartnerID, "target_gone")
		return false
	}
	metrics.SignalsTotal.WithLabelValues(metrics.SignalRelayed).Inc()
	return true
}

func (s *Store) dropSignal(from, to ClientID, why string) {
	metrics.SignalsTotal.WithLabelValues(metrics.SignalDropped).Inc()
	zap.L().Debug("session.signal_dropped",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("why", why),
	)
}
