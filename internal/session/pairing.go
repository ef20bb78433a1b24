package session

import (
	"pairsignal/internal/metrics"

	"go.uber.org/zap"
)

// MatchResult reports what a join did. When Matched is false the caller is
// queued (or was already queued or paired).
type MatchResult struct {
	Matched bool
	Room    Room
}

// tryMatch pairs id with the head of the queue or appends id to it. The
// caller must hold s.mu.
func (s *Store) tryMatch(id ClientID) MatchResult {
	if _, paired := s.rooms.Lookup(id); paired {
		return MatchResult{}
	}
	if s.queue.Contains(id) {
		return MatchResult{}
	}

	for {
		partner, ok := s.queue.Dequeue()
		if !ok {
			s.queue.Enqueue(id)
			zap.L().Debug("session.queued",
				zap.String("client_id", string(id)),
				zap.Int("queue_len", s.queue.Len()),
			)
			return MatchResult{}
		}

		// Queue entries are removed under the same lock as unregistration,
		// so these only fire on a bookkeeping bug. Drop the entry and move on.
		if !s.registered(partner) {
			zap.L().Warn("session.stale_queue_entry", zap.String("client_id", string(partner)))
			s.rooms.RemovePair(partner)
			continue
		}
		if _, paired := s.rooms.Lookup(partner); paired {
			zap.L().Warn("session.queued_while_paired", zap.String("client_id", string(partner)))
			continue
		}

		room := newRoom(id, partner, s.now())
		s.rooms.CreatePair(room)
		s.notify(id, Notification{Event: EventMatched, Body: MatchedBody{PartnerID: partner, Initiator: true}})
		s.notify(partner, Notification{Event: EventMatched, Body: MatchedBody{PartnerID: id, Initiator: false}})

		metrics.MatchesTotal.Inc()
		zap.L().Debug("session.matched",
			zap.String("room_id", room.ID),
			zap.String("initiator", string(id)),
			zap.String("partner", string(partner)),
		)
		return MatchResult{Matched: true, Room: room}
	}
}
