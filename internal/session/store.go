package session

import (
	"sync"
	"time"

	"pairsignal/internal/metrics"

	"go.uber.org/zap"
)

// CloseReason says why a room was torn down.
type CloseReason string

const (
	CloseNext       CloseReason = "next"
	CloseLeave      CloseReason = "leave"
	CloseDisconnect CloseReason = "disconnect"
)

// State is the lifecycle state of a single client.
type State int

const (
	StateUnknown State = iota // not registered
	StateIdle
	StateQueued
	StatePaired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQueued:
		return "queued"
	case StatePaired:
		return "paired"
	default:
		return "unknown"
	}
}

// RoomRecorder receives every closed room. It is called with the Store lock
// held and must not block.
type RoomRecorder interface {
	RoomClosed(room Room, reason CloseReason, closedAt time.Time)
}

// Stats is a point-in-time view of one Store.
type Stats struct {
	Online int `json:"online"`
	Queued int `json:"queued"`
	Paired int `json:"paired"`
	Rooms  int `json:"rooms"`
}

type Option func(*Store)

func WithRecorder(r RoomRecorder) Option {
	return func(s *Store) { s.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the session lifecycle controller. It owns the registry, the
// waiting queue and the room table, and runs every event as one step under
// a single mutex.
type Store struct {
	mu       sync.Mutex
	clients  *Registry
	queue    *Queue
	rooms    *RoomTable
	recorder RoomRecorder
	now      func() time.Time
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		clients: NewRegistry(),
		queue:   NewQueue(),
		rooms:   NewRoomTable(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect registers h, greets it with its id and returns that id. The
// client starts Idle.
func (s *Store) Connect(h ClientHandle) ClientID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.clients.Register(h)
	s.notify(id, Notification{Event: EventWelcome, Body: WelcomeBody{ID: id}})
	s.syncGauges()
	zap.L().Debug("session.connected", zap.String("client_id", string(id)))
	return id
}

// JoinQueue pairs id with the longest-waiting client, or queues it. Unknown,
// already queued and already paired clients are left untouched.
func (s *Store) JoinQueue(id ClientID) MatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients.Lookup(id); !ok {
		return MatchResult{}
	}
	res := s.tryMatch(id)
	s.syncGauges()
	return res
}

// Next tears down the current room of id, tells it a new search has begun
// and looks for a new partner, all in one step.
func (s *Store) Next(id ClientID) MatchResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients.Lookup(id); !ok {
		return MatchResult{}
	}
	s.teardown(id, CloseNext)
	s.notify(id, Notification{Event: EventJoiningQueue})
	res := s.tryMatch(id)
	s.syncGauges()
	return res
}

// Leave tears down the room or queue entry of id and leaves it Idle.
func (s *Store) Leave(id ClientID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients.Lookup(id); !ok {
		return
	}
	s.teardown(id, CloseLeave)
	s.syncGauges()
}

// Disconnect removes id for good. The ex-partner, if any, gets partnerLeft
// and is not requeued. Calling it again is a no-op.
func (s *Store) Disconnect(id ClientID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardown(id, CloseDisconnect)
	s.clients.Unregister(id)
	s.syncGauges()
	zap.L().Debug("session.disconnected", zap.String("client_id", string(id)))
}

// Teardown runs the shared teardown for id without touching its
// registration. It reports whether a room was closed.
func (s *Store) Teardown(id ClientID, reason CloseReason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	closed := s.teardown(id, reason)
	s.syncGauges()
	return closed
}

func (s *Store) teardown(id ClientID, reason CloseReason) bool {
	closed := false
	room, hasRoom := Room{}, false
	if p, ok := s.rooms.Lookup(id); ok {
		room, hasRoom = s.rooms.Room(p.RoomID)
	}
	if p, ok := s.rooms.RemovePair(id); ok {
		closed = true
		s.notify(p.PartnerID, Notification{Event: EventPartnerLeft})

		closedAt := s.now()
		metrics.RoomsClosedTotal.WithLabelValues(string(reason)).Inc()
		if hasRoom {
			metrics.RoomDuration.Observe(closedAt.Sub(room.OpenedAt).Seconds())
			if s.recorder != nil {
				s.recorder.RoomClosed(room, reason, closedAt)
			}
		}
		zap.L().Debug("session.room_closed",
			zap.String("room_id", p.RoomID),
			zap.String("client_id", string(id)),
			zap.String("partner_id", string(p.PartnerID)),
			zap.String("reason", string(reason)),
		)
	}
	s.queue.Remove(id)
	return closed
}

// Lookup returns the PartnerIndex entry of id.
func (s *Store) Lookup(id ClientID) (Pairing, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms.Lookup(id)
}

func (s *Store) State(id ClientID) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case !s.registered(id):
		return StateUnknown
	case s.queue.Contains(id):
		return StateQueued
	default:
		if _, ok := s.rooms.Lookup(id); ok {
			return StatePaired
		}
		return StateIdle
	}
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *Store) statsLocked() Stats {
	return Stats{
		Online: s.clients.Len(),
		Queued: s.queue.Len(),
		Paired: s.rooms.Members(),
		Rooms:  s.rooms.Len(),
	}
}

func (s *Store) registered(id ClientID) bool {
	_, ok := s.clients.Lookup(id)
	return ok
}

// notify resolves id through the registry and sends n. A missing or dead
// handle drops the notification.
func (s *Store) notify(id ClientID, n Notification) bool {
	h, ok := s.clients.Lookup(id)
	if !ok {
		return false
	}
	if err := h.Send(n); err != nil {
		zap.L().Debug("session.notify_failed",
			zap.String("client_id", string(id)),
			zap.String("event", n.Event),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (s *Store) syncGauges() {
	st := s.statsLocked()
	metrics.ClientsOnline.Set(float64(st.Online))
	metrics.ClientsQueued.Set(float64(st.Queued))
	metrics.RoomsActive.Set(float64(st.Rooms))
}
