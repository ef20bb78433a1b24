package session

import "time"

// Room is an active two-party pairing. MemberA is the initiator.
type Room struct {
	ID       string
	MemberA  ClientID
	MemberB  ClientID
	OpenedAt time.Time
}

// newRoom orders the members so that first becomes MemberA. The id is an
// order-sensitive concatenation and is never parsed back.
func newRoom(first, second ClientID, openedAt time.Time) Room {
	return Room{
		ID:       string(first) + ":" + string(second),
		MemberA:  first,
		MemberB:  second,
		OpenedAt: openedAt,
	}
}

// Pairing is one side's PartnerIndex entry.
type Pairing struct {
	PartnerID ClientID
	RoomID    string
	Initiator bool
}

// RoomTable is the PartnerIndex: two symmetric entries per active room. Not
// safe for concurrent use.
type RoomTable struct {
	members map[ClientID]Pairing
	rooms   map[string]Room
}

func NewRoomTable() *RoomTable {
	return &RoomTable{
		members: make(map[ClientID]Pairing),
		rooms:   make(map[string]Room),
	}
}

// CreatePair writes both entries for room.
func (t *RoomTable) CreatePair(room Room) {
	t.members[room.MemberA] = Pairing{PartnerID: room.MemberB, RoomID: room.ID, Initiator: true}
	t.members[room.MemberB] = Pairing{PartnerID: room.MemberA, RoomID: room.ID, Initiator: false}
	t.rooms[room.ID] = room
}

func (t *RoomTable) Lookup(id ClientID) (Pairing, bool) {
	p, ok := t.members[id]
	return p, ok
}

func (t *RoomTable) Room(roomID string) (Room, bool) {
	r, ok := t.rooms[roomID]
	return r, ok
}

// RemovePair removes the entry for id and, when it still points back at id,
// the partner's entry. It returns what was removed for id.
func (t *RoomTable) RemovePair(id ClientID) (Pairing, bool) {
	p, ok := t.members[id]
	if !ok {
		return Pairing{}, false
	}
	delete(t.members, id)
	if back, ok := t.members[p.PartnerID]; ok && back.PartnerID == id {
		delete(t.members, p.PartnerID)
	}
	delete(t.rooms, p.RoomID)
	return p, true
}

// Len returns the number of active rooms.
func (t *RoomTable) Len() int { return len(t.rooms) }

// Members returns the number of paired clients.
func (t *RoomTable) Members() int { return len(t.members) }
