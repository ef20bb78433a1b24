package session

import "github.com/google/uuid"

// Registry maps client ids to live handles. It is not safe for concurrent
// use; the Store serializes access.
type Registry struct {
	handles map[ClientID]ClientHandle
	newID   func() ClientID
}

func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[ClientID]ClientHandle),
		newID:   func() ClientID { return ClientID(uuid.NewString()) },
	}
}

// Register stores h under a fresh id and returns that id.
func (r *Registry) Register(h ClientHandle) ClientID {
	id := r.newID()
	for {
		if _, taken := r.handles[id]; !taken {
			break
		}
		id = r.newID()
	}
	r.handles[id] = h
	return id
}

func (r *Registry) Lookup(id ClientID) (ClientHandle, bool) {
	h, ok := r.handles[id]
	return h, ok
}

// Unregister is idempotent.
func (r *Registry) Unregister(id ClientID) {
	delete(r.handles, id)
}

func (r *Registry) Len() int { return len(r.handles) }
