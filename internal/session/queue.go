package session

import "container/list"

// Queue is the FIFO of clients waiting for a partner. Duplicate enqueues are
// ignored and removal by id is O(1). Not safe for concurrent use.
type Queue struct {
	order *list.List
	index map[ClientID]*list.Element
}

func NewQueue() *Queue {
	return &Queue{
		order: list.New(),
		index: make(map[ClientID]*list.Element),
	}
}

// Enqueue appends id to the back. It reports false if id was already queued.
func (q *Queue) Enqueue(id ClientID) bool {
	if _, ok := q.index[id]; ok {
		return false
	}
	q.index[id] = q.order.PushBack(id)
	return true
}

// Dequeue pops the head of the queue.
func (q *Queue) Dequeue() (ClientID, bool) {
	front := q.order.Front()
	if front == nil {
		return "", false
	}
	id := q.order.Remove(front).(ClientID)
	delete(q.index, id)
	return id, true
}

// Remove drops id wherever it sits. It reports whether id was queued.
func (q *Queue) Remove(id ClientID) bool {
	el, ok := q.index[id]
	if !ok {
		return false
	}
	q.order.Remove(el)
	delete(q.index, id)
	return true
}

func (q *Queue) Contains(id ClientID) bool {
	_, ok := q.index[id]
	return ok
}

func (q *Queue) Len() int { return q.order.Len() }
