// Package roomhistory keeps one row per closed room: ids, timestamps and the
// close reason. No payloads are ever stored.
package roomhistory

import (
	"context"
	"database/sql"
	"time"

	"pairsignal/internal/session"

	"go.uber.org/zap"
)

const (
	defaultBuffer = 1024
	maxBatch      = 100
	flushTimeout  = 3 * time.Second
)

const createTable = `
CREATE TABLE IF NOT EXISTS room_history (
    id           BIGSERIAL PRIMARY KEY,
    room_id      TEXT        NOT NULL,
    member_a     TEXT        NOT NULL,
    member_b     TEXT        NOT NULL,
    opened_at    TIMESTAMPTZ NOT NULL,
    closed_at    TIMESTAMPTZ NOT NULL,
    close_reason TEXT        NOT NULL
)`

const insertRoom = `
INSERT INTO room_history (room_id, member_a, member_b, opened_at, closed_at, close_reason)
     VALUES ($1, $2, $3, $4, $5, $6)`

type entry struct {
	room     session.Room
	reason   session.CloseReason
	closedAt time.Time
}

// Recorder implements session.RoomRecorder. RoomClosed only enqueues; Run
// does the writing.
type Recorder struct {
	db      *sql.DB
	entries chan entry
}

func NewRecorder(db *sql.DB, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Recorder{db: db, entries: make(chan entry, buffer)}
}

// EnsureSchema creates the history table if it is missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, createTable)
	return err
}

// RoomClosed drops the entry when the buffer is full.
func (r *Recorder) RoomClosed(room session.Room, reason session.CloseReason, closedAt time.Time) {
	select {
	case r.entries <- entry{room: room, reason: reason, closedAt: closedAt}:
	default:
		zap.L().Warn("roomhistory.buffer_full", zap.String("room_id", room.ID))
	}
}

// Run persists entries in batches until ctx is done, then flushes what is
// already buffered.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		case e := <-r.entries:
			r.write(r.drain([]entry{e}))
		}
	}
}

// write uses its own deadline so a batch taken just before shutdown still
// lands.
func (r *Recorder) write(batch []entry) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := persist(ctx, r.db, batch); err != nil {
		zap.L().Warn("roomhistory.persist", zap.Int("rows", len(batch)), zap.Error(err))
	}
}

func (r *Recorder) drain(batch []entry) []entry {
	for len(batch) < maxBatch {
		select {
		case e := <-r.entries:
			batch = append(batch, e)
		default:
			return batch
		}
	}
	return batch
}

func (r *Recorder) flush() {
	if batch := r.drain(nil); len(batch) > 0 {
		r.write(batch)
	}
}

func persist(ctx context.Context, db *sql.DB, batch []entry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, e := range batch {
		if _, err := tx.ExecContext(ctx, insertRoom,
			e.room.ID,
			string(e.room.MemberA),
			string(e.room.MemberB),
			e.room.OpenedAt.UTC(),
			e.closedAt.UTC(),
			string(e.reason),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
