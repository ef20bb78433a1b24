package roomhistory

import (
	"context"
	"errors"
	"testing"
	"time"

	"pairsignal/internal/session"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var (
	opened = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	closed = opened.Add(90 * time.Second)
	room   = session.Room{ID: "a:b", MemberA: "a", MemberB: "b", OpenedAt: opened}
)

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS room_history").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, EnsureSchema(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPersist_WritesBatchInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	other := session.Room{ID: "c:d", MemberA: "c", MemberB: "d", OpenedAt: opened}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO room_history").
		WithArgs("a:b", "a", "b", opened, closed, "next").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO room_history").
		WithArgs("c:d", "c", "d", opened, closed, "disconnect").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err = persist(context.Background(), db, []entry{
		{room: room, reason: session.CloseNext, closedAt: closed},
		{room: other, reason: session.CloseDisconnect, closedAt: closed},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPersist_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO room_history").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = persist(context.Background(), db, []entry{{room: room, reason: session.CloseLeave, closedAt: closed}})
	require.ErrorContains(t, err, "disk full")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_RunPersistsClosedRooms(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO room_history").
		WithArgs("a:b", "a", "b", opened, closed, "leave").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	rec := NewRecorder(db, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	rec.RoomClosed(room, session.CloseLeave, closed)

	require.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestRecorder_DropsWhenBufferFull(t *testing.T) {
	rec := NewRecorder(nil, 1)
	rec.RoomClosed(room, session.CloseNext, closed)
	rec.RoomClosed(room, session.CloseNext, closed)
	require.Len(t, rec.entries, 1)
}

func TestRecorder_FlushesBufferedEntriesOnShutdown(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO room_history").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO room_history").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	rec := NewRecorder(db, 8)
	rec.RoomClosed(room, session.CloseNext, closed)
	rec.RoomClosed(room, session.CloseDisconnect, closed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	require.NoError(t, mock.ExpectationsWereMet())
}
