package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"pairsignal/internal/session"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/require"
)

type fixedStats session.Stats

func (f fixedStats) Stats() session.Stats { return session.Stats(f) }

func TestPublisher_PublishOnce(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := NewPublisher(db, fixedStats{Online: 3, Queued: 1, Paired: 2, Rooms: 1}, "node-1", 5*time.Second)

	mock.ExpectHSet("presence:node-1", "online", 3, "queued", 1, "paired", 2, "rooms", 1).SetVal(4)
	mock.ExpectExpire("presence:node-1", 15*time.Second).SetVal(true)
	mock.ExpectSAdd("presence:instances", "node-1").SetVal(1)

	require.NoError(t, p.PublishOnce(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPublisher_PublishOnceReportsRedisErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := NewPublisher(db, fixedStats{}, "node-1", time.Second)

	mock.ExpectHSet("presence:node-1", "online", 0, "queued", 0, "paired", 0, "rooms", 0).
		SetErr(errors.New("connection refused"))

	err := p.PublishOnce(context.Background())
	require.ErrorContains(t, err, "presence hset")
}

func TestPublisher_Withdraw(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := NewPublisher(db, fixedStats{}, "node-1", time.Second)

	mock.ExpectDel("presence:node-1").SetVal(1)
	mock.ExpectSRem("presence:instances", "node-1").SetVal(1)

	require.NoError(t, p.Withdraw(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregator_SumsLiveInstancesAndPrunesExpired(t *testing.T) {
	db, mock := redismock.NewClientMock()
	a := NewAggregator(db)

	mock.ExpectSMembers("presence:instances").SetVal([]string{"node-1", "node-2", "node-3"})
	mock.ExpectHGetAll("presence:node-1").SetVal(map[string]string{
		"online": "3", "queued": "1", "paired": "2", "rooms": "1",
	})
	mock.ExpectHGetAll("presence:node-2").SetVal(map[string]string{})
	mock.ExpectSRem("presence:instances", "node-2").SetVal(1)
	mock.ExpectHGetAll("presence:node-3").SetVal(map[string]string{
		"online": "5", "queued": "0", "paired": "4", "rooms": "2",
	})

	st, err := a.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, session.Stats{Online: 8, Queued: 1, Paired: 6, Rooms: 3}, st)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregator_PropagatesErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	a := NewAggregator(db)

	mock.ExpectSMembers("presence:instances").SetErr(errors.New("timeout"))

	_, err := a.Stats(context.Background())
	require.Error(t, err)
}

func TestLocal_UsesStore(t *testing.T) {
	store := session.NewStore()
	store.Connect(nopHandle{})

	st, err := Local{Source: store}.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, st.Online)
}

type nopHandle struct{}

func (nopHandle) Send(session.Notification) error { return nil }
