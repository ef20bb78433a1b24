package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pairsignal/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body"`
}

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *session.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := session.NewStore()
	engine := gin.New()
	engine.GET("/ws", NewWsServer(store, opts).Handle)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv, store
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, session.ClientID) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	f := readFrame(t, conn)
	require.Equal(t, session.EventWelcome, f.Event)
	var welcome session.WelcomeBody
	require.NoError(t, json.Unmarshal(f.Body, &welcome))
	require.NotEmpty(t, welcome.ID)
	return conn, welcome.ID
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func send(t *testing.T, conn *websocket.Conn, event string, body any) {
	t.Helper()
	msg := map[string]any{"event": event}
	if body != nil {
		msg["body"] = body
	}
	require.NoError(t, conn.WriteJSON(msg))
}

func waitForState(t *testing.T, store *session.Store, id session.ClientID, want session.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return store.State(id) == want
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWsServer_MatchRelayAndPartnerLeft(t *testing.T) {
	srv, store := newTestServer(t, Options{})

	connA, idA := dial(t, srv, nil)
	connB, idB := dial(t, srv, nil)

	send(t, connA, EventJoinQueue, nil)
	waitForState(t, store, idA, session.StateQueued)
	send(t, connB, EventJoinQueue, nil)

	var matchedA, matchedB session.MatchedBody
	f := readFrame(t, connA)
	require.Equal(t, session.EventMatched, f.Event)
	require.NoError(t, json.Unmarshal(f.Body, &matchedA))
	f = readFrame(t, connB)
	require.Equal(t, session.EventMatched, f.Event)
	require.NoError(t, json.Unmarshal(f.Body, &matchedB))

	require.Equal(t, idB, matchedA.PartnerID)
	require.Equal(t, idA, matchedB.PartnerID)
	require.True(t, matchedB.Initiator)
	require.False(t, matchedA.Initiator)

	send(t, connB, EventSignal, map[string]any{
		"to":     idA,
		"signal": map[string]any{"type": "offer", "sdp": "v=0"},
	})
	f = readFrame(t, connA)
	require.Equal(t, session.EventSignal, f.Event)
	var sig struct {
		Signal map[string]string `json:"signal"`
		From   session.ClientID  `json:"from"`
	}
	require.NoError(t, json.Unmarshal(f.Body, &sig))
	require.Equal(t, idB, sig.From)
	require.Equal(t, map[string]string{"type": "offer", "sdp": "v=0"}, sig.Signal)

	require.NoError(t, connB.Close())
	f = readFrame(t, connA)
	require.Equal(t, session.EventPartnerLeft, f.Event)
	waitForState(t, store, idB, session.StateUnknown)
	require.Equal(t, session.StateIdle, store.State(idA))
}

func TestWsServer_NextSendsJoiningQueue(t *testing.T) {
	srv, store := newTestServer(t, Options{})

	connA, idA := dial(t, srv, nil)
	connB, idB := dial(t, srv, nil)
	send(t, connA, EventJoinQueue, nil)
	waitForState(t, store, idA, session.StateQueued)
	send(t, connB, EventJoinQueue, nil)
	require.Equal(t, session.EventMatched, readFrame(t, connA).Event)
	require.Equal(t, session.EventMatched, readFrame(t, connB).Event)

	send(t, connA, EventNext, nil)
	require.Equal(t, session.EventJoiningQueue, readFrame(t, connA).Event)
	require.Equal(t, session.EventPartnerLeft, readFrame(t, connB).Event)
	waitForState(t, store, idA, session.StateQueued)
	require.Equal(t, session.StateIdle, store.State(idB))
}

func TestWsServer_IgnoresMalformedEvents(t *testing.T) {
	srv, store := newTestServer(t, Options{})
	conn, id := dial(t, srv, nil)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	send(t, conn, "explode", nil)
	send(t, conn, EventSignal, map[string]any{"to": "nobody"}) // missing signal
	send(t, conn, EventJoinQueue, nil)

	waitForState(t, store, id, session.StateQueued)
}

func TestWsServer_RateLimitDropsExcessEvents(t *testing.T) {
	srv, store := newTestServer(t, Options{EventsPerSecond: 0.001, EventBurst: 1})
	conn, id := dial(t, srv, nil)

	send(t, conn, EventLeave, nil)     // consumes the only token
	send(t, conn, EventJoinQueue, nil) // dropped

	time.Sleep(200 * time.Millisecond)
	require.Equal(t, session.StateIdle, store.State(id))
}

func TestWsServer_RejectsForeignOrigin(t *testing.T) {
	srv, _ := newTestServer(t, Options{AllowedOrigins: []string{"https://app.example"}})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _ := dial(t, srv, http.Header{"Origin": {"https://APP.example"}})
	require.NotNil(t, conn)
}
