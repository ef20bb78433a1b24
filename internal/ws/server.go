package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"pairsignal/internal/metrics"
	"pairsignal/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const dispatchTimeout = 2 * time.Second

// Options tunes the transport. Zero values fall back to defaults.
type Options struct {
	SendBuffer      int
	ReadLimit       int64
	PongWait        time.Duration
	EventsPerSecond float64
	EventBurst      int
	AllowedOrigins  []string
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 * 1024 // enough for SDP
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.EventsPerSecond <= 0 {
		o.EventsPerSecond = 50
	}
	if o.EventBurst <= 0 {
		o.EventBurst = 100
	}
	return o
}

type WsServer struct {
	store    *session.Store
	router   *Router
	upgrader websocket.Upgrader
	opts     Options
}

func NewWsServer(store *session.Store, opts Options) *WsServer {
	opts = opts.withDefaults()
	srv := &WsServer{
		store:  store,
		router: NewRouter(),
		opts:   opts,
	}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 4 * 1024,
		CheckOrigin:     srv.checkOrigin,
	}
	srv.registerHandlers() // ← all WS events configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}

	client := newClient(rawConn, s.opts.SendBuffer,
		rate.NewLimiter(rate.Limit(s.opts.EventsPerSecond), s.opts.EventBurst))
	client.id = s.store.Connect(client)
	zap.L().Info("ws.connected",
		zap.String("client_id", string(client.id)),
		zap.String("remote", rawConn.RemoteAddr().String()),
	)

	go client.writePump(s.opts.PongWait * 9 / 10)
	go s.reader(client)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	Register(s.router, EventJoinQueue,
		func(_ context.Context, cc *ConnContext, _ EmptyBody) error {
			s.store.JoinQueue(cc.ClientID)
			return nil
		},
	)

	Register(s.router, EventSignal,
		func(_ context.Context, cc *ConnContext, req SignalRequest) error {
			s.store.Relay(cc.ClientID, req.To, req.Signal)
			return nil
		},
	)

	Register(s.router, EventNext,
		func(_ context.Context, cc *ConnContext, _ EmptyBody) error {
			s.store.Next(cc.ClientID)
			return nil
		},
	)

	Register(s.router, EventLeave,
		func(_ context.Context, cc *ConnContext, _ EmptyBody) error {
			s.store.Leave(cc.ClientID)
			return nil
		},
	)
}

// reader is the only reader on the connection. Its exit is the disconnect
// event for the session store.
func (s *WsServer) reader(c *Client) {
	defer func() {
		s.store.Disconnect(c.id)
		c.shutdown()
		zap.L().Info("ws.disconnected", zap.String("client_id", string(c.id)))
	}()

	c.conn.SetReadLimit(s.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	cc := &ConnContext{ClientID: c.id, Server: s}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				zap.L().Debug("ws.read", zap.String("client_id", string(c.id)), zap.Error(err))
			}
			return
		}

		if !c.limiter.Allow() {
			metrics.EventsRateLimited.Inc()
			zap.L().Debug("ws.rate_limited", zap.String("client_id", string(c.id)))
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			zap.L().Debug("ws.bad_frame", zap.String("client_id", string(c.id)), zap.Error(err))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		err = s.router.dispatch(ctx, cc, env)
		cancel()

		// Malformed or unknown events are no-ops; nothing goes back to the client.
		if err != nil {
			level := zap.DebugLevel
			if !errors.Is(err, ErrUnknownEvent) && !errors.Is(err, ErrInvalidBody) {
				level = zap.WarnLevel
			}
			zap.L().Check(level, "ws.dispatch").Write(
				zap.String("client_id", string(c.id)),
				zap.String("event", env.Event),
				zap.Error(err),
			)
		}
	}
}

// checkOrigin allows everything when no allow-list is configured, and
// non-browser clients that send no Origin at all.
func (s *WsServer) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	return false
}
