package ws

import (
	"errors"
	"sync"
	"time"

	"pairsignal/internal/session"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
)

var (
	ErrClientClosed   = errors.New("ws: client closed")
	ErrSendBufferFull = errors.New("ws: send buffer full")
)

// Client is one websocket connection. It implements session.ClientHandle:
// Send only enqueues, and writePump is the single writer on the socket.
type Client struct {
	id      session.ClientID
	conn    *websocket.Conn
	send    chan session.Notification
	limiter *rate.Limiter

	closed    chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, sendBuffer int, limiter *rate.Limiter) *Client {
	return &Client{
		conn:    conn,
		send:    make(chan session.Notification, sendBuffer),
		limiter: limiter,
		closed:  make(chan struct{}),
	}
}

// Send never blocks. A client whose buffer is full is too slow to keep up
// and gets closed, which surfaces as a disconnect from its read loop.
func (c *Client) Send(n session.Notification) error {
	select {
	case <-c.closed:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- n:
		return nil
	default:
		zap.L().Warn("ws.send_buffer_full", zap.Int("buffer", cap(c.send)))
		c.shutdown()
		return ErrSendBufferFull
	}
}

// shutdown stops the write pump and closes the socket. Safe to call more
// than once.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

func (c *Client) writePump(pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case n := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(n); err != nil {
				zap.L().Debug("ws.write_failed", zap.String("client_id", string(c.id)), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
