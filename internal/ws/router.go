package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"pairsignal/internal/session"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUnknownEvent = errors.New("unknown_event")
	ErrInvalidBody  = errors.New("invalid_body")
)

var validate = validator.New()

// ConnContext is what a handler knows about the connection that sent the event.
type ConnContext struct {
	ClientID session.ClientID
	Server   *WsServer
}

// internal (untyped) handler signature.
type rawHandler func(ctx context.Context, c *ConnContext, body json.RawMessage) error

// Router keeps a map[event]handler, à-la gin.Engine.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]rawHandler
}

func NewRouter() *Router { return &Router{handlers: make(map[string]rawHandler)} }

// Register binds an event to a strongly-typed handler. The body is decoded
// into Req and validated before h runs.
func Register[Req any](
	r *Router,
	event string,
	h func(ctx context.Context, c *ConnContext, req Req) error,
) {
	if event == "" {
		panic("ws router: empty event")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[event] = func(ctx context.Context, c *ConnContext, body json.RawMessage) error {
		var req Req
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidBody, err)
			}
		}
		if err := validate.StructCtx(ctx, &req); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidBody, err)
		}
		return h(ctx, c, req)
	}
}

// dispatch is called by the server's reader loop.
func (r *Router) dispatch(ctx context.Context, c *ConnContext, env Envelope) error {
	r.mu.RLock()
	h, ok := r.handlers[env.Event]
	r.mu.RUnlock()
	if !ok {
		return ErrUnknownEvent
	}
	return h(ctx, c, env.Body)
}
