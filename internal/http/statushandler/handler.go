package statushandler

import (
	"context"
	"net/http"
	"time"

	"pairsignal/internal/presence"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

const statsTimeout = 2 * time.Second

type Handler struct {
	stats      presence.Provider
	iceServers []webrtc.ICEServer
}

func New(stats presence.Provider, iceServers []webrtc.ICEServer) *Handler {
	if iceServers == nil {
		iceServers = []webrtc.ICEServer{}
	}
	return &Handler{stats: stats, iceServers: iceServers}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/health", h.health)
	r.GET("/stats", h.statsHandler)
	r.GET("/webrtc/ice", h.ice)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// statsHandler serves the presence counter. It is cosmetic, so callers get
// a 503 rather than stale numbers when the backing store is unreachable.
func (h *Handler) statsHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
	defer cancel()

	st, err := h.stats.Stats(ctx)
	if err != nil {
		zap.L().Warn("http.stats", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "stats unavailable"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) ice(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, ICEResponse{ICEServers: h.iceServers})
}
