package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/events"
)

// EventsHandler streams committed changes to clients over SSE or websocket.
type EventsHandler struct {
	hub       *events.Hub
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewEventsHandler constructs the handler. heartbeat <= 0 uses 25s.
func NewEventsHandler(hub *events.Hub, heartbeat time.Duration, logger *zap.Logger) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{hub: hub, heartbeat: heartbeat, logger: logger}
}

// Stream godoc
// @Summary Subscribe to change events (SSE)
// @Description Emits "hello" with the current revision, then one "change" per committed mutation.
// @Tags Events
// @Produce text/event-stream
// @Success 200
// @Router /events [get]
func (h *EventsHandler) Stream(c *gin.Context) {
	sub := h.hub.Subscribe(0)
	defer func() {
		sub.Close()
		if dropped := sub.Dropped(); dropped > 0 {
			h.logger.Warn("slow event subscriber dropped changes", zap.Uint64("dropped", dropped))
		}
	}()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("hello", gin.H{"revision": h.hub.Revision()})
	c.Writer.Flush()

	c.Stream(func(io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case event, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent("change", event)
			return true
		case <-ticker.C:
			c.SSEvent("heartbeat", gin.H{"revision": h.hub.Revision()})
			return true
		}
	})
}

// Socket godoc
// @Summary Subscribe to change events (websocket)
// @Tags Events
// @Success 101
// @Router /events/ws [get]
func (h *EventsHandler) Socket(c *gin.Context) {
	conn, err := events.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		if !c.Writer.Written() {
			c.Status(http.StatusBadRequest)
		}
		return
	}
	h.hub.ServeWS(conn)
}
