package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/astroguard/backend/internal/infrastructure/realtime"
	"github.com/astroguard/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// pongWait is how long a WebSocket client may stay silent
	pongWait = 60 * time.Second
	// pingPeriod must stay below pongWait
	pingPeriod = pongWait * 9 / 10
	// writeWait bounds a single WebSocket write
	writeWait = 10 * time.Second
	// maxClientMessage is the largest frame accepted from a client; clients only send control frames
	maxClientMessage = 512
)

// SSEMessage is one server-sent event
type SSEMessage struct {
	Event string
	Data  string
	ID    string
}

// StreamHandler pushes item change notifications to dashboards over SSE and
// WebSocket. A notification only says the item list changed; clients re-fetch
// GET /items.
type StreamHandler struct {
	BaseHandler
	hub       *realtime.Hub
	logger    *zap.Logger
	heartbeat time.Duration
	upgrader  websocket.Upgrader
}

// StreamOption is a functional option for configuring the handler
type StreamOption func(*StreamHandler)

// WithStreamLogger sets the logger for the handler
func WithStreamLogger(logger *zap.Logger) StreamOption {
	return func(h *StreamHandler) {
		h.logger = logger
	}
}

// WithStreamHeartbeat sets the SSE heartbeat interval
func WithStreamHeartbeat(interval time.Duration) StreamOption {
	return func(h *StreamHandler) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

// WithAllowedOrigins lets WebSocket upgrades from the given origins through.
// "*" allows any origin. Without it only same-host origins are accepted.
func WithAllowedOrigins(origins []string) StreamOption {
	return func(h *StreamHandler) {
		if len(origins) == 0 {
			return
		}
		allowed := append([]string{}, origins...)
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin) || sameHost(origin, r.Host)
		}
	}
}

// NewStreamHandler creates a new StreamHandler on hub
func NewStreamHandler(hub *realtime.Hub, opts ...StreamOption) *StreamHandler {
	h := &StreamHandler{
		hub:       hub,
		logger:    zap.NewNop(),
		heartbeat: 30 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Stream handles GET /items/stream as a Server-Sent Events connection
func (h *StreamHandler) Stream(c *gin.Context) {
	sub, err := h.hub.Subscribe(realtime.ProtocolSSE)
	if err != nil {
		h.subscribeFailed(c, err)
		return
	}
	defer h.hub.Unsubscribe(sub)

	// the server WriteTimeout would otherwise cut the stream
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn("Failed to clear stream write deadline", zap.Error(err))
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	c.Status(http.StatusOK)

	h.sendEvent(c.Writer, SSEMessage{
		Event: "connected",
		Data:  fmt.Sprintf(`{"subscriber_id":"%s","timestamp":%d}`, sub.ID, time.Now().UnixMilli()),
	})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	reqCtx := c.Request.Context()
	for {
		select {
		case <-reqCtx.Done():
			return
		case <-ticker.C:
			h.sendEvent(c.Writer, SSEMessage{
				Event: "heartbeat",
				Data:  fmt.Sprintf(`{"timestamp":%d}`, time.Now().UnixMilli()),
			})
			c.Writer.Flush()
		case n, ok := <-sub.C:
			if !ok {
				// dropped by the hub or hub closed
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				h.logger.Error("Failed to marshal notification", zap.Error(err))
				continue
			}
			h.sendEvent(c.Writer, SSEMessage{
				Event: n.Type,
				Data:  string(data),
				ID:    fmt.Sprintf("%d", n.Timestamp),
			})
			c.Writer.Flush()
		}
	}
}

// sendEvent writes an SSE event to the response writer
func (h *StreamHandler) sendEvent(w io.Writer, msg SSEMessage) {
	if msg.Event != "" {
		fmt.Fprintf(w, "event: %s\n", msg.Event)
	}
	if msg.ID != "" {
		fmt.Fprintf(w, "id: %s\n", msg.ID)
	}
	fmt.Fprintf(w, "data: %s\n\n", msg.Data)
}

// WebSocket handles GET /items/ws. Notifications are sent as JSON text frames
// and the connection is kept alive with pings.
func (h *StreamHandler) WebSocket(c *gin.Context) {
	sub, err := h.hub.Subscribe(realtime.ProtocolWebSocket)
	if err != nil {
		h.subscribeFailed(c, err)
		return
	}
	defer h.hub.Unsubscribe(sub)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already answered with an HTTP error
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go h.readPump(conn, sub.ID, closed)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case n, ok := <-sub.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription ended"))
				return
			}
			if err := conn.WriteJSON(n); err != nil {
				h.logger.Debug("WebSocket write failed", zap.String("subscriber_id", sub.ID), zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump consumes client frames so pongs and close frames are processed.
// It closes done when the client goes away or stops answering pings.
func (h *StreamHandler) readPump(conn *websocket.Conn, subscriberID string, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxClientMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Info("WebSocket client disconnected with error",
					zap.String("subscriber_id", subscriberID), zap.Error(err))
			}
			return
		}
	}
}

func (h *StreamHandler) subscribeFailed(c *gin.Context, err error) {
	switch {
	case errors.Is(err, realtime.ErrTooManySubscribers):
		h.ServiceUnavailable(c, dto.ErrCodeMaxConnections, "Maximum number of stream connections reached")
	case errors.Is(err, realtime.ErrHubClosed):
		h.ServiceUnavailable(c, dto.ErrCodeShuttingDown, "Server is shutting down")
	default:
		h.HandleError(c, err)
	}
}

func sameHost(origin, host string) bool {
	u, err := url.Parse(origin)
	return err == nil && u.Host == host
}
