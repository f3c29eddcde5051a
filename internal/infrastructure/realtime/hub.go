// Package realtime fans inventory changes out to connected dashboards.
package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/astroguard/backend/internal/domain/inventory"
	"github.com/astroguard/backend/internal/domain/shared"
	"github.com/astroguard/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationType is the type of every inventory change notification
const NotificationType = "items_changed"

// Protocols a subscriber can be connected through
const (
	ProtocolSSE       = "sse"
	ProtocolWebSocket = "ws"
)

var (
	// ErrHubClosed is returned when subscribing to a closed hub
	ErrHubClosed = errors.New("realtime hub closed")
	// ErrTooManySubscribers is returned when the subscriber limit is reached
	ErrTooManySubscribers = errors.New("too many realtime subscribers")
)

// Notification tells clients the item list changed and should be re-fetched.
// The item fields describe the change that triggered it.
type Notification struct {
	Type      string `json:"type"`
	Event     string `json:"event"`
	ItemID    string `json:"item_id"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	Timestamp int64  `json:"timestamp"`
}

// Subscriber receives notifications on C until it unsubscribes or is dropped
// for falling behind, at which point C is closed.
type Subscriber struct {
	ID       string
	Protocol string
	C        <-chan Notification

	ch chan Notification
}

// Hub tracks subscribers and broadcasts inventory notifications to them.
// It implements shared.EventHandler for the inventory item events.
type Hub struct {
	mu             sync.Mutex
	subscribers    map[string]*Subscriber
	closed         bool
	buffer         int
	maxSubscribers int
	logger         *zap.Logger
	metrics        *telemetry.RealtimeMetrics
}

// HubOption is a functional option for configuring Hub
type HubOption func(*Hub)

// WithBuffer sets the per-subscriber queue length
func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithMaxSubscribers caps concurrent subscribers. Zero means unlimited.
func WithMaxSubscribers(n int) HubOption {
	return func(h *Hub) {
		h.maxSubscribers = n
	}
}

// WithHubLogger sets the logger
func WithHubLogger(l *zap.Logger) HubOption {
	return func(h *Hub) {
		h.logger = l
	}
}

// WithHubMetrics records subscriber and delivery metrics
func WithHubMetrics(m *telemetry.RealtimeMetrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// NewHub creates an empty hub
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subscribers:    make(map[string]*Subscriber),
		buffer:         16,
		maxSubscribers: 1000,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a new subscriber
func (h *Hub) Subscribe(protocol string) (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if h.maxSubscribers > 0 && len(h.subscribers) >= h.maxSubscribers {
		return nil, ErrTooManySubscribers
	}

	ch := make(chan Notification, h.buffer)
	s := &Subscriber{ID: uuid.NewString(), Protocol: protocol, C: ch, ch: ch}
	h.subscribers[s.ID] = s

	h.metrics.Connected(context.Background(), protocol)
	h.logger.Info("Realtime subscriber connected",
		zap.String("subscriber_id", s.ID),
		zap.String("protocol", protocol),
		zap.Int("total", len(h.subscribers)),
	)
	return s, nil
}

// Unsubscribe removes s and closes its channel. Safe to call more than once.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.remove(s.ID) {
		h.logger.Info("Realtime subscriber disconnected",
			zap.String("subscriber_id", s.ID),
			zap.Int("total", len(h.subscribers)),
		)
	}
}

// remove must be called with h.mu held
func (h *Hub) remove(id string) bool {
	s, ok := h.subscribers[id]
	if !ok {
		return false
	}
	delete(h.subscribers, id)
	close(s.ch)
	h.metrics.Disconnected(context.Background(), s.Protocol)
	return true
}

// Broadcast queues n for every subscriber without blocking. Subscribers whose
// queue is full are dropped. It returns the number of subscribers reached.
func (h *Hub) Broadcast(ctx context.Context, n Notification) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for id, s := range h.subscribers {
		select {
		case s.ch <- n:
			delivered++
		default:
			h.logger.Warn("Realtime subscriber too slow, dropping",
				zap.String("subscriber_id", id),
				zap.String("protocol", s.Protocol),
			)
			h.metrics.Dropped(ctx, s.Protocol)
			h.remove(id)
		}
	}
	h.metrics.Delivered(ctx, delivered)
	return delivered
}

// Count returns the number of connected subscribers
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id := range h.subscribers {
		h.remove(id)
	}
	h.logger.Info("Realtime hub closed")
}

// Handle converts inventory item events into notifications
func (h *Hub) Handle(ctx context.Context, event shared.DomainEvent) error {
	n, ok := notificationFor(event)
	if !ok {
		return nil
	}
	h.Broadcast(ctx, n)
	return nil
}

// EventTypes returns the inventory item events the hub listens to
func (h *Hub) EventTypes() []string {
	return []string{
		inventory.EventTypeItemCreated,
		inventory.EventTypeItemQuantityChanged,
	}
}

func notificationFor(event shared.DomainEvent) (Notification, bool) {
	n := Notification{
		Type:      NotificationType,
		Event:     event.EventType(),
		Timestamp: timestampOf(event.OccurredAt()),
	}
	switch e := event.(type) {
	case *inventory.ItemCreatedEvent:
		n.ItemID, n.Name, n.Quantity = e.ItemID.String(), e.Name, e.Quantity
	case *inventory.ItemQuantityChangedEvent:
		n.ItemID, n.Name, n.Quantity = e.ItemID.String(), e.Name, e.Quantity
	default:
		return Notification{}, false
	}
	return n, true
}

func timestampOf(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UnixMilli()
}

var _ shared.EventHandler = (*Hub)(nil)
