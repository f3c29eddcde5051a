package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/astroguard/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", uuid.New())}
}

type testHandler struct {
	eventTypes []string
	err        error
	panicWith  any

	mu      sync.Mutex
	handled []shared.DomainEvent
}

func (h *testHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	return h.err
}

func (h *testHandler) EventTypes() []string { return h.eventTypes }

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func startedBus(t *testing.T) (*InMemoryEventBus, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	bus := NewInMemoryEventBus(zap.New(core))
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { _ = bus.Stop(context.Background()) })
	return bus, logs
}

func TestInMemoryEventBus_RoutesByType(t *testing.T) {
	bus, _ := startedBus(t)
	created := &testHandler{eventTypes: []string{"ItemCreated"}}
	changed := &testHandler{eventTypes: []string{"ItemQuantityChanged"}}
	all := &testHandler{}
	bus.Subscribe(created)
	bus.Subscribe(changed)
	bus.Subscribe(all)

	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, newTestEvent("ItemCreated"), newTestEvent("ItemQuantityChanged")))
	require.NoError(t, bus.Publish(ctx, newTestEvent("ItemQuantityChanged")))

	assert.Equal(t, 1, created.count())
	assert.Equal(t, 2, changed.count())
	assert.Equal(t, 3, all.count())
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandler(t *testing.T) {
	bus, _ := startedBus(t)
	h := &testHandler{eventTypes: []string{"ItemCreated"}}
	bus.Subscribe(h, "ItemQuantityChanged")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("ItemCreated"), newTestEvent("ItemQuantityChanged")))
	assert.Equal(t, 1, h.count())
}

func TestInMemoryEventBus_HandlerFailuresAreIsolated(t *testing.T) {
	bus, logs := startedBus(t)
	failing := &testHandler{err: errors.New("boom")}
	panicking := &testHandler{panicWith: "kaboom"}
	healthy := &testHandler{}
	bus.Subscribe(failing, "ItemCreated")
	bus.Subscribe(panicking, "ItemCreated")
	bus.Subscribe(healthy, "ItemCreated")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("ItemCreated")))

	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, healthy.count())
	assert.Equal(t, 2, logs.FilterMessage("Event handler failed").Len())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus, _ := startedBus(t)
	h := &testHandler{eventTypes: []string{"ItemCreated"}}
	bus.Subscribe(h)
	bus.Unsubscribe(h)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("ItemCreated")))
	assert.Zero(t, h.count())
	assert.Zero(t, bus.registry.Len())
}

func TestInMemoryEventBus_DiscardsWhenStopped(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := &testHandler{}
	bus.Subscribe(h)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("ItemCreated")))
	assert.Zero(t, h.count())
	assert.False(t, bus.IsRunning())

	require.NoError(t, bus.Start(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("ItemCreated")))
	assert.Equal(t, 1, h.count())

	require.NoError(t, bus.Stop(context.Background()))
	require.NoError(t, bus.Publish(context.Background(), newTestEvent("ItemCreated")))
	assert.Equal(t, 1, h.count())
}

func TestHandlerRegistry(t *testing.T) {
	r := NewHandlerRegistry()
	a := &testHandler{}
	b := &testHandler{}

	r.Register(a, "ItemCreated", "ItemQuantityChanged")
	r.Register(a, "ItemCreated")
	r.Register(b)
	r.Register(b)

	handlers := r.GetHandlers("ItemCreated")
	require.Len(t, handlers, 2)
	assert.Same(t, a, handlers[0])
	assert.Same(t, b, handlers[1])
	assert.Len(t, r.GetHandlers("Unknown"), 1)
	assert.Equal(t, 2, r.Len())

	r.Unregister(a)
	assert.Len(t, r.GetHandlers("ItemQuantityChanged"), 1)
	assert.Equal(t, 1, r.Len())
}

type stoppingHandler struct {
	bus *InMemoryEventBus
}

func (h *stoppingHandler) Handle(ctx context.Context, _ shared.DomainEvent) error {
	return h.bus.Stop(ctx)
}

func (h *stoppingHandler) EventTypes() []string { return nil }

func TestInMemoryEventBus_StopDuringPublish(t *testing.T) {
	bus, _ := startedBus(t)
	after := &testHandler{}
	bus.Subscribe(&stoppingHandler{bus: bus}, "ItemCreated")
	bus.Subscribe(after, "ItemCreated")

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("ItemCreated")))

	// delivery completed before Publish returned, despite the stop
	assert.Equal(t, 1, after.count())
	assert.False(t, bus.IsRunning())

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("ItemCreated")))
	assert.Equal(t, 1, after.count())
}
