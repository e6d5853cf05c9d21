package event

import (
	"context"
	"errors"
	"testing"

	"github.com/bizdash/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type testEvent struct {
	shared.EventHeader
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{EventHeader: shared.NewEventHeader(eventType, "Subscriber", uuid.New())}
}

type recordingHandler struct {
	types    []string
	received []string
	err      error
	panics   bool
}

func (h *recordingHandler) Handle(_ context.Context, evt shared.DomainEvent) error {
	if h.panics {
		panic("boom")
	}
	h.received = append(h.received, evt.EventType())
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func TestBus_Publish(t *testing.T) {
	bus := NewBus(zap.NewNop())
	created := &recordingHandler{types: []string{"SubscriberCreated"}}
	all := &recordingHandler{}

	bus.Subscribe(created)
	bus.Subscribe(all)

	err := bus.Publish(context.Background(),
		newTestEvent("SubscriberCreated"),
		newTestEvent("SubscriberCanceled"),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"SubscriberCreated"}, created.received)
	assert.Equal(t, []string{"SubscriberCreated", "SubscriberCanceled"}, all.received)
}

func TestBus_ExplicitTypesOverrideHandler(t *testing.T) {
	bus := NewBus(nil)
	h := &recordingHandler{types: []string{"SubscriberCreated"}}
	bus.Subscribe(h, "SubscriberCanceled")

	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent("SubscriberCreated"),
		newTestEvent("SubscriberCanceled"),
	))
	assert.Equal(t, []string{"SubscriberCanceled"}, h.received)
}

func TestBus_FailingHandlerDoesNotStopDelivery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	bus := NewBus(zap.New(core))

	failing := &recordingHandler{err: errors.New("store unavailable")}
	panicking := &recordingHandler{panics: true}
	healthy := &recordingHandler{}
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("SubscriberCreated")))

	assert.Equal(t, []string{"SubscriberCreated"}, healthy.received)
	assert.Equal(t, 2, logs.FilterMessage("Event handler failed").Len())
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)
	h := &recordingHandler{}
	bus.Subscribe(h)
	bus.Unsubscribe(h)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("SubscriberCreated")))
	assert.Empty(t, h.received)
}

func TestBus_HandlerOrder(t *testing.T) {
	bus := NewBus(nil)
	typed := &recordingHandler{}
	wildcard := &recordingHandler{}

	bus.Subscribe(typed, "A", "B")
	bus.Subscribe(wildcard)

	handlers := bus.handlersFor("A")
	require.Len(t, handlers, 2)
	assert.Same(t, typed, handlers[0])
	assert.Same(t, wildcard, handlers[1])
	assert.Len(t, bus.handlersFor("C"), 1)

	bus.Unsubscribe(typed)
	assert.Len(t, bus.handlersFor("A"), 1)
	assert.Len(t, bus.subs, 1)
}
