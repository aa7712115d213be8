package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of derived cluster event
type EventType string

const (
	// EventClusterCreated fires when a cluster relation instance appears.
	EventClusterCreated EventType = "cluster.created"
	// EventConfigReceived fires when the coordinator has shared a valid,
	// non-empty worker config.
	EventConfigReceived EventType = "cluster.config-received"
	// EventClusterRemoved fires when the relation is severed, or when the
	// coordinator wiped its published data after we published ours.
	EventClusterRemoved EventType = "cluster.removed"
)

// Event is one derived cluster event. Config is populated for
// EventConfigReceived only.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Config    map[string]any
}

// Handler consumes events for one or more event types.
type Handler func(Event)

// Bus dispatches derived events to registered handlers. Delivery is
// synchronous: Publish runs every matching handler before returning, so
// events observe the ordering of the triggers that produced them.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for an event type. Handlers run in
// registration order.
func (b *Bus) Subscribe(t EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish delivers an event to every handler registered for its type.
func (b *Bus) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type]))
	copy(handlers, b.handlers[event.Type])
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

// HandlerCount returns the number of handlers registered for a type.
func (b *Bus) HandlerCount(t EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[t])
}
