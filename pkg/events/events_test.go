package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDelivers(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe(EventConfigReceived, func(e Event) {
		got = append(got, e)
	})

	config := map[string]any{"auth_enabled": false}
	bus.Publish(Event{Type: EventConfigReceived, Config: config})

	require.Len(t, got, 1)
	assert.Equal(t, EventConfigReceived, got[0].Type)
	assert.Equal(t, config, got[0].Config)
	assert.NotEmpty(t, got[0].ID, "id is assigned on publish")
	assert.False(t, got[0].Timestamp.IsZero(), "timestamp is assigned on publish")
}

func TestPublishTypeFiltering(t *testing.T) {
	bus := NewBus()

	var created, removed int
	bus.Subscribe(EventClusterCreated, func(Event) { created++ })
	bus.Subscribe(EventClusterRemoved, func(Event) { removed++ })

	bus.Publish(Event{Type: EventClusterCreated})
	bus.Publish(Event{Type: EventClusterCreated})
	bus.Publish(Event{Type: EventClusterRemoved})

	assert.Equal(t, 2, created)
	assert.Equal(t, 1, removed)
}

func TestHandlersRunInRegistrationOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	bus.Subscribe(EventClusterCreated, func(Event) { order = append(order, 1) })
	bus.Subscribe(EventClusterCreated, func(Event) { order = append(order, 2) })
	bus.Subscribe(EventClusterCreated, func(Event) { order = append(order, 3) })

	bus.Publish(Event{Type: EventClusterCreated})
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestPublishWithoutHandlers(t *testing.T) {
	bus := NewBus()
	bus.Publish(Event{Type: EventClusterRemoved})
	assert.Equal(t, 0, bus.HandlerCount(EventClusterRemoved))
}
