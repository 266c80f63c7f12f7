package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus(nil)

	var received *Event
	var callCount int

	bus.Subscribe(EventCouponApplied, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	err := bus.PublishJSON(EventCouponApplied, CheckoutEventPayload{SessionID: "s1", PromoCode: "SUMMER"})
	require.NoError(t, err)

	assert.Equal(t, 1, callCount)
	require.NotNil(t, received)
	assert.Equal(t, EventCouponApplied, received.Type)
	assert.NotZero(t, received.ID)
	assert.False(t, received.CreatedAt.IsZero())

	var decoded CheckoutEventPayload
	require.NoError(t, received.Decode(&decoded))
	assert.Equal(t, "s1", decoded.SessionID)
	assert.Equal(t, "SUMMER", decoded.PromoCode)
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus(nil)
	seen := map[string]int{}

	bus.SubscribeAll(func(e *Event) error {
		seen[e.Type]++
		return nil
	}, EventPaymentVerified, EventPaymentFailed)

	bus.Publish(&Event{Type: EventPaymentVerified})
	bus.Publish(&Event{Type: EventPaymentFailed})
	bus.Publish(&Event{Type: EventCheckoutOpened})

	assert.Equal(t, map[string]int{EventPaymentVerified: 1, EventPaymentFailed: 1}, seen)
}

func TestEventBusHandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewEventBus(nil)
	var second bool

	bus.Subscribe("event", func(_ *Event) error { return errors.New("boom") })
	bus.Subscribe("event", func(_ *Event) error { second = true; return nil })

	bus.Publish(&Event{Type: "event"})
	assert.True(t, second)
}

func TestEventBusIDsIncrease(t *testing.T) {
	bus := NewEventBus(nil)
	var ids []int64
	bus.Subscribe("event", func(e *Event) error { ids = append(ids, e.ID); return nil })

	bus.Publish(&Event{Type: "event"})
	bus.Publish(&Event{Type: "event"})

	require.Len(t, ids, 2)
	assert.Less(t, ids[0], ids[1])
}

func TestNilBusPublishJSON(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON("anything", nil))
}
