package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var got []Event
	bus.SubscribeAll(func(e Event) error {
		got = append(got, e)
		return nil
	}, ReservationCreated, TillClosed)

	bus.Publish(Event{Type: ReservationCreated, Date: "2026-10-12"})
	bus.Publish(Event{Type: TillCheckout})
	bus.Publish(Event{Type: TillClosed, Attrs: map[string]string{"cash_in": "11.5"}})

	if assert.Len(t, got, 2) {
		assert.Equal(t, ReservationCreated, got[0].Type)
		assert.False(t, got[0].CreatedAt.IsZero())
		assert.Equal(t, "11.5", got[1].Attrs["cash_in"])
	}
}
