package webhook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RoutesByType(t *testing.T) {
	d := NewDispatcher()
	var got []string
	d.Register(EventCheckoutSessionCompleted, func(_ context.Context, evt *Event) error {
		got = append(got, "checkout:"+evt.ID)
		return nil
	})
	d.Register(EventAccountUpdated, func(_ context.Context, evt *Event) error {
		got = append(got, "account:"+evt.ID)
		return nil
	})

	handled, err := d.Dispatch(context.Background(), &Event{ID: "evt_1", Type: EventAccountUpdated})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, []string{"account:evt_1"}, got)
	assert.True(t, d.Handles(EventCheckoutSessionCompleted))
}

func TestDispatcher_UnknownTypeIgnored(t *testing.T) {
	d := NewDispatcher()

	handled, err := d.Dispatch(context.Background(), &Event{ID: "evt_1", Type: "invoice.paid"})
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestDispatcher_WrapsHandlerError(t *testing.T) {
	d := NewDispatcher()
	boom := errors.New("db down")
	d.Register("x", func(context.Context, *Event) error { return boom })

	handled, err := d.Dispatch(context.Background(), &Event{ID: "evt_1", Type: "x"})
	assert.True(t, handled)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "evt_1")
}
