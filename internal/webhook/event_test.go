package webhook

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completedPayload = `{
  "id": "evt_1",
  "type": "checkout.session.completed",
  "created": 1736600000,
  "data": {"object": {
    "id": "cs_1",
    "customer": "cus_9",
    "customer_email": "fallback@example.com",
    "customer_details": {"email": "Buyer@Example.com"},
    "metadata": {"product_id": "prod_1"}
  }}
}`

func TestConstructEvent_Valid(t *testing.T) {
	now := time.Now()
	header := SignPayload([]byte(completedPayload), testSecret, now)

	evt, err := ConstructEvent([]byte(completedPayload), header, testSecret, DefaultTolerance)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", evt.ID)
	assert.Equal(t, EventCheckoutSessionCompleted, evt.Type)
	assert.Equal(t, time.Unix(1736600000, 0).UTC(), evt.CreatedAt())

	session, err := DecodeCheckoutSession(evt)
	require.NoError(t, err)
	assert.Equal(t, "cus_9", session.Customer)
	assert.Equal(t, "Buyer@Example.com", session.BuyerEmail())
	assert.Equal(t, "prod_1", session.ProductID())
}

func TestConstructEvent_SignatureCheckedBeforeParsing(t *testing.T) {
	_, err := ConstructEvent([]byte(`not json`), "t=1,v1=00", testSecret, DefaultTolerance)

	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.False(t, errors.Is(err, ErrMalformedPayload))
}

func TestConstructEvent_Malformed(t *testing.T) {
	tests := map[string]string{
		"not json":     `{"id":`,
		"missing id":   `{"type":"x","data":{"object":{}}}`,
		"missing type": `{"id":"evt","data":{"object":{}}}`,
		"null object":  `{"id":"evt","type":"x","data":{"object":null}}`,
		"no data":      `{"id":"evt","type":"x"}`,
	}

	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			header := SignPayload([]byte(payload), testSecret, time.Now())

			_, err := ConstructEvent([]byte(payload), header, testSecret, DefaultTolerance)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestDecodeCheckoutSession(t *testing.T) {
	t.Run("email fallback", func(t *testing.T) {
		evt := &Event{Data: EventData{Object: []byte(`{"customer_email":"g@example.com","metadata":{"product_id":"p"}}`)}}

		s, err := DecodeCheckoutSession(evt)
		require.NoError(t, err)
		assert.Equal(t, "g@example.com", s.BuyerEmail())
		assert.Empty(t, s.Customer)
	})

	t.Run("missing product id", func(t *testing.T) {
		evt := &Event{Data: EventData{Object: []byte(`{"customer":"cus_1","metadata":{}}`)}}

		_, err := DecodeCheckoutSession(evt)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("wrong shape", func(t *testing.T) {
		evt := &Event{Data: EventData{Object: []byte(`[]`)}}

		_, err := DecodeCheckoutSession(evt)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})
}

func TestDecodeConnectedAccount(t *testing.T) {
	evt := &Event{Data: EventData{Object: []byte(`{"id":"acct_1","details_submitted":true}`)}}

	a, err := DecodeConnectedAccount(evt)
	require.NoError(t, err)
	assert.Equal(t, "acct_1", a.ID)
	assert.True(t, a.DetailsSubmitted)

	_, err = DecodeConnectedAccount(&Event{Data: EventData{Object: []byte(`{}`)}})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
