package webhook

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types handled by the service.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventAccountUpdated           = "account.updated"
)

// Event is a verified inbound event.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    EventData `json:"data"`
}

// EventData wraps the event's subject object.
type EventData struct {
	Object json.RawMessage `json:"object"`
}

// CreatedAt converts Created to a time.
func (e *Event) CreatedAt() time.Time {
	return time.Unix(e.Created, 0).UTC()
}

// ConstructEvent verifies payload against header using secret and decodes it.
// It never has side effects.
func ConstructEvent(payload []byte, header, secret string, tolerance time.Duration) (*Event, error) {
	return constructEventAt(payload, header, secret, tolerance, time.Now())
}

func constructEventAt(payload []byte, header, secret string, tolerance time.Duration, now time.Time) (*Event, error) {
	if err := VerifySignature(payload, header, secret, tolerance, now); err != nil {
		return nil, err
	}
	return ParseEvent(payload)
}

// ParseEvent decodes an event without verifying it.
func ParseEvent(payload []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if evt.ID == "" || evt.Type == "" {
		return nil, fmt.Errorf("%w: missing id or type", ErrMalformedPayload)
	}
	if len(evt.Data.Object) == 0 || string(evt.Data.Object) == "null" {
		return nil, fmt.Errorf("%w: missing data.object", ErrMalformedPayload)
	}
	return &evt, nil
}

// CheckoutSession is the subset of a completed checkout session the service reads.
type CheckoutSession struct {
	ID              string `json:"id"`
	Customer        string `json:"customer"`
	CustomerEmail   string `json:"customer_email"`
	CustomerDetails *struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

// BuyerEmail prefers customer_details.email and falls back to customer_email.
func (s *CheckoutSession) BuyerEmail() string {
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		return s.CustomerDetails.Email
	}
	return s.CustomerEmail
}

// ProductID returns metadata.product_id.
func (s *CheckoutSession) ProductID() string {
	return s.Metadata["product_id"]
}

// DecodeCheckoutSession reads the session object of a
// checkout.session.completed event. metadata.product_id is required.
func DecodeCheckoutSession(evt *Event) (*CheckoutSession, error) {
	var s CheckoutSession
	if err := json.Unmarshal(evt.Data.Object, &s); err != nil {
		return nil, fmt.Errorf("%w: checkout session: %v", ErrMalformedPayload, err)
	}
	if s.ProductID() == "" {
		return nil, fmt.Errorf("%w: checkout session without metadata.product_id", ErrMalformedPayload)
	}
	return &s, nil
}

// ConnectedAccount is the subset of an account.updated object the service reads.
type ConnectedAccount struct {
	ID               string `json:"id"`
	DetailsSubmitted bool   `json:"details_submitted"`
}

// DecodeConnectedAccount reads the object of an account.updated event.
func DecodeConnectedAccount(evt *Event) (*ConnectedAccount, error) {
	var a ConnectedAccount
	if err := json.Unmarshal(evt.Data.Object, &a); err != nil {
		return nil, fmt.Errorf("%w: account: %v", ErrMalformedPayload, err)
	}
	if a.ID == "" {
		return nil, fmt.Errorf("%w: account without id", ErrMalformedPayload)
	}
	return &a, nil
}
