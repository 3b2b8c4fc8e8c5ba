// Package mail queues outbound email in Postgres and delivers it in the background.
package mail

import (
	"errors"
	"time"
)

// Status is the delivery state of an outbox message.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"    // will be retried
	StatusExhausted Status = "exhausted" // gave up
)

// ErrNoRecipients is returned when enqueuing a message with no recipients.
var ErrNoRecipients = errors.New("message has no recipients")

// Message is one outbox row.
type Message struct {
	ID            string
	From          string
	To            []string
	Subject       string
	Body          string
	Status        Status
	AttemptCount  int
	MaxAttempts   int
	NextAttemptAt time.Time
	LastAttemptAt *time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
