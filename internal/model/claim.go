package model

import "time"

// PendingClaim records a purchase made by an email with no account yet.
// It is consumed when an account registers with that email.
type PendingClaim struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	ProductID  string     `json:"product_id"`
	EventID    string     `json:"event_id,omitempty"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	ConsumedBy string     `json:"consumed_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsConsumed reports whether the claim has been granted to an account.
func (c *PendingClaim) IsConsumed() bool {
	return c.ConsumedAt != nil
}
