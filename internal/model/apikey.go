package model

import "time"

// APIKey is a credential issued to an account at registration.
type APIKey struct {
	ID         string     `json:"id"`
	AccountID  string     `json:"account_id"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsRevoked returns true if the key has been revoked.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// AuthContext holds the authenticated caller for a request.
// The auth middleware injects it into the request context.
type AuthContext struct {
	KeyID     string
	KeyPrefix string
	AccountID string
}
