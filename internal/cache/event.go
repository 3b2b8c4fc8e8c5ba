package cache

import (
	"context"
	"fmt"
	"time"
)

// eventClaimPrefix is the Redis key prefix for processed webhook event ids.
const eventClaimPrefix = "webhook:event:"

// ClaimEvent marks an inbound event id as being processed.
// It returns false when the id was already claimed within ttl, meaning the
// event is a redelivery.
func (c *Cache) ClaimEvent(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	if eventID == "" {
		return true, nil
	}

	ok, err := c.client.SetNX(ctx, eventClaimPrefix+eventID, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return ok, nil
}

// ReleaseEvent drops a claim so a redelivery of a failed event is processed again.
func (c *Cache) ReleaseEvent(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	if err := c.client.Del(ctx, eventClaimPrefix+eventID).Err(); err != nil {
		return fmt.Errorf("release event %s: %w", eventID, err)
	}
	return nil
}
