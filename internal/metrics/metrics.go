// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Inbound payment events
	IncWebhookEvent(eventType, status string) // status: processed, duplicate, ignored, rejected, failed
	ObserveWebhookDuration(duration time.Duration)

	// Purchase reconciliation
	IncPurchaseResolution(kind string) // kind: customer_id, email, unmatched, unresolvable
	AddClaimsLinked(n int)

	// Catalog and checkout
	IncProductCreated()
	IncProductUpdated()
	IncProductDeleted()
	IncCheckoutSession(status string) // status: created, error, not_found, unavailable, seller_not_payable

	// Mail outbox
	IncMailDelivery(status string) // status: sent, failed, exhausted
	SetMailQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
