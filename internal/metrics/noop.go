package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncWebhookEvent(eventType, status string)      {}
func (n *NoopRecorder) ObserveWebhookDuration(duration time.Duration) {}
func (n *NoopRecorder) IncPurchaseResolution(kind string)             {}
func (n *NoopRecorder) AddClaimsLinked(count int)                     {}
func (n *NoopRecorder) IncProductCreated()                            {}
func (n *NoopRecorder) IncProductUpdated()                            {}
func (n *NoopRecorder) IncProductDeleted()                            {}
func (n *NoopRecorder) IncCheckoutSession(status string)              {}
func (n *NoopRecorder) IncMailDelivery(status string)                 {}
func (n *NoopRecorder) SetMailQueueDepth(depth int64)                 {}
