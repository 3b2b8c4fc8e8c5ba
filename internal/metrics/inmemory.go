package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
// Labeled counters are keyed by their label value.
type Snapshot struct {
	WebhookEvents          map[string]uint64 // "type|status"
	WebhookDurationCount   uint64
	WebhookDurationTotalNs int64
	PurchaseResolutions    map[string]uint64
	ClaimsLinked           uint64
	ProductsCreated        uint64
	ProductsUpdated        uint64
	ProductsDeleted        uint64
	CheckoutSessions       map[string]uint64
	MailDeliveries         map[string]uint64
	MailQueueDepth         int64
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics endpoint
// and is used directly by tests.
type InMemoryRecorder struct {
	webhookDurationCount   uint64
	webhookDurationTotalNs int64
	claimsLinked           uint64
	productsCreated        uint64
	productsUpdated        uint64
	productsDeleted        uint64
	mailQueueDepth         int64

	mu       sync.Mutex
	labelled map[string]map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{labelled: make(map[string]map[string]uint64)}
}

func (m *InMemoryRecorder) inc(family, label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counters, ok := m.labelled[family]
	if !ok {
		counters = make(map[string]uint64)
		m.labelled[family] = counters
	}
	counters[label]++
}

func (m *InMemoryRecorder) copyFamily(family string) map[string]uint64 {
	out := make(map[string]uint64, len(m.labelled[family]))
	for k, v := range m.labelled[family] {
		out[k] = v
	}
	return out
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		WebhookEvents:          m.copyFamily("webhook_events"),
		WebhookDurationCount:   atomic.LoadUint64(&m.webhookDurationCount),
		WebhookDurationTotalNs: atomic.LoadInt64(&m.webhookDurationTotalNs),
		PurchaseResolutions:    m.copyFamily("purchase_resolutions"),
		ClaimsLinked:           atomic.LoadUint64(&m.claimsLinked),
		ProductsCreated:        atomic.LoadUint64(&m.productsCreated),
		ProductsUpdated:        atomic.LoadUint64(&m.productsUpdated),
		ProductsDeleted:        atomic.LoadUint64(&m.productsDeleted),
		CheckoutSessions:       m.copyFamily("checkout_sessions"),
		MailDeliveries:         m.copyFamily("mail_deliveries"),
		MailQueueDepth:         atomic.LoadInt64(&m.mailQueueDepth),
	}
}

// IncWebhookEvent counts an inbound event by type and outcome.
func (m *InMemoryRecorder) IncWebhookEvent(eventType, status string) {
	m.inc("webhook_events", eventType+"|"+status)
}

// ObserveWebhookDuration records receiver latency.
func (m *InMemoryRecorder) ObserveWebhookDuration(duration time.Duration) {
	atomic.AddUint64(&m.webhookDurationCount, 1)
	atomic.AddInt64(&m.webhookDurationTotalNs, duration.Nanoseconds())
}

// IncPurchaseResolution counts completed checkouts by resolution kind.
func (m *InMemoryRecorder) IncPurchaseResolution(kind string) {
	m.inc("purchase_resolutions", kind)
}

// AddClaimsLinked counts pending claims consumed at registration.
func (m *InMemoryRecorder) AddClaimsLinked(n int) {
	if n > 0 {
		atomic.AddUint64(&m.claimsLinked, uint64(n))
	}
}

func (m *InMemoryRecorder) IncProductCreated() { atomic.AddUint64(&m.productsCreated, 1) }
func (m *InMemoryRecorder) IncProductUpdated() { atomic.AddUint64(&m.productsUpdated, 1) }
func (m *InMemoryRecorder) IncProductDeleted() { atomic.AddUint64(&m.productsDeleted, 1) }

// IncCheckoutSession counts checkout session attempts.
func (m *InMemoryRecorder) IncCheckoutSession(status string) {
	m.inc("checkout_sessions", status)
}

// IncMailDelivery counts outbox delivery attempts.
func (m *InMemoryRecorder) IncMailDelivery(status string) {
	m.inc("mail_deliveries", status)
}

// SetMailQueueDepth records undelivered outbox rows.
func (m *InMemoryRecorder) SetMailQueueDepth(depth int64) {
	atomic.StoreInt64(&m.mailQueueDepth, depth)
}
