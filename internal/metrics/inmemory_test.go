package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestInMemoryRecorder_Counters(t *testing.T) {
	m := NewInMemory()

	m.IncWebhookEvent("checkout.session.completed", "processed")
	m.IncWebhookEvent("checkout.session.completed", "processed")
	m.IncWebhookEvent("checkout.session.completed", "duplicate")
	m.IncPurchaseResolution("email")
	m.AddClaimsLinked(3)
	m.AddClaimsLinked(0)
	m.AddClaimsLinked(-1)
	m.IncProductCreated()
	m.IncMailDelivery("sent")
	m.SetMailQueueDepth(4)
	m.ObserveWebhookDuration(2 * time.Millisecond)

	s := m.Snapshot()
	if got := s.WebhookEvents["checkout.session.completed|processed"]; got != 2 {
		t.Errorf("processed = %d, want 2", got)
	}
	if got := s.WebhookEvents["checkout.session.completed|duplicate"]; got != 1 {
		t.Errorf("duplicate = %d, want 1", got)
	}
	if s.PurchaseResolutions["email"] != 1 {
		t.Errorf("email resolutions = %d", s.PurchaseResolutions["email"])
	}
	if s.ClaimsLinked != 3 {
		t.Errorf("ClaimsLinked = %d, want 3", s.ClaimsLinked)
	}
	if s.ProductsCreated != 1 || s.MailDeliveries["sent"] != 1 || s.MailQueueDepth != 4 {
		t.Errorf("unexpected snapshot %+v", s)
	}
	if s.WebhookDurationCount != 1 || s.WebhookDurationTotalNs != int64(2*time.Millisecond) {
		t.Errorf("duration = %d/%d", s.WebhookDurationCount, s.WebhookDurationTotalNs)
	}
}

func TestInMemoryRecorder_SnapshotIsCopy(t *testing.T) {
	m := NewInMemory()
	m.IncCheckoutSession("created")

	s := m.Snapshot()
	s.CheckoutSessions["created"] = 100

	if got := m.Snapshot().CheckoutSessions["created"]; got != 1 {
		t.Errorf("snapshot mutation leaked: %d", got)
	}
}

func TestInMemoryRecorder_Concurrent(t *testing.T) {
	m := NewInMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncPurchaseResolution("customer_id")
			m.IncProductUpdated()
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	if s.PurchaseResolutions["customer_id"] != 50 || s.ProductsUpdated != 50 {
		t.Errorf("lost updates: %+v", s)
	}
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoop()
	r.IncWebhookEvent("x", "y")
	r.SetMailQueueDepth(1)
}
