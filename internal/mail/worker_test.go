package mail

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shelfkit/shelfkit/internal/metrics"
)

type fakeQueue struct {
	mu        sync.Mutex
	due       []*Message
	sent      []string
	failed    map[string]bool // id -> exhausted
	claimErr  error
	nextRetry map[string]time.Time
}

func newFakeQueue(msgs ...*Message) *fakeQueue {
	return &fakeQueue{due: msgs, failed: map[string]bool{}, nextRetry: map[string]time.Time{}}
}

func (q *fakeQueue) ClaimDue(_ context.Context, limit int, _ time.Duration) ([]*Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.claimErr != nil {
		return nil, q.claimErr
	}
	n := limit
	if n > len(q.due) {
		n = len(q.due)
	}
	out := q.due[:n]
	q.due = q.due[n:]
	return out, nil
}

func (q *fakeQueue) MarkSent(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, id)
	return nil
}

func (q *fakeQueue) MarkFailed(_ context.Context, id, _ string, next time.Time, exhausted bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[id] = exhausted
	q.nextRetry[id] = next
	return nil
}

func (q *fakeQueue) QueueDepth(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.due)), nil
}

type fakeSender struct {
	fail map[string]error
	sent []string
}

func (s *fakeSender) Send(_ context.Context, msg *Message) error {
	if err := s.fail[msg.ID]; err != nil {
		return err
	}
	s.sent = append(s.sent, msg.ID)
	return nil
}

func TestWorker_ProcessOnce(t *testing.T) {
	q := newFakeQueue(
		&Message{ID: "ok", To: []string{"a@example.com"}, MaxAttempts: 5},
		&Message{ID: "retry", To: []string{"b@example.com"}, MaxAttempts: 5, AttemptCount: 1},
		&Message{ID: "last", To: []string{"c@example.com"}, MaxAttempts: 5, AttemptCount: 4},
	)
	s := &fakeSender{fail: map[string]error{
		"retry": errors.New("451 try later"),
		"last":  errors.New("550 no such user"),
	}}
	rec := metrics.NewInMemory()
	w := NewWorker(q, s, discardLogger(), rec)

	before := time.Now()
	n, err := w.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("ProcessOnce failed: %v", err)
	}
	if n != 3 {
		t.Errorf("processed = %d, want 3", n)
	}

	if len(q.sent) != 1 || q.sent[0] != "ok" {
		t.Errorf("sent = %v, want [ok]", q.sent)
	}
	if exhausted, ok := q.failed["retry"]; !ok || exhausted {
		t.Errorf("retry should be failed and not exhausted, got %v %v", exhausted, ok)
	}
	if !q.nextRetry["retry"].After(before) {
		t.Error("retry should be scheduled in the future")
	}
	if exhausted := q.failed["last"]; !exhausted {
		t.Error("fifth failed attempt should exhaust the message")
	}

	snap := rec.Snapshot()
	if snap.MailDeliveries["sent"] != 1 || snap.MailDeliveries["failed"] != 1 || snap.MailDeliveries["exhausted"] != 1 {
		t.Errorf("mail metrics = %v", snap.MailDeliveries)
	}
}

func TestWorker_ClaimError(t *testing.T) {
	q := newFakeQueue()
	q.claimErr = errors.New("db down")
	w := NewWorker(q, &fakeSender{}, discardLogger(), nil)

	if _, err := w.ProcessOnce(context.Background()); err == nil {
		t.Fatal("expected claim error")
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	q := newFakeQueue(&Message{ID: "m1", To: []string{"a@example.com"}, MaxAttempts: 5})
	s := &fakeSender{}
	w := NewWorker(q, s, discardLogger(), nil)
	w.SetPollInterval(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		q.mu.Lock()
		sent := len(q.sent)
		q.mu.Unlock()
		if sent == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("message was not delivered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	if err := w.Run(context.Background()); err == nil {
		t.Error("second Run should fail")
	}
}
