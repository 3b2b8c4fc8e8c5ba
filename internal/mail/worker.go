package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shelfkit/shelfkit/internal/metrics"
)

const (
	// DefaultBatchSize is the number of messages to process per poll.
	DefaultBatchSize = 20
	// DefaultPollInterval is the time between polling for due messages.
	DefaultPollInterval = 5 * time.Second
	// DefaultLease is how long a claimed message is hidden from other workers.
	DefaultLease = 2 * time.Minute
	// DefaultMetricsInterval is how often to update queue depth metrics.
	DefaultMetricsInterval = 30 * time.Second
)

// Queue is the outbox surface the worker needs.
type Queue interface {
	ClaimDue(ctx context.Context, limit int, lease time.Duration) ([]*Message, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string, nextAttemptAt time.Time, exhausted bool) error
	QueueDepth(ctx context.Context) (int64, error)
}

// Worker delivers queued mail.
type Worker struct {
	queue           Queue
	sender          Sender
	logger          *slog.Logger
	metrics         metrics.Recorder
	batchSize       int
	pollInterval    time.Duration
	lease           time.Duration
	metricsInterval time.Duration
	lastMetrics     time.Time
	started         atomic.Bool
}

// NewWorker creates a new mail delivery worker.
func NewWorker(queue Queue, sender Sender, logger *slog.Logger, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		queue:           queue,
		sender:          sender,
		logger:          logger.With("component", "mail.worker"),
		metrics:         recorder,
		batchSize:       DefaultBatchSize,
		pollInterval:    DefaultPollInterval,
		lease:           DefaultLease,
		metricsInterval: DefaultMetricsInterval,
	}
}

// SetPollInterval overrides the default poll interval.
func (w *Worker) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		w.pollInterval = interval
	}
}

// SetBatchSize overrides the default batch size.
func (w *Worker) SetBatchSize(size int) {
	if size > 0 {
		w.batchSize = size
	}
}

// Run polls until ctx is cancelled. It returns nil on cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("worker already started")
	}

	w.logger.Info("mail worker started", "poll_interval", w.pollInterval.String())

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("mail worker stopping")
			return nil
		case <-ticker.C:
			if _, err := w.ProcessOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("mail poll failed", "error", err)
			}
		}
	}
}

// ProcessOnce delivers one batch and returns how many were attempted.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	w.maybeUpdateQueueDepth(ctx)

	msgs, err := w.queue.ClaimDue(ctx, w.batchSize, w.lease)
	if err != nil {
		return 0, fmt.Errorf("claim due mail: %w", err)
	}

	for _, msg := range msgs {
		if err := w.deliver(ctx, msg); err != nil {
			w.logger.Warn("mail status update failed", "message_id", msg.ID, "error", err)
		}
	}
	return len(msgs), nil
}

func (w *Worker) deliver(ctx context.Context, msg *Message) error {
	if err := w.sender.Send(ctx, msg); err != nil {
		return w.handleFailure(ctx, msg, err)
	}

	w.logger.Info("mail delivered",
		"message_id", msg.ID,
		"attempt", msg.AttemptCount+1,
	)
	w.metrics.IncMailDelivery(string(StatusSent))
	return w.queue.MarkSent(ctx, msg.ID)
}

func (w *Worker) handleFailure(ctx context.Context, msg *Message, sendErr error) error {
	attempt := msg.AttemptCount + 1
	exhausted := IsExhausted(attempt, msg.MaxAttempts)

	status := StatusFailed
	if exhausted {
		status = StatusExhausted
	}

	w.logger.Warn("mail delivery failed",
		"message_id", msg.ID,
		"attempt", attempt,
		"exhausted", exhausted,
		"error", sendErr,
	)
	w.metrics.IncMailDelivery(string(status))

	return w.queue.MarkFailed(ctx, msg.ID, sendErr.Error(), time.Now().Add(NextRetryDelay(attempt)), exhausted)
}

func (w *Worker) maybeUpdateQueueDepth(ctx context.Context) {
	if time.Since(w.lastMetrics) < w.metricsInterval {
		return
	}
	w.lastMetrics = time.Now()

	depth, err := w.queue.QueueDepth(ctx)
	if err != nil {
		w.logger.Warn("failed to get mail queue depth", "error", err)
		return
	}
	w.metrics.SetMailQueueDepth(depth)
}
