package mail

import (
	"context"
	"fmt"
	"log/slog"
)

// Enqueuer stores a message for later delivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *Message) error
}

// Notifier composes the application's transactional emails.
type Notifier struct {
	outbox    Enqueuer
	from      string
	signupURL string
	logger    *slog.Logger
}

// NewNotifier creates a Notifier sending from the given address.
func NewNotifier(outbox Enqueuer, from, signupURL string, logger *slog.Logger) *Notifier {
	return &Notifier{
		outbox:    outbox,
		from:      from,
		signupURL: signupURL,
		logger:    logger.With("component", "mail.notifier"),
	}
}

// PurchaseAwaitingSignup tells a guest buyer how to claim their purchase.
func (n *Notifier) PurchaseAwaitingSignup(ctx context.Context, email, productName string) error {
	msg := &Message{
		From:    n.from,
		To:      []string{email},
		Subject: "Successful purchase",
		Body: fmt.Sprintf(
			"You've just purchased %s. To access it you need to register.\n\n%s\n",
			productName, n.signupURL,
		),
	}

	if err := n.outbox.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue purchase email: %w", err)
	}

	n.logger.Info("purchase_email_queued", "message_id", msg.ID)
	return nil
}
