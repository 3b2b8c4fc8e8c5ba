package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shelfkit/shelfkit/internal/metrics"
	"github.com/shelfkit/shelfkit/internal/model"
	"github.com/shelfkit/shelfkit/internal/repository"
	"github.com/shelfkit/shelfkit/internal/webhook"
)

// ResolutionKind says how a purchase was matched to an account.
type ResolutionKind int

const (
	Unmatched ResolutionKind = iota
	MatchedByCustomerID
	MatchedByEmail
)

func (k ResolutionKind) String() string {
	switch k {
	case MatchedByCustomerID:
		return "customer_id"
	case MatchedByEmail:
		return "email"
	default:
		return "unmatched"
	}
}

// Resolution is the outcome of buyer lookup. Account is nil when Unmatched.
type Resolution struct {
	Kind    ResolutionKind
	Account *model.Account
}

// PurchaseInput is what a completed checkout tells us about the buyer.
type PurchaseInput struct {
	EventID    string
	CustomerID string
	Email      string
	ProductID  string
}

// PurchaseOutcome reports what Apply changed.
type PurchaseOutcome struct {
	Resolution     Resolution
	Product        *model.Product
	Added          bool // false when the library already held the product
	CustomerLinked bool
	Claim          *model.PendingClaim
}

// ErrUnresolvable marks purchases that can never be applied: the product is
// gone, or there is neither an account nor an email to hold a claim.
var ErrUnresolvable = errors.New("purchase cannot be resolved")

// AccountFinder is the read side Resolve needs.
type AccountFinder interface {
	GetAccountByCustomerID(ctx context.Context, customerID string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
}

// Resolve finds the buyer's account: customer id first, then email.
// It only reads.
func Resolve(ctx context.Context, accounts AccountFinder, customerID, email string) (Resolution, error) {
	if customerID != "" {
		account, err := accounts.GetAccountByCustomerID(ctx, customerID)
		switch {
		case err == nil:
			return Resolution{Kind: MatchedByCustomerID, Account: account}, nil
		case !errors.Is(err, repository.ErrAccountNotFound):
			return Resolution{}, fmt.Errorf("lookup by customer id: %w", err)
		}
	}

	if email = model.NormalizeEmail(email); email != "" {
		account, err := accounts.GetAccountByEmail(ctx, email)
		switch {
		case err == nil:
			return Resolution{Kind: MatchedByEmail, Account: account}, nil
		case !errors.Is(err, repository.ErrAccountNotFound):
			return Resolution{}, fmt.Errorf("lookup by email: %w", err)
		}
	}

	return Resolution{Kind: Unmatched}, nil
}

// PurchaseNotifier sends the "claim your purchase" email.
type PurchaseNotifier interface {
	PurchaseAwaitingSignup(ctx context.Context, email, productName string) error
}

// PurchaseService reconciles completed checkouts with accounts.
type PurchaseService struct {
	store    repository.Store
	notifier PurchaseNotifier
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewPurchaseService creates a PurchaseService.
func NewPurchaseService(store repository.Store, notifier PurchaseNotifier, logger *slog.Logger, recorder metrics.Recorder) *PurchaseService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &PurchaseService{
		store:    store,
		notifier: notifier,
		logger:   logger.With("component", "purchase"),
		metrics:  recorder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Apply performs the resolved branch against tx.
func (s *PurchaseService) Apply(ctx context.Context, tx repository.Store, in PurchaseInput, product *model.Product, res Resolution) (*PurchaseOutcome, error) {
	out := &PurchaseOutcome{Resolution: res, Product: product}

	switch res.Kind {
	case MatchedByCustomerID, MatchedByEmail:
		if res.Kind == MatchedByEmail && in.CustomerID != "" && !res.Account.HasCustomerID() {
			linked, err := tx.SetAccountCustomerID(ctx, res.Account.ID, in.CustomerID)
			if err != nil {
				return nil, fmt.Errorf("link customer id: %w", err)
			}
			out.CustomerLinked = linked
		}

		added, err := tx.AddToLibrary(ctx, res.Account.ID, product.ID)
		if err != nil {
			return nil, fmt.Errorf("add to library: %w", err)
		}
		out.Added = added

	default:
		claim := &model.PendingClaim{
			ID:        generateULID(),
			Email:     model.NormalizeEmail(in.Email),
			ProductID: product.ID,
			EventID:   in.EventID,
			CreatedAt: s.now(),
		}
		if err := tx.CreatePendingClaim(ctx, claim); err != nil {
			return nil, fmt.Errorf("create pending claim: %w", err)
		}
		out.Claim = claim
	}

	return out, nil
}

// ProcessPurchase resolves and applies one purchase in a single transaction,
// then queues the signup email for unmatched buyers.
// ErrUnresolvable is returned for purchases that retrying cannot fix.
func (s *PurchaseService) ProcessPurchase(ctx context.Context, in PurchaseInput) (*PurchaseOutcome, error) {
	var out *PurchaseOutcome

	err := s.store.InTx(ctx, func(tx repository.Store) error {
		product, err := tx.GetProductByID(ctx, in.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return fmt.Errorf("%w: product %s not found", ErrUnresolvable, in.ProductID)
			}
			return fmt.Errorf("load product: %w", err)
		}

		res, err := Resolve(ctx, tx, in.CustomerID, in.Email)
		if err != nil {
			return err
		}
		if res.Kind == Unmatched && model.NormalizeEmail(in.Email) == "" {
			return fmt.Errorf("%w: no account and no email", ErrUnresolvable)
		}

		out, err = s.Apply(ctx, tx, in, product, res)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUnresolvable) {
			s.metrics.IncPurchaseResolution("unresolvable")
		}
		return nil, err
	}

	s.metrics.IncPurchaseResolution(out.Resolution.Kind.String())

	logAttrs := []any{
		"event_id", in.EventID,
		"product_id", out.Product.ID,
		"resolution", out.Resolution.Kind.String(),
	}
	if out.Resolution.Account != nil {
		logAttrs = append(logAttrs, "account_id", out.Resolution.Account.ID, "added", out.Added, "customer_linked", out.CustomerLinked)
	}
	s.logger.Info("purchase_resolved", logAttrs...)

	if out.Claim != nil && s.notifier != nil {
		if err := s.notifier.PurchaseAwaitingSignup(ctx, out.Claim.Email, out.Product.Name); err != nil {
			s.logger.Error("purchase_email_failed", "event_id", in.EventID, "claim_id", out.Claim.ID, "error", err)
		}
	}

	return out, nil
}

// HandleCheckoutCompleted is the dispatcher handler for completed checkouts.
// Unresolvable purchases are logged and acknowledged.
func (s *PurchaseService) HandleCheckoutCompleted(ctx context.Context, evt *webhook.Event) error {
	session, err := webhook.DecodeCheckoutSession(evt)
	if err != nil {
		return err
	}

	_, err = s.ProcessPurchase(ctx, PurchaseInput{
		EventID:    evt.ID,
		CustomerID: session.Customer,
		Email:      session.BuyerEmail(),
		ProductID:  session.ProductID(),
	})
	if errors.Is(err, ErrUnresolvable) {
		s.logger.Warn("purchase_unresolvable", "event_id", evt.ID, "session_id", session.ID, "reason", err.Error())
		return nil
	}
	return err
}

// HandleAccountUpdated mirrors the processor's onboarding state onto the
// account that owns the connected account. Unknown ids are ignored.
func (s *PurchaseService) HandleAccountUpdated(ctx context.Context, evt *webhook.Event) error {
	acct, err := webhook.DecodeConnectedAccount(evt)
	if err != nil {
		return err
	}

	found, err := s.store.SetPayeeDetailsSubmitted(ctx, acct.ID, acct.DetailsSubmitted)
	if err != nil {
		return fmt.Errorf("update payee status: %w", err)
	}
	if !found {
		s.logger.Debug("payee_unknown", "event_id", evt.ID, "payee_id", acct.ID)
		return nil
	}

	s.logger.Info("payee_status_updated", "event_id", evt.ID, "payee_id", acct.ID, "details_submitted", acct.DetailsSubmitted)
	return nil
}

// RegisterHandlers wires the service into d.
func (s *PurchaseService) RegisterHandlers(d *webhook.Dispatcher) {
	d.Register(webhook.EventCheckoutSessionCompleted, s.HandleCheckoutCompleted)
	d.Register(webhook.EventAccountUpdated, s.HandleAccountUpdated)
}
