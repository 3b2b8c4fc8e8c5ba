package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shelfkit/shelfkit/internal/metrics"
	"github.com/shelfkit/shelfkit/internal/model"
	"github.com/shelfkit/shelfkit/internal/payments"
	"github.com/shelfkit/shelfkit/internal/repository"
)

// MetadataProductID is the checkout metadata key read back by the purchase
// handler.
const MetadataProductID = "product_id"

// CheckoutCreator opens hosted checkout sessions.
type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, params *payments.CheckoutSessionParams) (*payments.CheckoutSession, error)
}

// CheckoutConfig holds the session parameters that come from configuration.
type CheckoutConfig struct {
	Currency       string
	ApplicationFee int64
	DefaultImage   string
	BaseURL        string
}

// CheckoutService starts purchases.
type CheckoutService struct {
	store    repository.Store
	checkout CheckoutCreator
	cfg      CheckoutConfig
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewCheckoutService creates a CheckoutService.
func NewCheckoutService(store repository.Store, checkout CheckoutCreator, cfg CheckoutConfig, logger *slog.Logger, recorder metrics.Recorder) *CheckoutService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &CheckoutService{
		store:    store,
		checkout: checkout,
		cfg:      cfg,
		logger:   logger.With("component", "checkout"),
		metrics:  recorder,
	}
}

// CreateCheckoutSession opens a session for the product at slug. buyer is nil
// for guests.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, slug string, buyer *model.Account) (*payments.CheckoutSession, error) {
	product, err := s.store.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			s.metrics.IncCheckoutSession("not_found")
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	if !product.Active {
		s.metrics.IncCheckoutSession("unavailable")
		return nil, ErrProductUnavailable
	}

	seller, err := s.store.GetAccountByID(ctx, product.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load seller: %w", err)
	}
	if !seller.HasPayee() {
		s.metrics.IncCheckoutSession("seller_not_payable")
		return nil, ErrSellerNotPayable
	}

	params := s.buildParams(product, seller, buyer)
	session, err := s.checkout.CreateCheckoutSession(ctx, params)
	if err != nil {
		s.metrics.IncCheckoutSession("error")
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	s.metrics.IncCheckoutSession("created")
	attrs := []any{"session_id", session.ID, "product_id", product.ID}
	if buyer != nil {
		attrs = append(attrs, "buyer_id", buyer.ID)
	}
	s.logger.Info("checkout_session_created", attrs...)
	return session, nil
}

func (s *CheckoutService) buildParams(product *model.Product, seller, buyer *model.Account) *payments.CheckoutSessionParams {
	image := product.CoverURL
	if image == "" {
		image = s.cfg.DefaultImage
	}
	var images []string
	if image != "" {
		images = []string{image}
	}

	params := &payments.CheckoutSessionParams{
		LineItems: []payments.LineItem{{
			Currency:   s.cfg.Currency,
			Name:       product.Name,
			Images:     images,
			UnitAmount: product.PriceInMinorUnits(),
			Quantity:   1,
		}},
		ApplicationFeeAmount: s.cfg.ApplicationFee,
		TransferDestination:  seller.PayeeID,
		SuccessURL:           joinURL(s.cfg.BaseURL, "/library"),
		CancelURL:            joinURL(s.cfg.BaseURL, "/p/"+product.Slug),
		Metadata:             map[string]string{MetadataProductID: product.ID},
	}

	if buyer != nil {
		if buyer.HasCustomerID() {
			params.Customer = buyer.CustomerID
		} else {
			params.CustomerEmail = buyer.Email
		}
	}
	return params
}
