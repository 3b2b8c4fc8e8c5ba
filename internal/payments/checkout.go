package payments

import (
	"context"

	"github.com/stripe/stripe-go/v76"
)

// LineItem is one priced line of a checkout session.
type LineItem struct {
	Currency   string
	Name       string
	Images     []string
	UnitAmount int64
	Quantity   int64
}

// CheckoutSessionParams describes a hosted checkout page.
// At most one of Customer and CustomerEmail should be set.
type CheckoutSessionParams struct {
	Customer             string
	CustomerEmail        string
	LineItems            []LineItem
	ApplicationFeeAmount int64
	TransferDestination  string
	SuccessURL           string
	CancelURL            string
	Metadata             map[string]string
}

// CheckoutSession is the created session.
type CheckoutSession struct {
	ID  string
	URL string
}

// sdkParams converts p for the SDK. Customer wins over CustomerEmail.
func (p *CheckoutSessionParams) sdkParams(ctx context.Context) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(p.SuccessURL),
		CancelURL:          stripe.String(p.CancelURL),
	}
	params.Context = ctx

	if p.Customer != "" {
		params.Customer = stripe.String(p.Customer)
	} else if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}

	for _, item := range p.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if len(item.Images) > 0 {
			product.Images = stripe.StringSlice(item.Images)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(item.Currency),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: product,
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	if p.ApplicationFeeAmount > 0 || p.TransferDestination != "" {
		intent := &stripe.CheckoutSessionPaymentIntentDataParams{}
		if p.ApplicationFeeAmount > 0 {
			intent.ApplicationFeeAmount = stripe.Int64(p.ApplicationFeeAmount)
		}
		if p.TransferDestination != "" {
			intent.TransferData = &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(p.TransferDestination),
			}
		}
		params.PaymentIntentData = intent
	}

	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	return params
}

// CreateCheckoutSession creates a hosted checkout session.
func (c *Client) CreateCheckoutSession(ctx context.Context, params *CheckoutSessionParams) (*CheckoutSession, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	session, err := c.api.CheckoutSessions.New(params.sdkParams(ctx))
	if err != nil {
		return nil, wrapError("create checkout session", err)
	}
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}
