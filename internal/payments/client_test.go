package payments

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method      string
	path        string
	auth        string
	idempotency string
	form        url.Values
}

func newTestServer(t *testing.T, status int, body string, opts ...Option) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.auth = r.Header.Get("Authorization")
		rec.idempotency = r.Header.Get("Idempotency-Key")
		raw, _ := io.ReadAll(r.Body)
		rec.form, _ = url.ParseQuery(string(raw))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	opts = append([]Option{WithBaseURL(srv.URL + "/")}, opts...)
	return NewClient("sk_test_123", opts...), rec
}

func TestCreateCheckoutSession_BuyerWithCustomerID(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"id":"cs_1","object":"checkout.session","url":"https://pay.example/cs_1"}`)

	session, err := c.CreateCheckoutSession(context.Background(), &CheckoutSessionParams{
		Customer:      "cus_1",
		CustomerEmail: "ignored@example.com",
		LineItems: []LineItem{{
			Currency:   "usd",
			Name:       "Ebook",
			Images:     []string{"https://img.example/cover.png"},
			UnitAmount: 1250,
			Quantity:   1,
		}},
		ApplicationFeeAmount: 1000,
		TransferDestination:  "acct_seller",
		SuccessURL:           "https://shop.example/checkout/success",
		CancelURL:            "https://shop.example/discover",
		Metadata:             map[string]string{"product_id": "prod_1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, "https://pay.example/cs_1", session.URL)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/v1/checkout/sessions", rec.path)
	assert.Equal(t, "Bearer sk_test_123", rec.auth)
	assert.NotEmpty(t, rec.idempotency, "writes carry an idempotency key")

	f := rec.form
	assert.Equal(t, "cus_1", f.Get("customer"))
	assert.Empty(t, f.Get("customer_email"), "customer wins over customer_email")
	assert.Equal(t, "payment", f.Get("mode"))
	assert.Equal(t, "card", f.Get("payment_method_types[0]"))
	assert.Equal(t, "usd", f.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "Ebook", f.Get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "https://img.example/cover.png", f.Get("line_items[0][price_data][product_data][images][0]"))
	assert.Equal(t, "1250", f.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "1", f.Get("line_items[0][quantity]"))
	assert.Equal(t, "1000", f.Get("payment_intent_data[application_fee_amount]"))
	assert.Equal(t, "acct_seller", f.Get("payment_intent_data[transfer_data][destination]"))
	assert.Equal(t, "prod_1", f.Get("metadata[product_id]"))
	assert.Equal(t, "https://shop.example/checkout/success", f.Get("success_url"))
}

func TestCreateCheckoutSession_GuestHasNoCustomer(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"id":"cs_2","url":"https://pay.example/cs_2"}`)

	_, err := c.CreateCheckoutSession(context.Background(), &CheckoutSessionParams{SuccessURL: "s", CancelURL: "c"})
	require.NoError(t, err)

	_, hasCustomer := rec.form["customer"]
	_, hasEmail := rec.form["customer_email"]
	_, hasIntent := rec.form["payment_intent_data[application_fee_amount]"]
	assert.False(t, hasCustomer)
	assert.False(t, hasEmail)
	assert.False(t, hasIntent)
}

func TestCreateCheckoutSession_EmailOnly(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"id":"cs_3"}`)

	_, err := c.CreateCheckoutSession(context.Background(), &CheckoutSessionParams{CustomerEmail: "b@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "b@example.com", rec.form.Get("customer_email"))
	assert.Empty(t, rec.form.Get("customer"))
}

func TestCreateAccount(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"id":"acct_1","object":"account","type":"express","details_submitted":false}`)

	acct, err := c.CreateAccount(context.Background(), AccountTypeExpress, "seller@example.com")
	require.NoError(t, err)
	assert.Equal(t, "acct_1", acct.ID)
	assert.Equal(t, AccountTypeExpress, acct.Type)
	assert.Equal(t, "/v1/accounts", rec.path)
	assert.Equal(t, "express", rec.form.Get("type"))
	assert.Equal(t, "seller@example.com", rec.form.Get("email"))
}

func TestGetAccount(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"id":"acct_1","object":"account","details_submitted":true,"charges_enabled":true}`)

	acct, err := c.GetAccount(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.True(t, acct.DetailsSubmitted)
	assert.True(t, acct.ChargesEnabled)
	assert.False(t, acct.PayoutsEnabled)
	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/v1/accounts/acct_1", rec.path)
}

func TestCreateAccountLink_DefaultsToOnboarding(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"object":"account_link","url":"https://connect.example/setup","expires_at":1700000000}`)

	link, err := c.CreateAccountLink(context.Background(), AccountLinkParams{
		Account:    "acct_1",
		RefreshURL: "https://shop.example/refresh",
		ReturnURL:  "https://shop.example/library",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://connect.example/setup", link.URL)
	assert.Equal(t, int64(1700000000), link.ExpiresAt)
	assert.Equal(t, "/v1/account_links", rec.path)
	assert.Equal(t, AccountLinkOnboarding, rec.form.Get("type"))
	assert.Equal(t, "acct_1", rec.form.Get("account"))
}

func TestClient_MapsAPIError(t *testing.T) {
	c, _ := newTestServer(t, http.StatusNotFound,
		`{"error":{"type":"invalid_request_error","code":"resource_missing","param":"account","message":"No such account"}}`)

	_, err := c.GetAccount(context.Background(), "acct_missing")
	require.Error(t, err)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusNotFound, perr.HTTPStatus)
	assert.Equal(t, "invalid_request_error", perr.Type)
	assert.Equal(t, "resource_missing", perr.Code)
	assert.Equal(t, "account", perr.Param)
	assert.Equal(t, "No such account", perr.Message)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "status 404")
}

func TestClient_NonJSONError(t *testing.T) {
	c, _ := newTestServer(t, http.StatusBadGateway, `<html>bad gateway</html>`)

	_, err := c.CreateAccount(context.Background(), AccountTypeExpress, "")
	require.Error(t, err)

	var perr *Error
	assert.False(t, errors.As(err, &perr))
	assert.False(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "payments: create account")
}

func TestClient_NoRetriesByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"try again"}}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient("sk_test_123", WithBaseURL(srv.URL))
	_, err := c.CreateCheckoutSession(context.Background(), &CheckoutSessionParams{SuccessURL: "s", CancelURL: "c"})

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusServiceUnavailable, perr.HTTPStatus)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_OptInRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	keys := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys <- r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"try again"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"cs_retry","url":"https://pay.example/cs_retry"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient("sk_test_123", WithBaseURL(srv.URL), WithMaxNetworkRetries(1))
	session, err := c.CreateCheckoutSession(context.Background(), &CheckoutSessionParams{SuccessURL: "s", CancelURL: "c"})
	require.NoError(t, err)
	assert.Equal(t, "cs_retry", session.ID)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, <-keys, <-keys, "retry reuses the idempotency key")
}

func TestClient_HonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	c := NewClient("sk_test_123", WithBaseURL(srv.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.GetAccount(ctx, "acct_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_LogsThroughSlog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c, _ := newTestServer(t, http.StatusOK, `{"id":"acct_1"}`, WithLogger(logger))
	_, err := c.GetAccount(context.Background(), "acct_1")
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "component=payments.sdk")
}

func TestClient_NotConfigured(t *testing.T) {
	c := NewClient("")

	_, err := c.GetAccount(context.Background(), "acct_1")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.CreateCheckoutSession(context.Background(), &CheckoutSessionParams{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
