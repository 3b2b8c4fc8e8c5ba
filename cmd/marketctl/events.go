package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/shelfkit/shelfkit/internal/service"
	"github.com/shelfkit/shelfkit/internal/webhook"
)

// sampleEvent describes a checkout.session.completed event to fabricate.
type sampleEvent struct {
	EventID    string
	SessionID  string
	ProductID  string
	Email      string
	CustomerID string
	Created    time.Time
}

func (e sampleEvent) payload() ([]byte, error) {
	if e.ProductID == "" {
		return nil, fmt.Errorf("product id is required")
	}
	object := map[string]any{
		"id":       e.SessionID,
		"metadata": map[string]string{service.MetadataProductID: e.ProductID},
	}
	if e.CustomerID != "" {
		object["customer"] = e.CustomerID
	}
	if e.Email != "" {
		object["customer_details"] = map[string]string{"email": e.Email}
	}
	rawObject, err := json.Marshal(object)
	if err != nil {
		return nil, err
	}
	return json.Marshal(webhook.Event{
		ID:      e.EventID,
		Type:    webhook.EventCheckoutSessionCompleted,
		Created: e.Created.Unix(),
		Data:    webhook.EventData{Object: rawObject},
	})
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Send signed payment events to a running server",
	}
	cmd.AddCommand(eventsSendCmd())
	return cmd
}

func eventsSendCmd() *cobra.Command {
	var (
		target     string
		secret     string
		header     string
		eventID    string
		productID  string
		email      string
		customerID string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Sign and post a checkout.session.completed event",
		Long: `Build a checkout.session.completed event for a product, sign it with the
webhook secret and post it to the receiver. Re-sending with the same
--event-id exercises redelivery handling.

Examples:
  marketctl events send --product-id 01J... --email reader@example.com
  marketctl events send --product-id 01J... --customer cus_123 --event-id evt_fixed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				return fmt.Errorf("PAYMENTS_WEBHOOK_SECRET or --secret is required")
			}
			if eventID == "" {
				eventID = "evt_" + strings.ToLower(ulid.Make().String())
			}

			now := time.Now()
			payload, err := sampleEvent{
				EventID:    eventID,
				SessionID:  "cs_" + strings.ToLower(ulid.Make().String()),
				ProductID:  productID,
				Email:      email,
				CustomerID: customerID,
				Created:    now,
			}.payload()
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, target, bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(header, webhook.SignPayload(payload, secret, now))

			client := &http.Client{Timeout: timeout}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("post event: %w", err)
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %d %s\n", eventID, webhook.EventCheckoutSessionCompleted, resp.StatusCode, strings.TrimSpace(string(body)))
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("receiver answered %d", resp.StatusCode)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "url", "http://localhost:8080/webhooks/payments", "receiver URL")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("PAYMENTS_WEBHOOK_SECRET"), "webhook signing secret")
	cmd.Flags().StringVar(&header, "header", "Stripe-Signature", "signature header name")
	cmd.Flags().StringVar(&eventID, "event-id", "", "event id (random when empty)")
	cmd.Flags().StringVar(&productID, "product-id", "", "purchased product id")
	cmd.Flags().StringVar(&email, "email", "", "buyer email")
	cmd.Flags().StringVar(&customerID, "customer", "", "processor customer id")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	_ = cmd.MarkFlagRequired("product-id")

	return cmd
}
