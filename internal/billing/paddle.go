package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/promptforge-ai/promptforge/internal/config"
)

// WebhookEvent is the provider-neutral shape the handler works with.
type WebhookEvent struct {
	Type             string
	UserID           string
	CustomerID       string
	SubscriptionID   string
	PriceID          string
	Status           string
	CurrentPeriodEnd time.Time
}

// Webhook event types after normalization.
const (
	EventSubscriptionCreated  = "subscription_created"
	EventSubscriptionUpdated  = "subscription_updated"
	EventSubscriptionCanceled = "subscription_canceled"
	EventIgnored              = "ignored"
)

// PaddleProvider wraps the Paddle SDK for checkout links and webhook
// verification.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	cfg      config.BillingConfig
}

// NewPaddleProvider creates a new Paddle billing provider.
func NewPaddleProvider(cfg config.BillingConfig) (*PaddleProvider, error) {
	if cfg.PaddleAPIKey == "" {
		return nil, errors.New("paddle API key is required")
	}
	if cfg.PaddleWebhookSecret == "" {
		return nil, errors.New("paddle webhook secret is required")
	}

	var client *paddle.SDK
	var err error
	switch strings.ToLower(cfg.PaddleEnvironment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.PaddleAPIKey)
	case "production", "":
		client, err = paddle.New(cfg.PaddleAPIKey)
	default:
		return nil, fmt.Errorf("invalid paddle environment: %s", cfg.PaddleEnvironment)
	}
	if err != nil {
		return nil, fmt.Errorf("creating paddle client: %w", err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(cfg.PaddleWebhookSecret),
		cfg:      cfg,
	}, nil
}

// CreateCheckoutLink creates a hosted checkout session for the pro plan, with
// the user id carried in custom data so the webhook can attribute it.
func (p *PaddleProvider) CreateCheckoutLink(ctx context.Context, userID, email string) (string, error) {
	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  p.cfg.ProPriceID,
		Quantity: 1,
	})

	req := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"user_id": userID,
			"email":   email,
		},
	}
	if p.cfg.SuccessURL != "" {
		req.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(p.cfg.SuccessURL),
		}
	}

	txn, err := p.client.TransactionsClient.CreateTransaction(ctx, req)
	if err != nil {
		return "", fmt.Errorf("creating paddle transaction: %w", err)
	}
	if txn.Checkout == nil || txn.Checkout.URL == nil {
		return "", errors.New("no checkout URL returned from paddle")
	}
	return *txn.Checkout.URL, nil
}

// ParseWebhook verifies the request signature and normalizes the payload.
// Unverified requests are rejected outright.
func (p *PaddleProvider) ParseWebhook(r *http.Request, payload []byte) (*WebhookEvent, error) {
	// The verifier computes the HMAC over r.Body, which the handler has
	// already drained into payload; give it the same bytes back.
	r.Body = io.NopCloser(bytes.NewReader(payload))

	valid, err := p.verifier.Verify(r)
	if err != nil {
		return nil, fmt.Errorf("verifying webhook signature: %w", err)
	}
	if !valid {
		return nil, errors.New("webhook signature verification failed")
	}
	return parsePaddlePayload(payload)
}

func parsePaddlePayload(payload []byte) (*WebhookEvent, error) {
	var raw struct {
		EventType string `json:"event_type"`
		Data      struct {
			ID                   string `json:"id"`
			Status               string `json:"status"`
			CustomerID           string `json:"customer_id"`
			CurrentBillingPeriod *struct {
				EndsAt string `json:"ends_at"`
			} `json:"current_billing_period"`
			CustomData map[string]any `json:"custom_data"`
			Items      []struct {
				Price struct {
					ID string `json:"id"`
				} `json:"price"`
			} `json:"items"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("parsing webhook payload: %w", err)
	}

	event := &WebhookEvent{
		CustomerID:     raw.Data.CustomerID,
		SubscriptionID: raw.Data.ID,
		Status:         raw.Data.Status,
	}

	switch raw.EventType {
	case "subscription.created", "subscription.activated":
		event.Type = EventSubscriptionCreated
	case "subscription.updated", "subscription.resumed":
		event.Type = EventSubscriptionUpdated
	case "subscription.canceled", "subscription.paused", "subscription.past_due":
		event.Type = EventSubscriptionCanceled
	default:
		event.Type = EventIgnored
		return event, nil
	}

	if uid, ok := raw.Data.CustomData["user_id"].(string); ok {
		event.UserID = uid
	}
	if len(raw.Data.Items) > 0 {
		event.PriceID = raw.Data.Items[0].Price.ID
	}
	if raw.Data.CurrentBillingPeriod != nil && raw.Data.CurrentBillingPeriod.EndsAt != "" {
		end, err := time.Parse(time.RFC3339, raw.Data.CurrentBillingPeriod.EndsAt)
		if err != nil {
			return nil, fmt.Errorf("parsing billing period end: %w", err)
		}
		event.CurrentPeriodEnd = end
	}

	return event, nil
}
