package billing

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/promptforge-ai/promptforge/internal/api"
	"github.com/promptforge-ai/promptforge/internal/auth"
	"github.com/promptforge-ai/promptforge/internal/events"
)

const maxWebhookBody = 1 << 20

// Provider is the billing-provider surface the handler needs. Implemented by
// PaddleProvider; tests substitute a fake.
type Provider interface {
	CreateCheckoutLink(ctx context.Context, userID, email string) (string, error)
	ParseWebhook(r *http.Request, payload []byte) (*WebhookEvent, error)
}

// Handler provides HTTP handlers for the billing surface.
type Handler struct {
	svc       *Service
	provider  Provider
	publisher *events.Publisher
}

// NewHandler creates a new billing Handler. publisher may be nil.
func NewHandler(svc *Service, provider Provider, publisher *events.Publisher) *Handler {
	return &Handler{svc: svc, provider: provider, publisher: publisher}
}

// Checkout returns a hosted checkout URL for the pro plan.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	url, err := h.provider.CreateCheckoutLink(r.Context(), claims.UserID, claims.Email)
	if err != nil {
		slog.Error("creating checkout link", "error", err, "user_id", claims.UserID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, map[string]string{"url": url})
}

// Subscription returns the authenticated user's subscription row, if any.
func (h *Handler) Subscription(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	sub, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		slog.Error("fetching subscription", "error", err, "user_id", userID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}
	if sub == nil {
		api.HandleError(w, api.ErrNotFound)
		return
	}

	api.JSON(w, http.StatusOK, sub)
}

// Webhook ingests signed provider events and updates the subscription store.
// The provider retries on non-2xx, so transient storage errors return 500.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	event, err := h.provider.ParseWebhook(r, payload)
	if err != nil {
		slog.Warn("rejecting billing webhook", "error", err)
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	if event.Type == EventIgnored {
		api.JSONMessage(w, http.StatusOK, "ignored")
		return
	}

	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		slog.Warn("billing webhook without attributable user", "event_type", event.Type, "subscription_id", event.SubscriptionID)
		api.HandleError(w, api.ErrBadRequest)
		return
	}

	switch event.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		sub := &Subscription{
			UserID:                 userID,
			ProviderCustomerID:     event.CustomerID,
			ProviderSubscriptionID: event.SubscriptionID,
			PriceID:                event.PriceID,
			Status:                 event.Status,
			CurrentPeriodEnd:       event.CurrentPeriodEnd,
		}
		if err := h.svc.ApplySubscription(r.Context(), sub); err != nil {
			slog.Error("applying subscription webhook", "error", err, "user_id", userID)
			api.HandleError(w, api.ErrInternalServer)
			return
		}
	case EventSubscriptionCanceled:
		if err := h.svc.ApplyStatus(r.Context(), userID, event.SubscriptionID, StatusCanceled); err != nil {
			slog.Error("applying cancellation webhook", "error", err, "user_id", userID)
			api.HandleError(w, api.ErrInternalServer)
			return
		}
	}

	if h.publisher != nil {
		err := h.publisher.PublishSubscription(r.Context(), events.SubscriptionEvent{
			UserID:         userID,
			SubscriptionID: event.SubscriptionID,
			Status:         event.Status,
			EventType:      event.Type,
			Timestamp:      time.Now().UTC(),
		})
		if err != nil {
			slog.Warn("publishing subscription event", "error", err)
		}
	}

	api.JSONMessage(w, http.StatusOK, "processed")
}
