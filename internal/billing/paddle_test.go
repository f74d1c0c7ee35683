package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptforge-ai/promptforge/internal/config"
)

func TestParsePaddlePayload_SubscriptionCreated(t *testing.T) {
	payload := []byte(`{
		"event_type": "subscription.created",
		"data": {
			"id": "sub_01h04vsc0qhwtsbsxh3422wjs4",
			"status": "active",
			"customer_id": "ctm_01h04vsbtfzgcvvm8fgnab1k4y",
			"current_billing_period": {"ends_at": "2026-09-28T10:30:00Z"},
			"custom_data": {"user_id": "5a2f1c7e-9b3d-4e6f-8a1b-2c3d4e5f6a7b", "email": "dev@example.com"},
			"items": [{"price": {"id": "pri_01h04vsd3fgnab1k4ycvvm8tfz"}}]
		}
	}`)

	event, err := parsePaddlePayload(payload)
	require.NoError(t, err)
	assert.Equal(t, EventSubscriptionCreated, event.Type)
	assert.Equal(t, "5a2f1c7e-9b3d-4e6f-8a1b-2c3d4e5f6a7b", event.UserID)
	assert.Equal(t, "ctm_01h04vsbtfzgcvvm8fgnab1k4y", event.CustomerID)
	assert.Equal(t, "sub_01h04vsc0qhwtsbsxh3422wjs4", event.SubscriptionID)
	assert.Equal(t, "pri_01h04vsd3fgnab1k4ycvvm8tfz", event.PriceID)
	assert.Equal(t, "active", event.Status)
	assert.Equal(t, time.Date(2026, 9, 28, 10, 30, 0, 0, time.UTC), event.CurrentPeriodEnd)
}

func TestParsePaddlePayload_Canceled(t *testing.T) {
	payload := []byte(`{
		"event_type": "subscription.canceled",
		"data": {"id": "sub_abc", "status": "canceled"}
	}`)

	event, err := parsePaddlePayload(payload)
	require.NoError(t, err)
	assert.Equal(t, EventSubscriptionCanceled, event.Type)
	assert.Equal(t, "canceled", event.Status)
	assert.Empty(t, event.UserID)
}

func TestParsePaddlePayload_IgnoredEventType(t *testing.T) {
	payload := []byte(`{"event_type": "transaction.completed", "data": {"id": "txn_abc"}}`)

	event, err := parsePaddlePayload(payload)
	require.NoError(t, err)
	assert.Equal(t, EventIgnored, event.Type)
}

func TestParsePaddlePayload_MalformedJSON(t *testing.T) {
	_, err := parsePaddlePayload([]byte(`{"event_type": `))
	assert.Error(t, err)
}

const testWebhookSecret = "pdl_ntfset_test_secret"

// signPaddlePayload reproduces Paddle's signature scheme: HMAC-SHA256 over
// "<ts>:<body>", sent as "ts=<ts>;h1=<hex>".
func signPaddlePayload(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d:", ts)
	mac.Write(body)
	return fmt.Sprintf("ts=%d;h1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func testPaddleProvider(t *testing.T) *PaddleProvider {
	t.Helper()
	provider, err := NewPaddleProvider(config.BillingConfig{
		PaddleAPIKey:        "pdl_sdbx_apikey_test",
		PaddleWebhookSecret: testWebhookSecret,
		PaddleEnvironment:   "sandbox",
	})
	require.NoError(t, err)
	return provider
}

// The handler drains the body before handing the request to the provider, so
// verification must work against the already-consumed request.
func TestWebhook_SignedPayloadAccepted(t *testing.T) {
	userID := uuid.New()
	body := []byte(`{
		"event_type": "subscription.created",
		"data": {
			"id": "sub_signed",
			"status": "active",
			"customer_id": "ctm_signed",
			"current_billing_period": {"ends_at": "2026-09-28T10:30:00Z"},
			"custom_data": {"user_id": "` + userID.String() + `"},
			"items": [{"price": {"id": "pri_signed"}}]
		}
	}`)

	store := newFakeSubStore()
	h := testHandler(t, store, testPaddleProvider(t))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", strings.NewReader(string(body)))
	req.Header.Set("Paddle-Signature", signPaddlePayload(testWebhookSecret, time.Now().Unix(), body))
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	sub := store.subs[userID]
	require.NotNil(t, sub)
	assert.Equal(t, "sub_signed", sub.ProviderSubscriptionID)
	assert.Equal(t, StatusActive, sub.Status)
}

func TestWebhook_TamperedPayloadRejected(t *testing.T) {
	signed := []byte(`{"event_type":"subscription.created","data":{"id":"sub_a","status":"active"}}`)
	sent := []byte(`{"event_type":"subscription.created","data":{"id":"sub_b","status":"active"}}`)

	store := newFakeSubStore()
	h := testHandler(t, store, testPaddleProvider(t))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", strings.NewReader(string(sent)))
	req.Header.Set("Paddle-Signature", signPaddlePayload(testWebhookSecret, time.Now().Unix(), signed))
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.subs)
}

func TestWebhook_MissingSignatureRejected(t *testing.T) {
	store := newFakeSubStore()
	h := testHandler(t, store, testPaddleProvider(t))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing",
		strings.NewReader(`{"event_type":"subscription.created","data":{"id":"sub_a"}}`))
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParsePaddlePayload_BadPeriodEnd(t *testing.T) {
	payload := []byte(`{
		"event_type": "subscription.updated",
		"data": {"id": "sub_abc", "status": "active", "current_billing_period": {"ends_at": "tomorrow"}}
	}`)

	_, err := parsePaddlePayload(payload)
	assert.Error(t, err)
}
