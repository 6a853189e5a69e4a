package billing_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versecraft/api/svc/billing"
)

const testWebhookSecret = "pdl_ntfset_test_secret"

// signPayload produces a Paddle-Signature header over the raw body, the
// same scheme the provider uses: hex HMAC-SHA256 of "<ts>:<body>".
func signPayload(t *testing.T, secret string, body []byte) string {
	t.Helper()

	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + ":"))
	mac.Write(body)
	return fmt.Sprintf("ts=%s;h1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func newPaddleProvider(t *testing.T) *billing.PaddleProvider {
	t.Helper()

	p, err := billing.NewPaddleProvider(billing.PaddleConfig{
		APIKey:        "pdl_sdbx_apikey_test",
		WebhookSecret: testWebhookSecret,
		Environment:   "sandbox",
	}, newTestPlans(), testLogger())
	require.NoError(t, err)
	return p
}

func TestNewPaddleProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     billing.PaddleConfig
		wantErr error
	}{
		{
			name:    "missing api key",
			cfg:     billing.PaddleConfig{WebhookSecret: "s"},
			wantErr: billing.ErrMissingAPIKey,
		},
		{
			name:    "missing webhook secret",
			cfg:     billing.PaddleConfig{APIKey: "k"},
			wantErr: billing.ErrMissingWebhookSecret,
		},
		{
			name:    "invalid environment",
			cfg:     billing.PaddleConfig{APIKey: "k", WebhookSecret: "s", Environment: "staging"},
			wantErr: billing.ErrInvalidEnvironment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := billing.NewPaddleProvider(tt.cfg, newTestPlans(), testLogger())
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseWebhookSignature(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event_id":"evt_1","event_type":"subscription.activated","occurred_at":"2025-06-01T12:00:00Z","data":{"id":"sub_1","customer_id":"ctm_1","status":"active"}}`)

	t.Run("accepts a correctly signed payload", func(t *testing.T) {
		t.Parallel()

		p := newPaddleProvider(t)
		ev, err := p.ParseWebhook(context.Background(), body, signPayload(t, testWebhookSecret, body))
		require.NoError(t, err)
		assert.Equal(t, billing.EventActivated, ev.Type)
	})

	t.Run("rejects a signature from the wrong secret", func(t *testing.T) {
		t.Parallel()

		p := newPaddleProvider(t)
		_, err := p.ParseWebhook(context.Background(), body, signPayload(t, "other_secret", body))
		require.ErrorIs(t, err, billing.ErrSignatureInvalid)
	})

	t.Run("rejects a payload altered after signing", func(t *testing.T) {
		t.Parallel()

		p := newPaddleProvider(t)
		sig := signPayload(t, testWebhookSecret, body)

		tampered := make([]byte, len(body))
		copy(tampered, body)
		tampered[len(tampered)-3] ^= 0x01

		_, err := p.ParseWebhook(context.Background(), tampered, sig)
		require.ErrorIs(t, err, billing.ErrSignatureInvalid)
	})

	t.Run("rejects a missing signature header", func(t *testing.T) {
		t.Parallel()

		p := newPaddleProvider(t)
		_, err := p.ParseWebhook(context.Background(), body, "")
		require.ErrorIs(t, err, billing.ErrSignatureInvalid)
	})

	t.Run("rejects malformed json with a valid signature", func(t *testing.T) {
		t.Parallel()

		p := newPaddleProvider(t)
		garbage := []byte(`{"event_type": "subscription.activated", "data": `)
		_, err := p.ParseWebhook(context.Background(), garbage, signPayload(t, testWebhookSecret, garbage))
		require.ErrorIs(t, err, billing.ErrMalformedPayload)
	})
}

func TestParseWebhookSnakeShape(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"event_id": "evt_2",
		"event_type": "subscription.activated",
		"occurred_at": "2025-06-01T12:00:00Z",
		"data": {
			"id": "sub_42",
			"customer_id": "ctm_42",
			"status": "active",
			"custom_data": {"userId": "u42", "planType": "monthly"},
			"items": [{"price": {"id": "pri_monthly", "unit_price": {"amount": "700", "currency_code": "USD"}}}],
			"next_billed_at": "2025-07-01T12:00:00Z",
			"current_billing_period": {"starts_at": "2025-06-01T12:00:00Z", "ends_at": "2025-07-01T12:00:00Z"}
		}
	}`)

	p := newPaddleProvider(t)
	ev, err := p.ParseWebhook(context.Background(), body, signPayload(t, testWebhookSecret, body))
	require.NoError(t, err)

	assert.Equal(t, billing.EventActivated, ev.Type)
	assert.Equal(t, "subscription.activated", ev.ProviderEvent)
	assert.Equal(t, "sub_42", ev.SubscriptionID)
	assert.Equal(t, "ctm_42", ev.CustomerID)
	assert.Equal(t, "u42", ev.UserID)
	assert.Equal(t, billing.PlanMonthly, ev.PlanType)
	assert.Equal(t, billing.StatusActive, ev.Status)
	assert.Equal(t, "700", ev.NextBillAmount)
	assert.Equal(t, "USD", ev.Currency)
	require.NotNil(t, ev.NextBillDate)
	assert.Equal(t, time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC), ev.NextBillDate.UTC())
	require.NotNil(t, ev.CurrentPeriod)
	assert.False(t, ev.CancelAtPeriodEnd)
}

func TestParseWebhookCamelShape(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"event_id": "evt_3",
		"event_type": "subscription.activated",
		"occurred_at": "2025-06-01T12:00:00Z",
		"data": {
			"subscriptionId": "sub_42",
			"customerId": "ctm_42",
			"status": "active",
			"customData": {"userId": "u42"},
			"items": [{"price": {"id": "pri_monthly", "unitPrice": {"amount": "700", "currencyCode": "USD"}}}],
			"nextBillDate": "2025-07-01T12:00:00Z"
		}
	}`)

	p := newPaddleProvider(t)
	ev, err := p.ParseWebhook(context.Background(), body, signPayload(t, testWebhookSecret, body))
	require.NoError(t, err)

	// Both shapes normalize to the same canonical event.
	assert.Equal(t, billing.EventActivated, ev.Type)
	assert.Equal(t, "sub_42", ev.SubscriptionID)
	assert.Equal(t, "ctm_42", ev.CustomerID)
	assert.Equal(t, "u42", ev.UserID)
	assert.Equal(t, billing.PlanMonthly, ev.PlanType)
	assert.Equal(t, "700", ev.NextBillAmount)
	assert.Equal(t, "USD", ev.Currency)
	require.NotNil(t, ev.NextBillDate)
	assert.Equal(t, time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC), ev.NextBillDate.UTC())
}

func TestParseWebhookScheduledCancellation(t *testing.T) {
	t.Parallel()

	t.Run("snake scheduled_change", func(t *testing.T) {
		t.Parallel()

		body := []byte(`{
			"event_type": "subscription.updated",
			"occurred_at": "2025-06-15T12:00:00Z",
			"data": {
				"id": "sub_42",
				"customer_id": "ctm_42",
				"status": "active",
				"scheduled_change": {"action": "cancel", "effective_at": "2025-07-01T12:00:00Z"}
			}
		}`)

		p := newPaddleProvider(t)
		ev, err := p.ParseWebhook(context.Background(), body, signPayload(t, testWebhookSecret, body))
		require.NoError(t, err)

		assert.Equal(t, billing.EventUpdated, ev.Type)
		assert.True(t, ev.CancelAtPeriodEnd)
		require.NotNil(t, ev.ScheduledCancellationDate)
		assert.Equal(t, time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC), ev.ScheduledCancellationDate.UTC())
	})

	t.Run("snake scheduled_change pause is not a cancellation", func(t *testing.T) {
		t.Parallel()

		body := []byte(`{
			"event_type": "subscription.updated",
			"occurred_at": "2025-06-15T12:00:00Z",
			"data": {
				"id": "sub_42",
				"status": "active",
				"scheduled_change": {"action": "pause", "effective_at": "2025-07-01T12:00:00Z"}
			}
		}`)

		p := newPaddleProvider(t)
		ev, err := p.ParseWebhook(context.Background(), body, signPayload(t, testWebhookSecret, body))
		require.NoError(t, err)
		assert.False(t, ev.CancelAtPeriodEnd)
		assert.Nil(t, ev.ScheduledCancellationDate)
	})

	t.Run("camel cancellationEffectiveDate", func(t *testing.T) {
		t.Parallel()

		body := []byte(`{
			"event_type": "subscription.updated",
			"occurred_at": "2025-06-15T12:00:00Z",
			"data": {
				"subscriptionId": "sub_42",
				"status": "active",
				"cancellationEffectiveDate": "2025-07-01T12:00:00Z"
			}
		}`)

		p := newPaddleProvider(t)
		ev, err := p.ParseWebhook(context.Background(), body, signPayload(t, testWebhookSecret, body))
		require.NoError(t, err)
		assert.True(t, ev.CancelAtPeriodEnd)
		require.NotNil(t, ev.ScheduledCancellationDate)
	})
}

func TestParseWebhookTransactionCompleted(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"event_type": "transaction.completed",
		"occurred_at": "2025-06-01T12:00:00Z",
		"data": {
			"id": "txn_9",
			"subscription_id": "sub_42",
			"customer_id": "ctm_42",
			"status": "completed",
			"billed_at": "2025-06-01T11:59:00Z",
			"items": [{"price": {"id": "pri_monthly", "unit_price": {"amount": "700", "currency_code": "USD"}}}]
		}
	}`)

	p := newPaddleProvider(t)
	ev, err := p.ParseWebhook(context.Background(), body, signPayload(t, testWebhookSecret, body))
	require.NoError(t, err)

	assert.Equal(t, billing.EventPaymentSucceeded, ev.Type)
	// Transaction payloads reference the subscription indirectly.
	assert.Equal(t, "sub_42", ev.SubscriptionID)
	require.NotNil(t, ev.LastBillDate)
	assert.Equal(t, time.Date(2025, 6, 1, 11, 59, 0, 0, time.UTC), ev.LastBillDate.UTC())
}

func TestParseWebhookOneOffTransaction(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"event_type": "transaction.completed",
		"occurred_at": "2025-06-01T12:00:00Z",
		"data": {
			"id": "txn_oneoff",
			"customer_id": "ctm_42",
			"status": "completed",
			"billed_at": "2025-06-01T11:59:00Z"
		}
	}`)

	p := newPaddleProvider(t)
	ev, err := p.ParseWebhook(context.Background(), body, signPayload(t, testWebhookSecret, body))
	require.NoError(t, err)

	assert.Equal(t, billing.EventPaymentSucceeded, ev.Type)
	// The transaction's own id must not be mistaken for a subscription id.
	assert.Empty(t, ev.SubscriptionID)
}

func TestParseWebhookPlanResolution(t *testing.T) {
	t.Parallel()

	t.Run("unknown price id defaults to free", func(t *testing.T) {
		t.Parallel()

		body := []byte(`{
			"event_type": "subscription.activated",
			"occurred_at": "2025-06-01T12:00:00Z",
			"data": {
				"id": "sub_42",
				"customer_id": "ctm_42",
				"status": "active",
				"items": [{"price": {"id": "pri_retired", "unit_price": {"amount": "500", "currency_code": "USD"}}}]
			}
		}`)

		p := newPaddleProvider(t)
		ev, err := p.ParseWebhook(context.Background(), body, signPayload(t, testWebhookSecret, body))
		require.NoError(t, err)
		assert.Equal(t, billing.PlanFree, ev.PlanType)
	})

	t.Run("custom data plan hint fills a catalog gap", func(t *testing.T) {
		t.Parallel()

		body := []byte(`{
			"event_type": "subscription.activated",
			"occurred_at": "2025-06-01T12:00:00Z",
			"data": {
				"id": "sub_42",
				"customer_id": "ctm_42",
				"status": "active",
				"custom_data": {"userId": "u42", "planType": "yearly"},
				"items": [{"price": {"id": "pri_retired", "unit_price": {"amount": "4700", "currency_code": "USD"}}}]
			}
		}`)

		p := newPaddleProvider(t)
		ev, err := p.ParseWebhook(context.Background(), body, signPayload(t, testWebhookSecret, body))
		require.NoError(t, err)
		assert.Equal(t, billing.PlanYearly, ev.PlanType)
	})
}

func TestParseWebhookUnknownEvent(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"event_type": "adjustment.created",
		"occurred_at": "2025-06-01T12:00:00Z",
		"data": {"id": "adj_1", "customer_id": "ctm_1", "status": "approved"}
	}`)

	p := newPaddleProvider(t)
	ev, err := p.ParseWebhook(context.Background(), body, signPayload(t, testWebhookSecret, body))
	require.NoError(t, err)
	assert.Equal(t, billing.EventUnknown, ev.Type)
	assert.Equal(t, "adjustment.created", ev.ProviderEvent)
}
