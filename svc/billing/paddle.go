package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/versecraft/api/pkg/logger"
)

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleProvider implements Provider for Paddle. It owns webhook signature
// verification and the normalization of both historical payload shapes into
// the canonical Event.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	plans    *Plans
	env      string
	log      *slog.Logger
}

// NewPaddleProvider creates a Paddle billing provider. The client and
// verifier are constructed once here and injected wherever needed; no
// package-level state.
func NewPaddleProvider(cfg PaddleConfig, plans *Plans, log *slog.Logger) (*PaddleProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	var client *paddle.SDK
	var err error

	env := strings.ToLower(cfg.Environment)
	switch env {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		env = "production"
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvironment, cfg.Environment)
	}
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
		plans:    plans,
		env:      env,
		log:      log,
	}, nil
}

// envelope is the provider-shape-independent webhook wrapper.
type envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt string          `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// ParseWebhook verifies the raw payload bytes against the Paddle-Signature
// header and normalizes the body into a canonical Event. Verification always
// runs over the raw bytes; re-serialization would change byte content and
// break the HMAC.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Join(ErrSignatureInvalid, err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrSignatureInvalid, err)
	}
	if !valid {
		return nil, ErrSignatureInvalid
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}
	if env.EventType == "" || len(env.Data) == 0 {
		return nil, errors.Join(ErrMalformedPayload, errors.New("missing event_type or data"))
	}

	event := &Event{
		Type:          mapEventType(env.EventType),
		ProviderEvent: env.EventType,
		OccurredAt:    parseTime(env.OccurredAt),
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	// Shape is sniffed exactly once; everything downstream sees only the
	// canonical Event.
	switch detectShape(env.Data) {
	case shapeSnake:
		if err := p.normalizeSnake(env.Data, event); err != nil {
			return nil, errors.Join(ErrMalformedPayload, err)
		}
	case shapeCamel:
		if err := p.normalizeCamel(env.Data, event); err != nil {
			return nil, errors.Join(ErrMalformedPayload, err)
		}
	default:
		return nil, errors.Join(ErrMalformedPayload, errors.New("unrecognized payload shape"))
	}

	return event, nil
}

type payloadShape int

const (
	shapeUnknown payloadShape = iota
	shapeSnake
	shapeCamel
)

// detectShape distinguishes the current snake_case payloads from the legacy
// camelCase ones by their discriminating keys.
func detectShape(data json.RawMessage) payloadShape {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return shapeUnknown
	}

	for _, k := range []string{"custom_data", "customer_id", "scheduled_change", "next_billed_at", "subscription_id", "current_billing_period", "billed_at"} {
		if _, ok := keys[k]; ok {
			return shapeSnake
		}
	}
	for _, k := range []string{"customData", "customerId", "subscriptionId", "nextBillDate", "cancellationEffectiveDate"} {
		if _, ok := keys[k]; ok {
			return shapeCamel
		}
	}
	// Bare subscription objects ("id" + "status" + "items") are snake shape.
	if _, ok := keys["id"]; ok {
		if _, ok := keys["status"]; ok {
			return shapeSnake
		}
	}
	return shapeUnknown
}

// snakeData covers the current Paddle payload shape for both subscription
// and transaction events.
type snakeData struct {
	ID             string         `json:"id"`
	SubscriptionID string         `json:"subscription_id"` // set on transaction events
	CustomerID     string         `json:"customer_id"`
	Status         string         `json:"status"`
	CustomData     map[string]any `json:"custom_data"`
	Items          []struct {
		Price struct {
			ID        string `json:"id"`
			UnitPrice struct {
				Amount       string `json:"amount"`
				CurrencyCode string `json:"currency_code"`
			} `json:"unit_price"`
		} `json:"price"`
	} `json:"items"`
	NextBilledAt    string `json:"next_billed_at"`
	BilledAt        string `json:"billed_at"`
	ScheduledChange *struct {
		Action      string `json:"action"`
		EffectiveAt string `json:"effective_at"`
	} `json:"scheduled_change"`
	CurrentBillingPeriod *struct {
		StartsAt string `json:"starts_at"`
		EndsAt   string `json:"ends_at"`
	} `json:"current_billing_period"`
}

func (p *PaddleProvider) normalizeSnake(data json.RawMessage, event *Event) error {
	var d snakeData
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}

	event.SubscriptionID = d.ID
	if strings.HasPrefix(event.ProviderEvent, "transaction.") {
		// Transaction events reference their subscription separately. A
		// one-off purchase carries no subscription at all, and the
		// transaction's own id must never stand in for one.
		event.SubscriptionID = d.SubscriptionID
	} else if d.SubscriptionID != "" {
		event.SubscriptionID = d.SubscriptionID
	}
	event.CustomerID = d.CustomerID
	event.Status = mapStatus(d.Status)
	event.UserID = customDataString(d.CustomData, "userId")

	if len(d.Items) > 0 {
		event.PriceID = d.Items[0].Price.ID
		event.NextBillAmount = d.Items[0].Price.UnitPrice.Amount
		event.Currency = d.Items[0].Price.UnitPrice.CurrencyCode
	}
	event.PlanType = p.resolvePlan(event.PriceID, d.CustomData)

	event.NextBillDate = parseTimePtr(d.NextBilledAt)
	event.LastBillDate = parseTimePtr(d.BilledAt)

	if d.ScheduledChange != nil && d.ScheduledChange.Action == "cancel" {
		event.CancelAtPeriodEnd = true
		event.ScheduledCancellationDate = parseTimePtr(d.ScheduledChange.EffectiveAt)
	}

	if d.CurrentBillingPeriod != nil {
		event.CurrentPeriod = &Period{
			Start: parseTime(d.CurrentBillingPeriod.StartsAt),
			End:   parseTime(d.CurrentBillingPeriod.EndsAt),
		}
	}

	return decodeRaw(data, event)
}

// camelData covers the legacy payload shape observed from older provider
// API versions.
type camelData struct {
	SubscriptionID string         `json:"subscriptionId"`
	CustomerID     string         `json:"customerId"`
	Status         string         `json:"status"`
	CustomData     map[string]any `json:"customData"`
	Items          []struct {
		Price struct {
			ID        string `json:"id"`
			UnitPrice struct {
				Amount       string `json:"amount"`
				CurrencyCode string `json:"currencyCode"`
			} `json:"unitPrice"`
		} `json:"price"`
	} `json:"items"`
	NextBillAmount            string `json:"nextBillAmount"`
	NextBillDate              string `json:"nextBillDate"`
	LastBillDate              string `json:"lastBillDate"`
	CancellationEffectiveDate string `json:"cancellationEffectiveDate"`
	CurrentPeriodStart        string `json:"currentPeriodStart"`
	CurrentPeriodEnd          string `json:"currentPeriodEnd"`
}

func (p *PaddleProvider) normalizeCamel(data json.RawMessage, event *Event) error {
	var d camelData
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}

	event.SubscriptionID = d.SubscriptionID
	event.CustomerID = d.CustomerID
	event.Status = mapStatus(d.Status)
	event.UserID = customDataString(d.CustomData, "userId")

	if len(d.Items) > 0 {
		event.PriceID = d.Items[0].Price.ID
		if d.Items[0].Price.UnitPrice.Amount != "" {
			event.NextBillAmount = d.Items[0].Price.UnitPrice.Amount
			event.Currency = d.Items[0].Price.UnitPrice.CurrencyCode
		}
	}
	if d.NextBillAmount != "" {
		event.NextBillAmount = d.NextBillAmount
	}
	event.PlanType = p.resolvePlan(event.PriceID, d.CustomData)

	event.NextBillDate = parseTimePtr(d.NextBillDate)
	event.LastBillDate = parseTimePtr(d.LastBillDate)

	if d.CancellationEffectiveDate != "" {
		event.CancelAtPeriodEnd = true
		event.ScheduledCancellationDate = parseTimePtr(d.CancellationEffectiveDate)
	}

	if d.CurrentPeriodStart != "" && d.CurrentPeriodEnd != "" {
		event.CurrentPeriod = &Period{
			Start: parseTime(d.CurrentPeriodStart),
			End:   parseTime(d.CurrentPeriodEnd),
		}
	}

	return decodeRaw(data, event)
}

// resolvePlan maps the price ID through the catalog, falling back to the
// planType custom-data hint. An unrecognized price ID downgrades to free
// with a warning; it never fails the webhook.
func (p *PaddleProvider) resolvePlan(priceID string, customData map[string]any) PlanType {
	if priceID != "" {
		if pt, ok := p.plans.Resolve(priceID); ok {
			return pt
		}
	}
	if hint := PlanType(customDataString(customData, "planType")); hint.Valid() {
		return hint
	}
	if priceID != "" {
		p.log.Warn("unrecognized price id in webhook, defaulting to free plan",
			slog.String("price_id", priceID))
	}
	return PlanFree
}

// CreateCheckoutSession creates a hosted checkout transaction. The user ID
// and plan type travel in custom_data so the webhook can resolve the owner
// even before a billing customer record is linked locally.
func (p *PaddleProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	priceID, ok := p.plans.PriceID(req.PlanType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlanType, req.PlanType)
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  priceID,
		Quantity: 1,
	})

	txReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"userId":   req.UserID,
			"planType": string(req.PlanType),
		},
	}
	if req.SuccessURL != "" {
		txReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		}
	}

	tx, err := p.client.TransactionsClient.CreateTransaction(ctx, txReq)
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}
	if tx == nil {
		return nil, ErrNoCheckoutTransaction
	}

	session := &CheckoutSession{TransactionID: tx.ID}
	if tx.Checkout != nil && tx.Checkout.URL != nil {
		session.CheckoutURL = *tx.Checkout.URL
	}

	p.log.InfoContext(ctx, "checkout transaction created",
		logger.UserID(req.UserID),
		slog.String("transaction_id", tx.ID),
		slog.String("plan_type", string(req.PlanType)))

	return session, nil
}

// portalLinkTTL is how long Paddle keeps a customer portal session alive.
const portalLinkTTL = 24 * time.Hour

// GetCustomerPortalLink creates a hosted portal session for the subscription
// and picks out the cancel and update-payment deep links when Paddle returns
// them.
func (p *PaddleProvider) GetCustomerPortalLink(ctx context.Context, sub *Subscription) (*PortalLink, error) {
	if sub == nil || sub.SubscriptionID == "" {
		return nil, ErrSubscriptionNotFound
	}
	if sub.CustomerID == "" {
		return nil, errors.Join(ErrProviderError, errors.New("subscription has no billing customer"))
	}

	session, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, &paddle.CreateCustomerPortalSessionRequest{
		CustomerID:      sub.CustomerID,
		SubscriptionIDs: []string{sub.SubscriptionID},
	})
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}

	link := &PortalLink{
		URL:       session.URLs.General.Overview,
		ExpiresAt: time.Now().Add(portalLinkTTL),
	}
	for _, u := range session.URLs.Subscriptions {
		if u.ID != sub.SubscriptionID {
			continue
		}
		link.CancelURL = u.CancelSubscription
		link.UpdatePaymentURL = u.UpdateSubscriptionPaymentMethod
		break
	}
	if link.URL == "" {
		return nil, errors.Join(ErrProviderError, errors.New("no portal URL returned from provider"))
	}

	p.log.InfoContext(ctx, "customer portal session created",
		slog.String("subscription_id", sub.SubscriptionID),
		slog.String("customer_id", sub.CustomerID))
	return link, nil
}

// ListTransactions pages through the customer's transactions and returns
// them newest first, capped at limit.
func (p *PaddleProvider) ListTransactions(ctx context.Context, customerID string, limit int) ([]Transaction, error) {
	if customerID == "" {
		return []Transaction{}, nil
	}

	res, err := p.client.TransactionsClient.ListTransactions(ctx, &paddle.ListTransactionsRequest{
		CustomerID: []string{customerID},
	})
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}

	out := []Transaction{}
	err = res.Iter(ctx, func(tx *paddle.Transaction) (bool, error) {
		entry := Transaction{
			ID:        tx.ID,
			Status:    string(tx.Status),
			Amount:    tx.Details.Totals.Total,
			Currency:  string(tx.CurrencyCode),
			CreatedAt: parseTime(tx.CreatedAt),
		}
		if tx.InvoiceNumber != nil {
			entry.InvoiceNumber = *tx.InvoiceNumber
		}
		if tx.BilledAt != nil {
			entry.BilledAt = parseTimePtr(*tx.BilledAt)
		}
		out = append(out, entry)
		return len(out) < limit, nil
	})
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func mapEventType(providerEvent string) EventType {
	switch providerEvent {
	case "subscription.created":
		return EventCreated
	case "subscription.activated":
		return EventActivated
	case "subscription.updated":
		return EventUpdated
	case "subscription.canceled", "subscription.cancelled":
		return EventCanceled
	case "subscription.paused":
		return EventPaused
	case "subscription.resumed":
		return EventResumed
	case "subscription.past_due":
		return EventPastDue
	case "transaction.completed", "subscription.payment_succeeded":
		return EventPaymentSucceeded
	default:
		return EventUnknown
	}
}

func mapStatus(providerStatus string) Status {
	switch strings.ToLower(providerStatus) {
	case "active":
		return StatusActive
	case "trialing":
		return StatusTrialing
	case "paused":
		return StatusPaused
	case "canceled", "cancelled":
		return StatusCanceled
	case "past_due", "pastdue":
		return StatusPastDue
	default:
		return Status(strings.ToLower(providerStatus))
	}
}

func customDataString(customData map[string]any, key string) string {
	if customData == nil {
		return ""
	}
	s, _ := customData[key].(string)
	return s
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func parseTimePtr(s string) *time.Time {
	t := parseTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}

func decodeRaw(data json.RawMessage, event *Event) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	event.Raw = raw
	return nil
}
