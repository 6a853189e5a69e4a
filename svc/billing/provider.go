package billing

import (
	"context"
	"time"
)

// Provider defines the payment provider integration consumed by the service.
// The abstraction keeps the reconciler independent of the provider SDK;
// implementations handle signature schemes and payload quirks internally.
type Provider interface {
	// ParseWebhook verifies the raw payload against the signature header and
	// normalizes it into a canonical Event. Verification must run over the
	// raw bytes, never a re-serialized form.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error)

	// CreateCheckoutSession creates a hosted checkout transaction for the
	// given user and plan and returns the client-side handle.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// GetCustomerPortalLink creates a short-lived session for the provider's
	// hosted customer portal, where the subscriber cancels, resumes, or
	// updates the payment method for the given subscription.
	GetCustomerPortalLink(ctx context.Context, sub *Subscription) (*PortalLink, error)

	// ListTransactions returns the customer's billing transactions, newest
	// first, capped at limit.
	ListTransactions(ctx context.Context, customerID string, limit int) ([]Transaction, error)
}

// CheckoutRequest contains data needed to create a checkout session.
type CheckoutRequest struct {
	UserID     string
	Email      string
	CustomerID string // existing provider customer ID, empty on first purchase
	PlanType   PlanType
	SuccessURL string
}

// CheckoutSession represents a created hosted checkout.
type CheckoutSession struct {
	TransactionID string `json:"transactionId"`
	CustomerID    string `json:"customerId"`
	CheckoutURL   string `json:"checkoutUrl,omitempty"`
}

// PortalLink carries the hosted portal URLs for one subscription. The
// overview URL is always set; the action URLs are present when the provider
// returns subscription-specific deep links.
type PortalLink struct {
	URL              string    `json:"url"`
	CancelURL        string    `json:"cancelUrl,omitempty"`
	UpdatePaymentURL string    `json:"updatePaymentUrl,omitempty"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

// Transaction is one entry of a customer's billing history as reported by
// the provider. Amounts are strings in the currency's lowest denomination,
// passed through unconverted.
type Transaction struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	Amount        string     `json:"amount"`
	Currency      string     `json:"currency"`
	InvoiceNumber string     `json:"invoiceNumber,omitempty"`
	BilledAt      *time.Time `json:"billedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}
