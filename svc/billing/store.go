package billing

import (
	"context"
	"time"
)

// SubscriptionStore defines subscription persistence. The provider-assigned
// subscription ID is the primary key; the guarded upsert is the sole
// mutation path for webhook-driven changes.
type SubscriptionStore interface {
	// Get retrieves a subscription by its provider-assigned ID.
	// Returns ErrSubscriptionNotFound if no record exists.
	Get(ctx context.Context, subscriptionID string) (*Subscription, error)

	// GetByUserID retrieves the most recently updated subscription owned by
	// a user. Returns ErrSubscriptionNotFound if none exists.
	GetByUserID(ctx context.Context, userID string) (*Subscription, error)

	// Upsert atomically creates or fully overwrites the record keyed by
	// sub.SubscriptionID, but only when sub.LastEventAt is newer than the
	// stored one. An older event returns ErrStaleEvent and mutates nothing.
	Upsert(ctx context.Context, sub *Subscription) error

	// ListExpired returns active records whose scheduled cancellation date
	// has passed without a terminal webhook arriving.
	ListExpired(ctx context.Context, now time.Time) ([]Subscription, error)

	// MarkCanceled force-transitions an expired record to canceled in one
	// atomic step. Returns ErrSubscriptionNotFound when the record no longer
	// matches (already canceled by a racing webhook).
	MarkCanceled(ctx context.Context, subscriptionID string, at time.Time) (*Subscription, error)
}

// EntitlementStore is the user-record surface the reconciler mutates.
// Implemented by the user service; only full-overwrite semantics, never
// read-modify-write deltas.
type EntitlementStore interface {
	// FindIDByCustomerID resolves the owning user by the provider's customer
	// ID. Returns ErrUserNotFound when no user carries that customer ID.
	FindIDByCustomerID(ctx context.Context, customerID string) (string, error)

	// Exists reports whether a user with the given ID is present. Used to
	// validate custom_data owner references before any subscription upsert,
	// so no orphan record is created for a bogus user ID.
	Exists(ctx context.Context, userID string) (bool, error)

	// SetEntitlement overwrites the user's plan tier, credit balance, and
	// billing references in a single atomic update.
	SetEntitlement(ctx context.Context, userID string, ent Entitlement) error
}
