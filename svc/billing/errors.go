package billing

import "errors"

var (
	// Normalization errors. These never reach the reconciler.
	ErrSignatureInvalid = errors.New("billing: webhook signature verification failed")
	ErrMalformedPayload = errors.New("billing: malformed webhook payload")

	// Referential inconsistency between the provider and the local store.
	ErrUserNotFound         = errors.New("billing: owning user not found")
	ErrSubscriptionNotFound = errors.New("billing: subscription not found")

	// ErrStaleEvent marks an event older than the last applied one for its
	// subscription. Dropped as a logged no-op, never surfaced to the provider.
	ErrStaleEvent = errors.New("billing: stale event for subscription")

	ErrSweepAlreadyRunning = errors.New("billing: expiry sweep already running")

	// Provider configuration and interaction errors.
	ErrMissingAPIKey         = errors.New("billing: provider API key is required")
	ErrMissingWebhookSecret  = errors.New("billing: provider webhook secret is required")
	ErrInvalidEnvironment    = errors.New("billing: invalid provider environment")
	ErrProviderError         = errors.New("billing: provider request failed")
	ErrNoCheckoutTransaction = errors.New("billing: no transaction returned from provider")
	ErrUnknownPlanType       = errors.New("billing: unknown plan type")
)
