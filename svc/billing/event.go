package billing

import "time"

// EventType represents the normalized billing event type. Each provider
// shape maps onto these; unknown provider events normalize to EventUnknown
// and are acknowledged without mutation.
type EventType string

const (
	EventCreated          EventType = "created"
	EventActivated        EventType = "activated"
	EventUpdated          EventType = "updated"
	EventCanceled         EventType = "canceled"
	EventPaused           EventType = "paused"
	EventResumed          EventType = "resumed"
	EventPastDue          EventType = "past_due"
	EventPaymentSucceeded EventType = "payment_succeeded"
	EventUnknown          EventType = "unknown"
)

// Event is the canonical, provider-shape-independent representation of a
// webhook notification. Normalizing the same raw payload twice yields the
// same Event.
type Event struct {
	Type          EventType
	ProviderEvent string // original provider event name
	OccurredAt    time.Time

	SubscriptionID string
	CustomerID     string
	UserID         string // from custom_data, fallback owner reference

	PriceID  string
	PlanType PlanType // resolved via the price-id catalog
	Status   Status

	NextBillAmount string
	Currency       string
	NextBillDate   *time.Time
	LastBillDate   *time.Time

	CancelAtPeriodEnd         bool
	ScheduledCancellationDate *time.Time
	CurrentPeriod             *Period

	Raw map[string]any
}
