package billing

import "time"

// PlanType identifies the billed plan behind a subscription.
type PlanType string

const (
	PlanFree    PlanType = "free"
	PlanMonthly PlanType = "monthly"
	PlanYearly  PlanType = "yearly"
)

// IsPaid reports whether the plan grants pro entitlement.
func (p PlanType) IsPaid() bool {
	return p == PlanMonthly || p == PlanYearly
}

// Valid reports whether the value is a known plan type.
func (p PlanType) Valid() bool {
	switch p {
	case PlanFree, PlanMonthly, PlanYearly:
		return true
	}
	return false
}

// Tier is the user-facing entitlement level derived from subscription state.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// UnlimitedCredits marks a credit balance with no usage cap.
const UnlimitedCredits = -1

// Status represents the lifecycle state of a subscription.
type Status string

const (
	StatusActive   Status = "active"
	StatusTrialing Status = "trialing"
	StatusPaused   Status = "paused"
	StatusCanceled Status = "canceled"
	StatusPastDue  Status = "past_due"
)

// GrantsAccess reports whether the status keeps the user's pro entitlement.
// Paused and past_due subscriptions retain access until explicitly canceled,
// since the provider may still resolve the payment issue.
func (s Status) GrantsAccess() bool {
	switch s {
	case StatusActive, StatusTrialing, StatusPaused, StatusPastDue:
		return true
	}
	return false
}

// Terminal reports whether no further webhook transition applies.
func (s Status) Terminal() bool {
	return s == StatusCanceled
}

// Period is a billing-cycle window.
type Period struct {
	Start time.Time `bson:"start" json:"start"`
	End   time.Time `bson:"end" json:"end"`
}

// Subscription is the local record of a provider subscription, keyed by the
// provider-assigned subscription ID. Records are never physically deleted;
// they are retained for billing-history queries.
type Subscription struct {
	SubscriptionID string   `bson:"subscription_id" json:"subscriptionId"`
	UserID         string   `bson:"user_id" json:"userId"`
	CustomerID     string   `bson:"customer_id" json:"customerId"`
	Status         Status   `bson:"status" json:"status"`
	PlanType       PlanType `bson:"plan_type" json:"planType"`

	// Billing schedule snapshot, advisory only. Entitlement is derived from
	// Status and PlanType, never from these fields.
	NextBillAmount string     `bson:"next_bill_amount,omitempty" json:"nextBillAmount,omitempty"`
	Currency       string     `bson:"currency,omitempty" json:"currency,omitempty"`
	NextBillDate   *time.Time `bson:"next_bill_date,omitempty" json:"nextBillDate,omitempty"`
	LastBillDate   *time.Time `bson:"last_bill_date,omitempty" json:"lastBillDate,omitempty"`

	CancelAtPeriodEnd         bool       `bson:"cancel_at_period_end" json:"cancelAtPeriodEnd"`
	ScheduledCancellationDate *time.Time `bson:"scheduled_cancellation_date,omitempty" json:"scheduledCancellationDate,omitempty"`
	CanceledAt                *time.Time `bson:"canceled_at,omitempty" json:"canceledAt,omitempty"`

	CurrentPeriod *Period `bson:"current_period,omitempty" json:"currentPeriod,omitempty"`

	// LastEventAt is the occurred-at timestamp of the most recently applied
	// provider event. The store's guarded upsert rejects older events, which
	// closes the out-of-order redelivery gap.
	LastEventAt time.Time `bson:"last_event_at" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Entitlement is the full-overwrite entitlement update applied to the owning
// user when subscription state changes.
type Entitlement struct {
	Tier           Tier
	PoemCredits    int
	CustomerID     string
	SubscriptionID string
}
