package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/versecraft/api/pkg/logger"
)

// Reconciler folds normalized provider events into subscription state and
// keeps the owning user's entitlement consistent with it. Every event is
// applied as a full-record write guarded by the event timestamp, so replays
// and out-of-order deliveries converge on the same final state.
type Reconciler struct {
	subs  SubscriptionStore
	users EntitlementStore
	plans *Plans
	log   *slog.Logger
}

// NewReconciler panics on nil dependencies. They are wired once at startup
// and a nil store is a programming error, not a runtime condition.
func NewReconciler(subs SubscriptionStore, users EntitlementStore, plans *Plans, log *slog.Logger) *Reconciler {
	if subs == nil {
		panic("billing: reconciler requires a subscription store")
	}
	if users == nil {
		panic("billing: reconciler requires an entitlement store")
	}
	if plans == nil {
		panic("billing: reconciler requires a plan catalog")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{subs: subs, users: users, plans: plans, log: log}
}

// Apply dispatches a single normalized event to the state machine. Stale
// events (older than the stored record) are dropped as logged no-ops and
// return nil so the caller acknowledges the delivery.
func (r *Reconciler) Apply(ctx context.Context, ev *Event) error {
	if ev == nil {
		return fmt.Errorf("billing: apply nil event: %w", ErrMalformedPayload)
	}

	switch ev.Type {
	case EventCreated, EventActivated:
		return r.applyActivation(ctx, ev)
	case EventUpdated:
		return r.applyUpdate(ctx, ev)
	case EventCanceled:
		return r.applyCancellation(ctx, ev)
	case EventPaused, EventResumed, EventPastDue:
		return r.applyStatusChange(ctx, ev)
	case EventPaymentSucceeded:
		return r.applyPayment(ctx, ev)
	case EventUnknown:
		r.log.InfoContext(ctx, "ignoring unhandled billing event",
			slog.String("provider_event", ev.ProviderEvent))
		return nil
	default:
		r.log.InfoContext(ctx, "ignoring unhandled billing event",
			slog.String("provider_event", ev.ProviderEvent))
		return nil
	}
}

// applyActivation handles subscription.created and subscription.activated.
// The owner must resolve before anything is written: an event we cannot
// attribute to a user is rejected so the provider retries it later.
func (r *Reconciler) applyActivation(ctx context.Context, ev *Event) error {
	userID, err := r.resolveOwner(ctx, ev)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	sub := Subscription{
		SubscriptionID:            ev.SubscriptionID,
		UserID:                    userID,
		CustomerID:                ev.CustomerID,
		Status:                    StatusActive,
		PlanType:                  ev.PlanType,
		NextBillAmount:            ev.NextBillAmount,
		Currency:                  ev.Currency,
		NextBillDate:              ev.NextBillDate,
		LastBillDate:              ev.LastBillDate,
		CancelAtPeriodEnd:         ev.CancelAtPeriodEnd,
		ScheduledCancellationDate: ev.ScheduledCancellationDate,
		CurrentPeriod:             ev.CurrentPeriod,
		LastEventAt:               ev.OccurredAt,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if ev.Status != "" {
		sub.Status = ev.Status
	}

	if err := r.subs.Upsert(ctx, &sub); err != nil {
		if errors.Is(err, ErrStaleEvent) {
			r.logStale(ctx, ev)
			return nil
		}
		return fmt.Errorf("billing: upsert subscription %s: %w", ev.SubscriptionID, err)
	}

	// An unresolved price downgrades the plan to free during normalization;
	// in that case the record is kept for audit but the entitlement is left
	// untouched so a catalog gap never grants or revokes pro access.
	if !ev.PlanType.IsPaid() {
		r.log.WarnContext(ctx, "subscription activated without a paid plan, entitlement unchanged",
			slog.String("subscription_id", ev.SubscriptionID),
			logger.UserID(userID))
		return nil
	}

	ent := Entitlement{
		Tier:           TierPro,
		PoemCredits:    UnlimitedCredits,
		CustomerID:     ev.CustomerID,
		SubscriptionID: ev.SubscriptionID,
	}
	if err := r.users.SetEntitlement(ctx, userID, ent); err != nil {
		return fmt.Errorf("billing: set entitlement for %s: %w", userID, err)
	}

	r.log.InfoContext(ctx, "subscription activated",
		slog.String("subscription_id", ev.SubscriptionID),
		slog.String("plan_type", string(ev.PlanType)),
		logger.UserID(userID))
	return nil
}

// applyUpdate merges mutable fields from a subscription.updated event into
// the existing record. Entitlements never change here: plan upgrades and
// cancellations carry their own events.
func (r *Reconciler) applyUpdate(ctx context.Context, ev *Event) error {
	existing, err := r.subs.Get(ctx, ev.SubscriptionID)
	if err != nil {
		return err
	}
	if existing.Status.Terminal() {
		r.log.InfoContext(ctx, "ignoring update for canceled subscription",
			slog.String("subscription_id", ev.SubscriptionID))
		return nil
	}

	sub := *existing
	if ev.Status != "" {
		sub.Status = ev.Status
	}
	if ev.PlanType.IsPaid() {
		sub.PlanType = ev.PlanType
	}
	if ev.NextBillAmount != "" {
		sub.NextBillAmount = ev.NextBillAmount
	}
	if ev.Currency != "" {
		sub.Currency = ev.Currency
	}
	if ev.NextBillDate != nil {
		sub.NextBillDate = ev.NextBillDate
	}
	if ev.CurrentPeriod != nil {
		sub.CurrentPeriod = ev.CurrentPeriod
	}
	// Cancel scheduling is taken verbatim from the event: an update either
	// schedules a cancellation or clears one, and a stale local value must
	// not survive the merge.
	sub.CancelAtPeriodEnd = ev.CancelAtPeriodEnd
	sub.ScheduledCancellationDate = ev.ScheduledCancellationDate
	sub.LastEventAt = ev.OccurredAt

	if err := r.subs.Upsert(ctx, &sub); err != nil {
		if errors.Is(err, ErrStaleEvent) {
			r.logStale(ctx, ev)
			return nil
		}
		return fmt.Errorf("billing: upsert subscription %s: %w", ev.SubscriptionID, err)
	}

	r.log.InfoContext(ctx, "subscription updated",
		slog.String("subscription_id", ev.SubscriptionID),
		slog.String("status", string(sub.Status)),
		slog.Bool("cancel_at_period_end", sub.CancelAtPeriodEnd))
	return nil
}

// applyCancellation marks the subscription terminal and reverts the owner's
// entitlement to the free tier. A repeat delivery finds the record already
// terminal and does nothing, so the churn credit grant happens exactly once.
func (r *Reconciler) applyCancellation(ctx context.Context, ev *Event) error {
	existing, err := r.subs.Get(ctx, ev.SubscriptionID)
	if err != nil {
		return err
	}
	if existing.Status.Terminal() {
		r.log.InfoContext(ctx, "subscription already canceled",
			slog.String("subscription_id", ev.SubscriptionID))
		return nil
	}

	canceledAt := ev.OccurredAt
	if ev.ScheduledCancellationDate != nil {
		canceledAt = *ev.ScheduledCancellationDate
	}

	sub := *existing
	sub.Status = StatusCanceled
	sub.CancelAtPeriodEnd = false
	sub.ScheduledCancellationDate = nil
	sub.CanceledAt = &canceledAt
	sub.LastEventAt = ev.OccurredAt

	if err := r.subs.Upsert(ctx, &sub); err != nil {
		if errors.Is(err, ErrStaleEvent) {
			r.logStale(ctx, ev)
			return nil
		}
		return fmt.Errorf("billing: upsert subscription %s: %w", ev.SubscriptionID, err)
	}

	ent := Entitlement{
		Tier:        TierFree,
		PoemCredits: r.plans.Credits().FreeChurnCredits,
		CustomerID:  existing.CustomerID,
	}
	if err := r.users.SetEntitlement(ctx, existing.UserID, ent); err != nil {
		return fmt.Errorf("billing: revert entitlement for %s: %w", existing.UserID, err)
	}

	r.log.InfoContext(ctx, "subscription canceled",
		slog.String("subscription_id", ev.SubscriptionID),
		logger.UserID(existing.UserID))
	return nil
}

// applyStatusChange handles paused, resumed and past_due. Only the status
// moves; paused and past_due subscribers keep pro access until an explicit
// cancellation arrives.
func (r *Reconciler) applyStatusChange(ctx context.Context, ev *Event) error {
	existing, err := r.subs.Get(ctx, ev.SubscriptionID)
	if err != nil {
		return err
	}
	if existing.Status.Terminal() {
		r.log.InfoContext(ctx, "ignoring status change for canceled subscription",
			slog.String("subscription_id", ev.SubscriptionID))
		return nil
	}

	status := ev.Status
	if status == "" {
		switch ev.Type {
		case EventPaused:
			status = StatusPaused
		case EventResumed:
			status = StatusActive
		case EventPastDue:
			status = StatusPastDue
		}
	}

	sub := *existing
	sub.Status = status
	sub.LastEventAt = ev.OccurredAt

	if err := r.subs.Upsert(ctx, &sub); err != nil {
		if errors.Is(err, ErrStaleEvent) {
			r.logStale(ctx, ev)
			return nil
		}
		return fmt.Errorf("billing: upsert subscription %s: %w", ev.SubscriptionID, err)
	}

	r.log.InfoContext(ctx, "subscription status changed",
		slog.String("subscription_id", ev.SubscriptionID),
		slog.String("status", string(status)))
	return nil
}

// applyPayment records a successful charge. Payment confirmations can race
// ahead of activation; a missing record is rejected so the provider retries
// once the subscription exists.
func (r *Reconciler) applyPayment(ctx context.Context, ev *Event) error {
	// One-off purchases complete without a subscription. Rejecting them
	// would make the provider retry a delivery that can never resolve, so
	// they are acknowledged as a no-op.
	if ev.SubscriptionID == "" {
		r.log.InfoContext(ctx, "acknowledging payment event without a subscription reference",
			slog.String("provider_event", ev.ProviderEvent))
		return nil
	}

	existing, err := r.subs.Get(ctx, ev.SubscriptionID)
	if err != nil {
		return err
	}
	if existing.Status.Terminal() {
		r.log.InfoContext(ctx, "ignoring payment for canceled subscription",
			slog.String("subscription_id", ev.SubscriptionID))
		return nil
	}

	sub := *existing
	sub.Status = StatusActive
	if ev.LastBillDate != nil {
		sub.LastBillDate = ev.LastBillDate
	} else {
		t := ev.OccurredAt
		sub.LastBillDate = &t
	}
	if ev.NextBillDate != nil {
		sub.NextBillDate = ev.NextBillDate
	}
	sub.LastEventAt = ev.OccurredAt

	if err := r.subs.Upsert(ctx, &sub); err != nil {
		if errors.Is(err, ErrStaleEvent) {
			r.logStale(ctx, ev)
			return nil
		}
		return fmt.Errorf("billing: upsert subscription %s: %w", ev.SubscriptionID, err)
	}

	r.log.InfoContext(ctx, "subscription payment recorded",
		slog.String("subscription_id", ev.SubscriptionID))
	return nil
}

// resolveOwner maps the event to a user ID. The provider's customer ID is
// authoritative; the custom_data user ID planted at checkout is the
// fallback and is validated before use so no orphan record is written.
func (r *Reconciler) resolveOwner(ctx context.Context, ev *Event) (string, error) {
	if ev.CustomerID != "" {
		userID, err := r.users.FindIDByCustomerID(ctx, ev.CustomerID)
		if err == nil {
			return userID, nil
		}
		if !errors.Is(err, ErrUserNotFound) {
			return "", fmt.Errorf("billing: resolve customer %s: %w", ev.CustomerID, err)
		}
	}

	if ev.UserID != "" {
		ok, err := r.users.Exists(ctx, ev.UserID)
		if err != nil {
			return "", fmt.Errorf("billing: validate user %s: %w", ev.UserID, err)
		}
		if ok {
			return ev.UserID, nil
		}
	}

	return "", fmt.Errorf("billing: no owner for subscription %s: %w", ev.SubscriptionID, ErrUserNotFound)
}

func (r *Reconciler) logStale(ctx context.Context, ev *Event) {
	r.log.InfoContext(ctx, "dropping stale billing event",
		slog.String("subscription_id", ev.SubscriptionID),
		slog.String("provider_event", ev.ProviderEvent),
		slog.Time("occurred_at", ev.OccurredAt))
}
