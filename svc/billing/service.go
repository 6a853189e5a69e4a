package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/versecraft/api/pkg/logger"
)

// billingHistoryLimit caps how many provider transactions a history request
// returns.
const billingHistoryLimit = 50

// Service is the billing facade the HTTP layer talks to. It glues the
// provider, the reconciler and the stores together; all state transitions
// go through the reconciler so webhook handling stays the single source of
// truth for subscription state.
type Service struct {
	provider   Provider
	reconciler *Reconciler
	subs       SubscriptionStore
	plans      *Plans
	log        *slog.Logger
}

func NewService(provider Provider, reconciler *Reconciler, subs SubscriptionStore, plans *Plans, log *slog.Logger) *Service {
	if provider == nil {
		panic("billing: service requires a provider")
	}
	if reconciler == nil {
		panic("billing: service requires a reconciler")
	}
	if subs == nil {
		panic("billing: service requires a subscription store")
	}
	if plans == nil {
		panic("billing: service requires a plan catalog")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		provider:   provider,
		reconciler: reconciler,
		subs:       subs,
		plans:      plans,
		log:        log,
	}
}

// HandleWebhook verifies and applies a single provider delivery. The raw
// body bytes must be passed exactly as received; signature verification
// runs over them before anything is parsed.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		return err
	}
	return s.reconciler.Apply(ctx, ev)
}

// CreateCheckout creates a hosted checkout session for the requested plan.
func (s *Service) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if !req.PlanType.IsPaid() {
		return nil, fmt.Errorf("billing: checkout for plan %q: %w", req.PlanType, ErrUnknownPlanType)
	}

	// Reuse the provider customer from a previous subscription so repeat
	// purchases land on the same customer record.
	if req.CustomerID == "" && req.UserID != "" {
		if sub, err := s.subs.GetByUserID(ctx, req.UserID); err == nil {
			req.CustomerID = sub.CustomerID
		}
	}

	session, err := s.provider.CreateCheckoutSession(ctx, req)
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "checkout session created",
		slog.String("plan_type", string(req.PlanType)),
		logger.UserID(req.UserID))
	return session, nil
}

// CurrentSubscription returns the most recent subscription record for the
// user, or ErrSubscriptionNotFound when they never subscribed.
func (s *Service) CurrentSubscription(ctx context.Context, userID string) (*Subscription, error) {
	return s.subs.GetByUserID(ctx, userID)
}

// CustomerPortal returns hosted portal links for the user's current
// subscription. Cancel, resume, and payment-method changes all happen in the
// provider's portal; the resulting state comes back through the webhook.
func (s *Service) CustomerPortal(ctx context.Context, userID string) (*PortalLink, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.provider.GetCustomerPortalLink(ctx, sub)
}

// BillingHistory lists the user's provider transactions, newest first. Users
// who never checked out have no billing customer and get an empty history.
func (s *Service) BillingHistory(ctx context.Context, userID string) ([]Transaction, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return []Transaction{}, nil
		}
		return nil, err
	}
	if sub.CustomerID == "" {
		return []Transaction{}, nil
	}
	return s.provider.ListTransactions(ctx, sub.CustomerID, billingHistoryLimit)
}

// PlanDetail returns the catalog entry for a single plan.
func (s *Service) PlanDetail(pt PlanType) PlanDetails {
	return s.plans.Details(pt)
}

// PlanDetails exposes the public plan catalog for pricing pages.
func (s *Service) PlanDetails() []PlanDetails {
	return []PlanDetails{
		s.plans.Details(PlanFree),
		s.plans.Details(PlanMonthly),
		s.plans.Details(PlanYearly),
	}
}
