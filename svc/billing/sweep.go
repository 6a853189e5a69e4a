package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

const (
	defaultSweepInterval = time.Hour
	sweepRecordTimeout   = 5 * time.Second
)

// Sweeper finalizes subscriptions whose scheduled cancellation date has
// passed without the provider delivering a terminal event. It is the
// backstop for missed webhooks: the reconciler remains the primary path and
// always wins races against the sweep.
type Sweeper struct {
	subs     SubscriptionStore
	users    EntitlementStore
	plans    *Plans
	log      *slog.Logger
	interval time.Duration
	running  atomic.Bool
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval overrides the pause between scheduled runs.
// Panics on non-positive values.
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d <= 0 {
			panic("billing: sweep interval must be positive")
		}
		s.interval = d
	}
}

func NewSweeper(subs SubscriptionStore, users EntitlementStore, plans *Plans, log *slog.Logger, opts ...SweeperOption) *Sweeper {
	if subs == nil {
		panic("billing: sweeper requires a subscription store")
	}
	if users == nil {
		panic("billing: sweeper requires an entitlement store")
	}
	if plans == nil {
		panic("billing: sweeper requires a plan catalog")
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Sweeper{
		subs:     subs,
		users:    users,
		plans:    plans,
		log:      log,
		interval: defaultSweepInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs a sweep immediately and then on every tick until the context
// is canceled. Intended to be launched as a goroutine from main.
func (s *Sweeper) Start(ctx context.Context) {
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.ErrorContext(ctx, "subscription sweep failed", slog.Any("error", err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.ErrorContext(ctx, "subscription sweep failed", slog.Any("error", err))
			}
		}
	}
}

// Run executes a single sweep pass. Only one pass may be in flight at a
// time; a second caller gets ErrSweepAlreadyRunning. One failing record
// never aborts the pass, it is logged and the sweep moves on.
func (s *Sweeper) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrSweepAlreadyRunning
	}
	defer s.running.Store(false)

	now := time.Now().UTC()
	expired, err := s.subs.ListExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("billing: list expired subscriptions: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	var finalized, failed int
	for _, sub := range expired {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.finalize(ctx, sub, now); err != nil {
			failed++
			s.log.ErrorContext(ctx, "failed to finalize expired subscription",
				slog.String("subscription_id", sub.SubscriptionID),
				slog.Any("error", err))
			continue
		}
		finalized++
	}

	s.log.InfoContext(ctx, "subscription sweep completed",
		slog.Int("expired", len(expired)),
		slog.Int("finalized", finalized),
		slog.Int("failed", failed))
	return nil
}

// finalize cancels one expired subscription and reverts its owner to the
// free tier. MarkCanceled re-checks the expiry condition atomically, so a
// webhook that already finalized the record turns this into a no-op.
func (s *Sweeper) finalize(ctx context.Context, sub Subscription, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, sweepRecordTimeout)
	defer cancel()

	if _, err := s.subs.MarkCanceled(ctx, sub.SubscriptionID, now); err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			s.log.InfoContext(ctx, "subscription already finalized, skipping",
				slog.String("subscription_id", sub.SubscriptionID))
			return nil
		}
		return fmt.Errorf("mark canceled: %w", err)
	}

	ent := Entitlement{
		Tier:        TierFree,
		PoemCredits: s.plans.Credits().FreeChurnCredits,
		CustomerID:  sub.CustomerID,
	}
	if err := s.users.SetEntitlement(ctx, sub.UserID, ent); err != nil {
		return fmt.Errorf("revert entitlement: %w", err)
	}

	s.log.InfoContext(ctx, "expired subscription finalized",
		slog.String("subscription_id", sub.SubscriptionID),
		slog.String("user_id", sub.UserID))
	return nil
}
