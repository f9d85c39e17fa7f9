package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// Expiry sweep actions reported in ExpiryResult.Actions.
const (
	ActionStatusUpdated       = "status_updated"
	ActionRenewalOrderCreated = "renewal_order_created"
	ActionAutoRenewDisabled   = "auto_renew_disabled"
	ActionAlreadyExpired      = "already_expired"
	ActionNotificationSent    = "notification_sent"
)

// ExpiryResult is the outcome of expiry handling for one subscription.
// Success false with an empty action list means the subscription was
// not actually expired; that is a no-op signal, not an error.
type ExpiryResult struct {
	Success bool
	Message string
	Actions []string
}

// HandleExpiry transitions a lapsed subscription to expired and, when
// auto-renew is on, creates the renewal order — all in one transaction.
// Safe to call repeatedly: an already-expired subscription reports
// success without further writes.
func (s *Service) HandleExpiry(ctx context.Context, subscriptionID uuid.UUID) (*ExpiryResult, error) {
	now := s.now()

	var (
		result       ExpiryResult
		expiredSub   Subscription
		expiredPlan  Plan
		renewalOrder *Order
	)

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		sub, err := tx.GetSubscription(ctx, subscriptionID)
		if err != nil {
			return err
		}

		if !sub.IsExpiredAt(now) {
			result = ExpiryResult{Success: false, Message: "subscription has not expired yet", Actions: []string{}}
			return nil
		}

		if sub.Status == StatusExpired {
			result = ExpiryResult{Success: true, Message: "subscription already expired", Actions: []string{ActionAlreadyExpired}}
			return nil
		}

		if sub.Status != StatusActive {
			result = ExpiryResult{
				Success: false,
				Message: fmt.Sprintf("subscription is %s, nothing to expire", sub.Status),
				Actions: []string{},
			}
			return nil
		}

		if err := sub.transitionTo(StatusExpired, now); err != nil {
			return err
		}
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return err
		}
		actions := []string{ActionStatusUpdated}

		if sub.AutoRenew {
			order := Order{
				ID:             uuid.New(),
				UserID:         sub.UserID,
				Type:           OrderTypeRenewal,
				Amount:         sub.Price,
				Status:         OrderStatusPending,
				SubscriptionID: sub.ID,
				Metadata: map[string]string{
					"auto_renew":           "true",
					"original_expiry_date": sub.EndDate.Format(time.RFC3339),
				},
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.CreateOrder(ctx, order); err != nil {
				return err
			}
			actions = append(actions, ActionRenewalOrderCreated)
			renewalOrder = &order
		} else {
			actions = append(actions, ActionAutoRenewDisabled)
		}

		plan, err := tx.GetPlan(ctx, sub.PlanID)
		if err != nil {
			return err
		}

		expiredSub = sub
		expiredPlan = plan
		result = ExpiryResult{Success: true, Message: "subscription expired", Actions: actions}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Notifications go out only after the transaction committed; a send
	// failure must not undo billing state.
	if result.Success && expiredSub.ID != uuid.Nil {
		if err := s.notifier.SubscriptionExpired(ctx, expiredSub, expiredPlan); err != nil {
			s.log.ErrorContext(ctx, "failed to send expiry notification",
				logger.SubscriptionID(expiredSub.ID), logger.Error(err))
		} else {
			result.Actions = append(result.Actions, ActionNotificationSent)
		}
		if renewalOrder != nil {
			if err := s.notifier.RenewalOrderCreated(ctx, expiredSub, *renewalOrder); err != nil {
				s.log.ErrorContext(ctx, "failed to send renewal notification",
					logger.OrderID(renewalOrder.ID), logger.Error(err))
			}
		}
	}

	return &result, nil
}

// BatchItemResult is the per-subscription outcome of a batch sweep.
type BatchItemResult struct {
	SubscriptionID uuid.UUID
	Success        bool
	Message        string
}

// BatchResult summarizes one sweep over expired subscriptions.
type BatchResult struct {
	Total     int
	Processed int
	Succeeded int
	Failed    int
	Results   []BatchItemResult
}

// BatchHandleExpiredSubscriptions expires up to limit lapsed
// subscriptions. Every item is attempted regardless of sibling
// failures; per-item errors are recorded in the result instead of
// propagating, which is the one place in the engine that deliberately
// swallows errors.
func (s *Service) BatchHandleExpiredSubscriptions(ctx context.Context, limit int) (*BatchResult, error) {
	if limit <= 0 {
		limit = 100
	}

	subs, err := s.store.ListExpiredActive(ctx, s.now(), limit)
	if err != nil {
		return nil, err
	}

	batch := &BatchResult{
		Total:     len(subs),
		Processed: len(subs),
		Results:   make([]BatchItemResult, 0, len(subs)),
	}

	for _, sub := range subs {
		res, err := s.HandleExpiry(ctx, sub.ID)
		if err != nil {
			batch.Failed++
			batch.Results = append(batch.Results, BatchItemResult{
				SubscriptionID: sub.ID,
				Success:        false,
				Message:        err.Error(),
			})
			s.log.ErrorContext(ctx, "expiry handling failed",
				logger.SubscriptionID(sub.ID), logger.Error(err))
			continue
		}

		if res.Success {
			batch.Succeeded++
		} else {
			batch.Failed++
		}
		batch.Results = append(batch.Results, BatchItemResult{
			SubscriptionID: sub.ID,
			Success:        res.Success,
			Message:        res.Message,
		})
	}

	s.log.InfoContext(ctx, "expiry sweep finished",
		slog.Int("total", batch.Total),
		slog.Int("succeeded", batch.Succeeded),
		slog.Int("failed", batch.Failed),
	)
	return batch, nil
}

// Locker guards a sweep so only one replica runs it at a time.
type Locker interface {
	TryLock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// nopLocker always grants the lock; used for single-instance setups.
type nopLocker struct{}

func (nopLocker) TryLock(context.Context) error { return nil }
func (nopLocker) Unlock(context.Context) error  { return nil }

// SweeperConfig is the environment-backed sweeper configuration.
type SweeperConfig struct {
	Interval  time.Duration `env:"BILLING_SWEEP_INTERVAL" envDefault:"1h"` // Interval between sweep runs.
	BatchSize int           `env:"BILLING_SWEEP_BATCH" envDefault:"100"`   // BatchSize caps subscriptions per run.
}

// Sweeper periodically expires lapsed subscriptions.
type Sweeper struct {
	svc      *Service
	interval time.Duration
	batch    int
	locker   Locker
	log      *slog.Logger
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweeperLocker sets the distributed lock guarding each run.
func WithSweeperLocker(l Locker) SweeperOption {
	return func(s *Sweeper) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithSweeperLogger sets the sweeper's logger.
func WithSweeperLogger(log *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if log != nil {
			s.log = log
		}
	}
}

// NewSweeper builds a sweeper over the given service.
func NewSweeper(svc *Service, cfg SweeperConfig, opts ...SweeperOption) *Sweeper {
	if svc == nil {
		panic("billing: service is required")
	}
	s := &Sweeper{
		svc:      svc,
		interval: cfg.Interval,
		batch:    cfg.BatchSize,
		locker:   nopLocker{},
		log:      slog.New(discardHandler{}),
	}
	if s.interval <= 0 {
		s.interval = time.Hour
	}
	if s.batch <= 0 {
		s.batch = 100
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on the configured interval until the context is cancelled.
// The first sweep happens one interval after start.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if err := s.locker.TryLock(ctx); err != nil {
		// Another replica holds the lock; its sweep covers this tick.
		s.log.DebugContext(ctx, "skipping sweep", logger.Error(err))
		return
	}
	defer func() {
		if err := s.locker.Unlock(ctx); err != nil {
			s.log.ErrorContext(ctx, "failed to release sweep lock", logger.Error(err))
		}
	}()

	if _, err := s.svc.BatchHandleExpiredSubscriptions(ctx, s.batch); err != nil {
		s.log.ErrorContext(ctx, "sweep failed", logger.Error(err))
	}
}
