package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// CreditCheck is the answer to "does this subscription have capacity".
// RemainingCredits is UnlimitedCredits (-1) when the plan is unlimited.
type CreditCheck struct {
	Available          bool
	RemainingCredits   int64
	SubscriptionStatus SubscriptionStatus
	Message            string
}

// CheckCredits reports whether the subscription can cover the requested
// amount of the consumable resource. This is an advisory read for UI
// display; DeductCredits re-runs the same decision inside its own
// transaction before anything is consumed.
func (s *Service) CheckCredits(ctx context.Context, subscriptionID uuid.UUID, amount int64) (*CreditCheck, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.checkCredits(ctx, s.store, subscriptionID, amount)
}

// checkCredits evaluates quota against the given store view, which is
// the live transactional view when called from DeductCredits.
func (s *Service) checkCredits(ctx context.Context, store Store, subscriptionID uuid.UUID, amount int64) (*CreditCheck, error) {
	sub, err := store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	now := s.now()

	// A lapsed period counts as expired even before the sweeper has
	// flipped the stored status.
	if sub.Status != StatusActive || sub.IsExpiredAt(now) {
		status := sub.Status
		if sub.Status == StatusActive && sub.IsExpiredAt(now) {
			status = StatusExpired
		}
		return &CreditCheck{
			Available:          false,
			RemainingCredits:   0,
			SubscriptionStatus: status,
			Message:            unavailableMessage(status),
		}, nil
	}

	plan, err := store.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	quota := plan.ProjectQuota()
	if quota.IsUnlimited() {
		return &CreditCheck{
			Available:          true,
			RemainingCredits:   UnlimitedCredits,
			SubscriptionStatus: sub.Status,
		}, nil
	}

	used, err := store.CountResources(ctx, sub.UserID, usagePeriodStart(sub, now))
	if err != nil {
		return nil, err
	}

	remaining := quota.Remaining(used)
	check := &CreditCheck{
		Available:          quota.Allows(used, amount),
		RemainingCredits:   remaining,
		SubscriptionStatus: sub.Status,
	}
	if !check.Available {
		check.Message = fmt.Sprintf("insufficient credits: %d remaining, %d requested", remaining, amount)
	}
	return check, nil
}

func unavailableMessage(status SubscriptionStatus) string {
	switch status {
	case StatusExpired:
		return "subscription has expired, renew to continue"
	case StatusCancelled:
		return "subscription is cancelled"
	case StatusPending:
		return "subscription is pending payment"
	default:
		return fmt.Sprintf("subscription status is %s", status)
	}
}

// DeductResult is the outcome of a deduction attempt.
type DeductResult struct {
	Success          bool
	RemainingCredits int64
	Message          string
}

// DeductCredits consumes quota for a new resource. The quota re-check
// and the resource creation run in one transaction, so two concurrent
// deductions cannot both squeeze through the last slot: the storage
// layer serializes them and the later one observes the earlier one's
// resource. A failed check performs no writes at all.
func (s *Service) DeductCredits(ctx context.Context, subscriptionID, resourceID uuid.UUID, amount int64) (*DeductResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var result DeductResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		check, err := s.checkCredits(ctx, tx, subscriptionID, amount)
		if err != nil {
			return err
		}
		if !check.Available {
			result = DeductResult{Success: false, Message: check.Message}
			return nil
		}

		sub, err := tx.GetSubscription(ctx, subscriptionID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := tx.RecordResource(ctx, sub.UserID, resourceID, now); err != nil {
			return err
		}

		remaining := check.RemainingCredits
		if remaining != UnlimitedCredits {
			remaining -= amount
			if remaining < 0 {
				remaining = 0
			}
		}
		result = DeductResult{Success: true, RemainingCredits: remaining}

		// Nudge the user toward an upgrade before they hit the wall.
		plan, err := tx.GetPlan(ctx, sub.PlanID)
		if err == nil {
			quota := plan.ProjectQuota()
			if !quota.IsUnlimited() && remaining*10 < quota.Limit() {
				s.log.WarnContext(ctx, "subscription credits running low",
					logger.UserID(sub.UserID),
					logger.SubscriptionID(sub.ID),
					"remaining", remaining,
					"limit", quota.Limit(),
				)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
