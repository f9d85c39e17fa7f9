package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UpgradePrice is the prorated quote for switching plans mid-period.
// Difference is positive for upgrades (amount to charge) and negative
// for downgrades, in which case NeedsRefund is set and RefundAmount
// carries the magnitude.
type UpgradePrice struct {
	CurrentPrice  Money
	NewPrice      Money
	Difference    Money
	RemainingDays int
	NeedsRefund   bool
	RefundAmount  Money
}

// CalculateUpgradePrice quotes the prorated cost of moving the given
// subscription to a new plan. The quote is advisory; Upgrade recomputes
// it inside its own transaction.
func (s *Service) CalculateUpgradePrice(ctx context.Context, subscriptionID, newPlanID uuid.UUID) (*UpgradePrice, error) {
	sub, err := s.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	currentPlan, err := s.store.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	newPlan, err := s.store.GetPlan(ctx, newPlanID)
	if err != nil {
		return nil, err
	}

	quote, err := upgradeQuote(sub, currentPlan, newPlan, s.now())
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// upgradeQuote computes the proration for a plan change.
//
// Both legs use the same day-count convention (30 days per month, 365
// per year): the unused value of the current plan and the cost of the
// new plan are each priced at their daily rate over the remaining days,
// and the difference is what the change is worth. Integer cent math
// throughout; sub-cent remainders truncate toward zero.
func upgradeQuote(sub Subscription, currentPlan, newPlan Plan, now time.Time) (*UpgradePrice, error) {
	if sub.PlanID == newPlan.ID {
		return nil, ErrSamePlan
	}

	newPrice, err := newPlan.PriceFor(sub.BillingType)
	if err != nil {
		return nil, err
	}

	remainingDays := sub.DaysUntilExpiryAt(now)
	if remainingDays < 0 {
		remainingDays = 0
	}
	periodDays := int64(sub.BillingType.PeriodDays())

	unusedValue := int64(sub.Price) * int64(remainingDays) / periodDays
	newPeriodCost := int64(newPrice) * int64(remainingDays) / periodDays
	difference := Money(newPeriodCost - unusedValue)

	quote := &UpgradePrice{
		CurrentPrice:  sub.Price,
		NewPrice:      newPrice,
		Difference:    difference,
		RemainingDays: remainingDays,
	}
	if difference <= 0 {
		quote.NeedsRefund = true
		quote.RefundAmount = -difference
	}
	return quote, nil
}

// renewalWindowDays is how far ahead of expiry renewal opens.
const renewalWindowDays = 7

// RenewalCheck reports whether a subscription can be renewed right now.
type RenewalCheck struct {
	CanRenew        bool
	DaysUntilExpiry int
	ExpiryDate      time.Time
	RenewalPrice    Money
	Message         string
}

// CheckRenewalAvailable reports whether the subscription is inside its
// renewal window. Renewal opens seven days before expiry and stays open
// after it; cancelled subscriptions can never renew.
func (s *Service) CheckRenewalAvailable(ctx context.Context, subscriptionID uuid.UUID) (*RenewalCheck, error) {
	sub, err := s.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	if sub.Status == StatusCancelled {
		return &RenewalCheck{
			CanRenew:   false,
			ExpiryDate: sub.EndDate,
			Message:    "subscription is cancelled and cannot be renewed",
		}, nil
	}

	days := sub.DaysUntilExpiryAt(s.now())
	check := &RenewalCheck{
		DaysUntilExpiry: days,
		ExpiryDate:      sub.EndDate,
		RenewalPrice:    sub.Price,
		CanRenew:        days <= renewalWindowDays,
	}

	switch {
	case days < 0:
		check.Message = "subscription has expired, renew now to restore access"
	case check.CanRenew:
		check.Message = fmt.Sprintf("subscription expires in %d days and can be renewed", days)
	default:
		check.Message = fmt.Sprintf("subscription expires in %d days, renewal opens %d days before expiry", days, renewalWindowDays)
	}
	return check, nil
}
