package billing

import (
	"time"

	"github.com/google/uuid"
)

// Subscription is a user's time-bounded association with a Plan.
// The price is locked in at subscribe or upgrade time and does not
// follow later plan price changes. Subscriptions are never deleted;
// their lifecycle ends in the expired or cancelled status.
type Subscription struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	PlanID      uuid.UUID
	BillingType BillingType
	Status      SubscriptionStatus
	StartDate   time.Time
	EndDate     time.Time
	Price       Money
	AutoRenew   bool
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsActive reports whether the subscription is in the active status.
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// IsExpiredAt reports whether the subscription's period has lapsed at
// the given time, regardless of its recorded status.
func (s *Subscription) IsExpiredAt(now time.Time) bool {
	return !s.EndDate.After(now)
}

// DaysUntilExpiryAt returns the number of whole days until the end
// date, rounding partial days up. Negative when already past.
func (s *Subscription) DaysUntilExpiryAt(now time.Time) int {
	return ceilDays(s.EndDate.Sub(now))
}

// transitionTo moves the subscription to the target status, enforcing
// the state machine. The caller persists the change.
func (s *Subscription) transitionTo(to SubscriptionStatus, now time.Time) error {
	if !s.Status.CanTransitionTo(to) {
		return ErrInvalidTransition
	}
	s.Status = to
	s.UpdatedAt = now
	return nil
}

// periodEnd returns the end of one billing period starting at from.
// Calendar months and years are used for period boundaries; the 30/365
// day-count convention applies only to proration math.
func periodEnd(from time.Time, t BillingType) time.Time {
	if t == BillingYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

// ceilDays converts a duration to whole days, rounding toward positive
// infinity so a partial remaining day still counts as a day.
func ceilDays(d time.Duration) int {
	const day = 24 * time.Hour
	days := d / day
	if d%day > 0 {
		days++
	}
	return int(days)
}
