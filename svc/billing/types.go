package billing

// Money is a monetary amount in the smallest currency unit (cents).
// All proration math happens in integer cents to avoid floating point
// drift in charge amounts.
type Money int64

// BillingType represents the billing period of a subscription.
type BillingType string

const (
	BillingMonthly BillingType = "monthly"
	BillingYearly  BillingType = "yearly"
)

// Valid reports whether the billing type is one of the known values.
func (t BillingType) Valid() bool {
	return t == BillingMonthly || t == BillingYearly
}

// PeriodDays returns the day-count convention for the billing period:
// 30 for monthly, 365 for yearly. Both legs of a proration comparison
// use the same convention.
func (t BillingType) PeriodDays() int {
	if t == BillingYearly {
		return 365
	}
	return 30
}

// SubscriptionStatus represents the current state of a subscription.
type SubscriptionStatus string

const (
	StatusPending   SubscriptionStatus = "pending"
	StatusActive    SubscriptionStatus = "active"
	StatusExpired   SubscriptionStatus = "expired"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// validTransitions is the subscription state machine. A pending
// subscription that never activates is simply abandoned; nothing
// resurrects a cancelled subscription short of a fresh Subscribe.
var validTransitions = map[SubscriptionStatus][]SubscriptionStatus{
	StatusPending: {StatusActive},
	StatusActive:  {StatusExpired, StatusCancelled},
	StatusExpired: {StatusActive}, // renewal payment reactivates
}

// CanTransitionTo reports whether the state machine permits moving from
// s to the target status.
func (s SubscriptionStatus) CanTransitionTo(to SubscriptionStatus) bool {
	for _, next := range validTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderType classifies what a charge attempt pays for.
type OrderType string

const (
	OrderTypeSubscription OrderType = "subscription"
	OrderTypeUpgrade      OrderType = "upgrade"
	OrderTypeRenewal      OrderType = "renewal"
)

// OrderStatus represents the state of a charge attempt.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
)

// UnlimitedCredits is the wire value reported for remaining credits when
// the plan places no limit on the resource.
const UnlimitedCredits int64 = -1

// Quota is the limit a plan places on a countable resource, converted
// once from the stored form where zero means unlimited. Using a tagged
// type at the boundary keeps the magic zero out of the decision logic.
type Quota struct {
	unlimited bool
	limit     int64
}

// QuotaFromLimit converts a stored plan limit into a Quota.
// A stored limit of zero means unlimited.
func QuotaFromLimit(stored int64) Quota {
	if stored == 0 {
		return Quota{unlimited: true}
	}
	return Quota{limit: stored}
}

// IsUnlimited reports whether the quota has no cap.
func (q Quota) IsUnlimited() bool {
	return q.unlimited
}

// Limit returns the cap for limited quotas; zero for unlimited ones.
func (q Quota) Limit() int64 {
	return q.limit
}

// Remaining returns how many units are left given current usage,
// clamped at zero. For unlimited quotas it returns UnlimitedCredits.
func (q Quota) Remaining(used int64) int64 {
	if q.unlimited {
		return UnlimitedCredits
	}
	if used >= q.limit {
		return 0
	}
	return q.limit - used
}

// Allows reports whether the quota permits consuming n more units on
// top of the current usage.
func (q Quota) Allows(used, n int64) bool {
	if q.unlimited {
		return true
	}
	return q.Remaining(used) >= n
}
