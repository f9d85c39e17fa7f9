package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/billingkit/svc/billing"
)

func TestSubscriptionStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to billing.SubscriptionStatus
		want     bool
	}{
		{billing.StatusPending, billing.StatusActive, true},
		{billing.StatusActive, billing.StatusExpired, true},
		{billing.StatusActive, billing.StatusCancelled, true},
		{billing.StatusExpired, billing.StatusActive, true}, // renewal
		{billing.StatusPending, billing.StatusExpired, false},
		{billing.StatusPending, billing.StatusCancelled, false},
		{billing.StatusCancelled, billing.StatusActive, false},
		{billing.StatusCancelled, billing.StatusExpired, false},
		{billing.StatusExpired, billing.StatusCancelled, false},
		{billing.StatusActive, billing.StatusPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestQuota(t *testing.T) {
	t.Parallel()

	t.Run("zero stored limit means unlimited", func(t *testing.T) {
		q := billing.QuotaFromLimit(0)
		assert.True(t, q.IsUnlimited())
		assert.Equal(t, billing.UnlimitedCredits, q.Remaining(1_000_000))
		assert.True(t, q.Allows(1_000_000, 1_000_000))
	})

	t.Run("remaining clamps at zero", func(t *testing.T) {
		q := billing.QuotaFromLimit(3)
		assert.Equal(t, int64(3), q.Remaining(0))
		assert.Equal(t, int64(1), q.Remaining(2))
		assert.Equal(t, int64(0), q.Remaining(3))
		assert.Equal(t, int64(0), q.Remaining(10))
	})

	t.Run("allows respects the requested amount", func(t *testing.T) {
		q := billing.QuotaFromLimit(3)
		assert.True(t, q.Allows(0, 3))
		assert.False(t, q.Allows(0, 4))
		assert.True(t, q.Allows(2, 1))
		assert.False(t, q.Allows(3, 1))
	})
}

func TestBillingType(t *testing.T) {
	t.Parallel()

	assert.True(t, billing.BillingMonthly.Valid())
	assert.True(t, billing.BillingYearly.Valid())
	assert.False(t, billing.BillingType("weekly").Valid())

	assert.Equal(t, 30, billing.BillingMonthly.PeriodDays())
	assert.Equal(t, 365, billing.BillingYearly.PeriodDays())
}

func TestErrorCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		code string
	}{
		{billing.ErrPlanNotFound, "PLAN_NOT_FOUND"},
		{billing.ErrAlreadySubscribed, "ALREADY_SUBSCRIBED"},
		{billing.ErrNoActiveSubscription, "NO_ACTIVE_SUBSCRIPTION"},
		{billing.ErrSamePlan, "SAME_PLAN"},
		{billing.ErrOrderNotFound, "ORDER_NOT_FOUND"},
		{billing.ErrPriceNotSet, "PRICE_NOT_SET"},
		{assert.AnError, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, billing.ErrorCode(tt.err))
	}
}
