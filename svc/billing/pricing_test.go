package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/svc/billing"
)

// clockAt builds a fixture whose clock starts at testNow and can be
// moved by the test.
func clockAt(t *testing.T) (*testFixture, *time.Time) {
	t.Helper()
	now := testNow
	f := newFixture(t, billing.WithClock(func() time.Time { return now }))
	return f, &now
}

func TestService_CalculateUpgradePrice(t *testing.T) {
	t.Parallel()

	t.Run("prorates both legs over remaining days", func(t *testing.T) {
		f, now := clockAt(t)
		ctx := context.Background()
		userID := uuid.New()
		sub := f.subscribeAndPay(t, userID, f.starter.ID, billing.BillingMonthly)

		// Half the period gone: 15 days remain of the 30-day convention.
		*now = sub.EndDate.Add(-15 * 24 * time.Hour)

		quote, err := f.svc.CalculateUpgradePrice(ctx, sub.ID, f.pro.ID)
		require.NoError(t, err)

		// unused  = 1000 * 15/30 = 500
		// newcost = 3000 * 15/30 = 1500
		assert.Equal(t, billing.Money(1000), quote.CurrentPrice)
		assert.Equal(t, billing.Money(3000), quote.NewPrice)
		assert.Equal(t, 15, quote.RemainingDays)
		assert.Equal(t, billing.Money(1000), quote.Difference)
		assert.False(t, quote.NeedsRefund)
	})

	t.Run("partial day counts as a full remaining day", func(t *testing.T) {
		f, now := clockAt(t)
		sub := f.subscribeAndPay(t, uuid.New(), f.starter.ID, billing.BillingMonthly)

		*now = sub.EndDate.Add(-14*24*time.Hour - time.Hour)

		quote, err := f.svc.CalculateUpgradePrice(context.Background(), sub.ID, f.pro.ID)
		require.NoError(t, err)
		assert.Equal(t, 15, quote.RemainingDays)
	})

	t.Run("sub-cent remainders truncate toward zero", func(t *testing.T) {
		f, now := clockAt(t)
		sub := f.subscribeAndPay(t, uuid.New(), f.starter.ID, billing.BillingMonthly)

		*now = sub.EndDate.Add(-7 * 24 * time.Hour)

		quote, err := f.svc.CalculateUpgradePrice(context.Background(), sub.ID, f.pro.ID)
		require.NoError(t, err)

		// unused  = 1000 * 7/30 = 233 (233.33 truncated)
		// newcost = 3000 * 7/30 = 700
		assert.Equal(t, billing.Money(700-233), quote.Difference)
	})

	t.Run("downgrade yields refund info", func(t *testing.T) {
		f, now := clockAt(t)
		sub := f.subscribeAndPay(t, uuid.New(), f.pro.ID, billing.BillingMonthly)

		*now = sub.EndDate.Add(-15 * 24 * time.Hour)

		quote, err := f.svc.CalculateUpgradePrice(context.Background(), sub.ID, f.starter.ID)
		require.NoError(t, err)

		// 1000*15/30 - 3000*15/30 = -1000
		assert.Equal(t, billing.Money(-1000), quote.Difference)
		assert.True(t, quote.NeedsRefund)
		assert.Equal(t, billing.Money(1000), quote.RefundAmount)
	})

	t.Run("lapsed period clamps remaining days to zero", func(t *testing.T) {
		f, now := clockAt(t)
		sub := f.subscribeAndPay(t, uuid.New(), f.starter.ID, billing.BillingMonthly)

		*now = sub.EndDate.Add(48 * time.Hour)

		quote, err := f.svc.CalculateUpgradePrice(context.Background(), sub.ID, f.pro.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, quote.RemainingDays)
		assert.Equal(t, billing.Money(0), quote.Difference)
		assert.True(t, quote.NeedsRefund)
		assert.Equal(t, billing.Money(0), quote.RefundAmount)
	})

	t.Run("yearly uses the 365-day convention", func(t *testing.T) {
		f, now := clockAt(t)
		sub := f.subscribeAndPay(t, uuid.New(), f.starter.ID, billing.BillingYearly)

		*now = sub.EndDate.Add(-100 * 24 * time.Hour)

		quote, err := f.svc.CalculateUpgradePrice(context.Background(), sub.ID, f.pro.ID)
		require.NoError(t, err)

		// unused  = 10000 * 100/365 = 2739
		// newcost = 30000 * 100/365 = 8219
		assert.Equal(t, billing.Money(8219-2739), quote.Difference)
	})

	t.Run("same plan", func(t *testing.T) {
		f, _ := clockAt(t)
		sub := f.subscribeAndPay(t, uuid.New(), f.starter.ID, billing.BillingMonthly)

		_, err := f.svc.CalculateUpgradePrice(context.Background(), sub.ID, f.starter.ID)
		assert.ErrorIs(t, err, billing.ErrSamePlan)
	})

	t.Run("target plan lacks a price for the billing type", func(t *testing.T) {
		f, _ := clockAt(t)
		sub := f.subscribeAndPay(t, uuid.New(), f.starter.ID, billing.BillingMonthly)

		_, err := f.svc.CalculateUpgradePrice(context.Background(), sub.ID, f.yearOnly.ID)
		assert.ErrorIs(t, err, billing.ErrPriceNotSet)
	})

	t.Run("unknown subscription", func(t *testing.T) {
		f, _ := clockAt(t)

		_, err := f.svc.CalculateUpgradePrice(context.Background(), uuid.New(), f.pro.ID)
		assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
	})
}

func TestService_CheckRenewalAvailable(t *testing.T) {
	t.Parallel()

	t.Run("closed outside the window", func(t *testing.T) {
		f, now := clockAt(t)
		sub := f.subscribeAndPay(t, uuid.New(), f.starter.ID, billing.BillingMonthly)

		*now = sub.EndDate.Add(-10 * 24 * time.Hour)

		check, err := f.svc.CheckRenewalAvailable(context.Background(), sub.ID)
		require.NoError(t, err)
		assert.False(t, check.CanRenew)
		assert.Equal(t, 10, check.DaysUntilExpiry)
		assert.Equal(t, sub.EndDate, check.ExpiryDate)
	})

	t.Run("opens seven days before expiry", func(t *testing.T) {
		f, now := clockAt(t)
		sub := f.subscribeAndPay(t, uuid.New(), f.starter.ID, billing.BillingMonthly)

		*now = sub.EndDate.Add(-7 * 24 * time.Hour)

		check, err := f.svc.CheckRenewalAvailable(context.Background(), sub.ID)
		require.NoError(t, err)
		assert.True(t, check.CanRenew)
		assert.Equal(t, 7, check.DaysUntilExpiry)
		assert.Equal(t, billing.Money(1000), check.RenewalPrice)
	})

	t.Run("stays open after expiry", func(t *testing.T) {
		f, now := clockAt(t)
		sub := f.subscribeAndPay(t, uuid.New(), f.starter.ID, billing.BillingMonthly)

		*now = sub.EndDate.Add(3 * 24 * time.Hour)

		check, err := f.svc.CheckRenewalAvailable(context.Background(), sub.ID)
		require.NoError(t, err)
		assert.True(t, check.CanRenew)
		assert.Equal(t, -3, check.DaysUntilExpiry)
	})

	t.Run("cancelled never renews", func(t *testing.T) {
		f, now := clockAt(t)
		ctx := context.Background()
		userID := uuid.New()
		sub := f.subscribeAndPay(t, userID, f.starter.ID, billing.BillingMonthly)
		_, err := f.svc.Cancel(ctx, userID)
		require.NoError(t, err)

		*now = sub.EndDate.Add(-time.Hour)

		check, err := f.svc.CheckRenewalAvailable(ctx, sub.ID)
		require.NoError(t, err)
		assert.False(t, check.CanRenew)
		assert.NotEmpty(t, check.Message)
	})
}
