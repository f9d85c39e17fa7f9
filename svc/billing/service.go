package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// PaymentLinkBuilder produces the opaque checkout link returned to the
// client for a pending order. Actual payment initiation lives outside
// this engine.
type PaymentLinkBuilder func(orderID uuid.UUID, orderType OrderType) string

func defaultPaymentLink(orderID uuid.UUID, orderType OrderType) string {
	return fmt.Sprintf("/checkout?orderId=%s&type=%s", orderID, orderType)
}

// Service is the subscription lifecycle manager.
type Service struct {
	store       UnitOfWork
	log         *slog.Logger
	now         func() time.Time
	paymentLink PaymentLinkBuilder
	notifier    Notifier
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger; a no-op logger is used otherwise.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source. Tests use this to pin "now".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPaymentLinkBuilder overrides the checkout link format.
func WithPaymentLinkBuilder(fn PaymentLinkBuilder) Option {
	return func(s *Service) {
		if fn != nil {
			s.paymentLink = fn
		}
	}
}

// WithNotifier sets the customer notifier used by expiry handling.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// NewService creates the lifecycle manager. Panics on a nil store to
// fail fast during initialization.
func NewService(store UnitOfWork, opts ...Option) *Service {
	if store == nil {
		panic("billing: UnitOfWork is required")
	}

	s := &Service{
		store:       store,
		log:         slog.New(discardHandler{}),
		now:         func() time.Time { return time.Now().UTC() },
		paymentLink: defaultPaymentLink,
		notifier:    NoopNotifier{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListActivePlans returns all active plans ordered by monthly price
// ascending.
func (s *Service) ListActivePlans(ctx context.Context) ([]Plan, error) {
	return s.store.ListActivePlans(ctx)
}

// GetPlan returns a single plan by id.
func (s *Service) GetPlan(ctx context.Context, planID uuid.UUID) (Plan, error) {
	return s.store.GetPlan(ctx, planID)
}

// SubscribeResult is the outcome of a successful Subscribe call.
type SubscribeResult struct {
	Subscription Subscription
	Plan         Plan
	Order        Order
	PaymentLink  string
}

// Subscribe creates a pending subscription and its initial order in one
// transaction. The subscription grants no quota until the payment
// callback activates it.
func (s *Service) Subscribe(ctx context.Context, userID, planID uuid.UUID, billingType BillingType) (*SubscribeResult, error) {
	if !billingType.Valid() {
		return nil, ErrInvalidBillingType
	}

	now := s.now()
	var result SubscribeResult

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		plan, err := tx.GetPlan(ctx, planID)
		if err != nil {
			return err
		}
		if !plan.IsActive {
			return ErrPlanNotFound
		}

		price, err := plan.PriceFor(billingType)
		if err != nil {
			return err
		}

		// The check-then-insert pair runs inside the transaction; the
		// storage layer's uniqueness guarantee backstops concurrent
		// subscribes that both pass the check.
		if _, err := tx.GetCurrentSubscription(ctx, userID); err == nil {
			return ErrAlreadySubscribed
		} else if !errors.Is(err, ErrSubscriptionNotFound) {
			return err
		}

		sub := Subscription{
			ID:          uuid.New(),
			UserID:      userID,
			PlanID:      plan.ID,
			BillingType: billingType,
			Status:      StatusPending,
			StartDate:   now,
			EndDate:     periodEnd(now, billingType),
			Price:       price,
			AutoRenew:   true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.CreateSubscription(ctx, sub); err != nil {
			return err
		}

		order := Order{
			ID:             uuid.New(),
			UserID:         userID,
			Type:           OrderTypeSubscription,
			Amount:         price,
			Status:         OrderStatusPending,
			SubscriptionID: sub.ID,
			Metadata: map[string]string{
				"plan_id":      plan.ID.String(),
				"plan_name":    plan.Name,
				"billing_type": string(billingType),
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		result = SubscribeResult{Subscription: sub, Plan: plan, Order: order}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.PaymentLink = s.paymentLink(result.Order.ID, OrderTypeSubscription)

	s.log.InfoContext(ctx, "subscription created",
		logger.UserID(userID),
		logger.SubscriptionID(result.Subscription.ID),
		logger.PlanID(planID),
		logger.OrderID(result.Order.ID),
	)
	return &result, nil
}

// PaymentCallback is the notification delivered by the payment gateway.
type PaymentCallback struct {
	OrderID       uuid.UUID
	PaymentStatus string // "success" or anything else for failure
	TransactionID string
	PaidAmount    Money
	PaidAt        *time.Time
}

// Succeeded reports whether the gateway confirmed the charge.
func (c PaymentCallback) Succeeded() bool {
	return c.PaymentStatus == "success"
}

// CallbackResult is the outcome of processing a payment callback.
type CallbackResult struct {
	Order        Order
	Subscription Subscription
}

// HandlePaymentCallback settles an order and activates its subscription.
// Used for initial subscribe payments and renewals alike. Duplicate
// callbacks for an already-paid order are idempotent no-ops: the stored
// state is returned and no dates move.
func (s *Service) HandlePaymentCallback(ctx context.Context, cb PaymentCallback) (*CallbackResult, error) {
	now := s.now()
	var result CallbackResult

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		order, err := tx.GetOrder(ctx, cb.OrderID)
		if err != nil {
			return err
		}
		sub, err := tx.GetSubscription(ctx, order.SubscriptionID)
		if err != nil {
			return err
		}

		if order.IsPaid() {
			result = CallbackResult{Order: order, Subscription: sub}
			return nil
		}

		if !cb.Succeeded() {
			order.Status = OrderStatusFailed
			order.UpdatedAt = now
			if err := tx.UpdateOrder(ctx, order); err != nil {
				return err
			}
			// The subscription stays as it was; a pending one simply
			// never activates.
			result = CallbackResult{Order: order, Subscription: sub}
			return nil
		}

		paidAt := now
		if cb.PaidAt != nil {
			paidAt = *cb.PaidAt
		}
		order.markPaid(cb.TransactionID, paidAt)
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}

		// Renewals extend from the current end date, not from now, so
		// paying early never shortens the period.
		if order.Type == OrderTypeRenewal {
			sub.EndDate = periodEnd(sub.EndDate, sub.BillingType)
		}
		if sub.Status != StatusActive {
			if err := sub.transitionTo(StatusActive, now); err != nil {
				return err
			}
		} else {
			sub.UpdatedAt = now
		}
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return err
		}

		result = CallbackResult{Order: order, Subscription: sub}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "payment callback processed",
		logger.OrderID(cb.OrderID),
		logger.SubscriptionID(result.Subscription.ID),
		slog.String("payment_status", cb.PaymentStatus),
		slog.String("order_status", string(result.Order.Status)),
	)
	return &result, nil
}

// UpgradeInfo summarizes the plan change for the client.
type UpgradeInfo struct {
	OldPlan       Plan
	NewPlan       Plan
	UpgradeAmount Money
	RemainingDays int
	NeedsRefund   bool
	RefundAmount  Money
}

// UpgradeResult is the outcome of a successful Upgrade call.
type UpgradeResult struct {
	Subscription Subscription
	Plan         Plan
	Order        Order
	UpgradeInfo  UpgradeInfo
}

// Upgrade switches the user's active subscription to a new plan, locking
// in the new plan's price and recording the prorated difference on an
// upgrade order. Downgrades change the plan immediately; the refund
// amount is informational bookkeeping, no money moves from here.
func (s *Service) Upgrade(ctx context.Context, userID, newPlanID uuid.UUID) (*UpgradeResult, error) {
	now := s.now()
	var result UpgradeResult

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		sub, err := tx.GetCurrentSubscription(ctx, userID)
		if err != nil {
			if errors.Is(err, ErrSubscriptionNotFound) {
				return ErrNoActiveSubscription
			}
			return err
		}
		if sub.Status != StatusActive {
			return ErrNoActiveSubscription
		}

		oldPlan, err := tx.GetPlan(ctx, sub.PlanID)
		if err != nil {
			return err
		}
		newPlan, err := tx.GetPlan(ctx, newPlanID)
		if err != nil {
			return err
		}
		if !newPlan.IsActive {
			return ErrPlanNotFound
		}

		quote, err := upgradeQuote(sub, oldPlan, newPlan, now)
		if err != nil {
			return err
		}

		newPrice, err := newPlan.PriceFor(sub.BillingType)
		if err != nil {
			return err
		}

		sub.PlanID = newPlan.ID
		sub.Price = newPrice
		sub.UpdatedAt = now
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return err
		}

		amount := quote.Difference
		if amount < 0 {
			amount = 0
		}
		// The upgrade charge is settled as part of the plan change; the
		// order is the bookkeeping record of that settlement.
		paidAt := now
		order := Order{
			ID:             uuid.New(),
			UserID:         userID,
			Type:           OrderTypeUpgrade,
			Amount:         amount,
			Status:         OrderStatusPaid,
			SubscriptionID: sub.ID,
			PaidAt:         &paidAt,
			Metadata: map[string]string{
				"old_plan_id":   oldPlan.ID.String(),
				"old_plan_name": oldPlan.Name,
				"new_plan_id":   newPlan.ID.String(),
				"new_plan_name": newPlan.Name,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		result = UpgradeResult{
			Subscription: sub,
			Plan:         newPlan,
			Order:        order,
			UpgradeInfo: UpgradeInfo{
				OldPlan:       oldPlan,
				NewPlan:       newPlan,
				UpgradeAmount: amount,
				RemainingDays: quote.RemainingDays,
				NeedsRefund:   quote.NeedsRefund,
				RefundAmount:  quote.RefundAmount,
			},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription upgraded",
		logger.UserID(userID),
		logger.SubscriptionID(result.Subscription.ID),
		logger.PlanID(newPlanID),
		slog.Int64("upgrade_amount", int64(result.UpgradeInfo.UpgradeAmount)),
	)
	return &result, nil
}

// Cancel stops the user's active subscription. The record stays
// readable for history, but it immediately fails quota checks and will
// not auto-renew.
func (s *Service) Cancel(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	now := s.now()
	var cancelled Subscription

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		sub, err := tx.GetCurrentSubscription(ctx, userID)
		if err != nil {
			if errors.Is(err, ErrSubscriptionNotFound) {
				return ErrNoActiveSubscription
			}
			return err
		}
		if sub.Status != StatusActive {
			return ErrNoActiveSubscription
		}

		if err := sub.transitionTo(StatusCancelled, now); err != nil {
			return err
		}
		sub.AutoRenew = false
		cancelledAt := now
		sub.CancelledAt = &cancelledAt

		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return err
		}
		cancelled = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "subscription cancelled",
		logger.UserID(userID),
		logger.SubscriptionID(cancelled.ID),
	)
	return &cancelled, nil
}

// CurrentSubscription describes the user's current subscription with
// its plan and usage. Nil when the user has no active or pending
// subscription; that is an ordinary answer, not an error.
type CurrentSubscription struct {
	Subscription Subscription
	Plan         Plan
	Usage        UsageInfo
}

// GetCurrentSubscription returns the user's newest active-or-pending
// subscription, or nil if there is none.
func (s *Service) GetCurrentSubscription(ctx context.Context, userID uuid.UUID) (*CurrentSubscription, error) {
	sub, err := s.store.GetCurrentSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil, nil
		}
		return nil, err
	}

	plan, err := s.store.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	used, err := s.store.CountResources(ctx, sub.UserID, usagePeriodStart(sub, s.now()))
	if err != nil {
		return nil, err
	}

	return &CurrentSubscription{
		Subscription: sub,
		Plan:         plan,
		Usage:        usageInfo(plan.ProjectQuota(), used),
	}, nil
}

// UsageInfo reports consumption against a plan limit. Total and
// Remaining are UnlimitedCredits (-1) for unlimited quotas.
type UsageInfo struct {
	Used      int64
	Total     int64
	Remaining int64
}

func usageInfo(q Quota, used int64) UsageInfo {
	if q.IsUnlimited() {
		return UsageInfo{Used: used, Total: UnlimitedCredits, Remaining: UnlimitedCredits}
	}
	return UsageInfo{Used: used, Total: q.Limit(), Remaining: q.Remaining(used)}
}

// UsageReport holds per-resource usage for the user's subscription.
type UsageReport struct {
	Projects UsageInfo
}

// Usage returns the user's quota consumption for the current period.
// Fails with ErrNoActiveSubscription when the user has no active
// subscription to meter against.
func (s *Service) Usage(ctx context.Context, userID uuid.UUID) (*UsageReport, error) {
	sub, err := s.store.GetCurrentSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}

	plan, err := s.store.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	used, err := s.store.CountResources(ctx, userID, usagePeriodStart(sub, s.now()))
	if err != nil {
		return nil, err
	}

	return &UsageReport{Projects: usageInfo(plan.ProjectQuota(), used)}, nil
}

// HistoryItem pairs a past or present subscription with its orders.
type HistoryItem struct {
	Subscription Subscription
	Plan         Plan
	Orders       []Order
}

// Pagination describes the page window of a listing.
type Pagination struct {
	Page       int
	Limit      int
	Total      int64
	TotalPages int64
}

// HistoryPage is one page of the user's subscription history.
type HistoryPage struct {
	Items      []HistoryItem
	Pagination Pagination
}

// History returns the user's subscriptions newest first, each with its
// related orders.
func (s *Service) History(ctx context.Context, userID uuid.UUID, page, limit int) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	subs, total, err := s.store.ListSubscriptionsByUser(ctx, userID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}

	items := make([]HistoryItem, 0, len(subs))
	for _, sub := range subs {
		plan, err := s.store.GetPlan(ctx, sub.PlanID)
		if err != nil && !errors.Is(err, ErrPlanNotFound) {
			return nil, err
		}
		orders, err := s.store.ListOrdersBySubscription(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, HistoryItem{Subscription: sub, Plan: plan, Orders: orders})
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	return &HistoryPage{
		Items: items,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// usagePeriodStart returns the start of the current metering window:
// the later of the subscription start and the first day of the current
// calendar month, so monthly quotas reset on the 1st.
func usagePeriodStart(sub Subscription, now time.Time) time.Time {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	if sub.StartDate.After(monthStart) {
		return sub.StartDate
	}
	return monthStart
}

// discardHandler is a slog.Handler that drops everything; used when no
// logger is injected.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
