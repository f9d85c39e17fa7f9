package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/email"
)

// Notifier informs customers about lifecycle events. Calls happen after
// the owning transaction commits; a notification failure is logged, it
// never rolls back billing state.
type Notifier interface {
	SubscriptionExpired(ctx context.Context, sub Subscription, plan Plan) error
	RenewalOrderCreated(ctx context.Context, sub Subscription, order Order) error
}

// NoopNotifier discards all notifications. Used when no notifier is
// configured, and in tests.
type NoopNotifier struct{}

func (NoopNotifier) SubscriptionExpired(context.Context, Subscription, Plan) error { return nil }
func (NoopNotifier) RenewalOrderCreated(context.Context, Subscription, Order) error {
	return nil
}

// UserEmailResolver maps a user id to the address notifications go to.
// User accounts live outside this engine.
type UserEmailResolver func(ctx context.Context, userID uuid.UUID) (string, error)

// EmailNotifier sends lifecycle notifications through the email package.
type EmailNotifier struct {
	sender  email.Sender
	resolve UserEmailResolver
}

// NewEmailNotifier builds a notifier over the given sender. Panics on
// nil dependencies to fail fast at wiring time.
func NewEmailNotifier(sender email.Sender, resolve UserEmailResolver) *EmailNotifier {
	if sender == nil {
		panic("billing: email sender is required")
	}
	if resolve == nil {
		panic("billing: user email resolver is required")
	}
	return &EmailNotifier{sender: sender, resolve: resolve}
}

func (n *EmailNotifier) SubscriptionExpired(ctx context.Context, sub Subscription, plan Plan) error {
	addr, err := n.resolve(ctx, sub.UserID)
	if err != nil {
		return err
	}
	return n.sender.SendEmail(ctx, email.SendParams{
		SendTo:  addr,
		Subject: "Your subscription has expired",
		BodyHTML: fmt.Sprintf(
			"<p>Your <strong>%s</strong> subscription expired on %s. Renew to keep creating projects.</p>",
			plan.Name, sub.EndDate.Format("January 2, 2006"),
		),
		Tag: "subscription-expired",
	})
}

func (n *EmailNotifier) RenewalOrderCreated(ctx context.Context, sub Subscription, order Order) error {
	addr, err := n.resolve(ctx, sub.UserID)
	if err != nil {
		return err
	}
	return n.sender.SendEmail(ctx, email.SendParams{
		SendTo:  addr,
		Subject: "Renewal payment due",
		BodyHTML: fmt.Sprintf(
			"<p>A renewal order for %d.%02d is awaiting payment. Complete it to restore your subscription.</p>",
			order.Amount/100, order.Amount%100,
		),
		Tag: "renewal-order-created",
	})
}
