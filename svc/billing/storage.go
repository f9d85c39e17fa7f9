package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract the billing engine consumes.
// Implementations return the package's not-found sentinels so callers
// can branch on errors.Is without knowing the storage backend.
type Store interface {
	// Plans. The catalog is reference data maintained externally;
	// CreatePlan exists for seeding and tests.
	GetPlan(ctx context.Context, id uuid.UUID) (Plan, error)
	ListActivePlans(ctx context.Context) ([]Plan, error)
	CreatePlan(ctx context.Context, plan Plan) error

	// Subscriptions.
	GetSubscription(ctx context.Context, id uuid.UUID) (Subscription, error)
	// GetCurrentSubscription returns the newest subscription for the
	// user whose status is active or pending.
	GetCurrentSubscription(ctx context.Context, userID uuid.UUID) (Subscription, error)
	// ListSubscriptionsByUser returns the user's subscriptions newest
	// first, plus the total count for pagination.
	ListSubscriptionsByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]Subscription, int64, error)
	// ListExpiredActive returns up to limit subscriptions that are
	// still active but whose end date is at or before now.
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]Subscription, error)
	CreateSubscription(ctx context.Context, sub Subscription) error
	UpdateSubscription(ctx context.Context, sub Subscription) error

	// Orders.
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	ListOrdersBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]Order, error)
	CreateOrder(ctx context.Context, order Order) error
	UpdateOrder(ctx context.Context, order Order) error

	// Quota consumption. Usage is derived by counting resources, not by
	// decrementing a stored balance.
	CountResources(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error)
	RecordResource(ctx context.Context, userID, resourceID uuid.UUID, createdAt time.Time) error
}

// UnitOfWork is a Store that can execute a function atomically: every
// Store call made through the transactional handle commits together or
// not at all. Implementations must also make concurrent transactions
// touching the same subscription serialize, so a quota re-check inside
// a transaction observes committed sibling writes.
type UnitOfWork interface {
	Store

	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
