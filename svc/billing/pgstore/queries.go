package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/billingkit/pkg/pg"
	"github.com/dmitrymomot/billingkit/svc/billing"
)

const planColumns = `id, name, description, monthly_price, yearly_price, features,
	max_projects, max_storage_mb, max_team_members, is_active, created_at, updated_at`

func scanPlan(row pgx.Row) (billing.Plan, error) {
	var p billing.Plan
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.MonthlyPrice, &p.YearlyPrice, &p.Features,
		&p.MaxProjects, &p.MaxStorageMB, &p.MaxTeamMembers, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (s *Store) GetPlan(ctx context.Context, id uuid.UUID) (billing.Plan, error) {
	plan, err := scanPlan(s.q.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
	if err != nil {
		return billing.Plan{}, notFound(err, billing.ErrPlanNotFound)
	}
	return plan, nil
}

func (s *Store) ListActivePlans(ctx context.Context) ([]billing.Plan, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+planColumns+` FROM plans WHERE is_active ORDER BY monthly_price, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []billing.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (s *Store) CreatePlan(ctx context.Context, plan billing.Plan) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO plans (id, name, description, monthly_price, yearly_price, features,
			max_projects, max_storage_mb, max_team_members, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		plan.ID, plan.Name, plan.Description, plan.MonthlyPrice, plan.YearlyPrice, plan.Features,
		plan.MaxProjects, plan.MaxStorageMB, plan.MaxTeamMembers, plan.IsActive, plan.CreatedAt, plan.UpdatedAt,
	)
	return err
}

const subscriptionColumns = `id, user_id, plan_id, billing_type, status, start_date, end_date,
	price, auto_renew, cancelled_at, created_at, updated_at`

func scanSubscription(row pgx.Row) (billing.Subscription, error) {
	var sub billing.Subscription
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.BillingType, &sub.Status, &sub.StartDate, &sub.EndDate,
		&sub.Price, &sub.AutoRenew, &sub.CancelledAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	return sub, err
}

// rowLock appends FOR UPDATE inside transactions so concurrent writers
// to the same subscription or order serialize on the row lock.
func (s *Store) rowLock() string {
	if s.inTx {
		return " FOR UPDATE"
	}
	return ""
}

func (s *Store) GetSubscription(ctx context.Context, id uuid.UUID) (billing.Subscription, error) {
	sub, err := scanSubscription(s.q.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`+s.rowLock(), id))
	if err != nil {
		return billing.Subscription{}, notFound(err, billing.ErrSubscriptionNotFound)
	}
	return sub, nil
}

func (s *Store) GetCurrentSubscription(ctx context.Context, userID uuid.UUID) (billing.Subscription, error) {
	sub, err := scanSubscription(s.q.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = $1 AND status IN ('active', 'pending')
		ORDER BY created_at DESC LIMIT 1`+s.rowLock(), userID))
	if err != nil {
		return billing.Subscription{}, notFound(err, billing.ErrSubscriptionNotFound)
	}
	return sub, nil
}

func (s *Store) ListSubscriptionsByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]billing.Subscription, int64, error) {
	var total int64
	if err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.q.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = $1 ORDER BY created_at DESC OFFSET $2 LIMIT $3`,
		userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var subs []billing.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, 0, err
		}
		subs = append(subs, sub)
	}
	return subs, total, rows.Err()
}

func (s *Store) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]billing.Subscription, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status = 'active' AND end_date <= $1
		ORDER BY end_date LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []billing.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Store) CreateSubscription(ctx context.Context, sub billing.Subscription) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO subscriptions (id, user_id, plan_id, billing_type, status, start_date, end_date,
			price, auto_renew, cancelled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sub.ID, sub.UserID, sub.PlanID, sub.BillingType, sub.Status, sub.StartDate, sub.EndDate,
		sub.Price, sub.AutoRenew, sub.CancelledAt, sub.CreatedAt, sub.UpdatedAt,
	)
	// The partial unique index on (user_id) for live subscriptions is
	// the authoritative guard against double-subscribing.
	if pg.IsDuplicateKeyError(err) {
		return billing.ErrAlreadySubscribed
	}
	return err
}

func (s *Store) UpdateSubscription(ctx context.Context, sub billing.Subscription) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE subscriptions
		SET plan_id = $2, billing_type = $3, status = $4, start_date = $5, end_date = $6,
			price = $7, auto_renew = $8, cancelled_at = $9, updated_at = $10
		WHERE id = $1`,
		sub.ID, sub.PlanID, sub.BillingType, sub.Status, sub.StartDate, sub.EndDate,
		sub.Price, sub.AutoRenew, sub.CancelledAt, sub.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return billing.ErrAlreadySubscribed
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrSubscriptionNotFound
	}
	return nil
}

const orderColumns = `id, user_id, type, amount, status, subscription_id,
	transaction_id, paid_at, metadata, created_at, updated_at`

func scanOrder(row pgx.Row) (billing.Order, error) {
	var (
		o        billing.Order
		metadata []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.Type, &o.Amount, &o.Status, &o.SubscriptionID,
		&o.TransactionID, &o.PaidAt, &metadata, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return billing.Order{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &o.Metadata); err != nil {
			return billing.Order{}, fmt.Errorf("order %s metadata: %w", o.ID, err)
		}
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (billing.Order, error) {
	order, err := scanOrder(s.q.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`+s.rowLock(), id))
	if err != nil {
		return billing.Order{}, notFound(err, billing.ErrOrderNotFound)
	}
	return order, nil
}

func (s *Store) ListOrdersBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]billing.Order, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		WHERE subscription_id = $1 ORDER BY created_at DESC`, subscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []billing.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (s *Store) CreateOrder(ctx context.Context, order billing.Order) error {
	metadata, err := json.Marshal(order.Metadata)
	if err != nil {
		return fmt.Errorf("order metadata: %w", err)
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO orders (id, user_id, type, amount, status, subscription_id,
			transaction_id, paid_at, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		order.ID, order.UserID, order.Type, order.Amount, order.Status, order.SubscriptionID,
		order.TransactionID, order.PaidAt, metadata, order.CreatedAt, order.UpdatedAt,
	)
	return err
}

func (s *Store) UpdateOrder(ctx context.Context, order billing.Order) error {
	metadata, err := json.Marshal(order.Metadata)
	if err != nil {
		return fmt.Errorf("order metadata: %w", err)
	}
	tag, err := s.q.Exec(ctx, `
		UPDATE orders
		SET status = $2, transaction_id = $3, paid_at = $4, metadata = $5, updated_at = $6
		WHERE id = $1`,
		order.ID, order.Status, order.TransactionID, order.PaidAt, metadata, order.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrOrderNotFound
	}
	return nil
}

func (s *Store) CountResources(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	var n int64
	err := s.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM consumed_resources WHERE user_id = $1 AND created_at >= $2`,
		userID, since).Scan(&n)
	return n, err
}

func (s *Store) RecordResource(ctx context.Context, userID, resourceID uuid.UUID, createdAt time.Time) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO consumed_resources (user_id, resource_id, created_at) VALUES ($1, $2, $3)`,
		userID, resourceID, createdAt)
	return err
}
