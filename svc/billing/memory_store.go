package billing

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements UnitOfWork with in-memory maps. Transactions
// work on a deep copy of the state and swap it in on success, so a
// failed transaction leaves nothing behind. A single mutex serializes
// transactions, which satisfies the UnitOfWork serializability
// contract. Intended for tests and local development.
type MemoryStore struct {
	mu sync.Mutex
	st *memState
}

type resourceRecord struct {
	UserID     uuid.UUID
	ResourceID uuid.UUID
	CreatedAt  time.Time
}

type memState struct {
	plans         map[uuid.UUID]Plan
	subscriptions map[uuid.UUID]Subscription
	orders        map[uuid.UUID]Order
	resources     []resourceRecord
}

func newMemState() *memState {
	return &memState{
		plans:         make(map[uuid.UUID]Plan),
		subscriptions: make(map[uuid.UUID]Subscription),
		orders:        make(map[uuid.UUID]Order),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		plans:         maps.Clone(s.plans),
		subscriptions: maps.Clone(s.subscriptions),
		orders:        make(map[uuid.UUID]Order, len(s.orders)),
		resources:     slices.Clone(s.resources),
	}
	for id, o := range s.orders {
		o.Metadata = maps.Clone(o.Metadata)
		c.orders[id] = o
	}
	return c
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: newMemState()}
}

// WithinTx runs fn against a snapshot of the store. The snapshot
// replaces the live state only when fn returns nil. Transactions must
// not nest.
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{st: m.st.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.st = tx.st
	return nil
}

func (m *MemoryStore) GetPlan(ctx context.Context, id uuid.UUID) (Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.getPlan(id)
}

func (m *MemoryStore) ListActivePlans(ctx context.Context) ([]Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listActivePlans()
}

func (m *MemoryStore) CreatePlan(ctx context.Context, plan Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.createPlan(plan)
}

func (m *MemoryStore) GetSubscription(ctx context.Context, id uuid.UUID) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.getSubscription(id)
}

func (m *MemoryStore) GetCurrentSubscription(ctx context.Context, userID uuid.UUID) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.getCurrentSubscription(userID)
}

func (m *MemoryStore) ListSubscriptionsByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]Subscription, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listSubscriptionsByUser(userID, offset, limit)
}

func (m *MemoryStore) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listExpiredActive(now, limit)
}

func (m *MemoryStore) CreateSubscription(ctx context.Context, sub Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.createSubscription(sub)
}

func (m *MemoryStore) UpdateSubscription(ctx context.Context, sub Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updateSubscription(sub)
}

func (m *MemoryStore) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.getOrder(id)
}

func (m *MemoryStore) ListOrdersBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.listOrdersBySubscription(subscriptionID)
}

func (m *MemoryStore) CreateOrder(ctx context.Context, order Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.createOrder(order)
}

func (m *MemoryStore) UpdateOrder(ctx context.Context, order Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.updateOrder(order)
}

func (m *MemoryStore) CountResources(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.countResources(userID, since)
}

func (m *MemoryStore) RecordResource(ctx context.Context, userID, resourceID uuid.UUID, createdAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.recordResource(userID, resourceID, createdAt)
}

// memTx is the transactional view handed to WithinTx callbacks. The
// outer mutex is already held, so it operates lock-free on its clone.
type memTx struct {
	st *memState
}

func (t *memTx) GetPlan(ctx context.Context, id uuid.UUID) (Plan, error) {
	return t.st.getPlan(id)
}

func (t *memTx) ListActivePlans(ctx context.Context) ([]Plan, error) {
	return t.st.listActivePlans()
}

func (t *memTx) CreatePlan(ctx context.Context, plan Plan) error {
	return t.st.createPlan(plan)
}

func (t *memTx) GetSubscription(ctx context.Context, id uuid.UUID) (Subscription, error) {
	return t.st.getSubscription(id)
}

func (t *memTx) GetCurrentSubscription(ctx context.Context, userID uuid.UUID) (Subscription, error) {
	return t.st.getCurrentSubscription(userID)
}

func (t *memTx) ListSubscriptionsByUser(ctx context.Context, userID uuid.UUID, offset, limit int) ([]Subscription, int64, error) {
	return t.st.listSubscriptionsByUser(userID, offset, limit)
}

func (t *memTx) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]Subscription, error) {
	return t.st.listExpiredActive(now, limit)
}

func (t *memTx) CreateSubscription(ctx context.Context, sub Subscription) error {
	return t.st.createSubscription(sub)
}

func (t *memTx) UpdateSubscription(ctx context.Context, sub Subscription) error {
	return t.st.updateSubscription(sub)
}

func (t *memTx) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return t.st.getOrder(id)
}

func (t *memTx) ListOrdersBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]Order, error) {
	return t.st.listOrdersBySubscription(subscriptionID)
}

func (t *memTx) CreateOrder(ctx context.Context, order Order) error {
	return t.st.createOrder(order)
}

func (t *memTx) UpdateOrder(ctx context.Context, order Order) error {
	return t.st.updateOrder(order)
}

func (t *memTx) CountResources(ctx context.Context, userID uuid.UUID, since time.Time) (int64, error) {
	return t.st.countResources(userID, since)
}

func (t *memTx) RecordResource(ctx context.Context, userID, resourceID uuid.UUID, createdAt time.Time) error {
	return t.st.recordResource(userID, resourceID, createdAt)
}

func (s *memState) getPlan(id uuid.UUID) (Plan, error) {
	plan, ok := s.plans[id]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return plan, nil
}

func (s *memState) listActivePlans() ([]Plan, error) {
	plans := make([]Plan, 0, len(s.plans))
	for _, p := range s.plans {
		if p.IsActive {
			plans = append(plans, p)
		}
	}
	slices.SortFunc(plans, func(a, b Plan) int {
		if c := int(a.MonthlyPrice - b.MonthlyPrice); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return plans, nil
}

func (s *memState) createPlan(plan Plan) error {
	s.plans[plan.ID] = plan
	return nil
}

func (s *memState) getSubscription(id uuid.UUID) (Subscription, error) {
	sub, ok := s.subscriptions[id]
	if !ok {
		return Subscription{}, ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *memState) getCurrentSubscription(userID uuid.UUID) (Subscription, error) {
	var (
		found   bool
		current Subscription
	)
	for _, sub := range s.subscriptions {
		if sub.UserID != userID {
			continue
		}
		if sub.Status != StatusActive && sub.Status != StatusPending {
			continue
		}
		if !found || sub.CreatedAt.After(current.CreatedAt) {
			current = sub
			found = true
		}
	}
	if !found {
		return Subscription{}, ErrSubscriptionNotFound
	}
	return current, nil
}

func (s *memState) listSubscriptionsByUser(userID uuid.UUID, offset, limit int) ([]Subscription, int64, error) {
	var all []Subscription
	for _, sub := range s.subscriptions {
		if sub.UserID == userID {
			all = append(all, sub)
		}
	}
	slices.SortFunc(all, func(a, b Subscription) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return slices.Clone(all[offset:end]), total, nil
}

func (s *memState) listExpiredActive(now time.Time, limit int) ([]Subscription, error) {
	var expired []Subscription
	for _, sub := range s.subscriptions {
		if sub.Status == StatusActive && !sub.EndDate.After(now) {
			expired = append(expired, sub)
		}
	}
	slices.SortFunc(expired, func(a, b Subscription) int {
		return a.EndDate.Compare(b.EndDate)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func (s *memState) createSubscription(sub Subscription) error {
	if sub.Status == StatusActive || sub.Status == StatusPending {
		if _, err := s.getCurrentSubscription(sub.UserID); err == nil {
			return ErrAlreadySubscribed
		}
	}
	s.subscriptions[sub.ID] = sub
	return nil
}

func (s *memState) updateSubscription(sub Subscription) error {
	if _, ok := s.subscriptions[sub.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	s.subscriptions[sub.ID] = sub
	return nil
}

func (s *memState) getOrder(id uuid.UUID) (Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	order.Metadata = maps.Clone(order.Metadata)
	return order, nil
}

func (s *memState) listOrdersBySubscription(subscriptionID uuid.UUID) ([]Order, error) {
	var orders []Order
	for _, o := range s.orders {
		if o.SubscriptionID == subscriptionID {
			o.Metadata = maps.Clone(o.Metadata)
			orders = append(orders, o)
		}
	}
	slices.SortFunc(orders, func(a, b Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return orders, nil
}

func (s *memState) createOrder(order Order) error {
	order.Metadata = maps.Clone(order.Metadata)
	s.orders[order.ID] = order
	return nil
}

func (s *memState) updateOrder(order Order) error {
	if _, ok := s.orders[order.ID]; !ok {
		return ErrOrderNotFound
	}
	order.Metadata = maps.Clone(order.Metadata)
	s.orders[order.ID] = order
	return nil
}

func (s *memState) countResources(userID uuid.UUID, since time.Time) (int64, error) {
	var n int64
	for _, r := range s.resources {
		if r.UserID == userID && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *memState) recordResource(userID, resourceID uuid.UUID, createdAt time.Time) error {
	s.resources = append(s.resources, resourceRecord{
		UserID:     userID,
		ResourceID: resourceID,
		CreatedAt:  createdAt,
	})
	return nil
}
