package billing

import (
	"time"

	"github.com/google/uuid"
)

// Order records one charge attempt tied to a subscription action.
// An order moves from pending to paid exactly once, driven by the
// payment gateway callback; duplicate callbacks are no-ops.
type Order struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Type           OrderType
	Amount         Money
	Status         OrderStatus
	SubscriptionID uuid.UUID
	TransactionID  string // external payment reference, empty until paid
	PaidAt         *time.Time
	Metadata       map[string]string // plan id/name snapshot at creation time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsPaid reports whether the order has already been settled.
func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusPaid
}

// markPaid settles the order with the external transaction reference.
func (o *Order) markPaid(transactionID string, paidAt time.Time) {
	o.Status = OrderStatusPaid
	o.TransactionID = transactionID
	o.PaidAt = &paidAt
	o.UpdatedAt = paidAt
}
