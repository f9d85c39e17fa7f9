package billing

import (
	"time"

	"github.com/dmitrymomot/billingkit/svc/billing"
)

// planView is the wire representation of a plan. Prices are in cents;
// a zero quota means unlimited, mirrored as -1 on the wire so clients
// never special-case zero.
type planView struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	MonthlyPrice   int64    `json:"monthly_price"`
	YearlyPrice    int64    `json:"yearly_price"`
	Features       []string `json:"features,omitempty"`
	MaxProjects    int64    `json:"max_projects"`
	MaxStorageMB   int64    `json:"max_storage_mb"`
	MaxTeamMembers int64    `json:"max_team_members"`
}

func wireQuota(stored int64) int64 {
	if stored == 0 {
		return billing.UnlimitedCredits
	}
	return stored
}

func toPlanView(p billing.Plan) planView {
	return planView{
		ID:             p.ID.String(),
		Name:           p.Name,
		Description:    p.Description,
		MonthlyPrice:   int64(p.MonthlyPrice),
		YearlyPrice:    int64(p.YearlyPrice),
		Features:       p.Features,
		MaxProjects:    wireQuota(p.MaxProjects),
		MaxStorageMB:   wireQuota(p.MaxStorageMB),
		MaxTeamMembers: wireQuota(p.MaxTeamMembers),
	}
}

type subscriptionView struct {
	ID          string     `json:"id"`
	PlanID      string     `json:"plan_id"`
	BillingType string     `json:"billing_type"`
	Status      string     `json:"status"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	Price       int64      `json:"price"`
	AutoRenew   bool       `json:"auto_renew"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

func toSubscriptionView(s billing.Subscription) subscriptionView {
	return subscriptionView{
		ID:          s.ID.String(),
		PlanID:      s.PlanID.String(),
		BillingType: string(s.BillingType),
		Status:      string(s.Status),
		StartDate:   s.StartDate,
		EndDate:     s.EndDate,
		Price:       int64(s.Price),
		AutoRenew:   s.AutoRenew,
		CancelledAt: s.CancelledAt,
	}
}

type orderView struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	Amount        int64      `json:"amount"`
	Status        string     `json:"status"`
	TransactionID string     `json:"transaction_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toOrderView(o billing.Order) orderView {
	return orderView{
		ID:            o.ID.String(),
		Type:          string(o.Type),
		Amount:        int64(o.Amount),
		Status:        string(o.Status),
		TransactionID: o.TransactionID,
		PaidAt:        o.PaidAt,
		CreatedAt:     o.CreatedAt,
	}
}

type usageView struct {
	Used      int64 `json:"used"`
	Total     int64 `json:"total"`
	Remaining int64 `json:"remaining"`
}

func toUsageView(u billing.UsageInfo) usageView {
	return usageView{Used: u.Used, Total: u.Total, Remaining: u.Remaining}
}

type currentView struct {
	Subscription subscriptionView `json:"subscription"`
	Plan         planView         `json:"plan"`
	Usage        usageView        `json:"usage"`
}

type historyItemView struct {
	Subscription subscriptionView `json:"subscription"`
	PlanName     string           `json:"plan_name,omitempty"`
	Orders       []orderView      `json:"orders"`
}

type upgradeQuoteView struct {
	CurrentPrice  int64 `json:"current_price"`
	NewPrice      int64 `json:"new_price"`
	Difference    int64 `json:"difference"`
	RemainingDays int   `json:"remaining_days"`
	NeedsRefund   bool  `json:"needs_refund"`
	RefundAmount  int64 `json:"refund_amount"`
}

type renewalCheckView struct {
	CanRenew        bool      `json:"can_renew"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
	ExpiryDate      time.Time `json:"expiry_date"`
	RenewalPrice    int64     `json:"renewal_price"`
	Message         string    `json:"message,omitempty"`
}
