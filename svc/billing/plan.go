package billing

import (
	"time"

	"github.com/google/uuid"
)

// Plan is a purchasable tier defining price and resource quotas.
// Plans are created and edited by an administrative process; the engine
// treats them as read-only reference data.
type Plan struct {
	ID             uuid.UUID
	Name           string
	Description    string
	MonthlyPrice   Money
	YearlyPrice    Money
	Features       []string
	MaxProjects    int64 // 0 means unlimited
	MaxStorageMB   int64 // 0 means unlimited
	MaxTeamMembers int64 // 0 means unlimited
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PriceFor returns the plan price for the given billing type.
// Returns ErrPriceNotSet when the plan has no price configured for it.
func (p Plan) PriceFor(t BillingType) (Money, error) {
	var price Money
	switch t {
	case BillingYearly:
		price = p.YearlyPrice
	case BillingMonthly:
		price = p.MonthlyPrice
	default:
		return 0, ErrInvalidBillingType
	}
	if price <= 0 {
		return 0, ErrPriceNotSet
	}
	return price, nil
}

// ProjectQuota returns the plan's project allowance as a Quota,
// converting the stored zero-means-unlimited sentinel exactly once.
func (p Plan) ProjectQuota() Quota {
	return QuotaFromLimit(p.MaxProjects)
}
