package billing

import "errors"

var (
	// Not-found conditions, surfaced as 404 by the HTTP adapter.
	ErrPlanNotFound         = errors.New("subscription plan not found or inactive")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrOrderNotFound        = errors.New("order not found")

	// Business-rule conflicts, surfaced as 422.
	ErrAlreadySubscribed    = errors.New("user already has an active or pending subscription")
	ErrNoActiveSubscription = errors.New("user has no active subscription")
	ErrSamePlan             = errors.New("subscription is already on this plan")
	ErrPriceNotSet          = errors.New("plan has no price for this billing type")

	// Validation and state errors.
	ErrInvalidBillingType = errors.New("invalid billing type")
	ErrInvalidAmount      = errors.New("requested amount must be positive")
	ErrInvalidTransition  = errors.New("invalid subscription status transition")
)

// codes maps domain errors to the stable machine codes clients key on.
var codes = map[error]string{
	ErrPlanNotFound:         "PLAN_NOT_FOUND",
	ErrSubscriptionNotFound: "SUBSCRIPTION_NOT_FOUND",
	ErrOrderNotFound:        "ORDER_NOT_FOUND",
	ErrAlreadySubscribed:    "ALREADY_SUBSCRIBED",
	ErrNoActiveSubscription: "NO_ACTIVE_SUBSCRIPTION",
	ErrSamePlan:             "SAME_PLAN",
	ErrPriceNotSet:          "PRICE_NOT_SET",
	ErrInvalidBillingType:   "INVALID_BILLING_TYPE",
	ErrInvalidAmount:        "INVALID_AMOUNT",
	ErrInvalidTransition:    "INVALID_TRANSITION",
}

// ErrorCode returns the machine code for a domain error, or an empty
// string for errors outside the billing taxonomy.
func ErrorCode(err error) string {
	for sentinel, code := range codes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ""
}
