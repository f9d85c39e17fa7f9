package billing

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/billingkit/core"
	"github.com/dmitrymomot/billingkit/svc/billing"
)

// statusFor maps billing error codes to HTTP statuses: missing things
// are 404, business-rule conflicts are 422, bad input is 400.
var statusFor = map[string]int{
	"PLAN_NOT_FOUND":         http.StatusNotFound,
	"SUBSCRIPTION_NOT_FOUND": http.StatusNotFound,
	"ORDER_NOT_FOUND":        http.StatusNotFound,
	"ALREADY_SUBSCRIBED":     http.StatusUnprocessableEntity,
	"NO_ACTIVE_SUBSCRIPTION": http.StatusUnprocessableEntity,
	"SAME_PLAN":              http.StatusUnprocessableEntity,
	"PRICE_NOT_SET":          http.StatusUnprocessableEntity,
	"INVALID_BILLING_TYPE":   http.StatusBadRequest,
	"INVALID_AMOUNT":         http.StatusBadRequest,
	"INVALID_TRANSITION":     http.StatusUnprocessableEntity,
}

// writeError translates a service error into the JSON envelope,
// preserving the domain's machine code for anything in its taxonomy.
func writeError(w http.ResponseWriter, err error) {
	if code := billing.ErrorCode(err); code != "" {
		status, ok := statusFor[code]
		if !ok {
			status = http.StatusUnprocessableEntity
		}
		core.WriteJSONError(w, core.NewHTTPError(status, code, err.Error()))
		return
	}

	var httpErr core.HTTPError
	if errors.As(err, &httpErr) {
		core.WriteJSONError(w, httpErr)
		return
	}
	core.WriteJSONError(w, err)
}

var errUnauthorized = core.NewHTTPError(http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
