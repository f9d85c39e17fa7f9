// Package billing exposes the subscription lifecycle engine over HTTP.
// All endpoints speak the shared JSON envelope; authenticated routes
// read the user from the request context set by auth middleware.
package billing

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/core"
	"github.com/dmitrymomot/billingkit/svc/billing"
)

// Router mounts the billing HTTP API:
//
//	GET  /plans               list active plans (public)
//	GET  /current             current subscription with usage
//	GET  /usage               quota consumption report
//	GET  /history             paginated subscription history
//	GET  /upgrade             prorated upgrade quote (?plan_id=)
//	GET  /renewal             renewal window check
//	POST /subscribe           start a subscription
//	POST /upgrade             switch plans
//	POST /cancel              cancel the current subscription
//	POST /renew-callback      payment gateway webhook (public)
func Router(svc *billing.Service) chi.Router {
	if svc == nil {
		panic("billing module: service is required")
	}
	h := &handlers{svc: svc}

	r := chi.NewRouter()
	r.Get("/plans", h.listPlans)
	r.Post("/renew-callback", h.paymentCallback)

	r.Get("/current", h.current)
	r.Get("/usage", h.usage)
	r.Get("/history", h.history)
	r.Get("/upgrade", h.upgradeQuote)
	r.Get("/renewal", h.renewalCheck)
	r.Post("/subscribe", h.subscribe)
	r.Post("/upgrade", h.upgrade)
	r.Post("/cancel", h.cancel)
	return r
}

type handlers struct {
	svc *billing.Service
}

// userID resolves the authenticated user or writes a 401.
func userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := UserIDFromContext(r.Context())
	if !ok {
		core.WriteJSONError(w, errUnauthorized)
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.WriteJSONError(w, core.NewHTTPError(http.StatusBadRequest, "INVALID_BODY", "invalid request body"))
		return false
	}
	return true
}

func (h *handlers) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.svc.ListActivePlans(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]planView, len(plans))
	for i, p := range plans {
		views[i] = toPlanView(p)
	}
	core.WriteJSON(w, http.StatusOK, views)
}

type subscribeRequest struct {
	PlanID      string `json:"plan_id"`
	BillingType string `json:"billing_type"`
}

func (h *handlers) subscribe(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req subscribeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		core.WriteJSONError(w, core.NewHTTPError(http.StatusBadRequest, "INVALID_PLAN_ID", "plan_id must be a UUID"))
		return
	}

	res, err := h.svc.Subscribe(r.Context(), uid, planID, billing.BillingType(req.BillingType))
	if err != nil {
		writeError(w, err)
		return
	}

	core.WriteJSON(w, http.StatusCreated, map[string]any{
		"subscription": toSubscriptionView(res.Subscription),
		"plan":         toPlanView(res.Plan),
		"order":        toOrderView(res.Order),
		"payment_link": res.PaymentLink,
	})
}

type callbackRequest struct {
	OrderID       string `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
	TransactionID string `json:"transaction_id"`
	PaidAmount    int64  `json:"paid_amount"`
	PaidAt        string `json:"paid_at,omitempty"`
}

func (h *handlers) paymentCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		core.WriteJSONError(w, core.NewHTTPError(http.StatusBadRequest, "INVALID_ORDER_ID", "order_id must be a UUID"))
		return
	}

	cb := billing.PaymentCallback{
		OrderID:       orderID,
		PaymentStatus: req.PaymentStatus,
		TransactionID: req.TransactionID,
		PaidAmount:    billing.Money(req.PaidAmount),
	}
	if req.PaidAt != "" {
		paidAt, err := time.Parse(time.RFC3339, req.PaidAt)
		if err != nil {
			core.WriteJSONError(w, core.NewHTTPError(http.StatusBadRequest, "INVALID_PAID_AT", "paid_at must be RFC 3339"))
			return
		}
		cb.PaidAt = &paidAt
	}

	res, err := h.svc.HandlePaymentCallback(r.Context(), cb)
	if err != nil {
		writeError(w, err)
		return
	}

	core.WriteJSON(w, http.StatusOK, map[string]any{
		"order":        toOrderView(res.Order),
		"subscription": toSubscriptionView(res.Subscription),
	})
}

func (h *handlers) current(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	cur, err := h.svc.GetCurrentSubscription(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	if cur == nil {
		// No subscription is an ordinary answer, not an error.
		core.WriteJSON(w, http.StatusOK, nil)
		return
	}

	core.WriteJSON(w, http.StatusOK, currentView{
		Subscription: toSubscriptionView(cur.Subscription),
		Plan:         toPlanView(cur.Plan),
		Usage:        toUsageView(cur.Usage),
	})
}

func (h *handlers) usage(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	report, err := h.svc.Usage(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{
		"projects": toUsageView(report.Projects),
	})
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	history, err := h.svc.History(r.Context(), uid, page, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]historyItemView, len(history.Items))
	for i, item := range history.Items {
		orders := make([]orderView, len(item.Orders))
		for j, o := range item.Orders {
			orders[j] = toOrderView(o)
		}
		items[i] = historyItemView{
			Subscription: toSubscriptionView(item.Subscription),
			PlanName:     item.Plan.Name,
			Orders:       orders,
		}
	}

	core.WriteJSONMeta(w, http.StatusOK, items, map[string]any{
		"page":        history.Pagination.Page,
		"limit":       history.Pagination.Limit,
		"total":       history.Pagination.Total,
		"total_pages": history.Pagination.TotalPages,
	})
}

func (h *handlers) upgradeQuote(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	planID, err := uuid.Parse(r.URL.Query().Get("plan_id"))
	if err != nil {
		core.WriteJSONError(w, core.NewHTTPError(http.StatusBadRequest, "INVALID_PLAN_ID", "plan_id must be a UUID"))
		return
	}

	cur, err := h.svc.GetCurrentSubscription(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	if cur == nil {
		writeError(w, billing.ErrNoActiveSubscription)
		return
	}

	quote, err := h.svc.CalculateUpgradePrice(r.Context(), cur.Subscription.ID, planID)
	if err != nil {
		writeError(w, err)
		return
	}

	core.WriteJSON(w, http.StatusOK, upgradeQuoteView{
		CurrentPrice:  int64(quote.CurrentPrice),
		NewPrice:      int64(quote.NewPrice),
		Difference:    int64(quote.Difference),
		RemainingDays: quote.RemainingDays,
		NeedsRefund:   quote.NeedsRefund,
		RefundAmount:  int64(quote.RefundAmount),
	})
}

type upgradeRequest struct {
	PlanID string `json:"plan_id"`
}

func (h *handlers) upgrade(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req upgradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	planID, err := uuid.Parse(req.PlanID)
	if err != nil {
		core.WriteJSONError(w, core.NewHTTPError(http.StatusBadRequest, "INVALID_PLAN_ID", "plan_id must be a UUID"))
		return
	}

	res, err := h.svc.Upgrade(r.Context(), uid, planID)
	if err != nil {
		writeError(w, err)
		return
	}

	oldPrice, _ := res.UpgradeInfo.OldPlan.PriceFor(res.Subscription.BillingType)
	core.WriteJSON(w, http.StatusOK, map[string]any{
		"subscription": toSubscriptionView(res.Subscription),
		"plan":         toPlanView(res.Plan),
		"order":        toOrderView(res.Order),
		"upgrade": upgradeQuoteView{
			CurrentPrice:  int64(oldPrice),
			NewPrice:      int64(res.Subscription.Price),
			Difference:    int64(res.UpgradeInfo.UpgradeAmount),
			RemainingDays: res.UpgradeInfo.RemainingDays,
			NeedsRefund:   res.UpgradeInfo.NeedsRefund,
			RefundAmount:  int64(res.UpgradeInfo.RefundAmount),
		},
	})
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	sub, err := h.svc.Cancel(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	core.WriteJSONMessage(w, http.StatusOK, toSubscriptionView(*sub), "subscription cancelled")
}

func (h *handlers) renewalCheck(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	cur, err := h.svc.GetCurrentSubscription(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	if cur == nil {
		writeError(w, billing.ErrNoActiveSubscription)
		return
	}

	check, err := h.svc.CheckRenewalAvailable(r.Context(), cur.Subscription.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	core.WriteJSON(w, http.StatusOK, renewalCheckView{
		CanRenew:        check.CanRenew,
		DaysUntilExpiry: check.DaysUntilExpiry,
		ExpiryDate:      check.ExpiryDate,
		RenewalPrice:    int64(check.RenewalPrice),
		Message:         check.Message,
	})
}
