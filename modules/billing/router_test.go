package billing_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	module "github.com/dmitrymomot/billingkit/modules/billing"
	"github.com/dmitrymomot/billingkit/svc/billing"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type testAPI struct {
	handler http.Handler
	svc     *billing.Service
	starter billing.Plan
	pro     billing.Plan
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := billing.NewMemoryStore()
	api := &testAPI{
		starter: billing.Plan{
			ID: uuid.New(), Name: "Starter",
			MonthlyPrice: 1000, YearlyPrice: 10000,
			MaxProjects: 3, IsActive: true,
		},
		pro: billing.Plan{
			ID: uuid.New(), Name: "Pro",
			MonthlyPrice: 3000, YearlyPrice: 30000,
			MaxProjects: 20, IsActive: true,
		},
	}
	ctx := context.Background()
	require.NoError(t, store.CreatePlan(ctx, api.starter))
	require.NoError(t, store.CreatePlan(ctx, api.pro))

	api.svc = billing.NewService(store, billing.WithClock(func() time.Time { return testNow }))
	api.handler = module.HeaderAuth(module.Router(api.svc))
	return api
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *testAPI) do(t *testing.T, method, path, userID, body string) (int, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

// subscribe runs the subscribe+pay flow through the API and returns the
// order ID from the subscribe response.
func (a *testAPI) subscribeAndPay(t *testing.T, userID string, planID uuid.UUID) {
	t.Helper()

	status, env := a.do(t, http.MethodPost, "/subscribe", userID,
		`{"plan_id":"`+planID.String()+`","billing_type":"monthly"}`)
	require.Equal(t, http.StatusCreated, status)

	var data struct {
		Order struct {
			ID string `json:"id"`
		} `json:"order"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	status, _ = a.do(t, http.MethodPost, "/renew-callback", "",
		`{"order_id":"`+data.Order.ID+`","payment_status":"success","transaction_id":"txn-1"}`)
	require.Equal(t, http.StatusOK, status)
}

func TestRouter_Plans(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	status, env := api.do(t, http.MethodGet, "/plans", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	var plans []struct {
		Name        string `json:"name"`
		MaxProjects int64  `json:"max_projects"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &plans))
	require.Len(t, plans, 2)
	// Ordered by monthly price ascending.
	assert.Equal(t, "Starter", plans[0].Name)
	assert.Equal(t, int64(3), plans[0].MaxProjects)
}

func TestRouter_Auth(t *testing.T) {
	t.Parallel()

	api := newTestAPI(t)
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/current"},
		{http.MethodGet, "/usage"},
		{http.MethodGet, "/history"},
		{http.MethodPost, "/subscribe"},
		{http.MethodPost, "/upgrade"},
		{http.MethodPost, "/cancel"},
	} {
		status, env := api.do(t, route.method, route.path, "", "{}")
		assert.Equal(t, http.StatusUnauthorized, status, "%s %s", route.method, route.path)
		require.NotNil(t, env.Error)
		assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
	}
}

func TestRouter_Subscribe(t *testing.T) {
	t.Parallel()

	t.Run("creates subscription and returns payment link", func(t *testing.T) {
		api := newTestAPI(t)
		userID := uuid.New().String()

		status, env := api.do(t, http.MethodPost, "/subscribe", userID,
			`{"plan_id":"`+api.starter.ID.String()+`","billing_type":"monthly"}`)
		require.Equal(t, http.StatusCreated, status)

		var data struct {
			Subscription struct {
				Status string `json:"status"`
			} `json:"subscription"`
			PaymentLink string `json:"payment_link"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "pending", data.Subscription.Status)
		assert.NotEmpty(t, data.PaymentLink)
	})

	t.Run("duplicate subscription maps to 422", func(t *testing.T) {
		api := newTestAPI(t)
		userID := uuid.New().String()
		api.subscribeAndPay(t, userID, api.starter.ID)

		status, env := api.do(t, http.MethodPost, "/subscribe", userID,
			`{"plan_id":"`+api.pro.ID.String()+`","billing_type":"monthly"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "ALREADY_SUBSCRIBED", env.Error.Code)
	})

	t.Run("unknown plan maps to 404", func(t *testing.T) {
		api := newTestAPI(t)

		status, env := api.do(t, http.MethodPost, "/subscribe", uuid.New().String(),
			`{"plan_id":"`+uuid.New().String()+`","billing_type":"monthly"}`)
		assert.Equal(t, http.StatusNotFound, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "PLAN_NOT_FOUND", env.Error.Code)
	})

	t.Run("bad billing type maps to 400", func(t *testing.T) {
		api := newTestAPI(t)

		status, env := api.do(t, http.MethodPost, "/subscribe", uuid.New().String(),
			`{"plan_id":"`+api.starter.ID.String()+`","billing_type":"weekly"}`)
		assert.Equal(t, http.StatusBadRequest, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "INVALID_BILLING_TYPE", env.Error.Code)
	})

	t.Run("malformed body maps to 400", func(t *testing.T) {
		api := newTestAPI(t)

		status, _ := api.do(t, http.MethodPost, "/subscribe", uuid.New().String(), "{not json")
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestRouter_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("current reflects the paid subscription", func(t *testing.T) {
		api := newTestAPI(t)
		userID := uuid.New().String()
		api.subscribeAndPay(t, userID, api.starter.ID)

		status, env := api.do(t, http.MethodGet, "/current", userID, "")
		require.Equal(t, http.StatusOK, status)

		var data struct {
			Subscription struct {
				Status string `json:"status"`
			} `json:"subscription"`
			Usage struct {
				Total     int64 `json:"total"`
				Remaining int64 `json:"remaining"`
			} `json:"usage"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "active", data.Subscription.Status)
		assert.Equal(t, int64(3), data.Usage.Total)
		assert.Equal(t, int64(3), data.Usage.Remaining)
	})

	t.Run("current is null without a subscription", func(t *testing.T) {
		api := newTestAPI(t)

		status, env := api.do(t, http.MethodGet, "/current", uuid.New().String(), "")
		require.Equal(t, http.StatusOK, status)
		assert.True(t, env.Success)
		assert.Empty(t, env.Data)
	})

	t.Run("upgrade switches plan and reports proration", func(t *testing.T) {
		api := newTestAPI(t)
		userID := uuid.New().String()
		api.subscribeAndPay(t, userID, api.starter.ID)

		status, env := api.do(t, http.MethodGet, "/upgrade?plan_id="+api.pro.ID.String(), userID, "")
		require.Equal(t, http.StatusOK, status)
		var quote struct {
			Difference int64 `json:"difference"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &quote))
		assert.Equal(t, int64(2000), quote.Difference)

		status, env = api.do(t, http.MethodPost, "/upgrade", userID,
			`{"plan_id":"`+api.pro.ID.String()+`"}`)
		require.Equal(t, http.StatusOK, status)

		var data struct {
			Subscription struct {
				PlanID string `json:"plan_id"`
				Price  int64  `json:"price"`
			} `json:"subscription"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, api.pro.ID.String(), data.Subscription.PlanID)
		assert.Equal(t, int64(3000), data.Subscription.Price)
	})

	t.Run("upgrade to same plan maps to 422", func(t *testing.T) {
		api := newTestAPI(t)
		userID := uuid.New().String()
		api.subscribeAndPay(t, userID, api.starter.ID)

		status, env := api.do(t, http.MethodPost, "/upgrade", userID,
			`{"plan_id":"`+api.starter.ID.String()+`"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "SAME_PLAN", env.Error.Code)
	})

	t.Run("cancel then current is null", func(t *testing.T) {
		api := newTestAPI(t)
		userID := uuid.New().String()
		api.subscribeAndPay(t, userID, api.starter.ID)

		status, env := api.do(t, http.MethodPost, "/cancel", userID, "{}")
		require.Equal(t, http.StatusOK, status)
		var sub struct {
			Status    string `json:"status"`
			AutoRenew bool   `json:"auto_renew"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &sub))
		assert.Equal(t, "cancelled", sub.Status)
		assert.False(t, sub.AutoRenew)

		status, env = api.do(t, http.MethodGet, "/current", userID, "")
		require.Equal(t, http.StatusOK, status)
		assert.Empty(t, env.Data)
	})

	t.Run("cancel without subscription maps to 422", func(t *testing.T) {
		api := newTestAPI(t)

		status, env := api.do(t, http.MethodPost, "/cancel", uuid.New().String(), "{}")
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "NO_ACTIVE_SUBSCRIPTION", env.Error.Code)
	})

	t.Run("history returns items with pagination meta", func(t *testing.T) {
		api := newTestAPI(t)
		userID := uuid.New().String()
		api.subscribeAndPay(t, userID, api.starter.ID)

		status, env := api.do(t, http.MethodGet, "/history?page=1&limit=5", userID, "")
		require.Equal(t, http.StatusOK, status)

		var items []struct {
			PlanName string `json:"plan_name"`
			Orders   []struct {
				Status string `json:"status"`
			} `json:"orders"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &items))
		require.Len(t, items, 1)
		assert.Equal(t, "Starter", items[0].PlanName)
		require.Len(t, items[0].Orders, 1)
		assert.Equal(t, "paid", items[0].Orders[0].Status)

		assert.EqualValues(t, 1, env.Meta["page"])
		assert.EqualValues(t, 5, env.Meta["limit"])
		assert.EqualValues(t, 1, env.Meta["total"])
	})

	t.Run("usage without subscription maps to 422", func(t *testing.T) {
		api := newTestAPI(t)

		status, env := api.do(t, http.MethodGet, "/usage", uuid.New().String(), "")
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "NO_ACTIVE_SUBSCRIPTION", env.Error.Code)
	})

	t.Run("renewal check reports the window", func(t *testing.T) {
		api := newTestAPI(t)
		userID := uuid.New().String()
		api.subscribeAndPay(t, userID, api.starter.ID)

		status, env := api.do(t, http.MethodGet, "/renewal", userID, "")
		require.Equal(t, http.StatusOK, status)

		var check struct {
			CanRenew        bool `json:"can_renew"`
			DaysUntilExpiry int  `json:"days_until_expiry"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &check))
		// Freshly subscribed: a full month away, outside the window.
		assert.False(t, check.CanRenew)
		assert.Equal(t, 30, check.DaysUntilExpiry)
	})

	t.Run("duplicate payment callback stays 200", func(t *testing.T) {
		api := newTestAPI(t)
		userID := uuid.New().String()

		status, env := api.do(t, http.MethodPost, "/subscribe", userID,
			`{"plan_id":"`+api.starter.ID.String()+`","billing_type":"monthly"}`)
		require.Equal(t, http.StatusCreated, status)
		var data struct {
			Order struct {
				ID string `json:"id"`
			} `json:"order"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))

		body := `{"order_id":"` + data.Order.ID + `","payment_status":"success","transaction_id":"txn"}`
		status, _ = api.do(t, http.MethodPost, "/renew-callback", "", body)
		require.Equal(t, http.StatusOK, status)
		status, _ = api.do(t, http.MethodPost, "/renew-callback", "", body)
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("callback for unknown order maps to 404", func(t *testing.T) {
		api := newTestAPI(t)

		status, env := api.do(t, http.MethodPost, "/renew-callback", "",
			`{"order_id":"`+uuid.New().String()+`","payment_status":"success"}`)
		assert.Equal(t, http.StatusNotFound, status)
		require.NotNil(t, env.Error)
		assert.Equal(t, "ORDER_NOT_FOUND", env.Error.Code)
	})
}
