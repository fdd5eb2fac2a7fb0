package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"invest-core/internal/handler/middleware"
	"invest-core/internal/model"
	"invest-core/internal/service"
	"invest-core/internal/testutil"
	"invest-core/pkg/cache"
	"invest-core/pkg/config"
	"invest-core/pkg/errno"
	"invest-core/pkg/utils/lock"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type harness struct {
	t  *testing.T
	db *gorm.DB
	r  *gin.Engine
}

func newHarness(t *testing.T) *harness {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	cfg := config.Config{
		Withdrawal: config.WithdrawalConfig{MinAmount: 5, MinWalletLength: 20},
		Cache:      config.CacheConfig{PlanTTL: time.Minute},
	}
	c := cache.NewMultiLevelCache(cache.NewMemoryCache(time.Minute, time.Minute), nil)
	svcs := NewServices(db, c, cfg)

	cron := service.NewCronService(lock.NewLocalLock(), time.Minute)
	require.NoError(t, svcs.RegisterJobs(cron, config.JobsConfig{}))

	return &harness{t: t, db: db, r: NewHTTPRouter(svcs.Handlers(cron))}
}

func (h *harness) do(method, path string, body interface{}, uid uint64, role string) (int, apiResponse) {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if uid != 0 {
		req.Header.Set(middleware.HeaderUserID, strconv.FormatUint(uid, 10))
		req.Header.Set(middleware.HeaderUserRole, role)
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func decodeData[T any](t *testing.T, resp apiResponse) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v), string(resp.Data))
	return v
}

func TestHealthAndPing(t *testing.T) {
	h := newHarness(t)
	status, resp := h.do(http.MethodGet, "/health", nil, 0, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, errno.OK.Code, resp.Code)

	_, resp = h.do(http.MethodGet, "/api/v1/ping", nil, 0, "")
	assert.JSONEq(t, `{"pong":true}`, string(resp.Data))
}

func TestSignupValidation(t *testing.T) {
	h := newHarness(t)
	_, resp := h.do(http.MethodPost, "/api/v1/signup", gin.H{"email": "not-an-email", "full_name": "X"}, 0, "")
	assert.Equal(t, errno.ErrBind.Code, resp.Code)

	_, resp = h.do(http.MethodPost, "/api/v1/signup", gin.H{"email": "a@example.com", "full_name": "A", "referral_code": "NOPE1234"}, 0, "")
	assert.Equal(t, errno.ErrReferralCodeInvalid.Code, resp.Code)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	h := newHarness(t)
	status, resp := h.do(http.MethodGet, "/api/v1/admin/statistics", nil, 0, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, errno.ErrUnauthorized.Code, resp.Code)

	status, resp = h.do(http.MethodGet, "/api/v1/admin/statistics", nil, 5, model.RoleUser)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, errno.ErrForbidden.Code, resp.Code)
}

// 注册 -> 认购 -> 审批分佣 -> 计息 -> 余额 -> 提现
func TestInvestmentLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	admin := testutil.CreateAdmin(t, h.db)
	plan := testutil.CreatePlan(t, h.db, "4.0")

	_, resp := h.do(http.MethodPost, "/api/v1/signup", gin.H{"email": "ref@example.com", "full_name": "Referrer"}, 0, "")
	require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)
	referrer := decodeData[model.User](t, resp)
	require.Len(t, referrer.ReferralCode, 8)

	_, resp = h.do(http.MethodGet, "/api/v1/referrers/"+referrer.ReferralCode, nil, 0, "")
	require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)

	_, resp = h.do(http.MethodPost, "/api/v1/signup", gin.H{
		"email": "inv@example.com", "full_name": "Investor", "referral_code": referrer.ReferralCode,
	}, 0, "")
	require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)
	investor := decodeData[model.User](t, resp)
	require.NotNil(t, investor.ReferrerID)
	assert.Equal(t, referrer.ID, *investor.ReferrerID)

	_, resp = h.do(http.MethodGet, "/api/v1/plans", nil, investor.ID, model.RoleUser)
	plans := decodeData[[]model.InvestmentPlan](t, resp)
	require.Len(t, plans, 1)

	_, resp = h.do(http.MethodPost, "/api/v1/investments", gin.H{
		"plan_id": plan.ID, "amount": "100", "payment_proof_url": "https://cdn.example.com/proof.png",
	}, investor.ID, model.RoleUser)
	require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)
	inv := decodeData[model.Investment](t, resp)
	assert.Equal(t, model.InvestmentPending, inv.Status)

	_, resp = h.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/investments/%d/approve", inv.ID), gin.H{}, admin.ID, model.RoleAdmin)
	require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)
	approved := decodeData[struct {
		Investment model.Investment `json:"investment"`
		Commission struct {
			Credited int `json:"credited"`
		} `json:"commission"`
	}](t, resp)
	assert.Equal(t, model.InvestmentActive, approved.Investment.Status)
	assert.Equal(t, 1, approved.Commission.Credited)

	// 重复审批被拒绝
	_, resp = h.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/investments/%d/approve", inv.ID), gin.H{}, admin.ID, model.RoleAdmin)
	assert.Equal(t, errno.ErrInvestmentState.Code, resp.Code)

	_, resp = h.do(http.MethodPost, "/api/v1/admin/jobs/daily-profit", nil, admin.ID, model.RoleAdmin)
	require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)
	summary := decodeData[struct {
		Success   bool `json:"success"`
		Processed int  `json:"processed"`
	}](t, resp)
	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.Processed)

	balanceOf := func(uid uint64) decimal.Decimal {
		_, resp := h.do(http.MethodGet, "/api/v1/me/balance", nil, uid, model.RoleUser)
		require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)
		b := decodeData[struct {
			Available decimal.Decimal `json:"available"`
		}](t, resp)
		return b.Available
	}
	assert.True(t, balanceOf(investor.ID).Equal(decimal.NewFromInt(4)))
	assert.True(t, balanceOf(referrer.ID).Equal(decimal.NewFromInt(10)))

	_, resp = h.do(http.MethodGet, "/api/v1/me/team", nil, referrer.ID, model.RoleUser)
	team := decodeData[struct {
		TotalTeamMembers int64 `json:"total_team_members"`
	}](t, resp)
	assert.Equal(t, int64(1), team.TotalTeamMembers)

	_, resp = h.do(http.MethodPut, "/api/v1/me/pin", gin.H{"pin": "1234", "confirm_pin": "1234"}, referrer.ID, model.RoleUser)
	require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)

	wallet := "TXYZ1234567890ABCDEFGH"
	_, resp = h.do(http.MethodPost, "/api/v1/withdrawals", gin.H{"amount": "10.01", "wallet_id": wallet, "pin": "1234"}, referrer.ID, model.RoleUser)
	assert.Equal(t, errno.ErrInsufficientBalance.Code, resp.Code)

	_, resp = h.do(http.MethodPost, "/api/v1/withdrawals", gin.H{"amount": "6", "wallet_id": wallet, "pin": "1234"}, referrer.ID, model.RoleUser)
	require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)
	wd := decodeData[model.Transaction](t, resp)
	assert.Equal(t, model.TxPending, wd.Status)
	assert.True(t, balanceOf(referrer.ID).Equal(decimal.NewFromInt(4)))

	_, resp = h.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/withdrawals/%d/review", wd.ID), gin.H{"action": "approve"}, admin.ID, model.RoleAdmin)
	assert.Equal(t, errno.ErrBind.Code, resp.Code)

	_, resp = h.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/withdrawals/%d/review", wd.ID), gin.H{
		"action": "approve", "proof_url": "https://cdn.example.com/tx.png",
	}, admin.ID, model.RoleAdmin)
	require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)
	assert.Equal(t, model.TxCompleted, decodeData[model.Transaction](t, resp).Status)

	_, resp = h.do(http.MethodGet, "/api/v1/admin/statistics", nil, admin.ID, model.RoleAdmin)
	require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)
	st := decodeData[struct {
		TotalUsers        int64 `json:"total_users"`
		ActiveInvestments int64 `json:"active_investments"`
	}](t, resp)
	assert.Equal(t, int64(2), st.TotalUsers)
	assert.Equal(t, int64(1), st.ActiveInvestments)
}

func TestAdminPlanAndUserRoutes(t *testing.T) {
	h := newHarness(t)
	admin := testutil.CreateAdmin(t, h.db)
	u := testutil.CreateUser(t, h.db, nil)

	_, resp := h.do(http.MethodPost, "/api/v1/admin/plans", gin.H{
		"name": "Gold", "min_investment": "100", "max_investment": "50", "daily_profit_percentage": "1",
	}, admin.ID, model.RoleAdmin)
	assert.Equal(t, errno.ErrInvalidPlan.Code, resp.Code)

	_, resp = h.do(http.MethodPost, "/api/v1/admin/plans", gin.H{
		"name": "Gold", "min_investment": "100", "max_investment": "5000", "daily_profit_percentage": "1.2",
	}, admin.ID, model.RoleAdmin)
	require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)
	plan := decodeData[model.InvestmentPlan](t, resp)
	assert.True(t, plan.IsActive)

	_, resp = h.do(http.MethodDelete, fmt.Sprintf("/api/v1/admin/plans/%d", plan.ID), nil, admin.ID, model.RoleAdmin)
	require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)

	_, resp = h.do(http.MethodPut, fmt.Sprintf("/api/v1/admin/users/%d/suspended", admin.ID), gin.H{"value": true}, admin.ID, model.RoleAdmin)
	assert.Equal(t, errno.ErrCannotModifyUser.Code, resp.Code)

	_, resp = h.do(http.MethodPut, fmt.Sprintf("/api/v1/admin/users/%d/suspended", u.ID), gin.H{"value": true}, admin.ID, model.RoleAdmin)
	require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)

	_, resp = h.do(http.MethodPost, "/api/v1/admin/users/bulk-delete", gin.H{"user_ids": []uint64{u.ID}}, admin.ID, model.RoleAdmin)
	require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)
	assert.JSONEq(t, `{"deleted":1}`, string(resp.Data))

	_, resp = h.do(http.MethodPost, "/api/v1/admin/ranks/seed", nil, admin.ID, model.RoleAdmin)
	assert.JSONEq(t, `{"inserted":3}`, string(resp.Data))

	_, resp = h.do(http.MethodPost, "/api/v1/admin/jobs/rank-rewards", nil, admin.ID, model.RoleAdmin)
	require.Equal(t, errno.OK.Code, resp.Code, resp.Msg)
}
