package handler

import (
	"context"
	"errors"
	"io"

	"invest-core/internal/handler/middleware"
	"invest-core/internal/handler/request"
	"invest-core/internal/handler/response"
	"invest-core/internal/service/admin"
	"invest-core/internal/service/investment"
	"invest-core/internal/service/withdrawal"
	"invest-core/pkg/errno"
	"invest-core/pkg/validator"

	"github.com/gin-gonic/gin"
)

// JobTrigger 手动触发批处理任务 (带分布式锁)
type JobTrigger interface {
	Trigger(ctx context.Context, name string) (interface{}, error)
}

// AdminHandler 管理端接口
type AdminHandler struct {
	admin       *admin.Service
	investments *investment.Service
	withdrawals *withdrawal.Service
	jobs        JobTrigger
}

func NewAdminHandler(adm *admin.Service, inv *investment.Service, wd *withdrawal.Service, jobs JobTrigger) *AdminHandler {
	return &AdminHandler{admin: adm, investments: inv, withdrawals: wd, jobs: jobs}
}

// ListInvestments ?status=PENDING
func (h *AdminHandler) ListInvestments(c *gin.Context) {
	list, err := h.investments.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// ApproveInvestment 审批通过，分佣结果附在响应中但不影响审批成功
func (h *AdminHandler) ApproveInvestment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req request.ApproveInvestmentRequest
	// 请求体可选
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}
	res, err := h.investments.Approve(c.Request.Context(), middleware.UserID(c), id, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

func (h *AdminHandler) RejectInvestment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	inv, err := h.investments.Reject(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, inv)
}

func (h *AdminHandler) ListWithdrawals(c *gin.Context) {
	list, err := h.withdrawals.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

// ReviewWithdrawal 审核提现
func (h *AdminHandler) ReviewWithdrawal(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req request.ReviewWithdrawalRequest
	if !bindJSON(c, &req) {
		return
	}
	tx, err := h.withdrawals.Review(c.Request.Context(), middleware.UserID(c), id, req.Action, req.ProofURL)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, tx)
}

func planInput(req *request.PlanRequest) admin.PlanInput {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return admin.PlanInput{
		Name:                  req.Name,
		Description:           req.Description,
		MinInvestment:         req.MinInvestment,
		MaxInvestment:         req.MaxInvestment,
		DailyProfitPercentage: req.DailyProfitPercentage,
		IsActive:              active,
	}
}

func (h *AdminHandler) ListPlans(c *gin.Context) {
	plans, err := h.admin.ListPlans(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, plans)
}

func (h *AdminHandler) CreatePlan(c *gin.Context) {
	var req request.PlanRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.admin.CreatePlan(c.Request.Context(), middleware.UserID(c), planInput(&req))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

func (h *AdminHandler) UpdatePlan(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req request.PlanRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.admin.UpdatePlan(c.Request.Context(), id, planInput(&req))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

func (h *AdminHandler) DeletePlan(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.admin.DeletePlan(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.admin.ListUsers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, users)
}

func (h *AdminHandler) SetUserActive(c *gin.Context) {
	h.setFlag(c, h.admin.SetUserActive)
}

func (h *AdminHandler) SetUserSuspended(c *gin.Context) {
	h.setFlag(c, h.admin.SetUserSuspended)
}

func (h *AdminHandler) setFlag(c *gin.Context, fn func(ctx context.Context, adminID, userID uint64, v bool) error) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req request.SetFlagRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := fn(c.Request.Context(), middleware.UserID(c), id, *req.Value); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.admin.DeleteUser(c.Request.Context(), middleware.UserID(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *AdminHandler) BulkDeleteUsers(c *gin.Context) {
	var req request.BulkDeleteRequest
	if !bindJSON(c, &req) {
		return
	}
	n, err := h.admin.DeleteUsers(c.Request.Context(), middleware.UserID(c), req.UserIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": n})
}

func (h *AdminHandler) Statistics(c *gin.Context) {
	st, err := h.admin.Statistics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, st)
}

func (h *AdminHandler) ListRanks(c *gin.Context) {
	ranks, err := h.admin.ListRanks(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ranks)
}

func (h *AdminHandler) SeedRanks(c *gin.Context) {
	n, err := h.admin.SeedRanks(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"inserted": n})
}

// RunJob 返回一个同步执行指定任务的 handler
func (h *AdminHandler) RunJob(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := h.jobs.Trigger(c.Request.Context(), name)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, summary)
	}
}
