package handler

import (
	"strconv"

	"invest-core/internal/handler/middleware"
	"invest-core/internal/handler/request"
	"invest-core/internal/handler/response"
	"invest-core/internal/service/balance"
	"invest-core/internal/service/investment"
	"invest-core/internal/service/referral"
	"invest-core/internal/service/user"
	"invest-core/internal/service/withdrawal"
	"invest-core/pkg/errno"

	"github.com/gin-gonic/gin"
)

// UserHandler 用户侧接口
type UserHandler struct {
	users       *user.Service
	referral    *referral.Service
	balance     *balance.Service
	investments *investment.Service
	withdrawals *withdrawal.Service
}

func NewUserHandler(users *user.Service, ref *referral.Service, bal *balance.Service,
	inv *investment.Service, wd *withdrawal.Service) *UserHandler {
	return &UserHandler{users: users, referral: ref, balance: bal, investments: inv, withdrawals: wd}
}

// Signup 注册，推荐码可选
// @Router /api/v1/signup [post]
func (h *UserHandler) Signup(c *gin.Context) {
	var req request.SignupRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.users.Signup(c.Request.Context(), user.SignupInput{
		Email:        req.Email,
		FullName:     req.FullName,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, u)
}

// Referrer 注册页按推荐码展示推荐人
func (h *UserHandler) Referrer(c *gin.Context) {
	u, err := h.users.ReferrerByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": u.ID, "full_name": u.FullName, "referral_code": u.ReferralCode})
}

func (h *UserHandler) Me(c *gin.Context) {
	u, err := h.users.Profile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, u)
}

func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req request.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.users.UpdateProfile(c.Request.Context(), middleware.UserID(c), req.FullName); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *UserHandler) SetPin(c *gin.Context) {
	var req request.SetPinRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.users.SetWithdrawPin(c.Request.Context(), middleware.UserID(c), req.Pin, req.ConfirmPin, req.CurrentPin); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (h *UserHandler) Balance(c *gin.Context) {
	b, err := h.balance.Balance(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, b)
}

func (h *UserHandler) Statistics(c *gin.Context) {
	st, err := h.balance.UserStatistics(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, st)
}

func (h *UserHandler) Team(c *gin.Context) {
	st, err := h.referral.TeamStatistics(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, st)
}

func (h *UserHandler) TeamLevel(c *gin.Context) {
	level, err := strconv.Atoi(c.Param("level"))
	if err != nil || level < 1 || level > 4 {
		response.Error(c, errno.ErrBind.WithMessage("level must be between 1 and 4"))
		return
	}
	members, err := h.referral.TeamByLevel(c.Request.Context(), middleware.UserID(c), level)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, members)
}

func (h *UserHandler) Plans(c *gin.Context) {
	plans, err := h.investments.ActivePlans(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, plans)
}

func (h *UserHandler) Subscribe(c *gin.Context) {
	var req request.SubscribeRequest
	if !bindJSON(c, &req) {
		return
	}
	inv, err := h.investments.Subscribe(c.Request.Context(), middleware.UserID(c), req.PlanID, req.Amount, req.PaymentProofURL)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, inv)
}

func (h *UserHandler) Investments(c *gin.Context) {
	list, err := h.investments.ListByUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}

func (h *UserHandler) CreateWithdrawal(c *gin.Context) {
	var req request.CreateWithdrawalRequest
	if !bindJSON(c, &req) {
		return
	}
	tx, err := h.withdrawals.Create(c.Request.Context(), middleware.UserID(c), withdrawal.CreateInput{
		Amount:   req.Amount,
		WalletID: req.WalletID,
		Pin:      req.Pin,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, tx)
}

func (h *UserHandler) Withdrawals(c *gin.Context) {
	list, err := h.withdrawals.ListByUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, list)
}
