package request

import "github.com/shopspring/decimal"

// SignupRequest 注册
type SignupRequest struct {
	Email        string `json:"email" binding:"required,email"`
	FullName     string `json:"full_name" binding:"required,min=1,max=100"`
	ReferralCode string `json:"referral_code" binding:"omitempty,alphanum,max=16"`
}

// UpdateProfileRequest 修改资料
type UpdateProfileRequest struct {
	FullName string `json:"full_name" binding:"required,min=1,max=100"`
}

// SetPinRequest 设置/修改提现 PIN，已设置过时必须带 current_pin
type SetPinRequest struct {
	Pin        string `json:"pin" binding:"required,pin"`
	ConfirmPin string `json:"confirm_pin" binding:"required"`
	CurrentPin string `json:"current_pin" binding:"omitempty,pin"`
}

// SubscribeRequest 认购计划
type SubscribeRequest struct {
	PlanID          uint64          `json:"plan_id" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentProofURL string          `json:"payment_proof_url" binding:"required,url"`
}
