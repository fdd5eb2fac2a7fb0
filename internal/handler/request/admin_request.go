package request

import "github.com/shopspring/decimal"

type ReviewWithdrawalRequest struct {
	Action   string `json:"action" binding:"required,oneof=approve reject"`
	ProofURL string `json:"proof_url" binding:"omitempty,url"` // approve 时必填，由 service 校验
}

// ApproveInvestmentRequest amount 为空时沿用用户提交的金额
type ApproveInvestmentRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

type PlanRequest struct {
	Name                  string          `json:"name" binding:"required,min=1,max=100"`
	Description           string          `json:"description" binding:"max=2000"`
	MinInvestment         decimal.Decimal `json:"min_investment"`
	MaxInvestment         decimal.Decimal `json:"max_investment"`
	DailyProfitPercentage decimal.Decimal `json:"daily_profit_percentage"`
	IsActive              *bool           `json:"is_active"`
}

// SetFlagRequest 启用/冻结开关
type SetFlagRequest struct {
	Value *bool `json:"value" binding:"required"`
}

type BulkDeleteRequest struct {
	UserIDs []uint64 `json:"user_ids" binding:"required,min=1,dive,required"`
}
