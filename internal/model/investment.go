package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 投资状态
const (
	InvestmentPending   = "PENDING"
	InvestmentActive    = "ACTIVE"
	InvestmentCompleted = "COMPLETED"
	InvestmentCancelled = "CANCELLED"
)

// InvestmentPlan 投资计划，由管理员维护
type InvestmentPlan struct {
	ID                    uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name                  string          `gorm:"type:varchar(100);not null" json:"name"`
	Description           string          `gorm:"type:text" json:"description"`
	MinInvestment         decimal.Decimal `gorm:"type:decimal(32,2);not null" json:"min_investment"`
	MaxInvestment         decimal.Decimal `gorm:"type:decimal(32,2);not null" json:"max_investment"`
	DailyProfitPercentage decimal.Decimal `gorm:"type:decimal(8,4);not null" json:"daily_profit_percentage"`
	IsActive              bool            `gorm:"not null;index" json:"is_active"`
	CreatedBy             *uint64         `json:"created_by,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	DeletedAt             gorm.DeletedAt  `gorm:"index" json:"-"`
}

// DailyProfitFor 按计划日收益率计算一笔本金的日收益 (保留两位小数)
func (p *InvestmentPlan) DailyProfitFor(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(p.DailyProfitPercentage).Div(decimal.NewFromInt(100)).Round(2)
}

// Investment 用户投资记录
// PENDING -> ACTIVE (审批，触发一次分佣) / PENDING -> CANCELLED (拒绝)
type Investment struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          uint64          `gorm:"not null;index" json:"user_id"`
	PlanID          uint64          `gorm:"not null;index" json:"plan_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(32,2);not null" json:"amount"`
	Status          string          `gorm:"type:varchar(16);not null;index" json:"status"`
	StartDate       time.Time       `gorm:"not null" json:"start_date"`
	TotalProfit     decimal.Decimal `gorm:"type:decimal(32,2);not null" json:"total_profit"`
	PaymentProofURL string          `gorm:"type:varchar(1024)" json:"payment_proof_url"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`

	Plan *InvestmentPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	User *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// DailyProfit 每日收益记录
// (investment_id, date) 唯一，是重复计息的幂等保护
type DailyProfit struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	InvestmentID uint64          `gorm:"not null;uniqueIndex:idx_investment_date" json:"investment_id"`
	UserID       uint64          `gorm:"not null;index" json:"user_id"`
	Date         time.Time       `gorm:"type:date;not null;uniqueIndex:idx_investment_date" json:"date"` // UTC 零点
	Amount       decimal.Decimal `gorm:"type:decimal(32,2);not null" json:"amount"`
	IsPaid       bool            `gorm:"not null" json:"is_paid"` // 预留字段
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (InvestmentPlan) TableName() string {
	return "investment_plans"
}

func (Investment) TableName() string {
	return "investments"
}

func (DailyProfit) TableName() string {
	return "daily_profits"
}

// UTCDay 返回 t 所在 UTC 日期的零点
func UTCDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
