package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 流水类型
const (
	TxDeposit        = "DEPOSIT"
	TxWithdrawal     = "WITHDRAWAL"
	TxInvestment     = "INVESTMENT"
	TxDailyProfit    = "DAILY_PROFIT"
	TxReferralIncome = "REFERRAL_INCOME"
	TxRankReward     = "RANK_REWARD"
)

// 流水状态
const (
	TxPending   = "PENDING"
	TxCompleted = "COMPLETED"
	TxFailed    = "FAILED"
	TxCancelled = "CANCELLED"
)

// related_type 取值
const (
	RelatedDailyProfit    = "DailyProfit"
	RelatedReferralIncome = "ReferralIncome"
	RelatedUserRank       = "UserRank"
)

// Transaction 资金流水 (只追加)
// 只有提现流水会由管理员审核改变状态
type Transaction struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint64          `gorm:"not null;index:idx_tx_user_type_status" json:"user_id"`
	Type        string          `gorm:"type:varchar(32);not null;index:idx_tx_user_type_status" json:"type"`
	Status      string          `gorm:"type:varchar(16);not null;index:idx_tx_user_type_status" json:"status"`
	Amount      decimal.Decimal `gorm:"type:decimal(32,2);not null" json:"amount"`
	Description string          `gorm:"type:text" json:"description"`
	WalletID    string          `gorm:"type:varchar(255)" json:"wallet_id,omitempty"`
	ProofURL    string          `gorm:"type:varchar(1024)" json:"proof_url,omitempty"`
	RelatedID   *uint64         `json:"related_id,omitempty"`
	RelatedType string          `gorm:"type:varchar(32)" json:"related_type,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ReferralIncome 推荐佣金
// percentage 和 amount 在创建时快照
type ReferralIncome struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	InvestmentID uint64          `gorm:"not null;uniqueIndex:idx_income_event" json:"investment_id"`
	RecipientID  uint64          `gorm:"not null;uniqueIndex:idx_income_event;index" json:"recipient_id"`
	Level        int             `gorm:"not null;uniqueIndex:idx_income_event" json:"level"`
	Percentage   decimal.Decimal `gorm:"type:decimal(8,4);not null" json:"percentage"`
	Amount       decimal.Decimal `gorm:"type:decimal(32,2);not null" json:"amount"`
	IsPaid       bool            `gorm:"not null" json:"is_paid"` // 预留字段，入账即时生效
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Rank 等级定义
type Rank struct {
	ID                     uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	RankNumber             int             `gorm:"not null;unique" json:"rank_number"`
	Name                   string          `gorm:"type:varchar(64);not null" json:"name"`
	RequiredSelfInvestment decimal.Decimal `gorm:"type:decimal(32,2);not null" json:"required_self_investment"`
	RequiredTeamBusiness   decimal.Decimal `gorm:"type:decimal(32,2);not null" json:"required_team_business"`
	RewardAmount           decimal.Decimal `gorm:"type:decimal(32,2);not null" json:"reward_amount"`
	IsActive               bool            `gorm:"not null" json:"is_active"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// UserRank 用户达成的等级，每个 (user, rank) 仅一条
type UserRank struct {
	ID           uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint64          `gorm:"not null;uniqueIndex:idx_user_rank" json:"user_id"`
	RankID       uint64          `gorm:"not null;uniqueIndex:idx_user_rank" json:"rank_id"`
	RewardAmount decimal.Decimal `gorm:"type:decimal(32,2);not null" json:"reward_amount"`
	AchievedAt   time.Time       `gorm:"not null" json:"achieved_at"`
	RewardPaidAt *time.Time      `json:"reward_paid_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

func (ReferralIncome) TableName() string {
	return "referral_incomes"
}

func (Rank) TableName() string {
	return "ranks"
}

func (UserRank) TableName() string {
	return "user_ranks"
}

// DefaultRanks 初始等级表
func DefaultRanks() []Rank {
	return []Rank{
		{RankNumber: 1, Name: "Bronze", RequiredSelfInvestment: decimal.NewFromInt(100), RequiredTeamBusiness: decimal.NewFromInt(2500), RewardAmount: decimal.NewFromInt(50), IsActive: true},
		{RankNumber: 2, Name: "Silver", RequiredSelfInvestment: decimal.NewFromInt(200), RequiredTeamBusiness: decimal.NewFromInt(6000), RewardAmount: decimal.NewFromInt(120), IsActive: true},
		{RankNumber: 3, Name: "Gold", RequiredSelfInvestment: decimal.NewFromInt(500), RequiredTeamBusiness: decimal.NewFromInt(10000), RewardAmount: decimal.NewFromInt(250), IsActive: true},
	}
}
