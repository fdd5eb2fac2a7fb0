package balance

import (
	"context"
	"fmt"
	"time"

	"invest-core/internal/model"
	"invest-core/pkg/database"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Breakdown 可用余额及其组成
// 收益类贷方直接读来源表，不依赖流水是否写成功
type Breakdown struct {
	DailyProfit        decimal.Decimal `json:"daily_profit"`
	ReferralIncome     decimal.Decimal `json:"referral_income"`
	RankRewards        decimal.Decimal `json:"rank_rewards"`
	Deposits           decimal.Decimal `json:"deposits"`
	TotalCredits       decimal.Decimal `json:"total_credits"`
	TotalDebits        decimal.Decimal `json:"total_debits"`
	PendingWithdrawals decimal.Decimal `json:"pending_withdrawals"`
	Available          decimal.Decimal `json:"available"`
}

// Compute 计算用户余额，db 可以是调用方的事务句柄
func Compute(db *gorm.DB, userID uint64) (*Breakdown, error) {
	var (
		b   Breakdown
		err error
	)

	if b.DailyProfit, err = database.Sum(
		db.Model(&model.DailyProfit{}).Where("user_id = ?", userID), "amount"); err != nil {
		return nil, fmt.Errorf("sum daily profit: %w", err)
	}
	if b.ReferralIncome, err = database.Sum(
		db.Model(&model.ReferralIncome{}).Where("recipient_id = ?", userID), "amount"); err != nil {
		return nil, fmt.Errorf("sum referral income: %w", err)
	}
	if b.RankRewards, err = database.Sum(
		db.Model(&model.UserRank{}).Where("user_id = ? AND reward_paid_at IS NOT NULL", userID), "reward_amount"); err != nil {
		return nil, fmt.Errorf("sum rank rewards: %w", err)
	}
	if b.Deposits, err = sumTransactions(db, userID, model.TxCompleted, model.TxDeposit); err != nil {
		return nil, err
	}
	if b.TotalDebits, err = sumTransactions(db, userID, model.TxCompleted, model.TxWithdrawal, model.TxInvestment); err != nil {
		return nil, err
	}
	if b.PendingWithdrawals, err = sumTransactions(db, userID, model.TxPending, model.TxWithdrawal); err != nil {
		return nil, err
	}

	b.TotalCredits = b.DailyProfit.Add(b.ReferralIncome).Add(b.RankRewards).Add(b.Deposits)
	b.Available = decimal.Max(decimal.Zero, b.TotalCredits.Sub(b.TotalDebits).Sub(b.PendingWithdrawals)).Round(2)
	return &b, nil
}

// Available 可提现余额，永不为负
func Available(db *gorm.DB, userID uint64) (decimal.Decimal, error) {
	b, err := Compute(db, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Available, nil
}

func sumTransactions(db *gorm.DB, userID uint64, status string, types ...string) (decimal.Decimal, error) {
	sum, err := database.Sum(db.Model(&model.Transaction{}).
		Where("user_id = ? AND status = ? AND type IN ?", userID, status, types), "amount")
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum %s %v transactions: %w", status, types, err)
	}
	return sum, nil
}

// UserStats 用户面板统计
type UserStats struct {
	TotalInvestment  decimal.Decimal `json:"total_investment"`
	TotalProfit      decimal.Decimal `json:"total_profit"` // 投资收益 + 推荐佣金 + 已发放等级奖励
	TodayProfit      decimal.Decimal `json:"today_profit"`
	Level1Team       int64           `json:"level1_team"`
	AllLevelTeam     int64           `json:"all_level_team"`
	TotalWithdrawal  decimal.Decimal `json:"total_withdrawal"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// WithClock 替换时钟 (测试用)
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Balance 当前余额明细
func (s *Service) Balance(ctx context.Context, userID uint64) (*Breakdown, error) {
	return Compute(s.db.WithContext(ctx), userID)
}

// UserStatistics 汇总用户面板数据
func (s *Service) UserStatistics(ctx context.Context, userID uint64) (*UserStats, error) {
	db := s.db.WithContext(ctx)
	today := model.UTCDay(s.now())
	tomorrow := today.AddDate(0, 0, 1)

	var (
		st  UserStats
		err error
	)

	if st.TotalInvestment, err = database.Sum(
		db.Model(&model.Investment{}).Where("user_id = ?", userID), "amount"); err != nil {
		return nil, err
	}
	investmentProfit, err := database.Sum(
		db.Model(&model.Investment{}).Where("user_id = ?", userID), "total_profit")
	if err != nil {
		return nil, err
	}

	b, err := Compute(db, userID)
	if err != nil {
		return nil, err
	}
	st.TotalProfit = investmentProfit.Add(b.ReferralIncome).Add(b.RankRewards)
	st.AvailableBalance = b.Available

	todayDaily, err := database.Sum(
		db.Model(&model.DailyProfit{}).Where("user_id = ? AND date = ?", userID, today), "amount")
	if err != nil {
		return nil, err
	}
	todayReferral, err := database.Sum(
		db.Model(&model.ReferralIncome{}).
			Where("recipient_id = ? AND created_at >= ? AND created_at < ?", userID, today, tomorrow), "amount")
	if err != nil {
		return nil, err
	}
	todayRank, err := database.Sum(
		db.Model(&model.UserRank{}).
			Where("user_id = ? AND reward_paid_at >= ? AND reward_paid_at < ?", userID, today, tomorrow), "reward_amount")
	if err != nil {
		return nil, err
	}
	st.TodayProfit = todayDaily.Add(todayReferral).Add(todayRank)

	if err = db.Model(&model.User{}).Where("referrer_id = ?", userID).Count(&st.Level1Team).Error; err != nil {
		return nil, err
	}
	if err = db.Model(&model.ReferralRelationship{}).
		Where("referrer_id = ?", userID).
		Distinct("referred_id").
		Count(&st.AllLevelTeam).Error; err != nil {
		return nil, err
	}
	if st.TotalWithdrawal, err = sumTransactions(db, userID, model.TxCompleted, model.TxWithdrawal); err != nil {
		return nil, err
	}
	return &st, nil
}
