package commission

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"invest-core/internal/model"
	"invest-core/internal/service/referral"
	"invest-core/pkg/errno"
	"invest-core/pkg/logger"
	"invest-core/pkg/monitor"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 各层佣金比例 (%)
var percentages = map[int]decimal.Decimal{
	1: decimal.NewFromInt(10),
	2: decimal.NewFromInt(5),
	3: decimal.NewFromInt(3),
	4: decimal.NewFromInt(2),
}

// Percentage 某层的佣金比例，未配置的层级返回 false
func Percentage(level int) (decimal.Decimal, bool) {
	pct, ok := percentages[level]
	return pct, ok
}

// 单层处理结果
const (
	OutcomeCredited = "credited"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// LevelOutcome 某一层祖先的处理结果
type LevelOutcome struct {
	Level       int             `json:"level"`
	RecipientID uint64          `json:"recipient_id"`
	Amount      decimal.Decimal `json:"amount"`
	Outcome     string          `json:"outcome"`
	Reason      string          `json:"reason,omitempty"`
}

// Result 一次分佣的汇总
type Result struct {
	InvestmentID uint64          `json:"investment_id"`
	Credited     int             `json:"credited"`
	Skipped      int             `json:"skipped"`
	Failed       int             `json:"failed"`
	Total        decimal.Decimal `json:"total"`
	Levels       []LevelOutcome  `json:"levels"`
}

// Err 有失败层级时返回错误，供重试任务判断
func (r *Result) Err() error {
	if r == nil || r.Failed == 0 {
		return nil
	}
	return fmt.Errorf("commission for investment %d: %d level(s) failed", r.InvestmentID, r.Failed)
}

func (r *Result) add(o LevelOutcome) {
	switch o.Outcome {
	case OutcomeCredited:
		r.Credited++
		r.Total = r.Total.Add(o.Amount)
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
	r.Levels = append(r.Levels, o)
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Distribute 为一笔已审批的投资向最多 4 层上级发放推荐佣金
// 每个祖先独立事务，单层失败不影响其他层；重复调用不会重复入账
func (s *Service) Distribute(ctx context.Context, investmentID uint64) (*Result, error) {
	db := s.db.WithContext(ctx)

	var inv model.Investment
	if err := db.Preload("Plan", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		First(&inv, investmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.ErrInvestmentNotFound
		}
		return nil, fmt.Errorf("load investment: %w", err)
	}
	if inv.Status != model.InvestmentActive && inv.Status != model.InvestmentCompleted {
		return nil, errno.ErrInvestmentState.WithMessage("investment has not been approved")
	}

	ancestors, err := referral.LoadAncestors(db, inv.UserID)
	if err != nil {
		return nil, fmt.Errorf("load referral relationships: %w", err)
	}

	res := &Result{InvestmentID: inv.ID, Total: decimal.Zero}
	planName := ""
	if inv.Plan != nil {
		planName = inv.Plan.Name
	}

	for _, a := range ancestors {
		res.add(s.creditLevel(ctx, &inv, planName, a))
	}

	if res.Failed > 0 {
		monitor.CommissionFailedTotal.Add(float64(res.Failed))
	}
	logger.Info("Commission distributed",
		zap.Uint64("investment_id", inv.ID),
		zap.Int("credited", res.Credited),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.String("total", res.Total.StringFixed(2)),
	)
	return res, nil
}

func (s *Service) creditLevel(ctx context.Context, inv *model.Investment, planName string, rel referral.Ancestor) LevelOutcome {
	out := LevelOutcome{Level: rel.Level, RecipientID: rel.ReferrerID, Amount: decimal.Zero}

	if !rel.Referrer.CanReceiveCommission() {
		out.Outcome, out.Reason = OutcomeSkipped, "referrer inactive, suspended or deleted"
		return out
	}
	pct, ok := Percentage(rel.Level)
	if !ok {
		out.Outcome, out.Reason = OutcomeSkipped, "no percentage for level"
		return out
	}
	amount := inv.Amount.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)

	inserted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		income := model.ReferralIncome{
			InvestmentID: inv.ID,
			RecipientID:  rel.ReferrerID,
			Level:        rel.Level,
			Percentage:   pct,
			Amount:       amount,
			IsPaid:       false,
		}
		r := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "investment_id"}, {Name: "recipient_id"}, {Name: "level"}},
			DoNothing: true,
		}).Create(&income)
		if r.Error != nil {
			return r.Error
		}
		if r.RowsAffected == 0 {
			return nil
		}
		inserted = true

		relatedID := income.ID
		return tx.Create(&model.Transaction{
			UserID:      rel.ReferrerID,
			Type:        model.TxReferralIncome,
			Status:      model.TxCompleted,
			Amount:      amount,
			Description: fmt.Sprintf("Referral commission (Level %d) from investment in %s", rel.Level, planName),
			RelatedID:   &relatedID,
			RelatedType: model.RelatedReferralIncome,
		}).Error
	})
	if err != nil {
		logger.Error("Credit commission failed",
			zap.Uint64("investment_id", inv.ID),
			zap.Int("level", rel.Level),
			zap.Uint64("recipient_id", rel.ReferrerID),
			zap.Error(err),
		)
		out.Outcome, out.Reason = OutcomeFailed, err.Error()
		return out
	}
	if !inserted {
		out.Outcome, out.Reason = OutcomeSkipped, "already credited"
		return out
	}

	monitor.CommissionPaidTotal.WithLabelValues(strconv.Itoa(rel.Level)).Add(amount.InexactFloat64())
	out.Outcome, out.Amount = OutcomeCredited, amount
	return out
}
