package profit

import (
	"context"
	"fmt"
	"time"

	"invest-core/internal/model"
	"invest-core/pkg/logger"
	"invest-core/pkg/monitor"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobName 用于锁和监控标签
const JobName = "daily_profit"

// Options 计息策略
type Options struct {
	// CompleteAtTarget 累计收益达到本金的 TargetMultiplier 倍后封顶并置为 COMPLETED
	CompleteAtTarget bool
	TargetMultiplier decimal.Decimal
}

// Summary 一次计息的结果
type Summary struct {
	Success          bool      `json:"success"`
	Date             time.Time `json:"date"`
	TotalInvestments int       `json:"totalInvestments"`
	Processed        int       `json:"processed"`
	Skipped          int       `json:"skipped"`
	Failed           int       `json:"failed"`
	Completed        int       `json:"completed,omitempty"`
}

// Job 每日收益计提
// 同一投资同一 UTC 日只会入账一次，可按任意频率重复触发
type Job struct {
	db   *gorm.DB
	opts Options
	now  func() time.Time
}

func NewJob(db *gorm.DB, opts Options) *Job {
	if opts.CompleteAtTarget && !opts.TargetMultiplier.IsPositive() {
		opts.TargetMultiplier = decimal.NewFromInt(2)
	}
	return &Job{db: db, opts: opts, now: time.Now}
}

// WithClock 替换时钟 (测试用)
func (j *Job) WithClock(now func() time.Time) *Job {
	j.now = now
	return j
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
	outcomeCompleted
	// 已达目标，未计提直接结束
	outcomeClosed
)

// Run 为所有 ACTIVE 投资计提当日收益
// 只有查询投资列表失败才返回错误，单笔失败计入 Failed
func (j *Job) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	defer monitor.ObserveJob(JobName, start)

	today := model.UTCDay(j.now())
	summary := &Summary{Date: today}

	var investments []model.Investment
	if err := j.db.WithContext(ctx).
		Preload("Plan", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("status = ?", model.InvestmentActive).
		Order("id ASC").
		Find(&investments).Error; err != nil {
		logger.Error("Daily profit: list investments failed", zap.Error(err))
		return summary, fmt.Errorf("list active investments: %w", err)
	}
	summary.TotalInvestments = len(investments)

	for i := range investments {
		if ctx.Err() != nil {
			break
		}
		inv := &investments[i]
		res, err := j.accrue(ctx, inv, today)
		if err != nil {
			summary.Failed++
			monitor.JobItemsTotal.WithLabelValues(JobName, "failed").Inc()
			logger.Error("Daily profit: accrue failed",
				zap.Uint64("investment_id", inv.ID),
				zap.Error(err),
			)
			continue
		}
		switch res {
		case outcomeProcessed:
			summary.Processed++
			monitor.JobItemsTotal.WithLabelValues(JobName, "processed").Inc()
		case outcomeCompleted:
			summary.Processed++
			summary.Completed++
			monitor.JobItemsTotal.WithLabelValues(JobName, "processed").Inc()
		case outcomeClosed:
			summary.Skipped++
			summary.Completed++
			monitor.JobItemsTotal.WithLabelValues(JobName, "skipped").Inc()
		case outcomeSkipped:
			summary.Skipped++
			monitor.JobItemsTotal.WithLabelValues(JobName, "skipped").Inc()
		}
	}

	summary.Success = true
	logger.Info("Daily profit job finished",
		zap.Time("date", today),
		zap.Int("total", summary.TotalInvestments),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// accrue 单笔投资在一个事务内: 写 DailyProfit (冲突即跳过)、累加 total_profit、写流水
func (j *Job) accrue(ctx context.Context, inv *model.Investment, day time.Time) (outcome, error) {
	if inv.Plan == nil {
		return outcomeSkipped, fmt.Errorf("plan %d not found", inv.PlanID)
	}
	amount := inv.Plan.DailyProfitFor(inv.Amount)

	var target decimal.Decimal
	if j.opts.CompleteAtTarget {
		target = inv.Amount.Mul(j.opts.TargetMultiplier).Round(2)
		remaining := target.Sub(inv.TotalProfit)
		if !remaining.IsPositive() {
			closed, err := j.complete(j.db.WithContext(ctx), inv.ID, target)
			if err != nil || !closed {
				return outcomeSkipped, err
			}
			return outcomeClosed, nil
		}
		if amount.GreaterThan(remaining) {
			amount = remaining
		}
	}

	res := outcomeSkipped
	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dp := model.DailyProfit{
			InvestmentID: inv.ID,
			UserID:       inv.UserID,
			Date:         day,
			Amount:       amount,
			IsPaid:       false,
		}
		r := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "investment_id"}, {Name: "date"}},
			DoNothing: true,
		}).Create(&dp)
		if r.Error != nil {
			return fmt.Errorf("insert daily profit: %w", r.Error)
		}
		if r.RowsAffected == 0 {
			// 今日已计提
			return nil
		}

		if err := tx.Model(&model.Investment{}).
			Where("id = ?", inv.ID).
			Update("total_profit", gorm.Expr("total_profit + ?", amount)).Error; err != nil {
			return fmt.Errorf("increment total profit: %w", err)
		}

		relatedID := dp.ID
		if err := tx.Create(&model.Transaction{
			UserID:      inv.UserID,
			Type:        model.TxDailyProfit,
			Status:      model.TxCompleted,
			Amount:      amount,
			Description: fmt.Sprintf("Daily profit from %s (%s%%)", inv.Plan.Name, inv.Plan.DailyProfitPercentage.String()),
			RelatedID:   &relatedID,
			RelatedType: model.RelatedDailyProfit,
		}).Error; err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		res = outcomeProcessed

		if j.opts.CompleteAtTarget {
			r := tx.Model(&model.Investment{}).
				Where("id = ? AND status = ? AND total_profit >= ?", inv.ID, model.InvestmentActive, target).
				Update("status", model.InvestmentCompleted)
			if r.Error != nil {
				return fmt.Errorf("complete investment: %w", r.Error)
			}
			if r.RowsAffected > 0 {
				res = outcomeCompleted
			}
		}
		return nil
	})
	if err != nil {
		return outcomeSkipped, err
	}
	if res != outcomeSkipped {
		monitor.DailyProfitAccruedTotal.Add(amount.InexactFloat64())
	}
	return res, nil
}

// complete 累计收益已达目标时置为 COMPLETED，返回是否确实更新
func (j *Job) complete(db *gorm.DB, investmentID uint64, target decimal.Decimal) (bool, error) {
	res := db.Model(&model.Investment{}).
		Where("id = ? AND status = ? AND total_profit >= ?", investmentID, model.InvestmentActive, target).
		Update("status", model.InvestmentCompleted)
	if res.Error != nil {
		return false, fmt.Errorf("complete investment: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
