package investment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"invest-core/internal/event"
	"invest-core/internal/model"
	"invest-core/internal/service/commission"
	"invest-core/pkg/cache"
	"invest-core/pkg/errno"
	"invest-core/pkg/logger"
	"invest-core/pkg/monitor"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CacheKeyActivePlans 活跃计划列表缓存键
const CacheKeyActivePlans = "plans:active"

// CommissionRetrier 分佣失败时投递持久化重试
type CommissionRetrier interface {
	EnqueueCommission(ctx context.Context, investmentID uint64) error
}

// ApproveResult 审批结果
// 第二阶段 (分佣) 的结果只记录，不影响审批本身是否成功
type ApproveResult struct {
	Investment      *model.Investment  `json:"investment"`
	Commission      *commission.Result `json:"commission,omitempty"`
	CommissionError string             `json:"commission_error,omitempty"`
	RetryQueued     bool               `json:"retry_queued"`
}

type Service struct {
	db         *gorm.DB
	commission *commission.Service
	retrier    CommissionRetrier
	cache      cache.Cache
	cacheTTL   time.Duration
}

func NewService(db *gorm.DB, cs *commission.Service, c cache.Cache, cacheTTL time.Duration) *Service {
	return &Service{db: db, commission: cs, cache: c, cacheTTL: cacheTTL}
}

// SetRetrier 配置 asynq 时注入
func (s *Service) SetRetrier(r CommissionRetrier) {
	s.retrier = r
}

// ActivePlans 用户可见的计划列表 (走缓存)
func (s *Service) ActivePlans(ctx context.Context) ([]model.InvestmentPlan, error) {
	return cache.GetOrLoad(ctx, s.cache, CacheKeyActivePlans, s.cacheTTL, func() ([]model.InvestmentPlan, error) {
		var plans []model.InvestmentPlan
		err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("min_investment ASC").Find(&plans).Error
		return plans, err
	})
}

// Plan 单个计划
func (s *Service) Plan(ctx context.Context, planID uint64) (*model.InvestmentPlan, error) {
	var p model.InvestmentPlan
	if err := s.db.WithContext(ctx).First(&p, planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.ErrPlanNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Subscribe 用户提交投资申请，等待管理员审批
func (s *Service) Subscribe(ctx context.Context, userID, planID uint64, amount decimal.Decimal, proofURL string) (*model.Investment, error) {
	proofURL = strings.TrimSpace(proofURL)
	if proofURL == "" {
		return nil, errno.ErrBind.WithMessage("Payment proof is required")
	}
	if !amount.IsPositive() {
		return nil, errno.ErrAmountOutOfRange.WithMessage("Amount must be a positive number")
	}

	var u model.User
	if err := s.db.WithContext(ctx).Select("id", "is_active", "is_suspended").First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.ErrUserNotFound
		}
		return nil, err
	}
	if !u.IsActive || u.IsSuspended {
		return nil, errno.ErrUserInactive
	}

	plan, err := s.Plan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, errno.ErrPlanInactive
	}
	if amount.LessThan(plan.MinInvestment) {
		return nil, errno.ErrAmountOutOfRange.WithMessage("Minimum investment amount is $" + plan.MinInvestment.StringFixed(2))
	}
	if amount.GreaterThan(plan.MaxInvestment) {
		return nil, errno.ErrAmountOutOfRange.WithMessage("Maximum investment amount is $" + plan.MaxInvestment.StringFixed(2))
	}

	inv := model.Investment{
		UserID:          userID,
		PlanID:          planID,
		Amount:          amount.Round(2),
		Status:          model.InvestmentPending,
		StartDate:       time.Now().UTC(),
		TotalProfit:     decimal.Zero,
		PaymentProofURL: proofURL,
	}
	if err := s.db.WithContext(ctx).Create(&inv).Error; err != nil {
		return nil, err
	}
	logger.Info("Investment submitted",
		zap.Uint64("investment_id", inv.ID),
		zap.Uint64("user_id", userID),
		zap.String("amount", inv.Amount.StringFixed(2)),
	)
	return &inv, nil
}

// Approve 两阶段审批
// 阶段一: 锁定并把 PENDING 改为 ACTIVE，随 outbox 事件一起提交
// 阶段二: 同步分佣，失败只记录并投递重试
func (s *Service) Approve(ctx context.Context, adminID, investmentID uint64, amountOverride *decimal.Decimal) (*ApproveResult, error) {
	if amountOverride != nil && !amountOverride.IsPositive() {
		return nil, errno.ErrAmountOutOfRange.WithMessage("Amount must be a positive number")
	}

	var inv model.Investment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&inv, investmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errno.ErrInvestmentNotFound
			}
			return err
		}
		if inv.Status != model.InvestmentPending {
			return errno.ErrInvestmentState
		}

		updates := map[string]interface{}{
			"status":     model.InvestmentActive,
			"start_date": time.Now().UTC(),
		}
		if amountOverride != nil {
			updates["amount"] = amountOverride.Round(2)
		}
		// 以状态为条件更新，避免并发审批
		res := tx.Model(&model.Investment{}).
			Where("id = ? AND status = ?", inv.ID, model.InvestmentPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errno.ErrInvestmentState
		}
		if err := tx.First(&inv, inv.ID).Error; err != nil {
			return err
		}

		return model.CreateOutboxMessage(tx, event.TopicInvestmentApproved, strconv.FormatUint(inv.UserID, 10), event.InvestmentApprovedEvent{
			InvestmentID: inv.ID,
			UserID:       inv.UserID,
			PlanID:       inv.PlanID,
			AdminID:      adminID,
			Amount:       inv.Amount.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	monitor.InvestmentApprovedTotal.Inc()
	monitor.InvestmentAmountTotal.Add(inv.Amount.InexactFloat64())
	logger.Info("Investment approved",
		zap.Uint64("investment_id", inv.ID),
		zap.Uint64("admin_id", adminID),
		zap.String("amount", inv.Amount.StringFixed(2)),
	)

	result := &ApproveResult{Investment: &inv}
	s.distribute(ctx, result)
	return result, nil
}

func (s *Service) distribute(ctx context.Context, result *ApproveResult) {
	id := result.Investment.ID
	res, err := s.commission.Distribute(ctx, id)
	if err == nil {
		err = res.Err()
	}
	result.Commission = res
	if err == nil {
		return
	}

	result.CommissionError = err.Error()
	logger.Error("Commission distribution failed after approval",
		zap.Uint64("investment_id", id),
		zap.Error(err),
	)
	if s.retrier == nil {
		return
	}
	if qerr := s.retrier.EnqueueCommission(ctx, id); qerr != nil {
		logger.Error("Enqueue commission retry failed",
			zap.Uint64("investment_id", id),
			zap.Error(qerr),
		)
		return
	}
	result.RetryQueued = true
}

// Reject PENDING -> CANCELLED
func (s *Service) Reject(ctx context.Context, adminID, investmentID uint64) (*model.Investment, error) {
	var inv model.Investment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&inv, investmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errno.ErrInvestmentNotFound
			}
			return err
		}
		if inv.Status != model.InvestmentPending {
			return errno.ErrInvestmentState
		}
		res := tx.Model(&model.Investment{}).
			Where("id = ? AND status = ?", inv.ID, model.InvestmentPending).
			Update("status", model.InvestmentCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errno.ErrInvestmentState
		}
		inv.Status = model.InvestmentCancelled

		return model.CreateOutboxMessage(tx, event.TopicInvestmentRejected, strconv.FormatUint(inv.UserID, 10), event.InvestmentRejectedEvent{
			InvestmentID: inv.ID,
			UserID:       inv.UserID,
			AdminID:      adminID,
		})
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Investment rejected", zap.Uint64("investment_id", inv.ID), zap.Uint64("admin_id", adminID))
	return &inv, nil
}

// ListByUser 用户自己的投资
func (s *Service) ListByUser(ctx context.Context, userID uint64) ([]model.Investment, error) {
	var list []model.Investment
	err := s.db.WithContext(ctx).
		Preload("Plan", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

// List 管理端列表，status 为空表示全部
func (s *Service) List(ctx context.Context, status string) ([]model.Investment, error) {
	q := s.db.WithContext(ctx).
		Preload("Plan", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("User").
		Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", strings.ToUpper(status))
	}
	var list []model.Investment
	if err := q.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	return list, nil
}
