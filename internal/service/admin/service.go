package admin

import (
	"context"
	"errors"
	"strings"

	"invest-core/internal/model"
	"invest-core/internal/service/investment"
	"invest-core/internal/service/rank"
	"invest-core/pkg/cache"
	"invest-core/pkg/database"
	"invest-core/pkg/errno"
	"invest-core/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlanInput 创建/更新计划参数
type PlanInput struct {
	Name                  string
	Description           string
	MinInvestment         decimal.Decimal
	MaxInvestment         decimal.Decimal
	DailyProfitPercentage decimal.Decimal
	IsActive              bool
}

func (in *PlanInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "" || len(in.Name) > 100:
		return errno.ErrInvalidPlan.WithMessage("Plan name must be 1-100 characters")
	case !in.MinInvestment.IsPositive():
		return errno.ErrInvalidPlan.WithMessage("Minimum investment must be greater than 0")
	case !in.MaxInvestment.IsPositive():
		return errno.ErrInvalidPlan.WithMessage("Maximum investment must be greater than 0")
	case in.MaxInvestment.LessThan(in.MinInvestment):
		return errno.ErrInvalidPlan.WithMessage("Maximum investment must be greater than or equal to minimum investment")
	case in.DailyProfitPercentage.IsNegative():
		return errno.ErrInvalidPlan.WithMessage("Daily profit percentage must be 0 or greater")
	case in.DailyProfitPercentage.GreaterThan(decimal.NewFromInt(100)):
		return errno.ErrInvalidPlan.WithMessage("Daily profit percentage cannot exceed 100%")
	}
	return nil
}

// Statistics 管理后台概览
type Statistics struct {
	TotalUsers               int64           `json:"total_users"`
	ActiveUsers              int64           `json:"active_users"`
	TotalInvestments         int64           `json:"total_investments"`
	PendingInvestments       int64           `json:"pending_investments"`
	ActiveInvestments        int64           `json:"active_investments"`
	TotalInvestedAmount      decimal.Decimal `json:"total_invested_amount"`
	PendingInvestmentAmount  decimal.Decimal `json:"pending_investment_amount"`
	PendingWithdrawals       int64           `json:"pending_withdrawals"`
	PendingWithdrawalAmount  decimal.Decimal `json:"pending_withdrawal_amount"`
	CompletedWithdrawnAmount decimal.Decimal `json:"completed_withdrawn_amount"`
}

type Service struct {
	db    *gorm.DB
	cache cache.Cache
}

func NewService(db *gorm.DB, c cache.Cache) *Service {
	return &Service{db: db, cache: c}
}

func (s *Service) invalidatePlans(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, investment.CacheKeyActivePlans); err != nil {
		logger.Warn("Invalidate plan cache failed", zap.Error(err))
	}
}

// CreatePlan 新建计划
func (s *Service) CreatePlan(ctx context.Context, adminID uint64, in PlanInput) (*model.InvestmentPlan, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p := model.InvestmentPlan{
		Name:                  in.Name,
		Description:           strings.TrimSpace(in.Description),
		MinInvestment:         in.MinInvestment.Round(2),
		MaxInvestment:         in.MaxInvestment.Round(2),
		DailyProfitPercentage: in.DailyProfitPercentage,
		IsActive:              in.IsActive,
		CreatedBy:             &adminID,
	}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, err
	}
	s.invalidatePlans(ctx)
	logger.Info("Plan created", zap.Uint64("plan_id", p.ID), zap.Uint64("admin_id", adminID))
	return &p, nil
}

// UpdatePlan 全量更新计划
func (s *Service) UpdatePlan(ctx context.Context, planID uint64, in PlanInput) (*model.InvestmentPlan, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var p model.InvestmentPlan
	if err := s.db.WithContext(ctx).First(&p, planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.ErrPlanNotFound
		}
		return nil, err
	}
	updates := map[string]interface{}{
		"name":                    in.Name,
		"description":             strings.TrimSpace(in.Description),
		"min_investment":          in.MinInvestment.Round(2),
		"max_investment":          in.MaxInvestment.Round(2),
		"daily_profit_percentage": in.DailyProfitPercentage,
		"is_active":               in.IsActive,
	}
	if err := s.db.WithContext(ctx).Model(&p).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).First(&p, planID).Error; err != nil {
		return nil, err
	}
	s.invalidatePlans(ctx)
	return &p, nil
}

// DeletePlan 软删除并停用，已有投资继续按原计划计息
func (s *Service) DeletePlan(ctx context.Context, planID uint64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.InvestmentPlan{}).Where("id = ?", planID).Update("is_active", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errno.ErrPlanNotFound
		}
		return tx.Delete(&model.InvestmentPlan{}, planID).Error
	})
	if err != nil {
		return err
	}
	s.invalidatePlans(ctx)
	return nil
}

// ListPlans 管理端计划列表 (含停用)
func (s *Service) ListPlans(ctx context.Context) ([]model.InvestmentPlan, error) {
	var plans []model.InvestmentPlan
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&plans).Error
	return plans, err
}

// ListUsers 管理端用户列表
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := s.db.WithContext(ctx).Preload("CurrentRank").Order("created_at DESC").Find(&users).Error
	return users, err
}

// loadTarget 管理员不能操作自己或其他管理员
func (s *Service) loadTarget(ctx context.Context, adminID, userID uint64) (*model.User, error) {
	if adminID == userID {
		return nil, errno.ErrCannotModifyUser.WithMessage("You cannot modify your own account")
	}
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.ErrUserNotFound
		}
		return nil, err
	}
	if u.Role == model.RoleAdmin {
		return nil, errno.ErrCannotModifyUser.WithMessage("Cannot modify another admin user")
	}
	return &u, nil
}

// SetUserActive 启用/停用
func (s *Service) SetUserActive(ctx context.Context, adminID, userID uint64, active bool) error {
	u, err := s.loadTarget(ctx, adminID, userID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(u).Update("is_active", active).Error
}

// SetUserSuspended 冻结/解冻
func (s *Service) SetUserSuspended(ctx context.Context, adminID, userID uint64, suspended bool) error {
	u, err := s.loadTarget(ctx, adminID, userID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(u).Update("is_suspended", suspended).Error
}

// DeleteUser 软删除单个用户
func (s *Service) DeleteUser(ctx context.Context, adminID, userID uint64) error {
	u, err := s.loadTarget(ctx, adminID, userID)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(u).Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Delete(u).Error
	})
	if err != nil {
		return err
	}
	logger.Info("User deleted", zap.Uint64("admin_id", adminID), zap.Uint64("user_id", userID))
	return nil
}

// DeleteUsers 批量软删除，跳过管理员，返回删除数量
func (s *Service) DeleteUsers(ctx context.Context, adminID uint64, userIDs []uint64) (int64, error) {
	if len(userIDs) == 0 {
		return 0, errno.ErrBind.WithMessage("no users selected")
	}
	for _, id := range userIDs {
		if id == adminID {
			return 0, errno.ErrCannotModifyUser.WithMessage("You cannot delete your own account")
		}
	}

	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint64
		if err := tx.Model(&model.User{}).
			Where("id IN ? AND role <> ?", userIDs, model.RoleAdmin).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Model(&model.User{}).Where("id IN ?", ids).Update("is_active", false).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&model.User{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, err
	}
	logger.Info("Users deleted", zap.Uint64("admin_id", adminID), zap.Int64("count", deleted))
	return deleted, nil
}

// Statistics 后台概览
func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	db := s.db.WithContext(ctx)
	var (
		st  Statistics
		err error
	)

	if err = db.Model(&model.User{}).Where("role = ?", model.RoleUser).Count(&st.TotalUsers).Error; err != nil {
		return nil, err
	}
	if err = db.Model(&model.User{}).Where("role = ? AND is_active = ?", model.RoleUser, true).Count(&st.ActiveUsers).Error; err != nil {
		return nil, err
	}
	if err = db.Model(&model.Investment{}).Count(&st.TotalInvestments).Error; err != nil {
		return nil, err
	}
	if err = db.Model(&model.Investment{}).Where("status = ?", model.InvestmentPending).Count(&st.PendingInvestments).Error; err != nil {
		return nil, err
	}
	if err = db.Model(&model.Investment{}).Where("status = ?", model.InvestmentActive).Count(&st.ActiveInvestments).Error; err != nil {
		return nil, err
	}
	if st.TotalInvestedAmount, err = database.Sum(db.Model(&model.Investment{}).
		Where("status IN ?", []string{model.InvestmentActive, model.InvestmentCompleted}), "amount"); err != nil {
		return nil, err
	}
	if st.PendingInvestmentAmount, err = database.Sum(db.Model(&model.Investment{}).
		Where("status = ?", model.InvestmentPending), "amount"); err != nil {
		return nil, err
	}

	withdrawals := func() *gorm.DB {
		return db.Model(&model.Transaction{}).Where("type = ?", model.TxWithdrawal)
	}
	if err = withdrawals().Where("status = ?", model.TxPending).Count(&st.PendingWithdrawals).Error; err != nil {
		return nil, err
	}
	if st.PendingWithdrawalAmount, err = database.Sum(withdrawals().Where("status = ?", model.TxPending), "amount"); err != nil {
		return nil, err
	}
	if st.CompletedWithdrawnAmount, err = database.Sum(withdrawals().Where("status = ?", model.TxCompleted), "amount"); err != nil {
		return nil, err
	}
	return &st, nil
}

// SeedRanks 写入默认等级，已存在的 rank_number 保持不变，返回新增数量
func (s *Service) SeedRanks(ctx context.Context) (int64, error) {
	ranks := model.DefaultRanks()
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "rank_number"}},
		DoNothing: true,
	}).Create(&ranks)
	if res.Error != nil {
		return 0, res.Error
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, rank.CacheKeyActiveRanks)
	}
	return res.RowsAffected, nil
}

// ListRanks 全部等级 (含停用)
func (s *Service) ListRanks(ctx context.Context) ([]model.Rank, error) {
	var ranks []model.Rank
	err := s.db.WithContext(ctx).Order("rank_number ASC").Find(&ranks).Error
	return ranks, err
}
