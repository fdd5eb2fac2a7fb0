package rank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"invest-core/internal/model"
	"invest-core/internal/service/referral"
	"invest-core/pkg/cache"
	"invest-core/pkg/logger"
	"invest-core/pkg/monitor"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobName 用于锁和监控标签
const JobName = "rank_rewards"

// CacheKeyActiveRanks 活跃等级列表缓存键
const CacheKeyActiveRanks = "ranks:active"

// Summary 一次等级评估的结果
type Summary struct {
	Success        bool `json:"success"`
	TotalUsers     int  `json:"totalUsers"`
	TotalRanks     int  `json:"totalRanks"`
	RewardsAwarded int  `json:"rewardsAwarded"`
	RanksUpdated   int  `json:"ranksUpdated"`
	Failed         int  `json:"failed"`
}

// userResult 单个用户的评估结果
type userResult struct {
	rewards     int
	rankUpdated bool
}

// Job 等级评估与一次性奖励发放
type Job struct {
	db       *gorm.DB
	cache    cache.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewJob(db *gorm.DB, c cache.Cache, cacheTTL time.Duration) *Job {
	return &Job{db: db, cache: c, cacheTTL: cacheTTL, now: time.Now}
}

// WithClock 替换时钟 (测试用)
func (j *Job) WithClock(now func() time.Time) *Job {
	j.now = now
	return j
}

// ActiveRanks 按 rank_number 升序的活跃等级 (走缓存)
func (j *Job) ActiveRanks(ctx context.Context) ([]model.Rank, error) {
	return cache.GetOrLoad(ctx, j.cache, CacheKeyActiveRanks, j.cacheTTL, func() ([]model.Rank, error) {
		var ranks []model.Rank
		err := j.db.WithContext(ctx).Where("is_active = ?", true).Order("rank_number ASC").Find(&ranks).Error
		return ranks, err
	})
}

// Run 评估所有活跃普通用户
// 只有加载用户或等级失败才返回错误，单个用户失败计入 Failed
func (j *Job) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	defer monitor.ObserveJob(JobName, start)

	summary := &Summary{}

	ranks, err := j.ActiveRanks(ctx)
	if err != nil {
		return summary, fmt.Errorf("load ranks: %w", err)
	}
	summary.TotalRanks = len(ranks)

	var users []model.User
	if err := j.db.WithContext(ctx).
		Preload("CurrentRank").
		Where("role = ? AND is_active = ?", model.RoleUser, true).
		Order("id ASC").
		Find(&users).Error; err != nil {
		return summary, fmt.Errorf("load users: %w", err)
	}
	summary.TotalUsers = len(users)

	for i := range users {
		if ctx.Err() != nil {
			break
		}
		res, err := j.evaluate(ctx, &users[i], ranks)
		summary.RewardsAwarded += res.rewards
		if res.rankUpdated {
			summary.RanksUpdated++
		}
		if err != nil {
			summary.Failed++
			monitor.JobItemsTotal.WithLabelValues(JobName, "failed").Inc()
			logger.Error("Rank evaluation failed",
				zap.Uint64("user_id", users[i].ID),
				zap.Error(err),
			)
			continue
		}
		monitor.JobItemsTotal.WithLabelValues(JobName, "processed").Inc()
	}

	summary.Success = true
	logger.Info("Rank reward job finished",
		zap.Int("users", summary.TotalUsers),
		zap.Int("ranks", summary.TotalRanks),
		zap.Int("rewards", summary.RewardsAwarded),
		zap.Int("ranks_updated", summary.RanksUpdated),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (j *Job) evaluate(ctx context.Context, u *model.User, ranks []model.Rank) (userResult, error) {
	var res userResult
	db := j.db.WithContext(ctx)

	current := 0
	if u.CurrentRank != nil {
		current = u.CurrentRank.RankNumber
	}

	self, err := referral.SumInvestments(db, []uint64{u.ID})
	if err != nil {
		return res, fmt.Errorf("self investment: %w", err)
	}
	downline, err := referral.DownlineIDs(db, u.ID)
	if err != nil {
		return res, fmt.Errorf("downline: %w", err)
	}
	team, err := referral.SumInvestments(db, downline)
	if err != nil {
		return res, fmt.Errorf("team business: %w", err)
	}

	highest := current
	var highestRank *model.Rank
	var awardErr error
	for i := range ranks {
		r := &ranks[i]
		if r.RankNumber <= current {
			continue
		}
		if !Qualifies(*r, self, team) {
			continue
		}

		paid, err := j.award(ctx, u.ID, r)
		if err != nil {
			// 已发放的较低等级仍要落到 current_rank_id
			awardErr = fmt.Errorf("award rank %d: %w", r.RankNumber, err)
			break
		}
		if paid {
			res.rewards++
			monitor.RankRewardPaidTotal.WithLabelValues(r.Name).Add(r.RewardAmount.InexactFloat64())
		}
		if r.RankNumber > highest {
			highest = r.RankNumber
			highestRank = r
		}
	}

	if highestRank != nil {
		// 只升不降
		upd := db.Model(&model.User{}).Where("id = ?", u.ID).Update("current_rank_id", highestRank.ID)
		if upd.Error != nil {
			return res, fmt.Errorf("update current rank: %w", upd.Error)
		}
		res.rankUpdated = true
		logger.Info("User rank updated",
			zap.Uint64("user_id", u.ID),
			zap.Int("from", current),
			zap.Int("to", highest),
		)
	}
	return res, awardErr
}

// award 创建或复用 UserRank，奖励未发放时在同一事务内写流水并标记 reward_paid_at
// 返回本次是否发放了奖励
func (j *Job) award(ctx context.Context, userID uint64, r *model.Rank) (bool, error) {
	paid := false
	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := j.now().UTC()
		ur := model.UserRank{
			UserID:       userID,
			RankID:       r.ID,
			RewardAmount: r.RewardAmount,
			AchievedAt:   now,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "rank_id"}},
			DoNothing: true,
		}).Create(&ur).Error; err != nil {
			return err
		}

		var existing model.UserRank
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND rank_id = ?", userID, r.ID).
			First(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("user rank row missing after upsert")
			}
			return err
		}
		if existing.RewardPaidAt != nil {
			return nil
		}

		amount := existing.RewardAmount
		if amount.IsZero() {
			amount = r.RewardAmount
		}
		relatedID := existing.ID
		if err := tx.Create(&model.Transaction{
			UserID:      userID,
			Type:        model.TxRankReward,
			Status:      model.TxCompleted,
			Amount:      amount,
			Description: fmt.Sprintf("Rank reward for achieving %s", r.Name),
			RelatedID:   &relatedID,
			RelatedType: model.RelatedUserRank,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.UserRank{}).
			Where("id = ?", existing.ID).
			Update("reward_paid_at", now).Error; err != nil {
			return err
		}
		paid = true
		return nil
	})
	return paid, err
}

// Qualifies 个人投资和团队业绩同时达到门槛
func Qualifies(r model.Rank, self, team decimal.Decimal) bool {
	return self.GreaterThanOrEqual(r.RequiredSelfInvestment) && team.GreaterThanOrEqual(r.RequiredTeamBusiness)
}
