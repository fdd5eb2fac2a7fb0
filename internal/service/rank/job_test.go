package rank

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"invest-core/internal/model"
	"invest-core/internal/service/referral"
	"invest-core/internal/testutil"
	"invest-core/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// leader 创建一个带 n 个直推下级的用户，下级各投资 each
func leader(t *testing.T, db *gorm.DB, plan *model.InvestmentPlan, selfAmount, each string, n int) *model.User {
	t.Helper()
	u := testutil.CreateUser(t, db, nil)
	testutil.CreateInvestment(t, db, u.ID, plan.ID, selfAmount, model.InvestmentActive)
	for i := 0; i < n; i++ {
		c := testutil.CreateUser(t, db, &u.ID)
		_, err := referral.Build(db, c.ID, c.ReferrerID)
		require.NoError(t, err)
		testutil.CreateInvestment(t, db, c.ID, plan.ID, each, model.InvestmentActive)
	}
	return u
}

func newJob(db *gorm.DB) *Job {
	return NewJob(db, cache.NewMultiLevelCache(cache.NewMemoryCache(time.Minute, time.Minute), nil), time.Minute)
}

func TestRunAwardsQualifiedRanks(t *testing.T) {
	db := testutil.NewDB(t)
	ranks := testutil.SeedRanks(t, db)
	plan := testutil.CreatePlan(t, db, "4")

	// self 250, team 6000: Bronze + Silver，不够 Gold
	u := leader(t, db, plan, "250", "3000", 2)

	s, err := newJob(db).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, s.Success)
	assert.Equal(t, 3, s.TotalRanks)
	assert.Equal(t, 2, s.RewardsAwarded)
	assert.Equal(t, 1, s.RanksUpdated)
	assert.Equal(t, 0, s.Failed)

	var reloaded model.User
	require.NoError(t, db.First(&reloaded, u.ID).Error)
	require.NotNil(t, reloaded.CurrentRankID)
	assert.Equal(t, ranks[1].ID, *reloaded.CurrentRankID)

	var urs []model.UserRank
	require.NoError(t, db.Where("user_id = ?", u.ID).Order("rank_id").Find(&urs).Error)
	require.Len(t, urs, 2)
	for _, ur := range urs {
		assert.NotNil(t, ur.RewardPaidAt)
	}

	var rewards []model.Transaction
	require.NoError(t, db.Where("user_id = ? AND type = ?", u.ID, model.TxRankReward).Order("id").Find(&rewards).Error)
	require.Len(t, rewards, 2)
	assert.True(t, rewards[0].Amount.Equal(testutil.Dec("50")))
	assert.True(t, rewards[1].Amount.Equal(testutil.Dec("120")))
	assert.Equal(t, model.RelatedUserRank, rewards[0].RelatedType)
}

func TestRunIsIdempotentAndMonotonic(t *testing.T) {
	db := testutil.NewDB(t)
	ranks := testutil.SeedRanks(t, db)
	plan := testutil.CreatePlan(t, db, "4")
	u := leader(t, db, plan, "500", "5000", 2)

	job := newJob(db)
	first, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, first.RewardsAwarded)

	// 业绩下降后再跑：不降级、不重复发奖
	require.NoError(t, db.Where("user_id <> ?", u.ID).Delete(&model.Investment{}).Error)
	second, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.RewardsAwarded)
	assert.Equal(t, 0, second.RanksUpdated)

	var reloaded model.User
	require.NoError(t, db.First(&reloaded, u.ID).Error)
	require.NotNil(t, reloaded.CurrentRankID)
	assert.Equal(t, ranks[2].ID, *reloaded.CurrentRankID)

	var count int64
	db.Model(&model.UserRank{}).Where("user_id = ?", u.ID).Count(&count)
	assert.EqualValues(t, 3, count)
	db.Model(&model.Transaction{}).Where("type = ?", model.TxRankReward).Count(&count)
	assert.EqualValues(t, 3, count)
}

func TestRunPaysPreviouslyUnpaidReward(t *testing.T) {
	db := testutil.NewDB(t)
	ranks := testutil.SeedRanks(t, db)
	plan := testutil.CreatePlan(t, db, "4")
	u := leader(t, db, plan, "100", "2500", 1)

	// 之前只写了 UserRank，奖励未发放
	require.NoError(t, db.Create(&model.UserRank{
		UserID: u.ID, RankID: ranks[0].ID, RewardAmount: ranks[0].RewardAmount, AchievedAt: time.Now().UTC(),
	}).Error)

	s, err := newJob(db).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.RewardsAwarded)

	var ur model.UserRank
	require.NoError(t, db.Where("user_id = ? AND rank_id = ?", u.ID, ranks[0].ID).First(&ur).Error)
	assert.NotNil(t, ur.RewardPaidAt)
}

func TestRunKeepsPaidRankWhenHigherAwardFails(t *testing.T) {
	db := testutil.NewDB(t)
	ranks := testutil.SeedRanks(t, db)
	plan := testutil.CreatePlan(t, db, "4")
	u := leader(t, db, plan, "250", "3000", 2)

	// Silver 奖励流水写入失败
	const cb = "test:fail_silver_reward"
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register(cb, func(tx *gorm.DB) {
		if rec, ok := tx.Statement.Dest.(*model.Transaction); ok &&
			rec.Type == model.TxRankReward && strings.Contains(rec.Description, ranks[1].Name) {
			_ = tx.AddError(errors.New("ledger unavailable"))
		}
	}))

	s, err := newJob(db).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.RewardsAwarded)
	assert.Equal(t, 1, s.RanksUpdated)

	var reloaded model.User
	require.NoError(t, db.First(&reloaded, u.ID).Error)
	require.NotNil(t, reloaded.CurrentRankID)
	assert.Equal(t, ranks[0].ID, *reloaded.CurrentRankID)

	// 恢复后下一轮补发 Silver
	require.NoError(t, db.Callback().Create().Remove(cb))
	s, err = newJob(db).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, s.Failed)
	assert.Equal(t, 1, s.RewardsAwarded)

	require.NoError(t, db.First(&reloaded, u.ID).Error)
	assert.Equal(t, ranks[1].ID, *reloaded.CurrentRankID)
	var paid int64
	db.Model(&model.UserRank{}).Where("user_id = ? AND reward_paid_at IS NOT NULL", u.ID).Count(&paid)
	assert.EqualValues(t, 2, paid)
}

func TestRunSkipsInactiveUsersAndAdmins(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedRanks(t, db)
	plan := testutil.CreatePlan(t, db, "4")

	inactive := leader(t, db, plan, "500", "10000", 1)
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)
	admin := testutil.CreateAdmin(t, db)
	testutil.CreateInvestment(t, db, admin.ID, plan.ID, "1000", model.InvestmentActive)

	s, err := newJob(db).Run(context.Background())
	require.NoError(t, err)
	// 只剩下级那一个普通用户
	assert.Equal(t, 1, s.TotalUsers)
	assert.Equal(t, 0, s.RewardsAwarded)
}

func TestRunIgnoresInactiveRanks(t *testing.T) {
	db := testutil.NewDB(t)
	ranks := testutil.SeedRanks(t, db)
	require.NoError(t, db.Model(&ranks[0]).Update("is_active", false).Error)
	plan := testutil.CreatePlan(t, db, "4")
	leader(t, db, plan, "250", "6000", 1)

	s, err := newJob(db).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalRanks)
	assert.Equal(t, 1, s.RewardsAwarded, "only Silver is paid")
}

func TestQualifies(t *testing.T) {
	r := model.DefaultRanks()[0]
	tests := []struct {
		name       string
		self, team string
		want       bool
	}{
		{"both at threshold", "100", "2500", true},
		{"self short", "99.99", "2500", false},
		{"team short", "100", "2499.99", false},
		{"both above", "1000", "10000", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Qualifies(r, testutil.Dec(tt.self), testutil.Dec(tt.team)))
		})
	}
}
