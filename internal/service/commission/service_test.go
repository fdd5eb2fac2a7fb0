package commission

import (
	"context"
	"testing"

	"invest-core/internal/model"
	"invest-core/internal/service/referral"
	"invest-core/internal/testutil"
	"invest-core/pkg/database"
	"invest-core/pkg/errno"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// upline 创建 n 层上级加一个投资人，返回 [L1, L2, ..., Ln] 和投资人
func upline(t *testing.T, db *gorm.DB, n int) ([]*model.User, *model.User) {
	t.Helper()
	var parent *uint64
	chain := make([]*model.User, 0, n+1)
	for i := 0; i <= n; i++ {
		u := testutil.CreateUser(t, db, parent)
		_, err := referral.Build(db, u.ID, u.ReferrerID)
		require.NoError(t, err)
		chain = append(chain, u)
		id := u.ID
		parent = &id
	}
	investor := chain[n]
	levels := make([]*model.User, n)
	for i := 0; i < n; i++ {
		levels[i] = chain[n-1-i]
	}
	return levels, investor
}

func balanceOf(t *testing.T, db *gorm.DB, userID uint64) decimal.Decimal {
	t.Helper()
	sum, err := database.Sum(db.Model(&model.Transaction{}).
		Where("user_id = ? AND type = ?", userID, model.TxReferralIncome), "amount")
	require.NoError(t, err)
	return sum
}

func TestDistributeFourLevels(t *testing.T) {
	db := testutil.NewDB(t)
	levels, investor := upline(t, db, 5)
	plan := testutil.CreatePlan(t, db, "4")
	inv := testutil.CreateInvestment(t, db, investor.ID, plan.ID, "100", model.InvestmentActive)

	res, err := NewService(db).Distribute(context.Background(), inv.ID)
	require.NoError(t, err)
	require.NoError(t, res.Err())

	assert.Equal(t, 4, res.Credited, "only four levels are stored")
	assert.True(t, res.Total.Equal(testutil.Dec("20")), res.Total.String())

	want := []string{"10", "5", "3", "2"}
	for i, w := range want {
		assert.True(t, balanceOf(t, db, levels[i].ID).Equal(testutil.Dec(w)), "level %d", i+1)
	}
	assert.True(t, balanceOf(t, db, levels[4].ID).IsZero(), "fifth ancestor earns nothing")

	var incomes []model.ReferralIncome
	require.NoError(t, db.Order("level").Find(&incomes).Error)
	require.Len(t, incomes, 4)
	assert.True(t, incomes[0].Percentage.Equal(testutil.Dec("10")))
	assert.False(t, incomes[0].IsPaid)

	var tx model.Transaction
	require.NoError(t, db.Where("user_id = ?", levels[0].ID).First(&tx).Error)
	assert.Equal(t, model.TxCompleted, tx.Status)
	assert.Equal(t, model.RelatedReferralIncome, tx.RelatedType)
	require.NotNil(t, tx.RelatedID)
	assert.Equal(t, incomes[0].ID, *tx.RelatedID)
	assert.Contains(t, tx.Description, "Level 1")
}

func TestDistributeSkipsIneligibleReferrers(t *testing.T) {
	db := testutil.NewDB(t)
	levels, investor := upline(t, db, 4)
	plan := testutil.CreatePlan(t, db, "4")
	inv := testutil.CreateInvestment(t, db, investor.ID, plan.ID, "100", model.InvestmentActive)

	require.NoError(t, db.Model(levels[0]).Update("is_active", false).Error)
	require.NoError(t, db.Model(levels[2]).Update("is_suspended", true).Error)

	res, err := NewService(db).Distribute(context.Background(), inv.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Credited)
	assert.Equal(t, 2, res.Skipped)
	// 被跳过的层级不会顺延给更上层
	assert.True(t, res.Total.Equal(testutil.Dec("7")), res.Total.String())
	assert.True(t, balanceOf(t, db, levels[0].ID).IsZero())
	assert.True(t, balanceOf(t, db, levels[1].ID).Equal(testutil.Dec("5")))
	assert.True(t, balanceOf(t, db, levels[2].ID).IsZero())
	assert.True(t, balanceOf(t, db, levels[3].ID).Equal(testutil.Dec("2")))
}

func TestDistributeIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	levels, investor := upline(t, db, 2)
	plan := testutil.CreatePlan(t, db, "4")
	inv := testutil.CreateInvestment(t, db, investor.ID, plan.ID, "250", model.InvestmentActive)

	svc := NewService(db)
	_, err := svc.Distribute(context.Background(), inv.ID)
	require.NoError(t, err)

	res, err := svc.Distribute(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Credited)
	assert.Equal(t, 2, res.Skipped)

	var count int64
	db.Model(&model.Transaction{}).Where("type = ?", model.TxReferralIncome).Count(&count)
	assert.EqualValues(t, 2, count)
	assert.True(t, balanceOf(t, db, levels[0].ID).Equal(testutil.Dec("25")))
}

func TestDistributeNoReferrer(t *testing.T) {
	db := testutil.NewDB(t)
	u := testutil.CreateUser(t, db, nil)
	plan := testutil.CreatePlan(t, db, "4")
	inv := testutil.CreateInvestment(t, db, u.ID, plan.ID, "100", model.InvestmentActive)

	res, err := NewService(db).Distribute(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Empty(t, res.Levels)
	assert.True(t, res.Total.IsZero())
}

func TestDistributeRequiresApprovedInvestment(t *testing.T) {
	db := testutil.NewDB(t)
	_, investor := upline(t, db, 1)
	plan := testutil.CreatePlan(t, db, "4")
	inv := testutil.CreateInvestment(t, db, investor.ID, plan.ID, "100", model.InvestmentPending)

	svc := NewService(db)
	_, err := svc.Distribute(context.Background(), inv.ID)
	assert.ErrorIs(t, err, errno.ErrInvestmentState)

	_, err = svc.Distribute(context.Background(), 424242)
	assert.ErrorIs(t, err, errno.ErrInvestmentNotFound)
}

func TestCommissionRounding(t *testing.T) {
	db := testutil.NewDB(t)
	levels, investor := upline(t, db, 3)
	plan := testutil.CreatePlan(t, db, "4")
	inv := testutil.CreateInvestment(t, db, investor.ID, plan.ID, "33.33", model.InvestmentActive)

	_, err := NewService(db).Distribute(context.Background(), inv.ID)
	require.NoError(t, err)

	assert.True(t, balanceOf(t, db, levels[0].ID).Equal(testutil.Dec("3.33")))
	assert.True(t, balanceOf(t, db, levels[1].ID).Equal(testutil.Dec("1.67")))
	assert.True(t, balanceOf(t, db, levels[2].ID).Equal(testutil.Dec("1")))
}

func TestDistributeChecksTheActualReferrer(t *testing.T) {
	db := testutil.NewDB(t)
	levels, investor := upline(t, db, 1)
	plan := testutil.CreatePlan(t, db, "4")
	inv := testutil.CreateInvestment(t, db, investor.ID, plan.ID, "100", model.InvestmentActive)
	require.NoError(t, db.Model(levels[0]).Update("is_active", false).Error)

	// 活跃用户的 referrer_id 恰好等于关系行 id，不能被当作上级
	var rel model.ReferralRelationship
	require.NoError(t, db.Where("referred_id = ? AND level = 1", investor.ID).First(&rel).Error)
	relID := rel.ID
	stray := testutil.CreateUser(t, db, &relID)

	res, err := NewService(db).Distribute(context.Background(), inv.ID)
	require.NoError(t, err)

	require.Len(t, res.Levels, 1)
	assert.Equal(t, OutcomeSkipped, res.Levels[0].Outcome)
	assert.Equal(t, levels[0].ID, res.Levels[0].RecipientID)
	assert.Equal(t, 0, res.Credited)
	assert.True(t, balanceOf(t, db, levels[0].ID).IsZero())
	assert.True(t, balanceOf(t, db, stray.ID).IsZero())
}

func TestPercentage(t *testing.T) {
	for level, want := range map[int]string{1: "10", 2: "5", 3: "3", 4: "2"} {
		pct, ok := Percentage(level)
		require.True(t, ok, "level %d", level)
		assert.True(t, pct.Equal(testutil.Dec(want)), "level %d", level)
	}
	_, ok := Percentage(5)
	assert.False(t, ok)
}
