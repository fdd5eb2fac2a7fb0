package profit

import (
	"context"
	"testing"
	"time"

	"invest-core/internal/model"
	"invest-core/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRunAccruesOncePerDay(t *testing.T) {
	db := testutil.NewDB(t)
	u := testutil.CreateUser(t, db, nil)
	plan := testutil.CreatePlan(t, db, "4")
	inv := testutil.CreateInvestment(t, db, u.ID, plan.ID, "100", model.InvestmentActive)

	day := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	job := NewJob(db, Options{}).WithClock(fixedClock(day))

	first, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, 1, first.TotalInvestments)
	assert.Equal(t, 1, first.Processed)
	assert.Equal(t, model.UTCDay(day), first.Date)

	// 同一天再跑一次，全部跳过
	job.WithClock(fixedClock(day.Add(10 * time.Hour)))
	second, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed)
	assert.Equal(t, 1, second.Skipped)

	var reloaded model.Investment
	require.NoError(t, db.First(&reloaded, inv.ID).Error)
	assert.True(t, reloaded.TotalProfit.Equal(decimal.NewFromInt(4)), reloaded.TotalProfit.String())

	var profits []model.DailyProfit
	require.NoError(t, db.Find(&profits).Error)
	require.Len(t, profits, 1)
	assert.True(t, profits[0].Amount.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, u.ID, profits[0].UserID)

	var txs []model.Transaction
	require.NoError(t, db.Where("type = ?", model.TxDailyProfit).Find(&txs).Error)
	require.Len(t, txs, 1)
	assert.Equal(t, model.RelatedDailyProfit, txs[0].RelatedType)
	require.NotNil(t, txs[0].RelatedID)
	assert.Equal(t, profits[0].ID, *txs[0].RelatedID)

	// 次日继续计提
	job.WithClock(fixedClock(day.AddDate(0, 0, 1)))
	third, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, third.Processed)
	require.NoError(t, db.First(&reloaded, inv.ID).Error)
	assert.True(t, reloaded.TotalProfit.Equal(decimal.NewFromInt(8)))
}

func TestRunOnlyActiveInvestments(t *testing.T) {
	db := testutil.NewDB(t)
	u := testutil.CreateUser(t, db, nil)
	plan := testutil.CreatePlan(t, db, "2.5")

	testutil.CreateInvestment(t, db, u.ID, plan.ID, "200", model.InvestmentActive)
	testutil.CreateInvestment(t, db, u.ID, plan.ID, "300", model.InvestmentPending)
	testutil.CreateInvestment(t, db, u.ID, plan.ID, "400", model.InvestmentCancelled)
	testutil.CreateInvestment(t, db, u.ID, plan.ID, "500", model.InvestmentCompleted)
	deleted := testutil.CreateInvestment(t, db, u.ID, plan.ID, "600", model.InvestmentActive)
	require.NoError(t, db.Delete(deleted).Error)

	s, err := NewJob(db, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalInvestments)
	assert.Equal(t, 1, s.Processed)

	var dp model.DailyProfit
	require.NoError(t, db.First(&dp).Error)
	assert.True(t, dp.Amount.Equal(decimal.NewFromInt(5)), dp.Amount.String())
}

func TestRunWithoutTargetKeepsAccruing(t *testing.T) {
	db := testutil.NewDB(t)
	u := testutil.CreateUser(t, db, nil)
	plan := testutil.CreatePlan(t, db, "50")
	inv := testutil.CreateInvestment(t, db, u.ID, plan.ID, "100", model.InvestmentActive)

	day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	job := NewJob(db, Options{})
	for i := 0; i < 6; i++ {
		job.WithClock(fixedClock(day.AddDate(0, 0, i)))
		_, err := job.Run(context.Background())
		require.NoError(t, err)
	}

	var reloaded model.Investment
	require.NoError(t, db.First(&reloaded, inv.ID).Error)
	assert.Equal(t, model.InvestmentActive, reloaded.Status)
	assert.True(t, reloaded.TotalProfit.Equal(decimal.NewFromInt(300)))
}

func TestRunCompletesAtTarget(t *testing.T) {
	db := testutil.NewDB(t)
	u := testutil.CreateUser(t, db, nil)
	plan := testutil.CreatePlan(t, db, "75")
	inv := testutil.CreateInvestment(t, db, u.ID, plan.ID, "100", model.InvestmentActive)

	day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	job := NewJob(db, Options{CompleteAtTarget: true, TargetMultiplier: decimal.NewFromInt(2)})

	var completed int
	for i := 0; i < 4; i++ {
		job.WithClock(fixedClock(day.AddDate(0, 0, i)))
		s, err := job.Run(context.Background())
		require.NoError(t, err)
		completed += s.Completed
	}
	assert.Equal(t, 1, completed)

	var reloaded model.Investment
	require.NoError(t, db.First(&reloaded, inv.ID).Error)
	assert.Equal(t, model.InvestmentCompleted, reloaded.Status)
	// 75 + 75 + 50 (封顶) = 200
	assert.True(t, reloaded.TotalProfit.Equal(decimal.NewFromInt(200)), reloaded.TotalProfit.String())

	var count int64
	db.Model(&model.DailyProfit{}).Where("investment_id = ?", inv.ID).Count(&count)
	assert.EqualValues(t, 3, count)
}

func TestRunClosesInvestmentAlreadyAtTarget(t *testing.T) {
	db := testutil.NewDB(t)
	u := testutil.CreateUser(t, db, nil)
	plan := testutil.CreatePlan(t, db, "4")
	inv := testutil.CreateInvestment(t, db, u.ID, plan.ID, "100", model.InvestmentActive)
	require.NoError(t, db.Model(inv).Update("total_profit", decimal.NewFromInt(200)).Error)

	day := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	job := NewJob(db, Options{CompleteAtTarget: true}).WithClock(fixedClock(day))

	s, err := job.Run(context.Background())
	require.NoError(t, err)
	// 没有计提，不算 processed
	assert.Equal(t, 0, s.Processed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Completed)

	var reloaded model.Investment
	require.NoError(t, db.First(&reloaded, inv.ID).Error)
	assert.Equal(t, model.InvestmentCompleted, reloaded.Status)
	assert.True(t, reloaded.TotalProfit.Equal(decimal.NewFromInt(200)))

	var count int64
	db.Model(&model.DailyProfit{}).Where("investment_id = ?", inv.ID).Count(&count)
	assert.Zero(t, count)
	db.Model(&model.Transaction{}).Where("user_id = ?", u.ID).Count(&count)
	assert.Zero(t, count)
}
