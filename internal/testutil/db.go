// Package testutil 提供测试用的内存数据库和数据构造函数
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"invest-core/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB 为每个测试创建独立的内存 SQLite 并完成建表
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 单连接，事务内必须使用 tx 句柄
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

var codeSeq atomic.Int64

// CreateUser 创建一个普通活跃用户，referrer 为 nil 时无推荐人
// 只写 users 表，推荐关系由调用方按需构建
func CreateUser(t *testing.T, db *gorm.DB, referrerID *uint64) *model.User {
	t.Helper()
	n := codeSeq.Add(1)
	u := &model.User{
		Email:        fmt.Sprintf("user%d@example.com", n),
		FullName:     fmt.Sprintf("User %d", n),
		Role:         model.RoleUser,
		ReferrerID:   referrerID,
		ReferralCode: fmt.Sprintf("T%07d", n),
		IsActive:     true,
		IsSuspended:  false,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateAdmin 创建管理员
func CreateAdmin(t *testing.T, db *gorm.DB) *model.User {
	t.Helper()
	u := CreateUser(t, db, nil)
	require.NoError(t, db.Model(u).Update("role", model.RoleAdmin).Error)
	u.Role = model.RoleAdmin
	return u
}

// CreatePlan 创建活跃计划，范围 [10, 100000]
func CreatePlan(t *testing.T, db *gorm.DB, dailyPct string) *model.InvestmentPlan {
	t.Helper()
	p := &model.InvestmentPlan{
		Name:                  "Plan " + dailyPct,
		MinInvestment:         decimal.NewFromInt(10),
		MaxInvestment:         decimal.NewFromInt(100000),
		DailyProfitPercentage: decimal.RequireFromString(dailyPct),
		IsActive:              true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// CreateInvestment 直接写入一条指定状态的投资
func CreateInvestment(t *testing.T, db *gorm.DB, userID, planID uint64, amount string, status string) *model.Investment {
	t.Helper()
	inv := &model.Investment{
		UserID:      userID,
		PlanID:      planID,
		Amount:      decimal.RequireFromString(amount),
		Status:      status,
		StartDate:   time.Now().UTC(),
		TotalProfit: decimal.Zero,
	}
	require.NoError(t, db.Create(inv).Error)
	return inv
}

// SeedRanks 写入默认三档等级
func SeedRanks(t *testing.T, db *gorm.DB) []model.Rank {
	t.Helper()
	ranks := model.DefaultRanks()
	require.NoError(t, db.Create(&ranks).Error)
	return ranks
}

// Dec 简写
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
