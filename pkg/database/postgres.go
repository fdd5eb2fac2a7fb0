package database

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectPostgres 连接到 PostgreSQL 数据库
// dsn: "host=localhost user=invest password=invest dbname=invest_db port=5432 sslmode=disable TimeZone=UTC"
func ConnectPostgres(dsn string, debug bool) (*gorm.DB, error) {
	level := logger.Warn
	if debug {
		level = logger.Info // 打印 SQL 语句方便调试
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("无法连接到数据库: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 连接池配置
	sqlDB.SetMaxIdleConns(10)           // 空闲连接数
	sqlDB.SetMaxOpenConns(100)          // 最大连接数
	sqlDB.SetConnMaxLifetime(time.Hour) // 连接最大存活时间

	log.Println("PostgreSQL 连接成功")
	return db, nil
}

type sumResult struct {
	Total decimal.Decimal
}

// Sum 对 q 的结果集求 SUM(expr)，空集为 0，保留两位小数
func Sum(q *gorm.DB, expr string) (decimal.Decimal, error) {
	var out sumResult
	if err := q.Select("COALESCE(SUM(" + expr + "), 0) AS total").Scan(&out).Error; err != nil {
		return decimal.Zero, err
	}
	return out.Total.Round(2), nil
}
