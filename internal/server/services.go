package server

import (
	"context"

	"invest-core/internal/handler"
	"invest-core/internal/service"
	"invest-core/internal/service/admin"
	"invest-core/internal/service/balance"
	"invest-core/internal/service/commission"
	"invest-core/internal/service/investment"
	"invest-core/internal/service/profit"
	"invest-core/internal/service/rank"
	"invest-core/internal/service/referral"
	"invest-core/internal/service/user"
	"invest-core/internal/service/withdrawal"
	"invest-core/pkg/cache"
	"invest-core/pkg/config"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Services 进程内所有业务服务
type Services struct {
	Users       *user.Service
	Referral    *referral.Service
	Balance     *balance.Service
	Commission  *commission.Service
	Investments *investment.Service
	Withdrawals *withdrawal.Service
	Admin       *admin.Service
	Profit      *profit.Job
	Rank        *rank.Job
}

// NewServices 按配置组装服务，c 可以是只有本地层的 MultiLevelCache
func NewServices(db *gorm.DB, c cache.Cache, cfg config.Config) *Services {
	cs := commission.NewService(db)

	rules := withdrawal.DefaultRules()
	if cfg.Withdrawal.MinAmount > 0 {
		rules.MinAmount = cfg.Withdrawal.MinAmountDecimal()
	}
	if cfg.Withdrawal.MinWalletLength > 0 {
		rules.MinWalletLength = cfg.Withdrawal.MinWalletLength
	}

	opts := profit.Options{CompleteAtTarget: cfg.Jobs.Profit.CompleteAtTarget}
	if cfg.Jobs.Profit.TargetMultiplier > 0 {
		opts.TargetMultiplier = decimal.NewFromFloat(cfg.Jobs.Profit.TargetMultiplier)
	}

	return &Services{
		Users:       user.NewService(db),
		Referral:    referral.NewService(db),
		Balance:     balance.NewService(db),
		Commission:  cs,
		Investments: investment.NewService(db, cs, c, cfg.Cache.PlanTTL),
		Withdrawals: withdrawal.NewService(db, rules),
		Admin:       admin.NewService(db, c),
		Profit:      profit.NewJob(db, opts),
		Rank:        rank.NewJob(db, c, cfg.Cache.PlanTTL),
	}
}

// RegisterJobs 注册两个批处理任务，spec 为空时只能手动触发
func (s *Services) RegisterJobs(cron *service.CronService, cfg config.JobsConfig) error {
	profitSpec, rankSpec := cfg.ProfitSpec, cfg.RankSpec
	if !cfg.Enabled {
		profitSpec, rankSpec = "", ""
	}
	if err := cron.Register(profit.JobName, profitSpec, func(ctx context.Context) (interface{}, error) {
		return s.Profit.Run(ctx)
	}); err != nil {
		return err
	}
	return cron.Register(rank.JobName, rankSpec, func(ctx context.Context) (interface{}, error) {
		return s.Rank.Run(ctx)
	})
}

// Handlers 构造 HTTP handler
func (s *Services) Handlers(jobs handler.JobTrigger) Handlers {
	return Handlers{
		User:  handler.NewUserHandler(s.Users, s.Referral, s.Balance, s.Investments, s.Withdrawals),
		Admin: handler.NewAdminHandler(s.Admin, s.Investments, s.Withdrawals, jobs),
	}
}
