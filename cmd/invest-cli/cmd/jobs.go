package cmd

import (
	"errors"

	"invest-core/internal/service"
	"invest-core/internal/service/profit"
	"invest-core/internal/service/rank"
	"invest-core/pkg/config"
	"invest-core/pkg/database"
	"invest-core/pkg/logger"
	"invest-core/pkg/utils/lock"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errJobFailed = errors.New("job finished with failures")

var accrueCmd = &cobra.Command{
	Use:   "accrue",
	Short: "为所有 ACTIVE 投资计提当日收益 (同一天重复执行无副作用)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd, profit.JobName)
	},
}

var ranksCmd = &cobra.Command{
	Use:   "ranks",
	Short: "评估用户等级并发放一次性奖励",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd, rank.JobName)
	},
}

// runJob 有 Redis 时用分布式锁，否则退化为进程内锁
func runJob(cmd *cobra.Command, name string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	svcs := newServices(db)

	var locker lock.DistributedLock = lock.NewLocalLock()
	rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
	if err != nil {
		logger.Warn("Redis 不可用，使用进程内锁", zap.Error(err))
	} else {
		defer rdb.Close()
		locker = lock.NewRedisLock(rdb)
	}

	jobs := service.NewCronService(locker, config.Global.Jobs.LockTTL)
	if err := svcs.RegisterJobs(jobs, config.JobsConfig{}); err != nil {
		return err
	}

	summary, err := jobs.Trigger(cmd.Context(), name)
	if err != nil {
		return err
	}
	if err := printJSON(cmd, summary); err != nil {
		return err
	}
	if failed(summary) {
		return errJobFailed
	}
	return nil
}

func failed(summary interface{}) bool {
	switch s := summary.(type) {
	case *profit.Summary:
		return !s.Success
	case *rank.Summary:
		return !s.Success
	}
	return false
}

func init() {
	rootCmd.AddCommand(accrueCmd, ranksCmd)
}
