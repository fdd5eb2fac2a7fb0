package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"invest-core/internal/server"
	"invest-core/pkg/cache"
	"invest-core/pkg/config"
	"invest-core/pkg/database"
	"invest-core/pkg/logger"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "invest-cli",
	Short: "投资平台运维命令行工具",
	Long: `批处理任务入口，供外部 cron 调用:
  accrue      计提当日收益
  ranks       评估等级并发放奖励
  balance     查看用户余额
  seed-ranks  写入默认等级
  events      订阅并打印领域事件`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Init()
		logger.Init(config.Global.App.Env)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDB() (*gorm.DB, error) {
	return database.ConnectPostgres(config.Global.DB.PostgresDSN(), false)
}

// newServices CLI 只使用进程内缓存
func newServices(db *gorm.DB) *server.Services {
	c := cache.NewMultiLevelCache(cache.NewMemoryCache(time.Minute, 5*time.Minute), nil)
	return server.NewServices(db, c, config.Global)
}

// printJSON 结果写到 stdout，日志走 stderr
func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
