package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance <user-id>",
	Short: "打印用户可用余额及其组成",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user id %q", args[0])
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		svcs := newServices(db)

		withStats, _ := cmd.Flags().GetBool("stats")
		if withStats {
			st, err := svcs.Balance.UserStatistics(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		}
		b, err := svcs.Balance.Balance(cmd.Context(), userID)
		if err != nil {
			return err
		}
		return printJSON(cmd, b)
	},
}

var seedRanksCmd = &cobra.Command{
	Use:   "seed-ranks",
	Short: "写入默认等级 (Bronze/Silver/Gold)，已存在的不覆盖",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		n, err := newServices(db).Admin.SeedRanks(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]int64{"inserted": n})
	},
}

func init() {
	balanceCmd.Flags().Bool("stats", false, "输出完整的用户面板统计")
	rootCmd.AddCommand(balanceCmd, seedRanksCmd)
}
