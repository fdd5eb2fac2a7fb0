package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"invest-core/internal/event"
	"invest-core/internal/service/mq"
	"invest-core/pkg/config"
	"invest-core/pkg/database"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "订阅一个领域事件主题并逐行打印 (Ctrl+C 退出)",
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		group, _ := cmd.Flags().GetString("group")
		if group == "" {
			group = config.Global.MQ.Group
		}

		var consumer mq.Consumer
		if config.Global.MQ.Type == "kafka" {
			consumer = mq.NewKafkaConsumer(config.Global.Kafka.Brokers, group)
		} else {
			rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
			if err != nil {
				return err
			}
			defer rdb.Close()
			host, _ := os.Hostname()
			consumer = mq.NewRedisConsumer(rdb, group, fmt.Sprintf("cli-%s-%d", host, os.Getpid()))
		}
		defer consumer.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := json.NewEncoder(cmd.OutOrStdout())
		return consumer.Subscribe(ctx, topic, func(msg *mq.Message) error {
			return out.Encode(map[string]interface{}{
				"id":      msg.ID,
				"topic":   msg.Topic,
				"key":     msg.Key,
				"payload": json.RawMessage(msg.Payload),
			})
		})
	},
}

func init() {
	eventsCmd.Flags().String("topic", event.TopicInvestmentApproved, "主题名")
	eventsCmd.Flags().String("group", "", "消费者组 (默认取 mq.group)")
	rootCmd.AddCommand(eventsCmd)
}
