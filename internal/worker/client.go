package worker

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"invest-core/internal/worker/tasks"
	"invest-core/pkg/logger"
)

// Client 封装 Asynq Client
type Client struct {
	client *asynq.Client
}

// NewClient addr: "localhost:6379"
func NewClient(addr string, password string, db int) *Client {
	c := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Client{client: c}
}

// Enqueue 将任务推送到队列
func (c *Client) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, task, opts...)
}

// EnqueueCommission 投递分佣重试，已在队列中视为成功
func (c *Client) EnqueueCommission(ctx context.Context, investmentID uint64) error {
	task, err := tasks.NewCommissionTask(investmentID)
	if err != nil {
		return err
	}
	info, err := c.Enqueue(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("Commission retry enqueued", zap.Uint64("investment_id", investmentID), zap.String("task_id", info.ID))
	return nil
}

// Close 关闭客户端连接
func (c *Client) Close() error {
	return c.client.Close()
}
