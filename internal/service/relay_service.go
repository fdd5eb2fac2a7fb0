package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"invest-core/internal/model"
	"invest-core/internal/service/mq"
	"invest-core/pkg/logger"
)

// RelayService 负责将本地消息表的消息搬运到 MQ
type RelayService struct {
	db        *gorm.DB
	producer  mq.Producer
	interval  time.Duration
	batchSize int
}

func NewRelayService(db *gorm.DB, producer mq.Producer, interval time.Duration, batchSize int) *RelayService {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &RelayService{
		db:        db,
		producer:  producer,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start 轮询直到 ctx 取消
func (s *RelayService) Start(ctx context.Context) error {
	logger.Info("Relay started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Relay stopped")
			return nil
		case <-ticker.C:
			if _, err := s.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Error("Relay batch failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce 投递一批 PENDING 消息，返回成功数量
// 发送成功后才标记 SENT，保证至少一次投递，消费方需幂等
func (s *RelayService) ProcessOnce(ctx context.Context) (int, error) {
	var messages []model.OutboxMessage
	if err := s.db.WithContext(ctx).
		Where("status = ?", model.OutboxPending).
		Order("id ASC").
		Limit(s.batchSize).
		Find(&messages).Error; err != nil {
		return 0, err
	}

	sent := 0
	for _, msg := range messages {
		if err := s.producer.Publish(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			logger.Warn("Relay publish failed",
				zap.Uint64("message_id", msg.ID),
				zap.String("topic", msg.Topic),
				zap.Error(err),
			)
			continue
		}

		if err := s.db.WithContext(ctx).Model(&model.OutboxMessage{}).
			Where("id = ? AND status = ?", msg.ID, model.OutboxPending).
			Update("status", model.OutboxSent).Error; err != nil {
			// 下一轮会重发
			logger.Error("Relay mark sent failed", zap.Uint64("message_id", msg.ID), zap.Error(err))
			continue
		}
		sent++
	}
	if sent > 0 {
		logger.Debug("Relay batch delivered", zap.Int("sent", sent), zap.Int("fetched", len(messages)))
	}
	return sent, nil
}
