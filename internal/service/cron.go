package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"invest-core/pkg/errno"
	"invest-core/pkg/logger"
	"invest-core/pkg/utils/lock"
)

// JobFunc 批处理任务，返回可 JSON 序列化的汇总
type JobFunc func(ctx context.Context) (interface{}, error)

// CronService 定时调度 + 手动触发，同名任务同一时刻只跑一个实例
type CronService struct {
	cron    *cron.Cron
	locker  lock.DistributedLock
	lockTTL time.Duration

	mu   sync.RWMutex
	jobs map[string]JobFunc
}

func NewCronService(locker lock.DistributedLock, lockTTL time.Duration) *CronService {
	// 标准 5 段表达式 (分钟级)，支持 @hourly 等描述符
	c := cron.New(cron.WithLocation(time.UTC))
	return &CronService{
		cron:    c,
		locker:  locker,
		lockTTL: lockTTL,
		jobs:    make(map[string]JobFunc),
	}
}

// Register 注册任务，spec 为空时只允许手动触发
func (s *CronService) Register(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	s.jobs[name] = fn
	s.mu.Unlock()

	if spec == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(spec, func() { s.tick(name) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	logger.Info("Cron job registered", zap.String("job", name), zap.String("spec", spec))
	return nil
}

func (s *CronService) Start() {
	s.cron.Start()
	logger.Info("Cron Service started")
}

// Stop 停止调度并等待正在执行的任务结束
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("Cron Service stopped")
}

func (s *CronService) tick(name string) {
	summary, err := s.Trigger(context.Background(), name)
	if errors.Is(err, errno.ErrJobRunning) {
		// 其他节点在运行，跳过
		logger.Debug("Cron tick skipped", zap.String("job", name))
		return
	}
	if err != nil {
		logger.Error("Cron job failed", zap.String("job", name), zap.Error(err))
		return
	}
	logger.Info("Cron job finished", zap.String("job", name), zap.Any("summary", summary))
}

// Trigger 获取分布式锁后同步执行任务
func (s *CronService) Trigger(ctx context.Context, name string) (interface{}, error) {
	s.mu.RLock()
	fn, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, errno.ErrNotFound.WithMessage("unknown job: " + name)
	}

	lockKey := "cron:" + name
	locked, err := s.locker.Acquire(ctx, lockKey, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lockKey, err)
	}
	if !locked {
		return nil, errno.ErrJobRunning
	}
	defer func() {
		if err := s.locker.Release(context.Background(), lockKey); err != nil {
			logger.Warn("Release job lock failed", zap.String("job", name), zap.Error(err))
		}
	}()

	return fn(ctx)
}
