package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"invest-core/internal/server"
	"invest-core/internal/service"
	"invest-core/internal/service/mq"
	"invest-core/internal/worker"
	"invest-core/pkg/cache"
	"invest-core/pkg/config"
	"invest-core/pkg/database"
	"invest-core/pkg/logger"
	"invest-core/pkg/utils/lock"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 0. 配置与日志
	config.Init()
	cfg := config.Global

	logger.Init(cfg.App.Env)
	defer logger.Sync()

	// 1. 存储
	db, err := database.ConnectPostgres(cfg.DB.PostgresDSN(), cfg.App.Env == "development")
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	rdb, err := database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	// 2. 缓存 L1: Memory, L2: Redis
	multiCache := cache.NewMultiLevelCache(
		cache.NewMemoryCache(time.Minute, 5*time.Minute),
		cache.NewRedisCache(rdb),
	)

	// 3. 业务服务
	svcs := server.NewServices(db, multiCache, cfg)

	// 4. 分佣重试 (asynq)
	var workerServer *worker.Server
	if cfg.Worker.Enabled {
		client := worker.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()
		svcs.Investments.SetRetrier(client)
		workerServer = worker.NewServer(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Worker.Concurrency, svcs.Commission)
	}

	// 5. 定时任务，多实例靠 Redis 锁互斥
	cronService := service.NewCronService(lock.NewRedisLock(rdb), cfg.Jobs.LockTTL)
	if err := svcs.RegisterJobs(cronService, cfg.Jobs); err != nil {
		logger.Fatal("注册定时任务失败", zap.Error(err))
	}

	// 6. Outbox -> MQ
	var producer mq.Producer
	if cfg.MQ.Type == "kafka" {
		logger.Info("使用 Kafka 作为消息队列...")
		kp := mq.NewKafkaProducer(cfg.Kafka.Brokers)
		defer kp.Close()
		producer = kp
	} else {
		logger.Info("使用 Redis Streams 作为消息队列...")
		producer = mq.NewRedisProducer(rdb)
	}
	relay := service.NewRelayService(db, producer, cfg.MQ.RelayInterval, cfg.MQ.RelayBatchSize)

	// 7. HTTP
	app := server.New(server.Config{HttpPort: cfg.App.HttpPort}, server.NewHTTPRouter(svcs.Handlers(cronService)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Run(gctx) })
	g.Go(func() error { return relay.Start(gctx) })
	g.Go(func() error {
		cronService.Start()
		<-gctx.Done()
		cronService.Stop()
		return nil
	})
	if workerServer != nil {
		g.Go(func() error {
			if err := workerServer.Start(); err != nil {
				return err
			}
			<-gctx.Done()
			workerServer.Stop()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("服务异常退出", zap.Error(err))
	}

	// 8. 资源清理
	logger.Info("正在关闭数据库连接...")
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = rdb.Close()
	logger.Info("系统已退出")
}
