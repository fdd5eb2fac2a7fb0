package worker

import (
	"github.com/hibiken/asynq"

	"invest-core/internal/service/commission"
	"invest-core/internal/worker/tasks"
	"invest-core/pkg/logger"
)

// Server 封装 Asynq Server (Worker)
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewServer 初始化 Worker Server
func NewServer(addr string, password string, db int, concurrency int, commissionSvc *commission.Service) *Server {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     addr,
			Password: password,
			DB:       db,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			Logger: logger.NewAsynqLogger(),
		},
	)

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeCommissionDistribute, tasks.NewCommissionHandler(commissionSvc))

	return &Server{
		server: srv,
		mux:    mux,
	}
}

// Run 启动 Worker (阻塞)
func (s *Server) Run() error {
	logger.Info("Worker Server starting...")
	return s.server.Run(s.mux)
}

// Start 非阻塞启动，配合 Shutdown 使用
func (s *Server) Start() error {
	logger.Info("Worker Server starting...")
	return s.server.Start(s.mux)
}

// Stop 停止拉取新任务并等待进行中的任务
func (s *Server) Stop() {
	s.server.Stop()
	s.server.Shutdown()
}
