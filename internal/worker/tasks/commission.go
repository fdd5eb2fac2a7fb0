package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"invest-core/internal/service/commission"
	"invest-core/pkg/logger"
)

// 任务类型常量
const (
	TypeCommissionDistribute = "commission:distribute"
)

// CommissionPayload 分佣重试参数
type CommissionPayload struct {
	InvestmentID uint64 `json:"investment_id"`
}

// NewCommissionTask 审批后分佣失败时投递，TaskID 去重，同一笔投资只排队一次
func NewCommissionTask(investmentID uint64) (*asynq.Task, error) {
	payload, err := json.Marshal(CommissionPayload{InvestmentID: investmentID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCommissionDistribute, payload,
		asynq.TaskID(fmt.Sprintf("commission:%d", investmentID)),
		asynq.Queue("critical"),
		asynq.MaxRetry(10),
		asynq.Timeout(5*time.Minute),
	), nil
}

// CommissionHandler 重跑分佣，已入账的层级会被跳过
type CommissionHandler struct {
	svc *commission.Service
}

func NewCommissionHandler(svc *commission.Service) *CommissionHandler {
	return &CommissionHandler{svc: svc}
}

func (h *CommissionHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p CommissionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.InvestmentID == 0 {
		return fmt.Errorf("missing investment id: %w", asynq.SkipRetry)
	}

	res, err := h.svc.Distribute(ctx, p.InvestmentID)
	if err != nil {
		return err
	}
	logger.Info("Commission retry finished",
		zap.Uint64("investment_id", p.InvestmentID),
		zap.Int("credited", res.Credited),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	// 有失败层级时返回错误，由 asynq 退避重试
	return res.Err()
}
