package withdrawal

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"invest-core/internal/event"
	"invest-core/internal/model"
	"invest-core/internal/service/balance"
	"invest-core/internal/service/user"
	"invest-core/pkg/errno"
	"invest-core/pkg/logger"
	"invest-core/pkg/monitor"
	"invest-core/pkg/validator"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 审核动作
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Rules 提现限制
type Rules struct {
	MinAmount       decimal.Decimal
	MinWalletLength int
}

// DefaultRules 最低 $5，钱包地址至少 20 位
func DefaultRules() Rules {
	return Rules{MinAmount: decimal.NewFromInt(5), MinWalletLength: 20}
}

type CreateInput struct {
	Amount   decimal.Decimal
	WalletID string
	Pin      string
}

type Service struct {
	db    *gorm.DB
	rules Rules
}

func NewService(db *gorm.DB, rules Rules) *Service {
	return &Service{db: db, rules: rules}
}

func (s *Service) validate(in *CreateInput) error {
	in.WalletID = strings.TrimSpace(in.WalletID)
	in.Pin = strings.TrimSpace(in.Pin)

	if !in.Amount.IsPositive() {
		return errno.ErrBelowMinimum.WithMessage("Amount must be a valid number")
	}
	if in.Amount.LessThan(s.rules.MinAmount) {
		return errno.ErrBelowMinimum.WithMessage("Minimum withdrawal amount is $" + s.rules.MinAmount.StringFixed(2))
	}
	if len(in.WalletID) < s.rules.MinWalletLength {
		return errno.ErrInvalidWallet
	}
	if !validator.IsValidPin(in.Pin) {
		return errno.ErrBind.WithMessage("PIN must be exactly 4 digits")
	}
	return nil
}

// Create 发起提现
// 锁住用户行后在同一事务内重新计算余额并写入 PENDING 流水，避免并发透支
func (s *Service) Create(ctx context.Context, userID uint64, in CreateInput) (*model.Transaction, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	amount := in.Amount.Round(2)

	var tx model.Transaction
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		var u model.User
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errno.ErrUserNotFound
			}
			return err
		}
		if !u.IsActive || u.IsSuspended {
			return errno.ErrUserInactive
		}
		if err := user.CheckPin(&u, in.Pin); err != nil {
			return err
		}

		available, err := balance.Available(db, userID)
		if err != nil {
			return err
		}
		if available.LessThan(amount) {
			return errno.ErrInsufficientBalance.WithMessage("Insufficient balance. Available balance: $" + available.StringFixed(2))
		}

		tx = model.Transaction{
			UserID:      userID,
			Type:        model.TxWithdrawal,
			Status:      model.TxPending,
			Amount:      amount,
			WalletID:    in.WalletID,
			Description: "Withdrawal request to USDT BEP20 wallet",
		}
		if err := db.Create(&tx).Error; err != nil {
			return err
		}

		return model.CreateOutboxMessage(db, event.TopicWithdrawalRequested, strconv.FormatUint(userID, 10), event.WithdrawalRequestedEvent{
			TransactionID: tx.ID,
			UserID:        userID,
			WalletID:      in.WalletID,
			Amount:        amount.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	monitor.WithdrawalRequestedTotal.Inc()
	logger.Info("Withdrawal requested",
		zap.Uint64("transaction_id", tx.ID),
		zap.Uint64("user_id", userID),
		zap.String("amount", amount.StringFixed(2)),
	)
	return &tx, nil
}

// Review 管理员处理提现: approve -> COMPLETED (需要凭证)，reject -> CANCELLED
func (s *Service) Review(ctx context.Context, adminID, txID uint64, action, proofURL string) (*model.Transaction, error) {
	proofURL = strings.TrimSpace(proofURL)
	var status string
	switch action {
	case ActionApprove:
		if proofURL == "" {
			return nil, errno.ErrBind.WithMessage("Proof is required")
		}
		status = model.TxCompleted
	case ActionReject:
		status = model.TxCancelled
	default:
		return nil, errno.ErrBind.WithMessage("action must be approve or reject")
	}

	var w model.Transaction
	err := s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		// 1. 悲观锁读取提现单
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&w, txID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errno.ErrWithdrawalNotFound
			}
			return err
		}
		// 2. 状态检查
		if w.Type != model.TxWithdrawal {
			return errno.ErrWithdrawalNotFound.WithMessage("Transaction is not a withdrawal")
		}
		if w.Status != model.TxPending {
			return errno.ErrWithdrawalState
		}

		// 3. 以状态为条件更新
		updates := map[string]interface{}{"status": status}
		if proofURL != "" {
			updates["proof_url"] = proofURL
		}
		res := db.Model(&model.Transaction{}).
			Where("id = ? AND status = ?", w.ID, model.TxPending).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errno.ErrWithdrawalState
		}
		w.Status = status
		if proofURL != "" {
			w.ProofURL = proofURL
		}

		return model.CreateOutboxMessage(db, event.TopicWithdrawalReviewed, strconv.FormatUint(w.UserID, 10), event.WithdrawalReviewedEvent{
			TransactionID: w.ID,
			UserID:        w.UserID,
			AdminID:       adminID,
			Status:        status,
			ProofURL:      w.ProofURL,
		})
	})
	if err != nil {
		return nil, err
	}

	monitor.WithdrawalReviewedTotal.WithLabelValues(status).Inc()
	logger.Info("Withdrawal reviewed",
		zap.Uint64("transaction_id", w.ID),
		zap.Uint64("admin_id", adminID),
		zap.String("status", status),
	)
	return &w, nil
}

// ListByUser 用户自己的提现记录
func (s *Service) ListByUser(ctx context.Context, userID uint64) ([]model.Transaction, error) {
	var list []model.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND type = ?", userID, model.TxWithdrawal).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

// List 管理端列表，status 为空表示全部
func (s *Service) List(ctx context.Context, status string) ([]model.Transaction, error) {
	q := s.db.WithContext(ctx).Where("type = ?", model.TxWithdrawal).Order("created_at ASC")
	if status != "" {
		q = q.Where("status = ?", strings.ToUpper(status))
	}
	var list []model.Transaction
	err := q.Find(&list).Error
	return list, err
}
