package user

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"invest-core/internal/event"
	"invest-core/internal/model"
	"invest-core/internal/service/referral"
	"invest-core/pkg/errno"
	"invest-core/pkg/logger"
	"invest-core/pkg/monitor"
	"invest-core/pkg/safe_random"
	"invest-core/pkg/validator"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// 推荐码冲突时的最大重试次数
const maxCodeAttempts = 5

type SignupInput struct {
	Email        string
	FullName     string
	ReferralCode string
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Signup 创建用户并在同一事务中写入推荐闭包
func (s *Service) Signup(ctx context.Context, in SignupInput) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	code := strings.ToUpper(strings.TrimSpace(in.ReferralCode))

	var u model.User
	var ancestors int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 邮箱唯一
		var count int64
		if err := tx.Unscoped().Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errno.ErrEmailExists
		}

		// 2. 解析推荐人
		var referrerID *uint64
		if code != "" {
			var referrer model.User
			if err := tx.Select("id").Where("referral_code = ?", code).First(&referrer).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errno.ErrReferralCodeInvalid
				}
				return err
			}
			referrerID = &referrer.ID
		}

		// 3. 生成唯一推荐码
		newCode, err := uniqueReferralCode(tx)
		if err != nil {
			return err
		}

		u = model.User{
			Email:        email,
			FullName:     strings.TrimSpace(in.FullName),
			Role:         model.RoleUser,
			ReferrerID:   referrerID,
			ReferralCode: newCode,
			IsActive:     true,
			IsSuspended:  false,
		}
		if err := tx.Create(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errno.ErrEmailExists
			}
			return err
		}

		// 4. 推荐闭包
		if ancestors, err = referral.Build(tx, u.ID, referrerID); err != nil {
			return err
		}

		return model.CreateOutboxMessage(tx, event.TopicUserRegistered, strconv.FormatUint(u.ID, 10), event.UserRegisteredEvent{
			UserID:     u.ID,
			ReferrerID: referrerID,
			Ancestors:  ancestors,
		})
	})
	if err != nil {
		return nil, err
	}

	monitor.UserRegisteredTotal.Inc()
	logger.Info("User signed up",
		zap.Uint64("user_id", u.ID),
		zap.Int("ancestors", ancestors),
	)
	return &u, nil
}

func uniqueReferralCode(tx *gorm.DB) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := safe_random.GenerateReferralCode()
		if err != nil {
			return "", err
		}
		var count int64
		if err := tx.Unscoped().Model(&model.User{}).Where("referral_code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique referral code after %d attempts", maxCodeAttempts)
}

// ReferrerByCode 注册页展示推荐人
func (s *Service) ReferrerByCode(ctx context.Context, code string) (*model.User, error) {
	var u model.User
	err := s.db.WithContext(ctx).
		Select("id", "full_name", "referral_code").
		Where("referral_code = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errno.ErrReferralCodeInvalid
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Profile 用户资料 (含当前等级)
func (s *Service) Profile(ctx context.Context, userID uint64) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Preload("CurrentRank").First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpdateProfile 修改姓名
func (s *Service) UpdateProfile(ctx context.Context, userID uint64, fullName string) error {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" || len(fullName) > 100 {
		return errno.ErrBind.WithMessage("full name must be 1-100 characters")
	}
	res := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Update("full_name", fullName)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errno.ErrUserNotFound
	}
	return nil
}

// SetWithdrawPin 设置或修改提现 PIN，已设置过时必须提供正确的旧 PIN
func (s *Service) SetWithdrawPin(ctx context.Context, userID uint64, pin, confirm, current string) error {
	pin, confirm = strings.TrimSpace(pin), strings.TrimSpace(confirm)

	var u model.User
	if err := s.db.WithContext(ctx).First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errno.ErrUserNotFound
		}
		return err
	}

	if u.HasWithdrawPin() {
		if strings.TrimSpace(current) == "" {
			return errno.ErrPinIncorrect.WithMessage("Current PIN is required to change PIN")
		}
		if err := CheckPin(&u, current); err != nil {
			return errno.ErrPinIncorrect.WithMessage("Current PIN is incorrect")
		}
	}
	if !validator.IsValidPin(pin) {
		return errno.ErrBind.WithMessage("PIN must be exactly 4 digits")
	}
	if pin != confirm {
		return errno.ErrBind.WithMessage("PINs do not match")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).
		Update("withdraw_pin_hash", string(hash)).Error
}

// VerifyWithdrawPin 校验提现 PIN
func (s *Service) VerifyWithdrawPin(ctx context.Context, userID uint64, pin string) error {
	var u model.User
	if err := s.db.WithContext(ctx).Select("id", "withdraw_pin_hash").First(&u, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errno.ErrUserNotFound
		}
		return err
	}
	return CheckPin(&u, pin)
}

// CheckPin 比对已加载用户的 PIN
func CheckPin(u *model.User, pin string) error {
	if !u.HasWithdrawPin() {
		return errno.ErrPinNotSet
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*u.WithdrawPinHash), []byte(strings.TrimSpace(pin))); err != nil {
		return errno.ErrPinIncorrect
	}
	return nil
}
