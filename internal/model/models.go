package model

import (
	"time"

	"gorm.io/gorm"
)

// 用户角色
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// MaxReferralLevel 推荐关系最多追溯的层级
const MaxReferralLevel = 4

// User 用户表
// referrer_id 创建后不可修改
type User struct {
	ID              uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Email           string         `gorm:"type:varchar(255);not null;unique" json:"email"`
	FullName        string         `gorm:"type:varchar(100);not null" json:"full_name"`
	Role            string         `gorm:"type:varchar(16);not null;index" json:"role"`
	ReferrerID      *uint64        `gorm:"index" json:"referrer_id,omitempty"`
	ReferralCode    string         `gorm:"type:varchar(16);not null;unique" json:"referral_code"`
	CurrentRankID   *uint64        `json:"current_rank_id,omitempty"`
	WithdrawPinHash *string        `gorm:"type:varchar(255)" json:"-"` // bcrypt
	IsActive        bool           `gorm:"not null" json:"is_active"`
	IsSuspended     bool           `gorm:"not null" json:"is_suspended"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	CurrentRank *Rank `gorm:"foreignKey:CurrentRankID" json:"current_rank,omitempty"`
}

// CanReceiveCommission 未停用且未冻结的账户才参与分佣
func (u *User) CanReceiveCommission() bool {
	return u != nil && u.IsActive && !u.IsSuspended && !u.DeletedAt.Valid
}

// HasWithdrawPin 是否已设置提现 PIN
func (u *User) HasWithdrawPin() bool {
	return u.WithdrawPinHash != nil && *u.WithdrawPinHash != ""
}

// ReferralRelationship 推荐关系闭包表
// 每个 (referrer, referred, level) 一行，level 取 1..4，注册时一次写入，之后不再修改
type ReferralRelationship struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ReferrerID uint64    `gorm:"not null;uniqueIndex:idx_referral_triple;index" json:"referrer_id"`
	ReferredID uint64    `gorm:"not null;uniqueIndex:idx_referral_triple;index" json:"referred_id"`
	Level      int       `gorm:"not null;uniqueIndex:idx_referral_triple" json:"level"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

func (ReferralRelationship) TableName() string {
	return "referral_relationships"
}

// 本地消息状态
const (
	OutboxPending = "PENDING"
	OutboxSent    = "SENT"
)

// OutboxMessage 本地消息表 (Transactional Outbox)
type OutboxMessage struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Topic     string    `gorm:"type:varchar(255);not null" json:"topic"`
	Key       string    `gorm:"type:varchar(255)" json:"key"` // 分区键，一般为 user_id
	Payload   []byte    `gorm:"type:text;not null" json:"payload"`
	Status    string    `gorm:"type:varchar(50);not null;index" json:"status"` // PENDING, SENT
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
