package model

import (
	"encoding/json"

	"gorm.io/gorm"
)

// CreateOutboxMessage 在同一个事务中创建业务数据和 Outbox 消息
// key 作为 MQ 分区键 (一般传 user_id)，保证同一用户的事件有序
func CreateOutboxMessage(tx *gorm.DB, topic, key string, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	msg := OutboxMessage{
		Topic:   topic,
		Key:     key,
		Payload: payloadBytes,
		Status:  OutboxPending,
	}

	return tx.Create(&msg).Error
}
