package mq

import "context"

// Message 代表一条通用的业务消息
type Message struct {
	ID      string // Redis Stream ID 或 Kafka partition/offset
	Topic   string
	Key     string // 分区键，一般为 user_id
	Payload []byte // JSON
}

// Producer 生产者接口
type Producer interface {
	// Publish 发送消息，key 用于分区排序，传空字符串则随机分区
	Publish(ctx context.Context, topic string, key string, payload []byte) error
}

// Consumer 消费者接口
type Consumer interface {
	// Subscribe 阻塞消费直到 ctx 取消，handler 返回 error 时消息不确认
	Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error

	Close() error
}
