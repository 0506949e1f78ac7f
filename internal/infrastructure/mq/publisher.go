package mq

import (
	"context"

	"couplesystem/internal/config"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Publisher 领域事件投递
type Publisher interface {
	Publish(ctx context.Context, eventType, key string, payload []byte) error
	Close() error
}

// NewPublisher 按 mq.driver 选择 Kafka 或 RabbitMQ
func NewPublisher(cfg *config.Config, log *logrus.Logger) (Publisher, error) {
	switch cfg.MQ.Driver {
	case "kafka", "":
		return NewKafkaPublisher(&cfg.Kafka, log)
	case "rabbitmq":
		return NewRabbitPublisher(&cfg.RabbitMQ, log)
	default:
		return nil, errors.Errorf("不支持的消息队列: %s", cfg.MQ.Driver)
	}
}
