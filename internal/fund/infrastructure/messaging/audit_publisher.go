// 包 messaging 审计事件的 Kafka 发布实现
package messaging

import (
	"context"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
	"github.com/wyfcoding/logisticfund/pkg/mq"
)

// KafkaAuditPublisher 把审计条目以 JSON 发布到审计主题
type KafkaAuditPublisher struct {
	producer *mq.KafkaProducer
	topic    string
}

// NewKafkaAuditPublisher 创建审计发布器
func NewKafkaAuditPublisher(producer *mq.KafkaProducer, topic string) domain.AuditPublisher {
	return &KafkaAuditPublisher{producer: producer, topic: topic}
}

func (p *KafkaAuditPublisher) Publish(ctx context.Context, entry *domain.AuditEntry) error {
	return p.producer.SendMessage(ctx, p.topic, entry.EntryID, entry)
}

// NopAuditPublisher 空实现，Kafka 未配置时使用
type NopAuditPublisher struct{}

func (NopAuditPublisher) Publish(context.Context, *domain.AuditEntry) error { return nil }
