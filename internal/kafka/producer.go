package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	"ms-payments/internal/logger"
)

// Producer streams payment outcome events. One writer covers all topics;
// the topic is picked per message.
type Producer struct {
	Writer *kafka.Writer
	logger *logger.Logger
}

func NewProducer(brokers []string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
	}
	return &Producer{Writer: writer, logger: log}
}

// Publish writes one event. Keying by order code keeps all events of an
// order on the same partition, in order.
func (p *Producer) Publish(ctx context.Context, topic, key string, value []byte) error {
	err := p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		p.logger.Error("KAFKA", "write to "+topic+" failed: "+err.Error())
		return err
	}
	p.logger.LogKafka("PUBLISH", topic, key)
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
