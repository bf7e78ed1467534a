package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"storefront-api/internal/domain"
)

// Event names emitted on the order topic, keyed by order number.
const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
	OrderRefunded      = "order.refunded"
)

type OrderEvent struct {
	Name        string             `json:"name"`
	OrderID     string             `json:"orderId"`
	OrderNumber string             `json:"orderNumber"`
	Status      domain.OrderStatus `json:"status"`
	TotalCents  int64              `json:"totalCents,omitempty"`
	OccurredAt  time.Time          `json:"occurredAt"`
}

// Publisher emits order lifecycle events. Publishing is best-effort: the
// order pipeline never fails because the broker is down.
type Publisher interface {
	Publish(ctx context.Context, key string, event OrderEvent) error
	Close() error
}

type kafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) Publisher {
	return &kafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           100 * time.Millisecond,
		},
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, key string, event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
	})
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, OrderEvent) error { return nil }
func (NopPublisher) Close() error                                     { return nil }
