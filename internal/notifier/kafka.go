package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaNotifier publishes order events to a kafka topic consumed by the
// notification service.
type KafkaNotifier struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaNotifier creates a notifier producing to the given brokers and topic
func NewKafkaNotifier(brokers []string, topic string, log *zap.Logger) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaNotifier{writer: writer, log: log}
}

type event struct {
	UserID    uint        `json:"user_id"`
	EventType string      `json:"event_type"`
	Payload   interface{} `json:"payload"`
	At        time.Time   `json:"at"`
}

// Notify publishes one event. Failures are logged and swallowed so that a
// broker outage never blocks an order-state commit.
func (n *KafkaNotifier) Notify(ctx context.Context, userID uint, eventType string, payload interface{}) {
	value, err := json.Marshal(event{
		UserID:    userID,
		EventType: eventType,
		Payload:   payload,
		At:        time.Now().UTC(),
	})
	if err != nil {
		n.log.Error("Failed to marshal notification event",
			zap.String("event_type", eventType), zap.Error(err))
		return
	}

	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%s-%d", eventType, userID)),
		Value: value,
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		n.log.Error("Failed to publish notification event",
			zap.String("event_type", eventType),
			zap.Uint("user_id", userID),
			zap.Error(err))
	}
}

// Close flushes and closes the underlying kafka writer
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
