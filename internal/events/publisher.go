// Package events publishes client activity to Kafka for archiving.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/illegalcall/automark/internal/models"
)

// Publisher delivers activity events. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, a models.Activity) error
}

// KafkaPublisher writes activity as JSON to a single topic, keyed by ad id.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, now: time.Now}
}

func (p *KafkaPublisher) Publish(ctx context.Context, a models.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = p.now().UTC()
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(payload),
	}
	if a.AdID != "" {
		msg.Key = sarama.StringEncoder(a.AdID)
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish activity: %w", err)
	}
	slog.Debug("Activity published", "type", a.Type, "partition", partition, "offset", offset)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// Nop drops every event. Used when Kafka is disabled.
type Nop struct{}

func (Nop) Publish(context.Context, models.Activity) error { return nil }

// PublishAsync sends a on a background goroutine and logs failures. It never
// blocks the caller on the broker.
func PublishAsync(p Publisher, a models.Activity) {
	if p == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.Publish(ctx, a); err != nil {
			slog.Warn("Failed to publish activity", "type", a.Type, "error", err)
		}
	}()
}
