package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/illegalcall/automark/internal/config"
)

const (
	clientID   = "automark"
	maxRetries = 10
	retryDelay = 3 * time.Second
)

func waitForKafka(ctx context.Context, brokers []string) error {
	for i := 0; i < maxRetries; i++ {
		cfg := sarama.NewConfig()
		cfg.ClientID = clientID
		cfg.Net.DialTimeout = 1 * time.Second
		client, err := sarama.NewClient(brokers, cfg)
		if err == nil {
			client.Close()
			return nil
		}
		slog.Info("Waiting for Kafka to be ready...", "attempt", i+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return fmt.Errorf("kafka not available after %d attempts", maxRetries)
}

// ProducerConfig is the sarama configuration used for activity events.
func ProducerConfig(kc config.KafkaConfig) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Retry.Max = kc.RetryMax
	cfg.Producer.Retry.Backoff = kc.RetryBackoff
	return cfg
}

// ConsumerConfig is the sarama configuration used by the archive worker.
func ConsumerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true
	return cfg
}

func NewProducer(ctx context.Context, kc config.KafkaConfig) (sarama.SyncProducer, error) {
	brokers := []string{kc.Broker}
	if err := waitForKafka(ctx, brokers); err != nil {
		return nil, err
	}
	return sarama.NewSyncProducer(brokers, ProducerConfig(kc))
}

func NewConsumer(ctx context.Context, kc config.KafkaConfig) (sarama.ConsumerGroup, error) {
	brokers := []string{kc.Broker}
	if err := waitForKafka(ctx, brokers); err != nil {
		return nil, err
	}
	return sarama.NewConsumerGroup(brokers, kc.Group, ConsumerConfig())
}
