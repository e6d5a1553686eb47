package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/illegalcall/automark/internal/config"
	"github.com/illegalcall/automark/internal/metrics"
	"github.com/illegalcall/automark/internal/models"
	"github.com/illegalcall/automark/pkg/database"
)

// ErrUnknownActivity marks messages that are skipped rather than retried.
var ErrUnknownActivity = errors.New("unknown activity type")

const insertActivity = `INSERT INTO ad_activity (type, ad_id, ad_type, product_name, post_type, occurred_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

// CounterKey is the Redis key holding the running total for an activity type.
func CounterKey(t models.ActivityType) string {
	return "automark:activity:" + string(t)
}

// Worker archives activity events from Kafka into Postgres.
type Worker struct {
	cfg      *config.Config
	db       *database.Clients
	consumer sarama.ConsumerGroup
	ready    chan bool
}

func NewWorker(cfg *config.Config, db *database.Clients, consumer sarama.ConsumerGroup) *Worker {
	slog.Info("Initializing activity archive worker")
	return &Worker{
		cfg:      cfg,
		db:       db,
		consumer: consumer,
		ready:    make(chan bool),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	topics := []string{w.cfg.Kafka.Topic}
	slog.Info("Starting worker", "topics", topics)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for err := range w.consumer.Errors() {
			slog.Error("Kafka consumer error received", "error", err)
		}
	}()

	ready := w.ready
	go func() {
		for {
			if err := w.consumer.Consume(ctx, topics, w); err != nil {
				slog.Error("Error from consumer.Consume", "error", err)
			}
			if ctx.Err() != nil {
				slog.Info("Context done, exiting consumer loop", "error", ctx.Err())
				return
			}
			w.ready = make(chan bool)
		}
	}()

	select {
	case <-ready:
		slog.Info("✅ Worker ready; consuming activity")
	case <-ctx.Done():
		slog.Info("Context cancelled before consumer was ready")
		return nil
	}

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("Context cancelled; shutting down worker")
	}

	slog.Info("Worker shutting down gracefully")
	return nil
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (w *Worker) Setup(sarama.ConsumerGroupSession) error {
	close(w.ready)
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (w *Worker) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (w *Worker) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := w.processActivity(session.Context(), message); err != nil {
			slog.Error("Failed to archive activity", "offset", message.Offset, "error", err)
		}
		session.MarkMessage(message, "")
	}
	return nil
}

func (w *Worker) processActivity(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var a models.Activity
	if err := json.Unmarshal(msg.Value, &a); err != nil {
		metrics.ActivityArchived.WithLabelValues("invalid").Inc()
		return fmt.Errorf("failed to parse activity: %w", err)
	}
	switch a.Type {
	case models.ActivityAdGenerated, models.ActivityAdDeleted, models.ActivityInstagramPosted:
	default:
		metrics.ActivityArchived.WithLabelValues("invalid").Inc()
		return fmt.Errorf("%w: %q", ErrUnknownActivity, a.Type)
	}
	if a.OccurredAt.IsZero() {
		a.OccurredAt = msg.Timestamp
	}

	var err error
	attempts := max(w.cfg.Kafka.RetryMax, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		_, err = w.db.DB.ExecContext(ctx, insertActivity,
			a.Type, a.AdID, a.AdType, a.ProductName, a.PostType, a.OccurredAt)
		if err == nil {
			break
		}
		slog.Warn("Archive insert failed", "type", a.Type, "attempt", attempt, "error", err)
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.cfg.Kafka.RetryBackoff):
			}
		}
	}
	if err != nil {
		metrics.ActivityArchived.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to archive activity: %w", err)
	}

	if w.db.Redis != nil {
		if err := w.db.Redis.Incr(ctx, CounterKey(a.Type)).Err(); err != nil {
			slog.Warn("Failed to update activity counter", "type", a.Type, "error", err)
		}
	}
	metrics.ActivityArchived.WithLabelValues("archived").Inc()
	slog.Info("Activity archived", "type", a.Type, "ad_id", a.AdID)
	return nil
}
