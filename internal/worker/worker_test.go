package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/IBM/sarama"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/illegalcall/automark/internal/config"
	"github.com/illegalcall/automark/internal/models"
	"github.com/illegalcall/automark/pkg/database"
)

// MockConsumerGroup mocks sarama.ConsumerGroup
type MockConsumerGroup struct {
	mock.Mock
}

func (m *MockConsumerGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	args := m.Called(ctx, topics, handler)
	return args.Error(0)
}

func (m *MockConsumerGroup) Errors() <-chan error {
	args := m.Called()
	return args.Get(0).(chan error)
}

func (m *MockConsumerGroup) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockConsumerGroup) Pause(partitions map[string][]int32) {
	m.Called(partitions)
}

func (m *MockConsumerGroup) Resume(partitions map[string][]int32) {
	m.Called(partitions)
}

func (m *MockConsumerGroup) PauseAll() {
	m.Called()
}

func (m *MockConsumerGroup) ResumeAll() {
	m.Called()
}

func setupTestWorker(t *testing.T) (*Worker, sqlmock.Sqlmock, *miniredis.Miniredis, *MockConsumerGroup) {
	sqlDB, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(sqlDB, "sqlmock")

	miniRedis, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(miniRedis.Close)

	clients := &database.Clients{
		DB:    db,
		Redis: redis.NewClient(&redis.Options{Addr: miniRedis.Addr()}),
	}

	cfg := &config.Config{
		Kafka: config.KafkaConfig{
			Topic:        "automark.activity",
			RetryMax:     3,
			RetryBackoff: time.Millisecond,
		},
	}

	consumer := new(MockConsumerGroup)
	return NewWorker(cfg, clients, consumer), sqlMock, miniRedis, consumer
}

func message(t *testing.T, a models.Activity) *sarama.ConsumerMessage {
	t.Helper()
	b, err := json.Marshal(a)
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Value: b, Timestamp: time.Unix(50, 0)}
}

func TestProcessActivity(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("archives and counts", func(t *testing.T) {
		w, sqlMock, miniRedis, _ := setupTestWorker(t)
		sqlMock.ExpectExec("INSERT INTO ad_activity").
			WithArgs("ad_generated", "01HX", "text", "Shoe", "", at).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := w.processActivity(context.Background(), message(t, models.Activity{
			Type: models.ActivityAdGenerated, AdID: "01HX", AdType: "text", ProductName: "Shoe", OccurredAt: at,
		}))
		require.NoError(t, err)
		assert.NoError(t, sqlMock.ExpectationsWereMet())

		count, err := miniRedis.Get(CounterKey(models.ActivityAdGenerated))
		require.NoError(t, err)
		assert.Equal(t, "1", count)
	})

	t.Run("retries then succeeds", func(t *testing.T) {
		w, sqlMock, _, _ := setupTestWorker(t)
		sqlMock.ExpectExec("INSERT INTO ad_activity").WillReturnError(errors.New("connection reset"))
		sqlMock.ExpectExec("INSERT INTO ad_activity").WillReturnResult(sqlmock.NewResult(2, 1))

		err := w.processActivity(context.Background(), message(t, models.Activity{
			Type: models.ActivityInstagramPosted, PostType: "story", OccurredAt: at,
		}))
		require.NoError(t, err)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("gives up after retries", func(t *testing.T) {
		w, sqlMock, miniRedis, _ := setupTestWorker(t)
		for i := 0; i < 3; i++ {
			sqlMock.ExpectExec("INSERT INTO ad_activity").WillReturnError(errors.New("db down"))
		}

		err := w.processActivity(context.Background(), message(t, models.Activity{Type: models.ActivityAdDeleted, AdID: "x", OccurredAt: at}))
		assert.ErrorContains(t, err, "db down")
		assert.NoError(t, sqlMock.ExpectationsWereMet())
		assert.False(t, miniRedis.Exists(CounterKey(models.ActivityAdDeleted)))
	})

	t.Run("missing time uses message timestamp", func(t *testing.T) {
		w, sqlMock, _, _ := setupTestWorker(t)
		sqlMock.ExpectExec("INSERT INTO ad_activity").
			WithArgs("ad_deleted", "x", "", "", "", time.Unix(50, 0)).
			WillReturnResult(sqlmock.NewResult(1, 1))

		msg := &sarama.ConsumerMessage{Value: []byte(`{"type":"ad_deleted","ad_id":"x","occurred_at":"0001-01-01T00:00:00Z"}`), Timestamp: time.Unix(50, 0)}
		require.NoError(t, w.processActivity(context.Background(), msg))
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("invalid payloads are skipped", func(t *testing.T) {
		w, sqlMock, _, _ := setupTestWorker(t)

		err := w.processActivity(context.Background(), &sarama.ConsumerMessage{Value: []byte("not json")})
		assert.Error(t, err)

		err = w.processActivity(context.Background(), message(t, models.Activity{Type: "ad_viewed"}))
		assert.ErrorIs(t, err, ErrUnknownActivity)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})
}

func TestWorkerStart(t *testing.T) {
	w, _, _, consumer := setupTestWorker(t)

	var setup sync.Once
	errChan := make(chan error)
	consumer.On("Errors").Return(errChan)
	consumer.On("Consume", mock.Anything, []string{"automark.activity"}, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			handler := args.Get(2).(sarama.ConsumerGroupHandler)
			setup.Do(func() { handler.Setup(nil) })
			<-ctx.Done()
		}).
		Return(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := w.Start(ctx)
	assert.NoError(t, err)
	consumer.AssertCalled(t, "Consume", mock.Anything, []string{"automark.activity"}, mock.Anything)
	close(errChan)
}
