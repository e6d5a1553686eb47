package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illegalcall/automark/internal/models"
)

// MockProducer records messages instead of sending them to Kafka.
type MockProducer struct {
	sarama.SyncProducer
	mu       sync.Mutex
	messages []*sarama.ProducerMessage
	err      error
}

func (m *MockProducer) SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, 0, m.err
	}
	m.messages = append(m.messages, msg)
	return 0, int64(len(m.messages)), nil
}

func (m *MockProducer) Close() error {
	return nil
}

func (m *MockProducer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := &MockProducer{}
	pub := NewKafkaPublisher(producer, "automark.activity")
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	err := pub.Publish(context.Background(), models.Activity{
		Type:        models.ActivityAdGenerated,
		AdID:        "01HXYZ",
		AdType:      "image",
		ProductName: "Lamp",
		OccurredAt:  at,
	})
	require.NoError(t, err)
	require.Len(t, producer.messages, 1)

	msg := producer.messages[0]
	assert.Equal(t, "automark.activity", msg.Topic)
	key, _ := msg.Key.Encode()
	assert.Equal(t, "01HXYZ", string(key))

	raw, _ := msg.Value.Encode()
	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "ad_generated", got["type"])
	assert.Equal(t, "01HXYZ", got["ad_id"])
	assert.Equal(t, "image", got["ad_type"])
	assert.Equal(t, "Lamp", got["product_name"])
	assert.Equal(t, "2024-05-01T10:00:00Z", got["occurred_at"])
}

func TestKafkaPublisher_StampsTime(t *testing.T) {
	producer := &MockProducer{}
	pub := NewKafkaPublisher(producer, "t")
	pub.now = func() time.Time { return time.Unix(100, 0) }

	require.NoError(t, pub.Publish(context.Background(), models.Activity{Type: models.ActivityInstagramPosted, PostType: "feed"}))

	raw, _ := producer.messages[0].Value.Encode()
	var a models.Activity
	require.NoError(t, json.Unmarshal(raw, &a))
	assert.True(t, a.OccurredAt.Equal(time.Unix(100, 0)))
	assert.Nil(t, producer.messages[0].Key)
}

func TestKafkaPublisher_Error(t *testing.T) {
	producer := &MockProducer{err: errors.New("broker down")}
	pub := NewKafkaPublisher(producer, "t")

	err := pub.Publish(context.Background(), models.Activity{Type: models.ActivityAdDeleted})
	assert.ErrorContains(t, err, "broker down")
}

func TestPublishAsync(t *testing.T) {
	producer := &MockProducer{}
	PublishAsync(NewKafkaPublisher(producer, "t"), models.Activity{Type: models.ActivityAdGenerated})

	assert.Eventually(t, func() bool { return producer.count() == 1 }, time.Second, 10*time.Millisecond)

	PublishAsync(nil, models.Activity{})
	assert.NoError(t, Nop{}.Publish(context.Background(), models.Activity{}))
}
