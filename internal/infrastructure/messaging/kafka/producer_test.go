package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/turtacn/Synastry-Intelligence/pkg/errors"
	"github.com/turtacn/Synastry-Intelligence/pkg/types/common"
)

type mockKafkaWriter struct {
	mu        sync.Mutex
	written   []kafka.Message
	writeFunc func(ctx context.Context, msgs ...kafka.Message) error
	closed    int
}

func (m *mockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		if err := m.writeFunc(ctx, msgs...); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.written = append(m.written, msgs...)
	m.mu.Unlock()
	return nil
}

func (m *mockKafkaWriter) Close() error {
	m.closed++
	return nil
}

func msgOf(topic, key, value string) *common.ProducerMessage {
	return &common.ProducerMessage{Topic: topic, Key: []byte(key), Value: []byte(value)}
}

func TestValidateProducerConfig(t *testing.T) {
	assert.NoError(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b:9092"}, RequiredAcks: -1}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b"}, MaxRetries: -1}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{Brokers: []string{"b"}, RequiredAcks: 2}))
	assert.Error(t, ValidateProducerConfig(ProducerConfig{
		Brokers:  []string{"b"},
		Security: SecurityConfig{SASLEnabled: true, SASLMechanism: "GSSAPI", SASLUsername: "u", SASLPassword: "p"},
	}))
}

func TestNewProducer(t *testing.T) {
	p, err := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}, RequiredAcks: 1}, nil)
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestPublish_Success(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newProducer(w, 0, nil)

	msg := msgOf(TopicCompatibilityComputed, "a|b", `{"score":71}`)
	msg.Headers = map[string]string{"event_type": EventCompatibilityComputed}
	require.NoError(t, p.Publish(context.Background(), msg))

	require.Len(t, w.written, 1)
	got := w.written[0]
	assert.Equal(t, TopicCompatibilityComputed, got.Topic)
	assert.Equal(t, []byte("a|b"), got.Key)
	assert.False(t, got.Time.IsZero())
	require.Len(t, got.Headers, 1)
	assert.Equal(t, "event_type", got.Headers[0].Key)

	stats := p.Stats()
	assert.EqualValues(t, 1, stats.MessagesSent)
	assert.EqualValues(t, len(`{"score":71}`), stats.BytesSent)
}

func TestPublish_Validation(t *testing.T) {
	p := newProducer(&mockKafkaWriter{}, 8, nil)
	ctx := context.Background()

	for name, msg := range map[string]*common.ProducerMessage{
		"nil":      nil,
		"no topic": msgOf("", "k", "v"),
		"no value": msgOf("t", "k", ""),
		"too big":  msgOf("t", "k", "123456789"),
	} {
		err := p.Publish(ctx, msg)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation), name)
	}
}

func TestPublish_WriterError(t *testing.T) {
	w := &mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error { return errors.New("broker down") }}
	p := newProducer(w, 0, nil)

	err := p.Publish(context.Background(), msgOf("t", "k", "v"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMessagingError))
	assert.EqualValues(t, 1, p.Stats().MessagesFailed)
}

func TestPublish_AfterClose(t *testing.T) {
	w := &mockKafkaWriter{}
	p := newProducer(w, 0, nil)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, w.closed)
	assert.ErrorIs(t, p.Publish(context.Background(), msgOf("t", "k", "v")), ErrProducerClosed)
}

func TestPublishBatch(t *testing.T) {
	t.Run("all succeed", func(t *testing.T) {
		w := &mockKafkaWriter{}
		p := newProducer(w, 0, nil)
		res, err := p.PublishBatch(context.Background(), []*common.ProducerMessage{msgOf("t", "1", "a"), msgOf("t", "2", "b")})
		require.NoError(t, err)
		assert.Equal(t, 2, res.Succeeded)
		assert.Zero(t, res.Failed)
	})

	t.Run("invalid item skipped", func(t *testing.T) {
		w := &mockKafkaWriter{}
		p := newProducer(w, 0, nil)
		res, err := p.PublishBatch(context.Background(), []*common.ProducerMessage{msgOf("t", "1", "a"), msgOf("", "2", "b")})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Succeeded)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, 1, res.Errors[0].Index)
		assert.Len(t, w.written, 1)
	})

	t.Run("partial write errors map back to input index", func(t *testing.T) {
		w := &mockKafkaWriter{writeFunc: func(_ context.Context, msgs ...kafka.Message) error {
			return kafka.WriteErrors{nil, errors.New("leader not available")}
		}}
		p := newProducer(w, 0, nil)
		res, err := p.PublishBatch(context.Background(), []*common.ProducerMessage{
			msgOf("", "bad", "x"), msgOf("t1", "1", "a"), msgOf("t2", "2", "b"),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Succeeded)
		assert.Equal(t, 2, res.Failed)
		assert.Equal(t, 2, res.Errors[1].Index)
		assert.Equal(t, "t2", res.Errors[1].Topic)
	})

	t.Run("total failure", func(t *testing.T) {
		w := &mockKafkaWriter{writeFunc: func(context.Context, ...kafka.Message) error { return errors.New("timeout") }}
		p := newProducer(w, 0, nil)
		res, err := p.PublishBatch(context.Background(), []*common.ProducerMessage{msgOf("t", "1", "a")})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Failed)
		assert.Equal(t, -1, res.Errors[0].Index)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := newProducer(&mockKafkaWriter{}, 0, nil).PublishBatch(context.Background(), nil)
		assert.Error(t, err)
	})
}
