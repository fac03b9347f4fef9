package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Synastry-Intelligence/internal/testutil"
	"github.com/turtacn/Synastry-Intelligence/pkg/types/common"
)

// mockKafkaReader hands out queued messages once, then blocks until the
// context is cancelled.
type mockKafkaReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	m.committed = append(m.committed, msgs...)
	m.mu.Unlock()
	return nil
}

func (m *mockKafkaReader) Close() error {
	m.closed = true
	return nil
}

func (m *mockKafkaReader) commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.committed)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*common.ProducerMessage
}

func (r *recordingPublisher) Publish(_ context.Context, msg *common.ProducerMessage) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) published() []*common.ProducerMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*common.ProducerMessage(nil), r.msgs...)
}

func testConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "synastry-worker",
		Topics:  []string{TopicCompatibilityRequested},
		Retry:   RetryConfig{MaxRetries: 2, RetryBackoff: time.Millisecond, MaxRetryBackoff: 2 * time.Millisecond, DLQSuffix: ".dlq"},
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	assert.NoError(t, ValidateConsumerConfig(testConsumerConfig()))

	cfg := testConsumerConfig()
	cfg.GroupID = ""
	assert.Error(t, ValidateConsumerConfig(cfg))

	cfg = testConsumerConfig()
	cfg.Topics = nil
	assert.Error(t, ValidateConsumerConfig(cfg))

	cfg = testConsumerConfig()
	cfg.AutoOffsetReset = "middle"
	assert.Error(t, ValidateConsumerConfig(cfg))

	cfg = testConsumerConfig()
	cfg.Retry.MaxRetries = -1
	assert.Error(t, ValidateConsumerConfig(cfg))
}

func TestConsumer_DispatchesAndCommits(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{
		{Topic: TopicCompatibilityRequested, Offset: 1, Value: []byte("one"), Headers: []kafka.Header{{Key: "event_type", Value: []byte("x")}}},
		{Topic: "unknown.topic", Offset: 2, Value: []byte("two")},
	}}
	c := newConsumer(reader, nil, testConsumerConfig(), nil)

	var got atomic.Value
	require.NoError(t, c.Subscribe(TopicCompatibilityRequested, func(_ context.Context, msg *common.Message) error {
		got.Store(msg)
		return nil
	}))
	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)

	assert.Eventually(t, func() bool { return reader.commits() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	assert.True(t, reader.closed)

	msg := got.Load().(*common.Message)
	assert.Equal(t, "one", string(msg.Value))
	assert.Equal(t, "x", msg.Headers["event_type"])
	assert.EqualValues(t, 2, c.Stats().Consumed)
	assert.EqualValues(t, 1, c.Stats().Processed)
}

func TestConsumer_RetriesThenSucceeds(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{{Topic: TopicCompatibilityRequested, Value: []byte("v")}}}
	dlq := &recordingPublisher{}
	c := newConsumer(reader, dlq, testConsumerConfig(), nil)

	var calls atomic.Int32
	require.NoError(t, c.Subscribe(TopicCompatibilityRequested, func(context.Context, *common.Message) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}))
	require.NoError(t, c.Start(context.Background()))
	assert.Eventually(t, func() bool { return reader.commits() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	assert.EqualValues(t, 3, calls.Load())
	assert.EqualValues(t, 2, c.Stats().Retried)
	assert.Empty(t, dlq.published())
}

func TestConsumer_DeadLettersAfterExhaustedRetries(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{{
		Topic: TopicCompatibilityRequested, Key: []byte("a|b"), Value: []byte("payload"),
		Headers: []kafka.Header{{Key: "trace_id", Value: []byte("t-1")}},
	}}}
	dlq := &recordingPublisher{}
	logger := testutil.NewMockLogger()
	c := newConsumer(reader, dlq, testConsumerConfig(), logger)

	var calls atomic.Int32
	require.NoError(t, c.Subscribe(TopicCompatibilityRequested, func(context.Context, *common.Message) error {
		calls.Add(1)
		return errors.New("chart not found")
	}))
	require.NoError(t, c.Start(context.Background()))
	assert.Eventually(t, func() bool { return reader.commits() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	assert.EqualValues(t, 3, calls.Load())
	published := dlq.published()
	require.Len(t, published, 1)
	dl := published[0]
	assert.Equal(t, TopicCompatibilityRequested+".dlq", dl.Topic)
	assert.Equal(t, []byte("a|b"), dl.Key)
	assert.Equal(t, TopicCompatibilityRequested, dl.Headers[HeaderOriginalTopic])
	assert.Equal(t, "chart not found", dl.Headers[HeaderErrorMessage])
	assert.Equal(t, "3", dl.Headers[HeaderAttempts])
	assert.Equal(t, "t-1", dl.Headers["trace_id"])
	assert.EqualValues(t, 1, c.Stats().DeadLettered)
	assert.True(t, logger.HasMessage("error", "message processing failed after retries"))
}

func TestConsumer_PermanentErrorSkipsRetries(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{{Topic: TopicCompatibilityRequested, Value: []byte("{bad")}}}
	dlq := &recordingPublisher{}
	cfg := testConsumerConfig()
	malformed := errors.New("malformed")
	cfg.Retry.Permanent = func(err error) bool { return errors.Is(err, malformed) }
	c := newConsumer(reader, dlq, cfg, nil)

	var calls atomic.Int32
	require.NoError(t, c.Subscribe(TopicCompatibilityRequested, func(context.Context, *common.Message) error {
		calls.Add(1)
		return malformed
	}))
	require.NoError(t, c.Start(context.Background()))
	assert.Eventually(t, func() bool { return reader.commits() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	assert.EqualValues(t, 1, calls.Load())
	assert.EqualValues(t, 0, c.Stats().Retried)
	require.Len(t, dlq.published(), 1)
	assert.Equal(t, "1", dlq.published()[0].Headers[HeaderAttempts])
}

func TestConsumer_HandlerTimeout(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{{Topic: TopicCompatibilityRequested, Value: []byte("v")}}}
	cfg := testConsumerConfig()
	cfg.Retry.MaxRetries = 0
	cfg.HandlerTimeout = 10 * time.Millisecond
	c := newConsumer(reader, nil, cfg, nil)

	require.NoError(t, c.Subscribe(TopicCompatibilityRequested, func(ctx context.Context, _ *common.Message) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	require.NoError(t, c.Start(context.Background()))
	assert.Eventually(t, func() bool { return reader.commits() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	assert.EqualValues(t, 1, c.Stats().Failed)
}

func TestConsumer_SubscribeValidation(t *testing.T) {
	c := newConsumer(&mockKafkaReader{}, nil, testConsumerConfig(), nil)
	assert.Error(t, c.Subscribe("", func(context.Context, *common.Message) error { return nil }))
	assert.Error(t, c.Subscribe("t", nil))
	assert.NoError(t, c.Close())
}
