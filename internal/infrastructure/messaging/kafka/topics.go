package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/turtacn/Synastry-Intelligence/internal/domain/transit"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
	"github.com/turtacn/Synastry-Intelligence/pkg/types/common"
)

const (
	TopicCompatibilityRequested = "synastry.compatibility.requested"
	TopicCompatibilityComputed  = "synastry.compatibility.computed"
	TopicActivationComputed     = "synastry.activation.computed"
	TopicTransitsReady          = "synastry.transits.ready"
)

// Event types carried in EventEnvelope.EventType.
const (
	EventCompatibilityRequested = "compatibility.requested"
	EventCompatibilityComputed  = "compatibility.computed"
	EventActivationComputed     = "activation.computed"
	EventTransitsReady          = "transits.ready"
)

const schemaVersion = "v1"

// EventEnvelope is the JSON body of every message on the synastry topics.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	TraceID       string            `json:"trace_id,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// CompatibilityRequestedPayload asks the worker to score a stored chart pair.
type CompatibilityRequestedPayload struct {
	ChartAID  string `json:"chart_a_id"`
	ChartBID  string `json:"chart_b_id"`
	RequestID string `json:"request_id,omitempty"`
}

// CompatibilityComputedPayload announces a stored result.
type CompatibilityComputedPayload struct {
	ChartAID     string    `json:"chart_a_id"`
	ChartBID     string    `json:"chart_b_id"`
	Score        int       `json:"score"`
	AspectCount  int       `json:"aspect_count"`
	CalculatedAt time.Time `json:"calculated_at"`
}

// TransitsReadyPayload delivers one chart's transit aspects for a UTC day.
type TransitsReadyPayload struct {
	ChartID  string           `json:"chart_id"`
	Date     string           `json:"date"` // YYYY-MM-DD
	Transits []transit.Aspect `json:"transits"`
}

// ActivationComputedPayload announces a daily activation for a pair.
type ActivationComputedPayload struct {
	ChartAID  string `json:"chart_a_id"`
	ChartBID  string `json:"chart_b_id"`
	Date      string `json:"date"`
	Energy    string `json:"overall_energy"`
	Triggered int    `json:"triggered_count"`
}

// NewEventEnvelope wraps payload with a fresh event ID and UTC timestamp.
func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		Payload:       data,
	}, nil
}

// DecodePayload unmarshals the payload into target.  A missing payload is an
// error.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.Newf(errors.ErrCodeValidation, "event %s has no payload", e.EventID)
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrapf(err, errors.ErrCodeSerialization, "decode %s payload", e.EventType)
	}
	return nil
}

// ToMessage renders the envelope as a message on topic, keyed by key.
func (e *EventEnvelope) ToMessage(topic string, key string) (*common.ProducerMessage, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal envelope")
	}
	headers := map[string]string{
		"event_type":     e.EventType,
		"source_service": e.Source,
		"schema_version": e.SchemaVersion,
	}
	if e.TraceID != "" {
		headers["trace_id"] = e.TraceID
	}
	msg := &common.ProducerMessage{Topic: topic, Value: val, Headers: headers, Timestamp: e.Timestamp}
	if key != "" {
		msg.Key = []byte(key)
	}
	return msg, nil
}

// MessageToEventEnvelope parses a consumed message.
func MessageToEventEnvelope(msg *common.Message) (*EventEnvelope, error) {
	if msg == nil || len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal envelope")
	}
	return &env, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Topic management
// ─────────────────────────────────────────────────────────────────────────────

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager creates the service topics at startup.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

func NewTopicManager(ctx context.Context, brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "brokers required")
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "failed to dial kafka")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TopicManager{conn: conn, logger: logger.Named("kafka.topics")}, nil
}

// CreateTopic creates cfg.Name unless it already exists.
func (m *TopicManager) CreateTopic(cfg common.TopicConfig) error {
	if cfg.Name == "" {
		return errors.New(errors.ErrCodeValidation, "topic name required")
	}
	if cfg.NumPartitions <= 0 || cfg.ReplicationFactor <= 0 {
		return errors.Newf(errors.ErrCodeValidation, "topic %s needs positive partitions and replication", cfg.Name)
	}
	if exists, _ := m.TopicExists(cfg.Name); exists {
		return nil
	}

	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
	}
	if cfg.RetentionMs > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "retention.ms", ConfigValue: strconv.FormatInt(cfg.RetentionMs, 10)})
	}
	if cfg.CleanupPolicy != "" {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "cleanup.policy", ConfigValue: cfg.CleanupPolicy})
	}
	if err := m.conn.CreateTopics(kCfg); err != nil {
		if errors.Is(err, kafka.TopicAlreadyExists) {
			return nil
		}
		return errors.Wrapf(err, errors.ErrCodeMessagingError, "create topic %s", cfg.Name)
	}
	m.logger.Info("topic created", logging.String("topic", cfg.Name))
	return nil
}

func (m *TopicManager) TopicExists(name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, err
	}
	return len(partitions) > 0, nil
}

// EnsureTopics creates every topic in topics, stopping at the first failure.
func (m *TopicManager) EnsureTopics(topics []common.TopicConfig) error {
	for _, t := range topics {
		if err := m.CreateTopic(t); err != nil {
			return err
		}
	}
	return nil
}

func (m *TopicManager) Close() error {
	return m.conn.Close()
}

const day = int64(24 * time.Hour / time.Millisecond)

// DefaultTopics lists the service topics and their dead-letter topics.
func DefaultTopics(replication int, dlqSuffix string) []common.TopicConfig {
	if replication <= 0 {
		replication = 1
	}
	topics := []common.TopicConfig{
		{Name: TopicCompatibilityRequested, NumPartitions: 6, ReplicationFactor: replication, RetentionMs: 3 * day},
		{Name: TopicCompatibilityComputed, NumPartitions: 6, ReplicationFactor: replication, RetentionMs: 7 * day},
		{Name: TopicActivationComputed, NumPartitions: 6, ReplicationFactor: replication, RetentionMs: 2 * day},
		{Name: TopicTransitsReady, NumPartitions: 6, ReplicationFactor: replication, RetentionMs: 2 * day},
	}
	if dlqSuffix == "" {
		return topics
	}
	for _, consumed := range []string{TopicCompatibilityRequested, TopicTransitsReady} {
		topics = append(topics, common.TopicConfig{
			Name: consumed + dlqSuffix, NumPartitions: 1, ReplicationFactor: replication, RetentionMs: 30 * day,
		})
	}
	return topics
}
