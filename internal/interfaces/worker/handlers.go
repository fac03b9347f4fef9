// Package worker holds the Kafka message handlers run by the background
// worker process.
package worker

import (
	"context"
	"time"

	"github.com/turtacn/Synastry-Intelligence/internal/domain/synastry"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/transit"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
	"github.com/turtacn/Synastry-Intelligence/pkg/types/common"
)

const dateLayout = "2006-01-02"

// TopicHandler processes the messages of one topic.
type TopicHandler interface {
	Topic() string
	Handle(ctx context.Context, msg *common.Message) error
}

// Subscriber is satisfied by the Kafka consumer.
type Subscriber interface {
	Subscribe(topic string, handler common.MessageHandler) error
}

// Register subscribes every handler, wrapping it with timing and error
// metrics.
func Register(sub Subscriber, metrics *prometheus.SynastryMetrics, handlers ...TopicHandler) error {
	for _, h := range handlers {
		h := h
		err := sub.Subscribe(h.Topic(), func(ctx context.Context, msg *common.Message) error {
			start := time.Now()
			err := h.Handle(ctx, msg)
			prometheus.RecordMessage(metrics, h.Topic(), time.Since(start), err)
			if err != nil {
				prometheus.RecordError(metrics, "worker", string(errors.GetCode(err)))
			}
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// IsPermanent reports handler errors that redelivery cannot fix: malformed
// messages, invalid transits and unknown charts.
func IsPermanent(err error) bool {
	switch errors.GetCode(err) {
	case errors.ErrCodeValidation, errors.ErrCodeSerialization, errors.ErrCodeTransitsInvalid,
		errors.ErrCodeChartNotFound, errors.ErrCodeChartInvalid, errors.ErrCodeChartPairSame:
		return true
	}
	return false
}

// decode parses the envelope and payload.  Its errors satisfy IsPermanent.
func decode(msg *common.Message, eventType string, target interface{}) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		return err
	}
	if env.EventType != "" && env.EventType != eventType {
		return errors.Newf(errors.ErrCodeValidation, "unexpected event type %q on %s", env.EventType, msg.Topic)
	}
	return env.DecodePayload(target)
}

// ─────────────────────────────────────────────────────────────────────────────
// compatibility.requested
// ─────────────────────────────────────────────────────────────────────────────

// PairScorer is satisfied by the compatibility service.
type PairScorer interface {
	ScorePair(ctx context.Context, chartAID, chartBID string) (*synastry.Result, error)
}

// CompatibilityRequestedHandler scores a stored chart pair.  The service
// stores and announces the result.
type CompatibilityRequestedHandler struct {
	scorer PairScorer
	logger logging.Logger
}

func NewCompatibilityRequestedHandler(scorer PairScorer, logger logging.Logger) *CompatibilityRequestedHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CompatibilityRequestedHandler{scorer: scorer, logger: logger.Named("worker.compatibility")}
}

func (h *CompatibilityRequestedHandler) Topic() string { return kafka.TopicCompatibilityRequested }

func (h *CompatibilityRequestedHandler) Handle(ctx context.Context, msg *common.Message) error {
	var p kafka.CompatibilityRequestedPayload
	if err := decode(msg, kafka.EventCompatibilityRequested, &p); err != nil {
		return err
	}
	res, err := h.scorer.ScorePair(ctx, p.ChartAID, p.ChartBID)
	if err != nil {
		return err
	}
	h.logger.Info("pair scored",
		logging.String("chart_a", res.ChartAID),
		logging.String("chart_b", res.ChartBID),
		logging.Int("score", res.Score),
		logging.String("request_id", p.RequestID),
	)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// transits.ready
// ─────────────────────────────────────────────────────────────────────────────

// TransitWriter is satisfied by the Redis transit store.
type TransitWriter interface {
	Put(ctx context.Context, chartID string, day time.Time, transits []transit.Aspect, ttl time.Duration) error
}

// PartnerActivator is satisfied by the activation service.
type PartnerActivator interface {
	ActivatePartners(ctx context.Context, chartID string, day time.Time) (int, error)
}

// TransitsReadyHandler stores a chart's transit snapshot for the day and
// re-evaluates the activations of every pair the chart belongs to.
type TransitsReadyHandler struct {
	store     TransitWriter
	activator PartnerActivator
	ttl       time.Duration
	logger    logging.Logger
}

// NewTransitsReadyHandler creates the handler.  A non-positive snapshotTTL
// lets the store pick its default retention.
func NewTransitsReadyHandler(store TransitWriter, activator PartnerActivator, snapshotTTL time.Duration, logger logging.Logger) *TransitsReadyHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TransitsReadyHandler{store: store, activator: activator, ttl: snapshotTTL, logger: logger.Named("worker.transits")}
}

func (h *TransitsReadyHandler) Topic() string { return kafka.TopicTransitsReady }

func (h *TransitsReadyHandler) Handle(ctx context.Context, msg *common.Message) error {
	var p kafka.TransitsReadyPayload
	if err := decode(msg, kafka.EventTransitsReady, &p); err != nil {
		return err
	}
	if p.ChartID == "" {
		return errors.New(errors.ErrCodeValidation, "chart id required")
	}
	day, err := time.Parse(dateLayout, p.Date)
	if err != nil {
		return errors.Newf(errors.ErrCodeTransitsInvalid, "date %q is not YYYY-MM-DD", p.Date)
	}
	if err := transit.ValidateAll(p.Transits); err != nil {
		return errors.Wrapf(err, errors.ErrCodeTransitsInvalid, "transits for %s", p.ChartID)
	}

	if err := h.store.Put(ctx, p.ChartID, day, p.Transits, h.ttl); err != nil {
		return err
	}
	n, err := h.activator.ActivatePartners(ctx, p.ChartID, day)
	if err != nil {
		return err
	}
	h.logger.Info("partners activated",
		logging.String("chart_id", p.ChartID),
		logging.String("date", p.Date),
		logging.Int("transits", len(p.Transits)),
		logging.Int("pairs", n),
	)
	return nil
}
