// Package compatibility orchestrates chart registration and pair scoring:
// it loads charts, runs the synastry pipeline, caches and persists the
// result, and announces it on the event bus.
package compatibility

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/Synastry-Intelligence/internal/application/activation"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/chart"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/synastry"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
	"github.com/turtacn/Synastry-Intelligence/pkg/types/common"
)

const (
	SourceInline = "inline"
	SourceStored = "stored"

	eventSource = "synastry-intelligence"
)

// Service is the application boundary used by the HTTP handlers, the CLI and
// the worker.
type Service interface {
	RegisterChart(ctx context.Context, c *chart.Chart) error
	GetChart(ctx context.Context, id string) (*chart.Chart, error)

	// Score runs the pipeline on two charts supplied by the caller.  Nothing
	// is stored.
	Score(ctx context.Context, a, b *chart.Chart) (*synastry.Result, error)

	// ScorePair scores two registered charts.  The result is oriented by
	// sorted chart ID, so both argument orders return the same result.
	ScorePair(ctx context.Context, chartAID, chartBID string) (*synastry.Result, error)

	// GetResult returns the last stored result for the pair.
	GetResult(ctx context.Context, chartAID, chartBID string) (*synastry.Result, error)
}

// ResultCache is the subset of the Redis cache used here.
type ResultCache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
}

// EventPublisher is satisfied by the Kafka producer.
type EventPublisher interface {
	Publish(ctx context.Context, msg *common.ProducerMessage) error
}

// Config holds scoring knobs read from the "scoring" config section.
type Config struct {
	MinorAspectCap int
	ResultTTL      time.Duration
}

// Deps bundles the collaborators.  Cache and Publisher are optional.
type Deps struct {
	Charts    chart.Repository
	Results   synastry.Repository
	Cache     ResultCache
	Publisher EventPublisher
	Metrics   *prometheus.SynastryMetrics
	Logger    logging.Logger
	Now       func() time.Time
}

type serviceImpl struct {
	charts    chart.Repository
	results   synastry.Repository
	cache     ResultCache
	publisher EventPublisher
	metrics   *prometheus.SynastryMetrics
	logger    logging.Logger
	now       func() time.Time
	cfg       Config
}

func NewService(cfg Config, deps Deps) Service {
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &serviceImpl{
		charts:    deps.Charts,
		results:   deps.Results,
		cache:     deps.Cache,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger.Named("compatibility"),
		now:       deps.Now,
		cfg:       cfg,
	}
}

// ResultCacheKey is the cache key of a pair's result.
func ResultCacheKey(chartAID, chartBID string) string {
	a, b := synastry.PairKey(chartAID, chartBID)
	return "result:" + a + ":" + b
}

func (s *serviceImpl) RegisterChart(ctx context.Context, c *chart.Chart) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.charts.Save(ctx, c); err != nil {
		return err
	}
	s.invalidatePartners(ctx, c.ID)
	s.logger.Info("chart registered", logging.String("chart_id", c.ID), logging.Int("positions", len(c.Positions)))
	return nil
}

// invalidatePartners drops cached results and activations involving chartID
// so the next read sees the new placements.  Failures only cost freshness.
func (s *serviceImpl) invalidatePartners(ctx context.Context, chartID string) {
	if s.cache == nil || s.results == nil {
		return
	}
	partners, err := s.results.Partners(ctx, chartID)
	if err != nil {
		s.logger.Warn("could not list partners for invalidation", logging.String("chart_id", chartID), logging.Err(err))
		return
	}
	if len(partners) == 0 {
		return
	}
	keys := make([]string, len(partners))
	for i, p := range partners {
		keys[i] = ResultCacheKey(chartID, p)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache invalidation failed", logging.String("chart_id", chartID), logging.Err(err))
	}
	for _, p := range partners {
		if _, err := s.cache.DeleteByPrefix(ctx, activation.CachePrefix(chartID, p)); err != nil {
			s.logger.Warn("activation invalidation failed", logging.String("chart_id", chartID),
				logging.String("partner", p), logging.Err(err))
		}
	}
}

func (s *serviceImpl) GetChart(ctx context.Context, id string) (*chart.Chart, error) {
	if id == "" {
		return nil, errors.InvalidParam("chart id required")
	}
	return s.charts.FindByID(ctx, id)
}

func (s *serviceImpl) Score(ctx context.Context, a, b *chart.Chart) (*synastry.Result, error) {
	return s.calculate(SourceInline, a, b)
}

func (s *serviceImpl) calculate(source string, a, b *chart.Chart) (*synastry.Result, error) {
	start := time.Now()
	res, err := synastry.Calculate(a, b, synastry.WithMinorAspectCap(s.cfg.MinorAspectCap))
	if err != nil {
		prometheus.RecordCalculation(s.metrics, source, 0, 0, 0, 0, time.Since(start), err)
		return nil, err
	}
	res.CalculatedAt = s.now().UTC()

	var major, minor int
	for _, asp := range res.Aspects {
		if asp.Type.IsMajor() {
			major++
		} else {
			minor++
		}
	}
	prometheus.RecordCalculation(s.metrics, source, res.Score, major, minor, res.Breakdown.DroppedMinor, time.Since(start), nil)
	return res, nil
}

func (s *serviceImpl) ScorePair(ctx context.Context, chartAID, chartBID string) (*synastry.Result, error) {
	if chartAID == "" || chartBID == "" {
		return nil, errors.New(errors.ErrCodeChartsRequired, "both chart ids required")
	}
	if chartAID == chartBID {
		return nil, errors.New(errors.ErrCodeChartPairSame, "a chart cannot be paired with itself").WithDetail("id=" + chartAID)
	}
	lo, hi := synastry.PairKey(chartAID, chartBID)

	if s.cache == nil {
		return s.computePair(ctx, lo, hi)
	}

	loaded := false
	var res synastry.Result
	err := s.cache.GetOrSet(ctx, ResultCacheKey(lo, hi), &res, s.cfg.ResultTTL, func(ctx context.Context) (interface{}, error) {
		loaded = true
		return s.computePair(ctx, lo, hi)
	})
	prometheus.RecordCacheAccess(s.metrics, "result", !loaded)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// computePair loads both charts concurrently, scores, stores and announces.
func (s *serviceImpl) computePair(ctx context.Context, lo, hi string) (*synastry.Result, error) {
	var a, b *chart.Chart
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		a, err = s.charts.FindByID(gctx, lo)
		return err
	})
	g.Go(func() (err error) {
		b, err = s.charts.FindByID(gctx, hi)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res, err := s.calculate(SourceStored, a, b)
	if err != nil {
		return nil, err
	}
	if err := s.results.Upsert(ctx, res); err != nil {
		return nil, err
	}
	s.publishComputed(ctx, res)

	s.logger.Info("pair scored",
		logging.String("chart_a", lo),
		logging.String("chart_b", hi),
		logging.Int("score", res.Score),
		logging.Int("aspects", len(res.Aspects)),
	)
	return res, nil
}

// publishComputed is best effort: the result is already stored.
func (s *serviceImpl) publishComputed(ctx context.Context, res *synastry.Result) {
	if s.publisher == nil {
		return
	}
	env, err := kafka.NewEventEnvelope(kafka.EventCompatibilityComputed, eventSource, kafka.CompatibilityComputedPayload{
		ChartAID:     res.ChartAID,
		ChartBID:     res.ChartBID,
		Score:        res.Score,
		AspectCount:  len(res.Aspects),
		CalculatedAt: res.CalculatedAt,
	})
	if err == nil {
		var msg *common.ProducerMessage
		if msg, err = env.ToMessage(kafka.TopicCompatibilityComputed, ResultCacheKey(res.ChartAID, res.ChartBID)); err == nil {
			if pubErr := s.publisher.Publish(ctx, msg); pubErr != nil {
				err = errors.Wrap(pubErr, errors.ErrCodeMessagingError, "publish result event")
			}
		}
	}
	if err != nil {
		prometheus.RecordError(s.metrics, "compatibility", string(errors.GetCode(err)))
		s.logger.Warn("failed to publish result event", logging.String("chart_a", res.ChartAID), logging.Err(err))
	}
}

func (s *serviceImpl) GetResult(ctx context.Context, chartAID, chartBID string) (*synastry.Result, error) {
	if chartAID == "" || chartBID == "" {
		return nil, errors.New(errors.ErrCodeChartsRequired, "both chart ids required")
	}
	return s.results.FindByPair(ctx, chartAID, chartBID)
}
