// Package activation evaluates which synastry aspects of a couple are
// activated by the day's transits, alone or for many pairs at once.
package activation

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/Synastry-Intelligence/internal/domain/synastry"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/transit"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
	"github.com/turtacn/Synastry-Intelligence/pkg/types/common"
)

const (
	dateLayout  = "2006-01-02"
	eventSource = "synastry-intelligence"
)

// Request asks for one pair's activation on Date.  When both transit lists
// are nil they are read from the transit source; otherwise they are taken
// as given, oriented like ChartAID and ChartBID.
type Request struct {
	ChartAID  string           `json:"chartAId"`
	ChartBID  string           `json:"chartBId"`
	Date      time.Time        `json:"date"`
	TransitsA []transit.Aspect `json:"transitsA,omitempty"`
	TransitsB []transit.Aspect `json:"transitsB,omitempty"`
}

func (r Request) inline() bool {
	return r.TransitsA != nil || r.TransitsB != nil
}

type Service interface {
	Evaluate(ctx context.Context, req Request) (*transit.DailyActivation, error)

	// EvaluateBatch evaluates every request concurrently.  Failed items are
	// reported per index; the call itself only fails on bad input.
	EvaluateBatch(ctx context.Context, reqs []Request) (*common.BatchResponse[*transit.DailyActivation], error)

	// ActivatePartners re-evaluates chartID against every chart it has a
	// stored result with, replacing cached activations for day.  It returns
	// how many pairs were evaluated.
	ActivatePartners(ctx context.Context, chartID string, day time.Time) (int, error)
}

// PairScorer supplies the stored synastry result of a pair.  The
// compatibility service satisfies it.
type PairScorer interface {
	ScorePair(ctx context.Context, chartAID, chartBID string) (*synastry.Result, error)
}

// PartnerLister is satisfied by synastry.Repository.
type PartnerLister interface {
	Partners(ctx context.Context, chartID string) ([]string, error)
}

type ActivationCache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type EventPublisher interface {
	Publish(ctx context.Context, msg *common.ProducerMessage) error
}

// Locker is a cross-process mutex such as the Redis pair lock.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

type Config struct {
	ActivationTTL    time.Duration
	BatchConcurrency int
	MaxBatchSize     int
}

type Deps struct {
	Scorer    PairScorer
	Partners  PartnerLister
	Source    transit.Source
	Cache     ActivationCache
	Publisher EventPublisher
	NewLock   func(key string) Locker
	Metrics   *prometheus.SynastryMetrics
	Logger    logging.Logger
	Now       func() time.Time
}

type serviceImpl struct {
	Deps
	logger logging.Logger
	cfg    Config
}

func NewService(cfg Config, deps Deps) Service {
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.ActivationTTL <= 0 {
		cfg.ActivationTTL = 24 * time.Hour
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 8
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 500
	}
	return &serviceImpl{Deps: deps, logger: deps.Logger.Named("activation"), cfg: cfg}
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CacheKey is the cache key of a pair's activation on day.
func CacheKey(chartAID, chartBID string, day time.Time) string {
	return CachePrefix(chartAID, chartBID) + Day(day).Format(dateLayout)
}

// CachePrefix covers every cached day of a pair's activations.
func CachePrefix(chartAID, chartBID string) string {
	a, b := synastry.PairKey(chartAID, chartBID)
	return "activation:" + a + ":" + b + ":"
}

// cacheTTL never lets an entry outlive the current UTC day.
func (s *serviceImpl) cacheTTL() time.Duration {
	now := s.Now()
	ttl := Day(now).Add(24 * time.Hour).Sub(now)
	if s.cfg.ActivationTTL < ttl {
		ttl = s.cfg.ActivationTTL
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (s *serviceImpl) Evaluate(ctx context.Context, req Request) (*transit.DailyActivation, error) {
	if req.ChartAID == "" || req.ChartBID == "" {
		return nil, errors.New(errors.ErrCodeChartsRequired, "both chart ids required")
	}
	if req.ChartAID == req.ChartBID {
		return nil, errors.New(errors.ErrCodeChartPairSame, "a chart cannot be paired with itself").WithDetail("id=" + req.ChartAID)
	}
	if req.Date.IsZero() {
		req.Date = s.Now()
	}
	req.Date = Day(req.Date)

	if req.inline() {
		if err := transit.ValidateAll(req.TransitsA); err != nil {
			return nil, err
		}
		if err := transit.ValidateAll(req.TransitsB); err != nil {
			return nil, err
		}
		return s.compute(ctx, req)
	}
	if s.Source == nil {
		return nil, errors.New(errors.ErrCodeTransitsInvalid, "transits required: no transit source configured")
	}
	if s.Cache == nil {
		return s.compute(ctx, req)
	}

	loaded := false
	var out transit.DailyActivation
	err := s.Cache.GetOrSet(ctx, CacheKey(req.ChartAID, req.ChartBID, req.Date), &out, s.cacheTTL(), func(ctx context.Context) (interface{}, error) {
		loaded = true
		return s.compute(ctx, req)
	})
	prometheus.RecordCacheAccess(s.Metrics, "activation", !loaded)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *serviceImpl) compute(ctx context.Context, req Request) (out *transit.DailyActivation, err error) {
	defer func() {
		if err != nil {
			prometheus.RecordActivation(s.Metrics, 0, "", err)
		}
	}()

	res, err := s.Scorer.ScorePair(ctx, req.ChartAID, req.ChartBID)
	if err != nil {
		return nil, err
	}

	tA, tB := req.TransitsA, req.TransitsB
	if req.inline() {
		if res.ChartAID != req.ChartAID {
			tA, tB = tB, tA
		}
	} else if tA, tB, err = s.fetchTransits(ctx, res.ChartAID, res.ChartBID, req.Date); err != nil {
		return nil, err
	}

	act := transit.Match(res.Aspects, tA, tB)
	out = &transit.DailyActivation{ChartAID: res.ChartAID, ChartBID: res.ChartBID, Date: req.Date, Activation: act}
	prometheus.RecordActivation(s.Metrics, len(act.Triggered), string(act.Energy), nil)

	if !req.inline() {
		s.publish(ctx, out)
	}
	s.logger.Debug("activation evaluated",
		logging.String("chart_a", out.ChartAID),
		logging.String("chart_b", out.ChartBID),
		logging.String("date", req.Date.Format(dateLayout)),
		logging.Int("triggered", len(act.Triggered)),
		logging.String("energy", string(act.Energy)),
	)
	return out, nil
}

func (s *serviceImpl) fetchTransits(ctx context.Context, a, b string, day time.Time) (tA, tB []transit.Aspect, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		tA, err = s.Source.TransitsFor(gctx, a, day)
		return err
	})
	g.Go(func() (err error) {
		tB, err = s.Source.TransitsFor(gctx, b, day)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeActivationFailed, "load transits")
	}
	return tA, tB, nil
}

func (s *serviceImpl) publish(ctx context.Context, a *transit.DailyActivation) {
	if s.Publisher == nil {
		return
	}
	date := a.Date.Format(dateLayout)
	env, err := kafka.NewEventEnvelope(kafka.EventActivationComputed, eventSource, kafka.ActivationComputedPayload{
		ChartAID:  a.ChartAID,
		ChartBID:  a.ChartBID,
		Date:      date,
		Energy:    string(a.Energy),
		Triggered: len(a.Triggered),
	})
	if err == nil {
		var msg *common.ProducerMessage
		if msg, err = env.ToMessage(kafka.TopicActivationComputed, CacheKey(a.ChartAID, a.ChartBID, a.Date)); err == nil {
			if pubErr := s.Publisher.Publish(ctx, msg); pubErr != nil {
				err = errors.Wrap(pubErr, errors.ErrCodeMessagingError, "publish activation event")
			}
		}
	}
	if err != nil {
		prometheus.RecordError(s.Metrics, "activation", string(errors.GetCode(err)))
		s.logger.Warn("failed to publish activation event", logging.String("chart_a", a.ChartAID), logging.Err(err))
	}
}

func (s *serviceImpl) EvaluateBatch(ctx context.Context, reqs []Request) (*common.BatchResponse[*transit.DailyActivation], error) {
	if len(reqs) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "no pairs to evaluate")
	}
	if len(reqs) > s.cfg.MaxBatchSize {
		return nil, errors.Newf(errors.ErrCodeValidation, "batch of %d exceeds limit %d", len(reqs), s.cfg.MaxBatchSize)
	}
	timer := prometheus.NewTimer(batchHistogram(s.Metrics))
	defer timer.ObserveDuration()

	results := make([]*transit.DailyActivation, len(reqs))
	errs := make([]error, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)
	for i := range reqs {
		i := i
		g.Go(func() error {
			results[i], errs[i] = s.Evaluate(gctx, reqs[i])
			return nil
		})
	}
	_ = g.Wait()

	resp := &common.BatchResponse[*transit.DailyActivation]{
		Succeeded:      make([]*transit.DailyActivation, 0, len(reqs)),
		Failed:         []common.BatchError{},
		TotalProcessed: len(reqs),
	}
	for i, err := range errs {
		if err != nil {
			resp.Failed = append(resp.Failed, common.BatchError{
				Index: i,
				Error: common.ErrorDetail{Code: string(errors.GetCode(err)), Message: err.Error()},
			})
			continue
		}
		resp.Succeeded = append(resp.Succeeded, results[i])
	}
	s.logger.Info("batch evaluated", logging.Int("pairs", len(reqs)), logging.Int("failed", len(resp.Failed)))
	return resp, nil
}

func batchHistogram(m *prometheus.SynastryMetrics) prometheus.Histogram {
	if m == nil {
		return nil
	}
	return m.BatchActivationMs.WithLabelValues()
}

func (s *serviceImpl) ActivatePartners(ctx context.Context, chartID string, day time.Time) (int, error) {
	if chartID == "" {
		return 0, errors.New(errors.ErrCodeValidation, "chart id required")
	}
	if s.Partners == nil {
		return 0, errors.New(errors.ErrCodeNotImplemented, "partner lookup not configured")
	}
	if day.IsZero() {
		day = s.Now()
	}
	day = Day(day)
	if s.Source == nil {
		return 0, errors.New(errors.ErrCodeTransitsInvalid, "transits required: no transit source configured")
	}
	partners, err := s.Partners.Partners(ctx, chartID)
	if err != nil {
		return 0, err
	}

	evaluated := 0
	for _, p := range partners {
		req := Request{ChartAID: chartID, ChartBID: p, Date: day}
		ok, err := s.evaluateLocked(ctx, req)
		if err != nil {
			return evaluated, err
		}
		if ok {
			evaluated++
		}
	}
	return evaluated, nil
}

// evaluateLocked skips the pair when another worker already holds its lock.
func (s *serviceImpl) evaluateLocked(ctx context.Context, req Request) (bool, error) {
	if s.NewLock != nil {
		lock := s.NewLock(CacheKey(req.ChartAID, req.ChartBID, req.Date))
		got, err := lock.TryLock(ctx)
		if err != nil {
			return false, err
		}
		if !got {
			s.logger.Debug("pair locked elsewhere", logging.String("chart_a", req.ChartAID), logging.String("chart_b", req.ChartBID))
			return false, nil
		}
		defer func() {
			if err := lock.Unlock(ctx); err != nil {
				s.logger.Warn("failed to release pair lock", logging.Err(err))
			}
		}()
	}
	out, err := s.compute(ctx, req)
	if err != nil {
		return false, err
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, CacheKey(req.ChartAID, req.ChartBID, req.Date), out, s.cacheTTL()); err != nil {
			s.logger.Warn("failed to refresh cached activation", logging.String("chart_a", out.ChartAID), logging.Err(err))
		}
	}
	return true, nil
}
