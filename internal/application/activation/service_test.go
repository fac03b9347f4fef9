package activation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Synastry-Intelligence/internal/domain/chart"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/synastry"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/transit"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/Synastry-Intelligence/internal/testutil"
	pkgerrors "github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

type mockScorer struct {
	mock.Mock
}

func (m *mockScorer) ScorePair(ctx context.Context, a, b string) (*synastry.Result, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*synastry.Result), args.Error(1)
}

type mockPartners struct {
	mock.Mock
}

func (m *mockPartners) Partners(ctx context.Context, id string) ([]string, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]string), args.Error(1)
}

type stubLock struct {
	free     bool
	released bool
}

func (l *stubLock) TryLock(context.Context) (bool, error) { return l.free, nil }
func (l *stubLock) Unlock(context.Context) error          { l.released = true; return nil }

var (
	fixedNow = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	today    = time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
)

func synAspect(a, b chart.Planet, t synastry.AspectType, strength float64) synastry.Aspect {
	def, _ := t.Definition()
	return synastry.Aspect{PlanetA: a, PlanetB: b, Type: t, Angle: def.Angle, Strength: strength, Category: def.Category}
}

// pairResult is oriented amy (A) / zed (B).
func pairResult(a, b string) *synastry.Result {
	return &synastry.Result{
		ChartAID: a,
		ChartBID: b,
		Score:    71,
		Aspects: []synastry.Aspect{
			synAspect(chart.Venus, chart.Mars, synastry.Conjunction, 0.9),
			synAspect(chart.Sun, chart.Moon, synastry.Trine, 0.8),
		},
	}
}

var (
	amyTransits = []transit.Aspect{{TransitingPlanet: chart.Jupiter, NatalPlanet: chart.Venus, Type: synastry.Trine, Strength: 0.5}}
	zedTransits = []transit.Aspect{{TransitingPlanet: chart.Saturn, NatalPlanet: chart.Moon, Type: synastry.Square, Strength: 0.6}}
)

type fixture struct {
	scorer    *mockScorer
	partners  *mockPartners
	source    *testutil.MockTransitSource
	cache     *testutil.MemoryCache
	publisher *testutil.RecordingPublisher
	locks     map[string]*stubLock
	svc       Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		scorer:    &mockScorer{},
		partners:  &mockPartners{},
		source:    &testutil.MockTransitSource{},
		cache:     testutil.NewMemoryCache(),
		publisher: &testutil.RecordingPublisher{},
		locks:     map[string]*stubLock{},
	}
	f.svc = NewService(Config{ActivationTTL: 24 * time.Hour, BatchConcurrency: 2, MaxBatchSize: 3}, Deps{
		Scorer:    f.scorer,
		Partners:  f.partners,
		Source:    f.source,
		Cache:     f.cache,
		Publisher: f.publisher,
		NewLock: func(key string) Locker {
			if l, ok := f.locks[key]; ok {
				return l
			}
			l := &stubLock{free: true}
			f.locks[key] = l
			return l
		},
		Now: func() time.Time { return fixedNow },
	})
	t.Cleanup(func() {
		f.scorer.AssertExpectations(t)
		f.source.AssertExpectations(t)
	})
	return f
}

func TestEvaluate_InlineTransitsFollowRequestOrientation(t *testing.T) {
	f := newFixture(t)
	f.scorer.On("ScorePair", mock.Anything, "zed", "amy").Return(pairResult("amy", "zed"), nil)

	got, err := f.svc.Evaluate(context.Background(), Request{
		ChartAID:  "zed",
		ChartBID:  "amy",
		Date:      time.Date(2026, 4, 5, 22, 0, 0, 0, time.UTC),
		TransitsA: zedTransits,
		TransitsB: amyTransits,
	})
	require.NoError(t, err)
	assert.Equal(t, "amy", got.ChartAID)
	assert.Equal(t, time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC), got.Date)
	require.Len(t, got.Triggered, 2)
	// conjunction votes intense, trine votes harmonious; intense wins the tie
	assert.Equal(t, transit.EnergyIntense, got.Energy)
	assert.Empty(t, f.publisher.Messages)
	assert.Equal(t, 0, f.cache.Loads)
}

func TestEvaluate_InlineInvalidTransits(t *testing.T) {
	f := newFixture(t)
	bad := []transit.Aspect{{TransitingPlanet: "vulcan", NatalPlanet: chart.Sun, Type: synastry.Trine, Strength: 0.5}}

	_, err := f.svc.Evaluate(context.Background(), Request{ChartAID: "amy", ChartBID: "zed", TransitsA: bad, TransitsB: zedTransits})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeTransitsInvalid))
}

func TestEvaluate_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Evaluate(context.Background(), Request{ChartAID: "amy"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeChartsRequired))

	_, err = f.svc.Evaluate(context.Background(), Request{ChartAID: "amy", ChartBID: "amy"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeChartPairSame))
}

func TestEvaluate_StoredTransitsAreCachedUntilMidnight(t *testing.T) {
	f := newFixture(t)
	f.scorer.On("ScorePair", mock.Anything, "amy", "zed").Return(pairResult("amy", "zed"), nil).Once()
	f.source.On("TransitsFor", mock.Anything, "amy", today).Return(amyTransits, nil).Once()
	f.source.On("TransitsFor", mock.Anything, "zed", today).Return(zedTransits, nil).Once()

	first, err := f.svc.Evaluate(context.Background(), Request{ChartAID: "amy", ChartBID: "zed"})
	require.NoError(t, err)
	assert.Equal(t, today, first.Date)
	assert.Len(t, first.Triggered, 2)

	second, err := f.svc.Evaluate(context.Background(), Request{ChartAID: "zed", ChartBID: "amy"})
	require.NoError(t, err)
	assert.Equal(t, first.Energy, second.Energy)

	key := "activation:amy:zed:2026-04-02"
	assert.Equal(t, 15*time.Hour, f.cache.TTLs[key])
	assert.Equal(t, []string{kafka.TopicActivationComputed}, f.publisher.Topics())
	assert.Equal(t, key, string(f.publisher.Messages[0].Key))
}

func TestEvaluate_QuietDayWhenOneSideHasNoTransits(t *testing.T) {
	f := newFixture(t)
	f.scorer.On("ScorePair", mock.Anything, "amy", "zed").Return(pairResult("amy", "zed"), nil)
	f.source.On("TransitsFor", mock.Anything, "amy", today).Return(amyTransits, nil)
	f.source.On("TransitsFor", mock.Anything, "zed", today).Return([]transit.Aspect{}, nil)

	got, err := f.svc.Evaluate(context.Background(), Request{ChartAID: "amy", ChartBID: "zed", Date: fixedNow})
	require.NoError(t, err)
	assert.Empty(t, got.Triggered)
	assert.Equal(t, transit.EnergyHarmonious, got.Energy)
}

func TestEvaluate_SourceFailure(t *testing.T) {
	f := newFixture(t)
	f.scorer.On("ScorePair", mock.Anything, "amy", "zed").Return(pairResult("amy", "zed"), nil)
	f.source.On("TransitsFor", mock.Anything, "amy", today).Return(nil, errors.New("redis down"))
	f.source.On("TransitsFor", mock.Anything, "zed", today).Return(zedTransits, nil).Maybe()

	_, err := f.svc.Evaluate(context.Background(), Request{ChartAID: "amy", ChartBID: "zed"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeActivationFailed))
	assert.False(t, f.cache.Has("activation:amy:zed:2026-04-02"))
}

func TestEvaluate_ScorerFailure(t *testing.T) {
	f := newFixture(t)
	f.scorer.On("ScorePair", mock.Anything, "amy", "zed").
		Return(nil, pkgerrors.New(pkgerrors.ErrCodeChartNotFound, "chart not found"))

	_, err := f.svc.Evaluate(context.Background(), Request{ChartAID: "amy", ChartBID: "zed"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeChartNotFound))
}

func TestEvaluate_NoSource(t *testing.T) {
	svc := NewService(Config{}, Deps{Scorer: &mockScorer{}})

	_, err := svc.Evaluate(context.Background(), Request{ChartAID: "amy", ChartBID: "zed"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeTransitsInvalid))
}

func TestEvaluateBatch(t *testing.T) {
	f := newFixture(t)
	f.scorer.On("ScorePair", mock.Anything, "amy", "zed").Return(pairResult("amy", "zed"), nil)
	f.scorer.On("ScorePair", mock.Anything, "amy", "bob").Return(pairResult("amy", "bob"), nil)

	resp, err := f.svc.EvaluateBatch(context.Background(), []Request{
		{ChartAID: "amy", ChartBID: "zed", TransitsA: amyTransits, TransitsB: zedTransits},
		{ChartAID: "amy", ChartBID: "amy", TransitsA: amyTransits, TransitsB: zedTransits},
		{ChartAID: "amy", ChartBID: "bob", TransitsA: amyTransits, TransitsB: []transit.Aspect{}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.TotalProcessed)
	require.Len(t, resp.Succeeded, 2)
	assert.Equal(t, "zed", resp.Succeeded[0].ChartBID)
	assert.Equal(t, "bob", resp.Succeeded[1].ChartBID)
	require.Len(t, resp.Failed, 1)
	assert.Equal(t, 1, resp.Failed[0].Index)
	assert.Equal(t, "SYN_006", resp.Failed[0].Error.Code)
}

func TestEvaluateBatch_Limits(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.EvaluateBatch(context.Background(), nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))

	_, err = f.svc.EvaluateBatch(context.Background(), make([]Request, 4))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func TestActivatePartners_RefreshesCacheAndSkipsLockedPairs(t *testing.T) {
	f := newFixture(t)
	f.partners.On("Partners", mock.Anything, "zed").Return([]string{"amy", "bob"}, nil)
	f.locks["activation:bob:zed:2026-04-02"] = &stubLock{free: false}

	// A quiet day cached before zed's transits arrived.
	stale := transit.DailyActivation{ChartAID: "amy", ChartBID: "zed", Date: today, Activation: transit.Activation{Triggered: []transit.TriggeredAspect{}, Energy: transit.EnergyHarmonious}}
	require.NoError(t, f.cache.Set(context.Background(), "activation:amy:zed:2026-04-02", stale, time.Hour))

	f.scorer.On("ScorePair", mock.Anything, "zed", "amy").Return(pairResult("amy", "zed"), nil).Once()
	f.source.On("TransitsFor", mock.Anything, "amy", today).Return(amyTransits, nil)
	f.source.On("TransitsFor", mock.Anything, "zed", today).Return(zedTransits, nil)

	n, err := f.svc.ActivatePartners(context.Background(), "zed", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, f.locks["activation:amy:zed:2026-04-02"].released)
	assert.False(t, f.locks["activation:bob:zed:2026-04-02"].released)

	var cached transit.DailyActivation
	require.NoError(t, f.cache.GetOrSet(context.Background(), "activation:amy:zed:2026-04-02", &cached, time.Hour, nil))
	assert.Len(t, cached.Triggered, 2)
	assert.Equal(t, 15*time.Hour, f.cache.TTLs["activation:amy:zed:2026-04-02"])
}

func TestActivatePartners_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ActivatePartners(context.Background(), "", fixedNow)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))
}

func TestCacheKeyAndDay(t *testing.T) {
	late := time.Date(2026, 4, 2, 23, 30, 0, 0, time.FixedZone("UTC+2", 2*3600))
	assert.Equal(t, "activation:a:b:2026-04-02", CacheKey("b", "a", late))
	assert.Equal(t, today, Day(late))
}
