package testutil

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/turtacn/Synastry-Intelligence/internal/domain/chart"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/synastry"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/transit"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
	"github.com/turtacn/Synastry-Intelligence/pkg/types/common"
)

// MockChartRepository mocks chart.Repository.
type MockChartRepository struct {
	mock.Mock
}

func (m *MockChartRepository) Save(ctx context.Context, c *chart.Chart) error {
	return m.Called(ctx, c).Error(0)
}

func (m *MockChartRepository) FindByID(ctx context.Context, id string) (*chart.Chart, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chart.Chart), args.Error(1)
}

// MockResultRepository mocks synastry.Repository.
type MockResultRepository struct {
	mock.Mock
}

func (m *MockResultRepository) Upsert(ctx context.Context, r *synastry.Result) error {
	return m.Called(ctx, r).Error(0)
}

func (m *MockResultRepository) FindByPair(ctx context.Context, a, b string) (*synastry.Result, error) {
	args := m.Called(ctx, a, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*synastry.Result), args.Error(1)
}

func (m *MockResultRepository) Partners(ctx context.Context, chartID string) ([]string, error) {
	args := m.Called(ctx, chartID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockTransitSource mocks transit.Source.
type MockTransitSource struct {
	mock.Mock
}

func (m *MockTransitSource) TransitsFor(ctx context.Context, chartID string, day time.Time) ([]transit.Aspect, error) {
	args := m.Called(ctx, chartID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]transit.Aspect), args.Error(1)
}

// RecordingPublisher keeps every published message.  Err, when set, is
// returned from Publish instead.
type RecordingPublisher struct {
	mu       sync.Mutex
	Messages []*common.ProducerMessage
	Err      error
}

func (p *RecordingPublisher) Publish(_ context.Context, msg *common.ProducerMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Messages = append(p.Messages, msg)
	return nil
}

func (p *RecordingPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.Messages))
	for i, m := range p.Messages {
		out[i] = m.Topic
	}
	return out
}

// MemoryCache is an in-process stand-in for the Redis cache.  Values are
// stored as JSON so callers see the same decoding behavior.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	TTLs    map[string]time.Duration
	Loads   int
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string][]byte{}, TTLs: map[string]time.Duration{}}
}

func (c *MemoryCache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error {
	c.mu.Lock()
	data, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		v, err := loader(ctx)
		if err != nil {
			return err
		}
		if data, err = json.Marshal(v); err != nil {
			return errors.Wrap(err, errors.ErrCodeSerialization, "encode")
		}
		c.mu.Lock()
		c.entries[key] = data
		c.TTLs[key] = ttl
		c.Loads++
		c.mu.Unlock()
	}
	return json.Unmarshal(data, dest)
}

func (c *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	c.TTLs[key] = ttl
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
		delete(c.TTLs, k)
	}
	return nil
}

func (c *MemoryCache) DeleteByPrefix(_ context.Context, prefix string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			delete(c.TTLs, k)
			n++
		}
	}
	return n, nil
}

func (c *MemoryCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// SunMoonChart builds a chart with the Sun, Moon, Venus and Mars at the
// given longitudes.
func SunMoonChart(id string, sun, moon, venus, mars float64) *chart.Chart {
	return &chart.Chart{
		ID: id,
		Positions: []chart.PlanetPosition{
			chart.At(chart.Sun, sun),
			chart.At(chart.Moon, moon),
			chart.At(chart.Venus, venus),
			chart.At(chart.Mars, mars),
		},
	}
}
