package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/Synastry-Intelligence/internal/domain/transit"
	"github.com/turtacn/Synastry-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

const dayLayout = "2006-01-02"

// TransitStore keeps the daily transit snapshots pushed by the ephemeris
// service.  It implements transit.Source.
type TransitStore struct {
	client *Client
	logger logging.Logger
	prefix string
}

var _ transit.Source = (*TransitStore)(nil)

func NewTransitStore(client *Client, prefix string, logger logging.Logger) *TransitStore {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TransitStore{client: client, prefix: prefix, logger: logger.Named("transit_store")}
}

func (s *TransitStore) key(chartID string, day time.Time) string {
	return fmt.Sprintf("%stransits:%s:%s", s.prefix, chartID, day.UTC().Format(dayLayout))
}

// Put stores the transits for chartID on day.  A non-positive ttl keeps the
// snapshot until the end of the following UTC day.
func (s *TransitStore) Put(ctx context.Context, chartID string, day time.Time, transits []transit.Aspect, ttl time.Duration) error {
	if chartID == "" {
		return errors.New(errors.ErrCodeValidation, "chart id required")
	}
	if err := transit.ValidateAll(transits); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = time.Until(StartOfDay(day).Add(48 * time.Hour))
	}
	if transits == nil {
		transits = []transit.Aspect{}
	}
	data, err := json.Marshal(transits)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode transits")
	}
	if err := s.client.rdb.Set(ctx, s.key(chartID, day), data, ttl).Err(); err != nil {
		return errors.Wrapf(err, errors.ErrCodeCacheError, "store transits for %s", chartID)
	}
	return nil
}

// TransitsFor returns an empty list when no snapshot was pushed for the day,
// which the matcher reports as a quiet day.
func (s *TransitStore) TransitsFor(ctx context.Context, chartID string, day time.Time) ([]transit.Aspect, error) {
	data, err := s.client.rdb.Get(ctx, s.key(chartID, day)).Bytes()
	if errors.Is(err, redis.Nil) {
		s.logger.Debug("no transits stored", logging.String("chart_id", chartID), logging.String("day", day.UTC().Format(dayLayout)))
		return []transit.Aspect{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeCacheError, "load transits for %s", chartID)
	}
	var out []transit.Aspect
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrapf(err, errors.ErrCodeSerialization, "decode transits for %s", chartID)
	}
	return out, nil
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// UntilNextMidnight is the time left before the UTC day containing now ends.
func UntilNextMidnight(now time.Time) time.Duration {
	return StartOfDay(now).Add(24 * time.Hour).Sub(now)
}
