package chart

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

// PlanetPosition is a planet's placement as supplied by the chart generator.
// Longitude is optional: a nil longitude marks malformed data that the
// synastry core skips instead of failing the whole computation.
type PlanetPosition struct {
	Planet    Planet   `json:"planetId"`
	Sign      Sign     `json:"signId,omitempty"`
	Longitude *float64 `json:"longitudeDegrees,omitempty"`
}

// Lon returns the normalized longitude and whether a finite one is present.
func (p PlanetPosition) Lon() (float64, bool) {
	if p.Longitude == nil || !isFinite(*p.Longitude) {
		return 0, false
	}
	return NormalizeLongitude(*p.Longitude), true
}

// ResolvedSign returns the placement's sign, deriving it from the longitude
// when the generator supplied none.  The boolean is false when neither is
// usable.
func (p PlanetPosition) ResolvedSign() (Sign, bool) {
	if p.Sign.IsValid() {
		return p.Sign, true
	}
	if lon, ok := p.Lon(); ok {
		return SignFromLongitude(lon), true
	}
	return "", false
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// At is a convenience constructor for a placement with a known longitude.
func At(planet Planet, lon float64) PlanetPosition {
	l := lon
	return PlanetPosition{Planet: planet, Sign: SignFromLongitude(lon), Longitude: &l}
}

// Chart is a person's natal chart: an identifier plus one placement per
// planet.  Optional bodies (nodes, Chiron, angles) may be absent.
type Chart struct {
	ID        string           `json:"id"`
	Name      string           `json:"name,omitempty"`
	BirthTime *time.Time       `json:"birthTime,omitempty"`
	Positions []PlanetPosition `json:"positions"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Position looks up a planet's placement.  The boolean is false when the
// planet is absent from the chart.
func (c *Chart) Position(p Planet) (PlanetPosition, bool) {
	if c == nil {
		return PlanetPosition{}, false
	}
	for _, pos := range c.Positions {
		if pos.Planet == p {
			return pos, true
		}
	}
	return PlanetPosition{}, false
}

// Validate rejects charts the service should not store: a missing ID, no
// placements at all, unknown planets, duplicates, unknown signs or a
// non-finite longitude.  Missing longitudes are tolerated.
func (c *Chart) Validate() error {
	if c == nil {
		return errors.New(errors.ErrCodeChartInvalid, "chart is nil")
	}
	if c.ID == "" {
		return errors.New(errors.ErrCodeChartInvalid, "chart id is required")
	}
	if len(c.Positions) == 0 {
		return errors.New(errors.ErrCodeChartInvalid, "chart has no planet positions").WithDetail("id=" + c.ID)
	}
	seen := make(map[Planet]struct{}, len(c.Positions))
	for _, pos := range c.Positions {
		if !pos.Planet.IsValid() {
			return errors.New(errors.ErrCodeChartInvalid, "unknown planet").
				WithDetail(fmt.Sprintf("id=%s planet=%q", c.ID, pos.Planet))
		}
		if _, dup := seen[pos.Planet]; dup {
			return errors.New(errors.ErrCodeChartInvalid, "duplicate planet").
				WithDetail(fmt.Sprintf("id=%s planet=%s", c.ID, pos.Planet))
		}
		seen[pos.Planet] = struct{}{}
		if pos.Longitude != nil && !isFinite(*pos.Longitude) {
			return errors.New(errors.ErrCodeChartInvalid, "longitude is not a finite number").
				WithDetail(fmt.Sprintf("id=%s planet=%s", c.ID, pos.Planet))
		}
		if pos.Sign != "" && !pos.Sign.IsValid() {
			return errors.New(errors.ErrCodeChartInvalid, "unknown sign").
				WithDetail(fmt.Sprintf("id=%s planet=%s sign=%q", c.ID, pos.Planet, pos.Sign))
		}
	}
	return nil
}

// Repository defines the persistence contract for charts.
type Repository interface {
	// Save inserts or replaces the chart with the same ID.
	Save(ctx context.Context, c *Chart) error

	// FindByID returns errors.ErrCodeChartNotFound when no chart exists.
	FindByID(ctx context.Context, id string) (*Chart, error)
}
