// Package transit matches a couple's synastry aspects against each person's
// current transits to find which parts of the relationship are active on a
// given day.
package transit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/turtacn/Synastry-Intelligence/internal/domain/chart"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/synastry"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

// Aspect is a transiting planet's aspect to one person's natal planet, as
// supplied by the ephemeris service.
type Aspect struct {
	TransitingPlanet chart.Planet        `json:"transitingPlanet"`
	NatalPlanet      chart.Planet        `json:"natalPlanet"`
	Type             synastry.AspectType `json:"aspectType"`
	Orb              float64             `json:"orbDegrees"`
	Strength         float64             `json:"strength"`
	IsRetrograde     bool                `json:"isRetrograde"`
}

// Validate rejects transits the matcher cannot interpret.
func (a Aspect) Validate() error {
	if !a.TransitingPlanet.IsValid() || !a.NatalPlanet.IsValid() {
		return errors.New(errors.ErrCodeTransitsInvalid, "unknown planet in transit").
			WithDetail(fmt.Sprintf("transiting=%q natal=%q", a.TransitingPlanet, a.NatalPlanet))
	}
	if !a.Type.IsValid() {
		return errors.New(errors.ErrCodeTransitsInvalid, "unknown aspect type in transit").
			WithDetail(fmt.Sprintf("type=%q", a.Type))
	}
	if math.IsNaN(a.Strength) || a.Strength < 0 || a.Strength > 1 {
		return errors.New(errors.ErrCodeTransitsInvalid, "transit strength out of range").
			WithDetail(fmt.Sprintf("strength=%v", a.Strength))
	}
	if math.IsNaN(a.Orb) || math.IsInf(a.Orb, 0) {
		return errors.New(errors.ErrCodeTransitsInvalid, "transit orb is not a finite number").
			WithDetail(fmt.Sprintf("orb=%v", a.Orb))
	}
	return nil
}

// ValidateAll validates every transit in the list.
func ValidateAll(transits []Aspect) error {
	for i, t := range transits {
		if err := t.Validate(); err != nil {
			return errors.Wrapf(err, errors.CodeUnknown, "transit %d", i)
		}
	}
	return nil
}

// TriggeredAspect is a synastry aspect activated by at least one transit.
type TriggeredAspect struct {
	SynastryAspect     synastry.Aspect `json:"synastryAspect"`
	TriggeringTransits []Aspect        `json:"triggeringTransits"`
	Intensity          int             `json:"intensity"`
	Theme              string          `json:"theme"`
	Advice             string          `json:"advice"`
}

// EnergyRating is the overall tone of a day for the couple.
type EnergyRating string

const (
	EnergyHarmonious     EnergyRating = "harmonious"
	EnergyIntense        EnergyRating = "intense"
	EnergyChallenging    EnergyRating = "challenging"
	EnergyTransformative EnergyRating = "transformative"
)

// Activation is the result of one matching pass.
type Activation struct {
	Triggered []TriggeredAspect `json:"triggeredAspects"`
	Energy    EnergyRating      `json:"overallEnergy"`
}

// DailyActivation is an Activation stamped with the pair and day it covers.
type DailyActivation struct {
	ChartAID string    `json:"chartAId"`
	ChartBID string    `json:"chartBId"`
	Date     time.Time `json:"date"`
	Activation
}

// Source supplies each person's transits for a day.  The Redis transit store
// implements it with snapshots pushed by the ephemeris service.
type Source interface {
	TransitsFor(ctx context.Context, chartID string, day time.Time) ([]Aspect, error)
}
