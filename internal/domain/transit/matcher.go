package transit

import (
	"fmt"
	"math"
	"sort"

	"github.com/turtacn/Synastry-Intelligence/internal/domain/synastry"
)

// energyTieBreak lists ratings from most to least dominant when votes tie.
var energyTieBreak = []EnergyRating{
	EnergyChallenging,
	EnergyIntense,
	EnergyTransformative,
	EnergyHarmonious,
}

// Match finds the synastry aspects activated by either person's transits.
//
// A transit from person A activates an aspect when its natal planet is the
// aspect's planet A; likewise for person B and planet B.  Either side is
// enough, and matches from both sides are pooled.  When either transit list
// is empty the day is reported as quiet: no triggered aspects and a
// harmonious rating.
func Match(aspects []synastry.Aspect, transitsA, transitsB []Aspect) Activation {
	if len(transitsA) == 0 || len(transitsB) == 0 {
		return Activation{Triggered: []TriggeredAspect{}, Energy: EnergyHarmonious}
	}

	triggered := make([]TriggeredAspect, 0)
	for _, sa := range aspects {
		var hits []Aspect
		for _, t := range transitsA {
			if t.NatalPlanet == sa.PlanetA {
				hits = append(hits, t)
			}
		}
		for _, t := range transitsB {
			if t.NatalPlanet == sa.PlanetB {
				hits = append(hits, t)
			}
		}
		if len(hits) == 0 {
			continue
		}
		triggered = append(triggered, TriggeredAspect{
			SynastryAspect:     sa,
			TriggeringTransits: hits,
			Intensity:          Intensity(sa, hits),
			Theme:              Theme(sa, hits),
			Advice:             Advice(sa),
		})
	}

	sort.SliceStable(triggered, func(i, j int) bool {
		return triggered[i].Intensity > triggered[j].Intensity
	})

	return Activation{Triggered: triggered, Energy: RateEnergy(triggered)}
}

// Intensity is the aspect strength times the mean transit strength, on a
// 0–100 scale.  Unvalidated NaN strengths count as zero intensity.
func Intensity(sa synastry.Aspect, hits []Aspect) int {
	if len(hits) == 0 {
		return 0
	}
	var sum float64
	for _, t := range hits {
		sum += t.Strength
	}
	v := math.Round(sa.Strength * (sum / float64(len(hits))) * 100)
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Max(0, math.Min(100, v)))
}

// Theme builds a short label such as
// "love, affection merging with desire, drive, activated by transiting Jupiter".
func Theme(sa synastry.Aspect, hits []Aspect) string {
	theme := fmt.Sprintf("%s %s %s", Keywords(sa.PlanetA), descriptor(sa.Type), Keywords(sa.PlanetB))
	if p, ok := primaryTransit(hits); ok {
		theme += ", activated by transiting " + p.TransitingPlanet.DisplayName()
	}
	return theme
}

// primaryTransit is the strongest hit; the earliest wins ties.
func primaryTransit(hits []Aspect) (Aspect, bool) {
	if len(hits) == 0 {
		return Aspect{}, false
	}
	best := hits[0]
	for _, t := range hits[1:] {
		if t.Strength > best.Strength {
			best = t
		}
	}
	return best, true
}

// EnergyOf classifies a single synastry aspect for the daily vote.
func EnergyOf(t synastry.AspectType) EnergyRating {
	if t == synastry.Conjunction {
		return EnergyIntense
	}
	switch t.Polarity() {
	case synastry.Harmonious:
		return EnergyHarmonious
	case synastry.Challenging:
		return EnergyChallenging
	default:
		return EnergyTransformative
	}
}

// RateEnergy takes a majority vote over the triggered aspects.  Ties go to
// the rating listed first in energyTieBreak; no votes at all is harmonious.
func RateEnergy(triggered []TriggeredAspect) EnergyRating {
	votes := make(map[EnergyRating]int, len(energyTieBreak))
	for _, ta := range triggered {
		votes[EnergyOf(ta.SynastryAspect.Type)]++
	}

	winner, best := EnergyHarmonious, 0
	for _, r := range energyTieBreak {
		if votes[r] > best {
			winner, best = r, votes[r]
		}
	}
	return winner
}
