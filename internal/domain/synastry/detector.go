package synastry

import (
	"math"
	"sort"

	"github.com/turtacn/Synastry-Intelligence/internal/domain/chart"
)

// Separation returns the shortest arc between two longitudes, in [0, 180].
func Separation(lonA, lonB float64) float64 {
	d := math.Abs(chart.NormalizeLongitude(lonA) - chart.NormalizeLongitude(lonB))
	return math.Min(d, 360-d)
}

// StrengthForOrb is the linear strength of an aspect: 1 at an exact hit,
// 0 at the edge of the orb.
func StrengthForOrb(orb, maxOrb float64) float64 {
	if maxOrb <= 0 {
		return 0
	}
	return math.Max(0, 1-orb/maxOrb)
}

// Detect finds every aspect between a planet of chartA and a planet of chartB.
//
// Each (planetA, planetB) pair is tested against every aspect type, so a pair
// whose separation falls in two overlapping windows yields two aspects.
// Planets without a longitude are skipped.  The result is ordered by
// descending strength.
func Detect(chartA, chartB []chart.PlanetPosition) []Aspect {
	return detect(AspectDefinitions, chartA, chartB)
}

func detect(defs []AspectDefinition, chartA, chartB []chart.PlanetPosition) []Aspect {
	aspects := make([]Aspect, 0, len(chartA)*len(chartB)/2)
	for _, pa := range chartA {
		lonA, ok := pa.Lon()
		if !ok {
			continue
		}
		for _, pb := range chartB {
			lonB, ok := pb.Lon()
			if !ok {
				continue
			}
			sep := Separation(lonA, lonB)
			for _, def := range defs {
				orb := math.Abs(sep - def.Angle)
				if orb > def.MaxOrb {
					continue
				}
				aspects = append(aspects, Aspect{
					PlanetA:      pa.Planet,
					PlanetB:      pb.Planet,
					Type:         def.Type,
					Angle:        def.Angle,
					Orb:          orb,
					Strength:     StrengthForOrb(orb, def.MaxOrb),
					IsHarmonious: def.Polarity == Harmonious,
					Category:     def.Category,
				})
			}
		}
	}
	SortByStrength(aspects)
	return aspects
}

// SortByStrength orders aspects by descending strength in place.  Ties are
// broken by the normalized planet pair, then the aspect type, then planet A,
// so the order does not depend on which chart was passed first.
func SortByStrength(aspects []Aspect) {
	sort.SliceStable(aspects, func(i, j int) bool {
		return aspectLess(aspects[i], aspects[j])
	})
}

func aspectLess(a, b Aspect) bool {
	if a.Strength != b.Strength {
		return a.Strength > b.Strength
	}
	pa, pb := a.Pair(), b.Pair()
	if pa.First != pb.First {
		return pa.First.Order() < pb.First.Order()
	}
	if pa.Second != pb.Second {
		return pa.Second.Order() < pb.Second.Order()
	}
	if a.Type != b.Type {
		return aspectOrder[a.Type] < aspectOrder[b.Type]
	}
	return a.PlanetA.Order() < b.PlanetA.Order()
}
