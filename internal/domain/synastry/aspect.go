// Package synastry implements the chart-to-chart compatibility core: aspect
// detection between two charts, element and modality balance, the weighted
// compatibility score, and the narrative strength/challenge lists derived from
// them.  Everything in this package is a pure function of its inputs; the
// lookup tables are read-only after package initialization and safe to share
// across goroutines.
package synastry

import (
	"github.com/turtacn/Synastry-Intelligence/internal/domain/chart"
)

// AspectType names a geometric relationship between two longitudes.
type AspectType string

const (
	Conjunction AspectType = "conjunction"
	Opposition  AspectType = "opposition"
	Trine       AspectType = "trine"
	Square      AspectType = "square"
	Sextile     AspectType = "sextile"
	SemiSextile AspectType = "semi_sextile"
	Quincunx    AspectType = "quincunx"
	Quintile    AspectType = "quintile"
	BiQuintile  AspectType = "bi_quintile"
)

// Category separates the five Ptolemaic aspects from the minor ones.
type Category string

const (
	CategoryMajor Category = "major"
	CategoryMinor Category = "minor"
)

// Polarity is the interpretive tone of an aspect type.
type Polarity string

const (
	Harmonious  Polarity = "harmonious"
	Challenging Polarity = "challenging"
	Neutral     Polarity = "neutral"
)

// AspectDefinition is one row of the aspect table.
type AspectDefinition struct {
	Type     AspectType
	Angle    float64
	MaxOrb   float64
	Category Category
	Polarity Polarity
}

// AspectDefinitions is the fixed aspect table, majors first.  Majors use
// 5–8° orbs and minors 2–3°; no two tolerance windows overlap with these
// values, but detection does not rely on that.
var AspectDefinitions = []AspectDefinition{
	{Type: Conjunction, Angle: 0, MaxOrb: 8, Category: CategoryMajor, Polarity: Harmonious},
	{Type: Opposition, Angle: 180, MaxOrb: 8, Category: CategoryMajor, Polarity: Challenging},
	{Type: Trine, Angle: 120, MaxOrb: 7, Category: CategoryMajor, Polarity: Harmonious},
	{Type: Square, Angle: 90, MaxOrb: 7, Category: CategoryMajor, Polarity: Challenging},
	{Type: Sextile, Angle: 60, MaxOrb: 5, Category: CategoryMajor, Polarity: Harmonious},
	{Type: SemiSextile, Angle: 30, MaxOrb: 2, Category: CategoryMinor, Polarity: Neutral},
	{Type: Quincunx, Angle: 150, MaxOrb: 3, Category: CategoryMinor, Polarity: Neutral},
	{Type: Quintile, Angle: 72, MaxOrb: 2, Category: CategoryMinor, Polarity: Neutral},
	{Type: BiQuintile, Angle: 144, MaxOrb: 2, Category: CategoryMinor, Polarity: Neutral},
}

var definitionsByType = func() map[AspectType]AspectDefinition {
	m := make(map[AspectType]AspectDefinition, len(AspectDefinitions))
	for _, d := range AspectDefinitions {
		m[d.Type] = d
	}
	return m
}()

var aspectOrder = func() map[AspectType]int {
	m := make(map[AspectType]int, len(AspectDefinitions))
	for i, d := range AspectDefinitions {
		m[d.Type] = i
	}
	return m
}()

// Definition returns the table row for t.
func (t AspectType) Definition() (AspectDefinition, bool) {
	d, ok := definitionsByType[t]
	return d, ok
}

// IsValid reports whether t is one of the nine known aspect types.
func (t AspectType) IsValid() bool {
	_, ok := definitionsByType[t]
	return ok
}

// IsMajor reports whether t is one of the five major aspects.
func (t AspectType) IsMajor() bool {
	return definitionsByType[t].Category == CategoryMajor
}

// Polarity returns the tone of t; unknown types are neutral.
func (t AspectType) Polarity() Polarity {
	if d, ok := definitionsByType[t]; ok {
		return d.Polarity
	}
	return Neutral
}

// DisplayName returns the hyphenated label used in narrative text.
func (t AspectType) DisplayName() string {
	switch t {
	case SemiSextile:
		return "semi-sextile"
	case BiQuintile:
		return "bi-quintile"
	}
	return string(t)
}

// Aspect is one detected aspect between planet A of the first chart and
// planet B of the second.  Values are immutable once produced.
type Aspect struct {
	PlanetA      chart.Planet `json:"planetA"`
	PlanetB      chart.Planet `json:"planetB"`
	Type         AspectType   `json:"aspectType"`
	Angle        float64      `json:"angleTarget"`
	Orb          float64      `json:"orbDegrees"`
	Strength     float64      `json:"strength"`
	IsHarmonious bool         `json:"isHarmonious"`
	Category     Category     `json:"category"`
}

// Polarity returns the tone of the aspect's type.
func (a Aspect) Polarity() Polarity {
	return a.Type.Polarity()
}

// Pair returns the normalized planet pair of the aspect.
func (a Aspect) Pair() chart.PlanetPair {
	return chart.NewPlanetPair(a.PlanetA, a.PlanetB)
}
