package synastry

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Synastry-Intelligence/internal/domain/chart"
)

var (
	perfectElements   = ElementCompatibility{Overall: 100}
	perfectModalities = ModalityCompatibility{Overall: 100}
)

func aspect(a, b chart.Planet, t AspectType, strength float64) Aspect {
	def, _ := t.Definition()
	return Aspect{
		PlanetA:      a,
		PlanetB:      b,
		Type:         t,
		Angle:        def.Angle,
		Orb:          (1 - strength) * def.MaxOrb,
		Strength:     strength,
		IsHarmonious: def.Polarity == Harmonious,
		Category:     def.Category,
	}
}

func TestPairWeight_SymmetricWithDefault(t *testing.T) {
	assert.Equal(t, 3.0, PairWeight(chart.Sun, chart.Moon))
	assert.Equal(t, 3.0, PairWeight(chart.Moon, chart.Sun))
	assert.Equal(t, 3.0, PairWeight(chart.Mars, chart.Venus))
	assert.Equal(t, 1.6, PairWeight(chart.Pluto, chart.Venus))
	assert.Equal(t, DefaultPairWeight, PairWeight(chart.Uranus, chart.Neptune))
}

func TestConjunctionBonus(t *testing.T) {
	pts, ok := ConjunctionBonus(chart.Moon, chart.Sun)
	assert.True(t, ok)
	assert.Equal(t, 15.0, pts)

	_, ok = ConjunctionBonus(chart.Saturn, chart.Pluto)
	assert.False(t, ok)
}

func TestScore_NoAspectsIsBaseline(t *testing.T) {
	got := Score(nil, perfectElements, perfectModalities)
	assert.Equal(t, 50.0, got.AspectScore)
	// 50*0.6 + 100*0.25 + 100*0.15
	assert.Equal(t, 70, got.Score)
}

func TestScore_PolarityBuckets(t *testing.T) {
	aspects := []Aspect{
		aspect(chart.Jupiter, chart.Uranus, Trine, 1.0),
		aspect(chart.Jupiter, chart.Uranus, Conjunction, 1.0),
		aspect(chart.Saturn, chart.Neptune, Square, 0.5),
		aspect(chart.Mercury, chart.Pluto, Quintile, 1.0),
	}
	got := Score(aspects, perfectElements, perfectModalities)

	assert.InDelta(t, 1.8, got.HarmoniousScore, 1e-9)
	assert.InDelta(t, 0.5, got.ChallengingScore, 1e-9)
	assert.InDelta(t, 0.3, got.NeutralScore, 1e-9)

	net := 1.8 - 0.25 - 0.06
	total := 1.8 + 0.5 + 0.3
	assert.InDelta(t, 50+50*net/total, got.AspectScore, 1e-9)
	assert.Zero(t, got.Bonus)
}

func TestScore_PairWeightApplied(t *testing.T) {
	weighted := Score([]Aspect{
		aspect(chart.Sun, chart.Moon, Trine, 0.5),
		aspect(chart.Uranus, chart.Neptune, Square, 0.5),
	}, perfectElements, perfectModalities)

	assert.InDelta(t, 1.5, weighted.HarmoniousScore, 1e-9)
	assert.InDelta(t, 0.5, weighted.ChallengingScore, 1e-9)
}

func TestScore_ScenarioExactSunMoonConjunction(t *testing.T) {
	a := &chart.Chart{ID: "a", Positions: positions(chart.At(chart.Sun, 10))}
	b := &chart.Chart{ID: "b", Positions: positions(chart.At(chart.Moon, 10))}

	res, err := Calculate(a, b)
	require.NoError(t, err)

	require.Len(t, res.Aspects, 1)
	assert.Equal(t, Conjunction, res.Aspects[0].Type)
	assert.Equal(t, 1.0, res.Aspects[0].Strength)
	assert.InDelta(t, 15.0, res.Breakdown.Bonus, 1e-9)
	assert.Greater(t, res.Score, 80)
}

func TestScore_ScenarioWeakChallengesOnly(t *testing.T) {
	// Square at orb 6.65 of 7 and opposition at orb 7.6 of 8: strength 0.05.
	a := &chart.Chart{ID: "a", Positions: positions(chart.At(chart.Sun, 0))}
	b := &chart.Chart{ID: "b", Positions: positions(chart.At(chart.Moon, 96.65), chart.At(chart.Mars, 187.6))}

	res, err := Calculate(a, b)
	require.NoError(t, err)

	require.Len(t, res.Aspects, 2)
	for _, asp := range res.Aspects {
		assert.False(t, asp.IsHarmonious)
		assert.InDelta(t, 0.05, asp.Strength, 1e-6)
	}
	assert.InDelta(t, 25.0, res.Breakdown.AspectScore, 1e-9)
	assert.LessOrEqual(t, res.Score, 50)
}

func TestScore_BonusClampedAt100(t *testing.T) {
	aspects := []Aspect{
		aspect(chart.Sun, chart.Moon, Conjunction, 1.0),
		aspect(chart.Venus, chart.Mars, Conjunction, 1.0),
		aspect(chart.Sun, chart.Venus, Conjunction, 1.0),
	}
	got := Score(aspects, perfectElements, perfectModalities)

	assert.InDelta(t, 37.0, got.Bonus, 1e-9)
	assert.Equal(t, 100.0, got.AspectScore)
	assert.Equal(t, 100, got.Score)
}

func TestScore_BonusOnlyForConjunctions(t *testing.T) {
	got := Score([]Aspect{aspect(chart.Sun, chart.Moon, Trine, 1.0)}, perfectElements, perfectModalities)
	assert.Zero(t, got.Bonus)
}

func TestScore_FinalBlend(t *testing.T) {
	ec := ElementCompatibility{Overall: 40}
	mc := ModalityCompatibility{Overall: 20}
	got := Score([]Aspect{aspect(chart.Saturn, chart.Uranus, Square, 1.0)}, ec, mc)

	// aspect 25 -> 15 + 10 + 3
	assert.Equal(t, 28, got.Score)
}

func TestCapMinorAspects(t *testing.T) {
	var aspects []Aspect
	for i := 0; i < 25; i++ {
		aspects = append(aspects, aspect(chart.Mercury, chart.Jupiter, Quintile, float64(i+1)/25))
	}
	for i := 0; i < 4; i++ {
		aspects = append(aspects, aspect(chart.Saturn, chart.Pluto, Square, 0.01))
	}

	kept, dropped := CapMinorAspects(aspects, DefaultMinorAspectCap)

	assert.Equal(t, 7, dropped)
	minors, majors := 0, 0
	for _, a := range kept {
		if a.Type.IsMajor() {
			majors++
			continue
		}
		minors++
		assert.Greater(t, a.Strength, 7.0/25-1e-9)
	}
	assert.Equal(t, 18, minors)
	assert.Equal(t, 4, majors)
	assert.Len(t, aspects, 29, "input must not be modified")
}

func TestCapMinorAspects_UnderCapKeepsAll(t *testing.T) {
	aspects := []Aspect{
		aspect(chart.Sun, chart.Moon, Quincunx, 0.4),
		aspect(chart.Sun, chart.Moon, Trine, 0.9),
	}
	kept, dropped := CapMinorAspects(aspects, DefaultMinorAspectCap)
	assert.Zero(t, dropped)
	require.Len(t, kept, 2)
	assert.Equal(t, Trine, kept[0].Type)
}

func TestScorer_WithMinorAspectCap(t *testing.T) {
	s := NewScorer(WithMinorAspectCap(2))
	assert.Equal(t, 2, s.MinorCap())

	s = NewScorer(WithMinorAspectCap(-1))
	assert.Equal(t, DefaultMinorAspectCap, s.MinorCap())

	aspects := []Aspect{
		aspect(chart.Sun, chart.Moon, Quintile, 0.9),
		aspect(chart.Sun, chart.Venus, Quintile, 0.8),
		aspect(chart.Sun, chart.Mars, Quintile, 0.7),
	}
	got := NewScorer(WithMinorAspectCap(2)).Score(aspects, perfectElements, perfectModalities)
	assert.Equal(t, 1, got.DroppedMinor)
	assert.Len(t, got.Scored, 2)
}

func randomChart(r *rand.Rand, id string) *chart.Chart {
	c := &chart.Chart{ID: id}
	for _, p := range chart.AllPlanets[:12] {
		c.Positions = append(c.Positions, chart.At(p, r.Float64()*360))
	}
	return c
}

func TestCalculate_BoundsDeterminismAndSymmetry(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		a := randomChart(r, fmt.Sprintf("a%d", i))
		b := randomChart(r, fmt.Sprintf("b%d", i))

		first, err := Calculate(a, b)
		require.NoError(t, err)
		second, err := Calculate(a, b)
		require.NoError(t, err)
		swapped, err := Calculate(b, a)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, first.Score, 0)
		assert.LessOrEqual(t, first.Score, 100)
		assert.Equal(t, first, second)
		assert.Equal(t, first.Score, swapped.Score, "iteration %d", i)
	}
}
