package synastry

import (
	"math"

	"github.com/turtacn/Synastry-Intelligence/internal/domain/chart"
)

// BalanceLevel is the qualitative band of a 0–100 balance score.
type BalanceLevel string

const (
	LevelExcellent       BalanceLevel = "excellent"
	LevelGood            BalanceLevel = "good"
	LevelModerate        BalanceLevel = "moderate"
	LevelNeedsCompromise BalanceLevel = "needs_compromise"
)

// LevelFor bands a score: ≥80 excellent, ≥60 good, ≥40 moderate.
func LevelFor(score float64) BalanceLevel {
	switch {
	case score >= 80:
		return LevelExcellent
	case score >= 60:
		return LevelGood
	case score >= 40:
		return LevelModerate
	default:
		return LevelNeedsCompromise
	}
}

// BucketScore is the balance of one element or modality between two charts.
type BucketScore struct {
	CountA      int          `json:"countA"`
	CountB      int          `json:"countB"`
	Score       float64      `json:"score"`
	Description BalanceLevel `json:"description"`
}

// ElementCompatibility is the element balance between two charts.
type ElementCompatibility struct {
	Buckets     map[chart.Element]BucketScore `json:"perBucketScore"`
	Overall     float64                       `json:"overall"`
	Description BalanceLevel                  `json:"description"`
}

// ModalityCompatibility is the modality balance between two charts.
type ModalityCompatibility struct {
	Buckets     map[chart.Modality]BucketScore `json:"perBucketScore"`
	Overall     float64                        `json:"overall"`
	Description BalanceLevel                   `json:"description"`
}

// BalanceScore compares two bucket counts on a 0–100 scale.
//
// Two empty buckets count as perfectly balanced (100) rather than undefined.
func BalanceScore(countA, countB int) float64 {
	hi := countA
	if countB > hi {
		hi = countB
	}
	if hi == 0 {
		return 100
	}
	diff := math.Abs(float64(countA - countB))
	return (1 - diff/float64(hi)) * 100
}

func newBucket(a, b int) BucketScore {
	s := BalanceScore(a, b)
	return BucketScore{CountA: a, CountB: b, Score: s, Description: LevelFor(s)}
}

// AnalyzeBalance scores the element and modality distributions of two charts.
// Placements whose sign cannot be resolved are left out of the counts.
func AnalyzeBalance(chartA, chartB []chart.PlanetPosition) (ElementCompatibility, ModalityCompatibility) {
	elemA, modA := countBuckets(chartA)
	elemB, modB := countBuckets(chartB)

	ec := ElementCompatibility{Buckets: make(map[chart.Element]BucketScore, len(chart.Elements))}
	for _, e := range chart.Elements {
		ec.Buckets[e] = newBucket(elemA[e], elemB[e])
	}
	// Fire feeds air and earth holds water: each complementary pair is
	// averaged first, then the two pairs.
	fireAir := (ec.Buckets[chart.Fire].Score + ec.Buckets[chart.Air].Score) / 2
	earthWater := (ec.Buckets[chart.Earth].Score + ec.Buckets[chart.Water].Score) / 2
	ec.Overall = (fireAir + earthWater) / 2
	ec.Description = LevelFor(ec.Overall)

	mc := ModalityCompatibility{Buckets: make(map[chart.Modality]BucketScore, len(chart.Modalities))}
	var sum float64
	for _, m := range chart.Modalities {
		b := newBucket(modA[m], modB[m])
		mc.Buckets[m] = b
		sum += b.Score
	}
	mc.Overall = sum / float64(len(chart.Modalities))
	mc.Description = LevelFor(mc.Overall)

	return ec, mc
}

func countBuckets(positions []chart.PlanetPosition) (map[chart.Element]int, map[chart.Modality]int) {
	elements := make(map[chart.Element]int, len(chart.Elements))
	modalities := make(map[chart.Modality]int, len(chart.Modalities))
	for _, p := range positions {
		sign, ok := p.ResolvedSign()
		if !ok {
			continue
		}
		if e, ok := chart.ElementOf(sign); ok {
			elements[e]++
		}
		if m, ok := chart.ModalityOf(sign); ok {
			modalities[m]++
		}
	}
	return elements, modalities
}
