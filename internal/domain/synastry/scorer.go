package synastry

import (
	"math"
	"sort"
)

const (
	// DefaultMinorAspectCap is how many minor aspects survive capping.
	DefaultMinorAspectCap = 18

	conjunctionHarmonyFactor = 0.8
	minorNeutralFactor       = 0.3
	challengePenalty         = 0.5
	neutralPenalty           = 0.2
	baselineAspectScore      = 50.0

	aspectBlendWeight   = 0.6
	elementBlendWeight  = 0.25
	modalityBlendWeight = 0.15
)

// ScoreBreakdown is the full trace of one scoring run.
type ScoreBreakdown struct {
	Score            int      `json:"score"`
	AspectScore      float64  `json:"aspectScore"`
	HarmoniousScore  float64  `json:"harmoniousScore"`
	ChallengingScore float64  `json:"challengingScore"`
	NeutralScore     float64  `json:"neutralScore"`
	Bonus            float64  `json:"bonus"`
	ElementOverall   float64  `json:"elementOverall"`
	ModalityOverall  float64  `json:"modalityOverall"`
	Scored           []Aspect `json:"-"`
	DroppedMinor     int      `json:"droppedMinor"`
}

// Scorer turns aspects and balance scores into a 0–100 compatibility score.
type Scorer struct {
	minorCap int
}

// ScorerOption configures a Scorer.
type ScorerOption func(*Scorer)

// WithMinorAspectCap overrides how many minor aspects are kept.  Negative
// values are ignored.
func WithMinorAspectCap(k int) ScorerOption {
	return func(s *Scorer) {
		if k >= 0 {
			s.minorCap = k
		}
	}
}

// NewScorer returns a Scorer using the default cap unless overridden.
func NewScorer(opts ...ScorerOption) *Scorer {
	s := &Scorer{minorCap: DefaultMinorAspectCap}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MinorCap returns the configured minor-aspect cap.
func (s *Scorer) MinorCap() int { return s.minorCap }

// Score computes the compatibility score with the default scorer.
func Score(aspects []Aspect, ec ElementCompatibility, mc ModalityCompatibility) ScoreBreakdown {
	return NewScorer().Score(aspects, ec, mc)
}

// Score computes the weighted compatibility score.
func (s *Scorer) Score(aspects []Aspect, ec ElementCompatibility, mc ModalityCompatibility) ScoreBreakdown {
	scored, dropped := CapMinorAspects(aspects, s.minorCap)

	var harmonious, challenging, neutral float64
	for _, a := range scored {
		w := a.Strength * PairWeight(a.PlanetA, a.PlanetB)
		switch a.Type {
		case Trine, Sextile:
			harmonious += w
		case Conjunction:
			harmonious += w * conjunctionHarmonyFactor
		case Square, Opposition:
			challenging += w
		default:
			neutral += w * minorNeutralFactor
		}
	}

	aspectScore := baselineAspectScore
	total := harmonious + challenging + neutral
	if total > 0 {
		net := harmonious - challengePenalty*challenging - neutralPenalty*neutral
		aspectScore = clamp(baselineAspectScore+baselineAspectScore*(net/total), 0, 100)
	}

	var bonus float64
	for _, a := range scored {
		if a.Type != Conjunction {
			continue
		}
		if pts, ok := ConjunctionBonus(a.PlanetA, a.PlanetB); ok {
			bonus += pts * a.Strength
		}
	}
	aspectScore = math.Min(aspectScore+bonus, 100)

	final := aspectScore*aspectBlendWeight + ec.Overall*elementBlendWeight + mc.Overall*modalityBlendWeight

	return ScoreBreakdown{
		Score:            int(math.Round(clamp(final, 0, 100))),
		AspectScore:      aspectScore,
		HarmoniousScore:  harmonious,
		ChallengingScore: challenging,
		NeutralScore:     neutral,
		Bonus:            bonus,
		ElementOverall:   ec.Overall,
		ModalityOverall:  mc.Overall,
		Scored:           scored,
		DroppedMinor:     dropped,
	}
}

// CapMinorAspects keeps every major aspect and the k strongest minor aspects.
// It returns the kept aspects in canonical strength order and the number of
// minor aspects dropped.  The input slice is not modified.
func CapMinorAspects(aspects []Aspect, k int) ([]Aspect, int) {
	majors := make([]Aspect, 0, len(aspects))
	minors := make([]Aspect, 0, len(aspects))
	for _, a := range aspects {
		if a.Type.IsMajor() {
			majors = append(majors, a)
		} else {
			minors = append(minors, a)
		}
	}
	sort.SliceStable(minors, func(i, j int) bool { return aspectLess(minors[i], minors[j]) })

	dropped := 0
	if len(minors) > k {
		dropped = len(minors) - k
		minors = minors[:k]
	}
	kept := append(majors, minors...)
	SortByStrength(kept)
	return kept, dropped
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
