package synastry

import (
	"context"
	"time"

	"github.com/turtacn/Synastry-Intelligence/internal/domain/chart"
	"github.com/turtacn/Synastry-Intelligence/pkg/errors"
)

// Result is the output of the scoring pipeline.  Its JSON shape is the wire
// contract with storage and prose-generation consumers.
type Result struct {
	ChartAID              string                `json:"chartAId,omitempty"`
	ChartBID              string                `json:"chartBId,omitempty"`
	Score                 int                   `json:"score"`
	Aspects               []Aspect              `json:"aspects"`
	ElementCompatibility  ElementCompatibility  `json:"elementCompatibility"`
	ModalityCompatibility ModalityCompatibility `json:"modalityCompatibility"`
	Strengths             []string              `json:"strengths"`
	Challenges            []string              `json:"challenges"`
	Recommendations       []string              `json:"recommendations"`
	Breakdown             ScoreBreakdown        `json:"breakdown"`
	CalculatedAt          time.Time             `json:"calculatedAt,omitempty"`
}

// PairKey returns the order-independent storage key of the two chart IDs.
// IDs compare byte-wise, so "Bob" sorts before "alice".
func PairKey(chartAID, chartBID string) (string, string) {
	if chartBID < chartAID {
		return chartBID, chartAID
	}
	return chartAID, chartBID
}

// Calculate runs the full pipeline: detect aspects, analyze balance, score
// and extract insights.  Both charts are required; everything below that is
// best effort, so missing planets or longitudes only shrink the aspect set.
//
// CalculatedAt is left zero; stamping is the caller's concern so that
// identical inputs produce identical results.
func Calculate(a, b *chart.Chart, opts ...ScorerOption) (*Result, error) {
	if a == nil || b == nil {
		return nil, errors.New(errors.ErrCodeChartsRequired, "both charts required")
	}

	aspects := Detect(a.Positions, b.Positions)
	ec, mc := AnalyzeBalance(a.Positions, b.Positions)
	breakdown := NewScorer(opts...).Score(aspects, ec, mc)
	insights := ExtractInsights(aspects, ec, mc)

	return &Result{
		ChartAID:              a.ID,
		ChartBID:              b.ID,
		Score:                 breakdown.Score,
		Aspects:               aspects,
		ElementCompatibility:  ec,
		ModalityCompatibility: mc,
		Strengths:             insights.Strengths,
		Challenges:            insights.Challenges,
		Recommendations:       insights.Recommendations,
		Breakdown:             breakdown,
	}, nil
}

// Repository persists results keyed by the unordered chart pair.
type Repository interface {
	// Upsert stores r, replacing any result for the same pair.
	Upsert(ctx context.Context, r *Result) error

	// FindByPair returns errors.ErrCodeResultNotFound when nothing is stored.
	// Argument order does not matter.
	FindByPair(ctx context.Context, chartAID, chartBID string) (*Result, error)

	// Partners lists the IDs of every chart with a stored result against
	// chartID.
	Partners(ctx context.Context, chartID string) ([]string, error)
}
