package synastry

import "fmt"

const (
	insightStrengthThreshold = 0.7
	maxAspectInsights        = 3

	elementStrengthThreshold  = 70.0
	elementChallengeThreshold = 40.0
	modalityStrengthThreshold = 70.0
)

// Insights are the human-checkable lists derived from a scoring run.
type Insights struct {
	Strengths       []string `json:"strengths"`
	Challenges      []string `json:"challenges"`
	Recommendations []string `json:"recommendations"`
}

// genericRecommendations are appended to every result.
var genericRecommendations = [2]string{
	"Keep communication open and check in regularly about each other's needs.",
	"Celebrate what comes easily between you while working consciously on the areas that need growth.",
}

// ExtractInsights selects and formats strengths, challenges and
// recommendations.  Aspects are consulted in the order given, which for
// Detect output is strongest first.
func ExtractInsights(aspects []Aspect, ec ElementCompatibility, mc ModalityCompatibility) Insights {
	in := Insights{
		Strengths:       []string{},
		Challenges:      []string{},
		Recommendations: []string{},
	}

	for _, a := range aspects {
		if a.Strength <= insightStrengthThreshold {
			continue
		}
		switch a.Polarity() {
		case Harmonious:
			if len(in.Strengths) < maxAspectInsights {
				in.Strengths = append(in.Strengths, describeAspect(a, "brings natural ease and mutual support"))
			}
		case Challenging:
			if len(in.Challenges) < maxAspectInsights {
				in.Challenges = append(in.Challenges, describeAspect(a, "creates friction that asks for patience"))
			}
		}
	}

	switch {
	case ec.Overall > elementStrengthThreshold:
		in.Strengths = append(in.Strengths,
			"Your elemental temperaments complement each other, so daily rhythms tend to feel natural.")
	case ec.Overall < elementChallengeThreshold:
		in.Challenges = append(in.Challenges,
			"Your elemental temperaments differ sharply, which can lead to misunderstandings about pace and feeling.")
		in.Recommendations = append(in.Recommendations,
			"Make room for each other's different pace and ways of expressing emotion instead of expecting a mirror.")
	}

	if mc.Overall > modalityStrengthThreshold {
		in.Strengths = append(in.Strengths,
			"You approach change and initiative in compatible ways, which helps you move in the same direction.")
	}

	in.Recommendations = append(in.Recommendations, genericRecommendations[:]...)
	return in
}

func describeAspect(a Aspect, meaning string) string {
	return fmt.Sprintf("%s %s %s (%.0f%% strength) %s.",
		a.PlanetA.DisplayName(), a.Type.DisplayName(), a.PlanetB.DisplayName(), a.Strength*100, meaning)
}
