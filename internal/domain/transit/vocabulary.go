package transit

import (
	"github.com/turtacn/Synastry-Intelligence/internal/domain/chart"
	"github.com/turtacn/Synastry-Intelligence/internal/domain/synastry"
)

// defaultKeywords is used for planets without an archetype entry.
const defaultKeywords = "connection"

var planetKeywords = map[chart.Planet]string{
	chart.Sun:       "identity, vitality",
	chart.Moon:      "emotions, security",
	chart.Mercury:   "communication, ideas",
	chart.Venus:     "love, affection",
	chart.Mars:      "desire, drive",
	chart.Jupiter:   "growth, generosity",
	chart.Saturn:    "structure, commitment",
	chart.Uranus:    "freedom, surprise",
	chart.Neptune:   "dreams, idealism",
	chart.Pluto:     "intimacy, transformation",
	chart.NorthNode: "shared purpose",
	chart.Chiron:    "healing, vulnerability",
	chart.Ascendant: "presence, first impressions",
	chart.Midheaven: "direction, public life",
}

// Keywords returns the archetype keywords of p, or defaultKeywords.
func Keywords(p chart.Planet) string {
	if k, ok := planetKeywords[p]; ok {
		return k
	}
	return defaultKeywords
}

// descriptor is the verb phrase joining the two planets' keywords in a theme.
func descriptor(t synastry.AspectType) string {
	if t == synastry.Conjunction {
		return "merging with"
	}
	switch t.Polarity() {
	case synastry.Harmonious:
		return "flowing harmoniously with"
	case synastry.Challenging:
		return "creating tension with"
	default:
		return "subtly adjusting to"
	}
}

type adviceKey struct {
	pair     chart.PlanetPair
	polarity synastry.Polarity
}

func key(a, b chart.Planet, p synastry.Polarity) adviceKey {
	return adviceKey{pair: chart.NewPlanetPair(a, b), polarity: p}
}

// adviceRules covers the pairs that matter most day to day.  Lookups fall
// back to fallbackAdvice by polarity.
var adviceRules = map[adviceKey]string{
	key(chart.Sun, chart.Moon, synastry.Harmonious):         "A natural day to plan together; your goals and needs line up easily.",
	key(chart.Sun, chart.Moon, synastry.Challenging):        "Let each other lead in turn; what one wants and the other needs may pull apart today.",
	key(chart.Venus, chart.Mars, synastry.Harmonious):       "Make time for romance and play; attraction runs high and easy.",
	key(chart.Venus, chart.Mars, synastry.Challenging):      "Channel restless passion into a shared activity rather than a quarrel.",
	key(chart.Moon, chart.Moon, synastry.Harmonious):        "Share something comforting; emotional rhythms are in sync.",
	key(chart.Moon, chart.Moon, synastry.Challenging):       "Moods may not match; ask before assuming how the other feels.",
	key(chart.Mercury, chart.Mercury, synastry.Harmonious):  "Good day for the conversation you have been postponing.",
	key(chart.Mercury, chart.Mercury, synastry.Challenging): "Slow down and repeat back what you heard before reacting.",
	key(chart.Sun, chart.Venus, synastry.Harmonious):        "Show appreciation openly; affection is easily received today.",
	key(chart.Moon, chart.Venus, synastry.Harmonious):       "Tenderness comes easily; small gestures land deeply.",
	key(chart.Venus, chart.Saturn, synastry.Harmonious):     "A good day to talk about long-term commitments.",
	key(chart.Venus, chart.Saturn, synastry.Challenging):    "Affection may feel rationed; be explicit about reassurance.",
	key(chart.Sun, chart.Saturn, synastry.Challenging):      "Criticism may sting more than intended; lead with respect.",
	key(chart.Moon, chart.Saturn, synastry.Challenging):     "Emotional distance is temporary; offer steady presence over words.",
	key(chart.Venus, chart.Pluto, synastry.Challenging):     "Intensity is high; name jealousy or control before it acts on you.",
	key(chart.Mars, chart.Pluto, synastry.Challenging):      "Power struggles are likely; pick collaboration over winning.",
	key(chart.Mars, chart.Mars, synastry.Challenging):       "Energy runs hot; move your bodies before you discuss anything heated.",
	key(chart.Venus, chart.Uranus, synastry.Harmonious):     "Try something new together; novelty refreshes the bond.",
	key(chart.Venus, chart.Neptune, synastry.Harmonious):    "Creative or spiritual time together is especially rewarding.",
	key(chart.Venus, chart.Neptune, synastry.Challenging):   "Check expectations against reality; avoid idealizing or assuming.",
}

var fallbackAdvice = map[synastry.Polarity]string{
	synastry.Harmonious:  "Lean into the ease between you today and enjoy shared time.",
	synastry.Challenging: "Expect some friction; patience and clear words will carry you through.",
	synastry.Neutral:     "Subtle adjustments are called for; stay curious about each other's reactions.",
}

// Advice returns the rule-table advice for a synastry aspect, or the generic
// advice for its polarity when the pair is not covered.
func Advice(a synastry.Aspect) string {
	if s, ok := adviceRules[key(a.PlanetA, a.PlanetB, a.Polarity())]; ok {
		return s
	}
	return fallbackAdvice[a.Polarity()]
}
