// Package chart provides the natal chart model consumed by the synastry core:
// planet and sign identifiers, the fixed element/modality lookup tables, and
// the Chart aggregate that carries each planet's ecliptic longitude.
package chart

import "strings"

// Planet identifies a body or sensitive point in a natal chart.
type Planet string

const (
	Sun       Planet = "sun"
	Moon      Planet = "moon"
	Mercury   Planet = "mercury"
	Venus     Planet = "venus"
	Mars      Planet = "mars"
	Jupiter   Planet = "jupiter"
	Saturn    Planet = "saturn"
	Uranus    Planet = "uranus"
	Neptune   Planet = "neptune"
	Pluto     Planet = "pluto"
	NorthNode Planet = "north_node"
	Chiron    Planet = "chiron"
	Ascendant Planet = "ascendant"
	Midheaven Planet = "midheaven"
)

// PlanetClass groups planets by how quickly they move and how personally they
// are interpreted.
type PlanetClass string

const (
	ClassPersonal PlanetClass = "personal"
	ClassSocial   PlanetClass = "social"
	ClassOuter    PlanetClass = "outer"
	ClassPoint    PlanetClass = "point"
)

// AllPlanets lists every known planet in canonical chart order.  The order is
// used for deterministic tie-breaking and for normalizing planet pairs.
var AllPlanets = []Planet{
	Sun, Moon, Mercury, Venus, Mars,
	Jupiter, Saturn,
	Uranus, Neptune, Pluto,
	NorthNode, Chiron, Ascendant, Midheaven,
}

var planetOrder = func() map[Planet]int {
	m := make(map[Planet]int, len(AllPlanets))
	for i, p := range AllPlanets {
		m[p] = i
	}
	return m
}()

var planetClasses = map[Planet]PlanetClass{
	Sun:       ClassPersonal,
	Moon:      ClassPersonal,
	Mercury:   ClassPersonal,
	Venus:     ClassPersonal,
	Mars:      ClassPersonal,
	Jupiter:   ClassSocial,
	Saturn:    ClassSocial,
	Uranus:    ClassOuter,
	Neptune:   ClassOuter,
	Pluto:     ClassOuter,
	NorthNode: ClassPoint,
	Chiron:    ClassPoint,
	Ascendant: ClassPoint,
	Midheaven: ClassPoint,
}

// ParsePlanet converts a case-insensitive name into a Planet.
func ParsePlanet(s string) (Planet, bool) {
	p := Planet(strings.ToLower(strings.TrimSpace(s)))
	_, ok := planetOrder[p]
	return p, ok
}

// IsValid reports whether p is a known planet.
func (p Planet) IsValid() bool {
	_, ok := planetOrder[p]
	return ok
}

// Class returns the planet's class.  Unknown planets are reported as points.
func (p Planet) Class() PlanetClass {
	if c, ok := planetClasses[p]; ok {
		return c
	}
	return ClassPoint
}

// Order returns the canonical chart index of p, or len(AllPlanets) for an
// unknown planet so that unknown values sort last.
func (p Planet) Order() int {
	if i, ok := planetOrder[p]; ok {
		return i
	}
	return len(AllPlanets)
}

// DisplayName returns the capitalized name used in human-readable output.
func (p Planet) DisplayName() string {
	switch p {
	case NorthNode:
		return "North Node"
	case "":
		return ""
	}
	s := string(p)
	return strings.ToUpper(s[:1]) + s[1:]
}

// PlanetPair is an order-independent pair of planets.  It is the key used by
// every symmetric lookup table (pair weights, conjunction bonuses, advice).
type PlanetPair struct {
	First  Planet
	Second Planet
}

// NewPlanetPair returns the normalized pair for a and b: the planet earlier in
// canonical chart order is always First.
func NewPlanetPair(a, b Planet) PlanetPair {
	if a.Order() > b.Order() || (a.Order() == b.Order() && a > b) {
		a, b = b, a
	}
	return PlanetPair{First: a, Second: b}
}

// String renders the pair as "Sun-Moon".
func (pp PlanetPair) String() string {
	return pp.First.DisplayName() + "-" + pp.Second.DisplayName()
}
