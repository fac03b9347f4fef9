package synastry

import "github.com/turtacn/Synastry-Intelligence/internal/domain/chart"

func pair(a, b chart.Planet) chart.PlanetPair { return chart.NewPlanetPair(a, b) }

// DefaultPairWeight applies to every planet pair not listed in pairWeights.
const DefaultPairWeight = 1.0

// pairWeights ranks planet pairs by how much they matter to a relationship.
// Keys are normalized pairs, so lookups are symmetric.
var pairWeights = map[chart.PlanetPair]float64{
	// Core relationship pairs.
	pair(chart.Sun, chart.Moon):   3.0,
	pair(chart.Venus, chart.Mars): 3.0,

	// Personal planets.
	pair(chart.Sun, chart.Venus):           2.5,
	pair(chart.Moon, chart.Venus):          2.5,
	pair(chart.Sun, chart.Sun):             2.0,
	pair(chart.Moon, chart.Moon):           2.0,
	pair(chart.Venus, chart.Venus):         2.0,
	pair(chart.Sun, chart.Mars):            2.0,
	pair(chart.Moon, chart.Mars):           2.0,
	pair(chart.Mercury, chart.Mercury):     1.8,
	pair(chart.Sun, chart.Mercury):         1.5,
	pair(chart.Moon, chart.Mercury):        1.5,
	pair(chart.Mercury, chart.Venus):       1.3,
	pair(chart.Mars, chart.Mars):           1.5,
	pair(chart.Sun, chart.Ascendant):       1.8,
	pair(chart.Moon, chart.Ascendant):      1.6,
	pair(chart.Venus, chart.Ascendant):     1.6,
	pair(chart.Ascendant, chart.Ascendant): 1.4,

	// Social and outer planets touching personal planets.
	pair(chart.Sun, chart.Saturn):     1.8,
	pair(chart.Moon, chart.Saturn):    1.8,
	pair(chart.Venus, chart.Saturn):   1.8,
	pair(chart.Mars, chart.Saturn):    1.3,
	pair(chart.Sun, chart.Jupiter):    1.4,
	pair(chart.Moon, chart.Jupiter):   1.4,
	pair(chart.Venus, chart.Jupiter):  1.4,
	pair(chart.Venus, chart.Pluto):    1.6,
	pair(chart.Mars, chart.Pluto):     1.6,
	pair(chart.Moon, chart.Pluto):     1.6,
	pair(chart.Sun, chart.Pluto):      1.5,
	pair(chart.Venus, chart.Uranus):   1.5,
	pair(chart.Moon, chart.Uranus):    1.5,
	pair(chart.Venus, chart.Neptune):  1.5,
	pair(chart.Moon, chart.Neptune):   1.5,
	pair(chart.Sun, chart.NorthNode):  1.4,
	pair(chart.Moon, chart.NorthNode): 1.4,
}

// PairWeight returns the importance weight of a planet pair, or
// DefaultPairWeight when the pair is not listed.
func PairWeight(a, b chart.Planet) float64 {
	if w, ok := pairWeights[pair(a, b)]; ok {
		return w
	}
	return DefaultPairWeight
}

// conjunctionBonuses lists conjunctions that earn points beyond the linear
// harmony ratio.  Pairs not listed earn nothing.
var conjunctionBonuses = map[chart.PlanetPair]float64{
	pair(chart.Sun, chart.Moon):        15,
	pair(chart.Venus, chart.Mars):      12,
	pair(chart.Sun, chart.Venus):       10,
	pair(chart.Moon, chart.Venus):      8,
	pair(chart.Sun, chart.Sun):         8,
	pair(chart.Moon, chart.Moon):       8,
	pair(chart.Sun, chart.Mars):        6,
	pair(chart.Moon, chart.Mars):       6,
	pair(chart.Venus, chart.Venus):     6,
	pair(chart.Sun, chart.NorthNode):   5,
	pair(chart.Moon, chart.NorthNode):  5,
	pair(chart.Venus, chart.NorthNode): 5,
}

// ConjunctionBonus returns the bonus points for a conjunction between a and b.
// The boolean is false when the pair earns no bonus.
func ConjunctionBonus(a, b chart.Planet) (float64, bool) {
	v, ok := conjunctionBonuses[pair(a, b)]
	return v, ok
}
