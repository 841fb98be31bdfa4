package isochrone

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Area returns the geodesic area of g in unit squared
func Area(g orb.Geometry, unit Unit) float64 {
	m := unit.Metres()
	return math.Abs(geo.Area(g)) / (m * m)
}

// MaxRadius converts a threshold to metres. Time thresholds assume the
// profile's top speed in km/h.
func MaxRadius(threshold float64, rangeType RangeType, maxSpeed float64) float64 {
	if rangeType == RangeDistance {
		return threshold
	}
	return threshold * (maxSpeed / 3.6)
}

// ReachFactor compares the reached area with a circle of radius maxRadius.
// Both arguments are in metres; the result is rounded to four decimals and
// never exceeds 1.
func ReachFactor(areaSqMetres, maxRadius float64) float64 {
	if maxRadius <= 0 {
		return 0
	}
	rf := areaSqMetres / (math.Pi * maxRadius * maxRadius)
	if rf > 1 {
		rf = 1
	}
	return math.Round(rf*10000) / 10000
}

// ApplyAttributes fills the requested area and reach factor of iso
func ApplyAttributes(iso *Isochrone, attrs []Attribute, unit Unit) {
	for _, a := range attrs {
		switch a {
		case AttrArea:
			v := Area(iso.Geometry, unit)
			iso.Area = &v
		case AttrReachFactor:
			v := ReachFactor(Area(iso.Geometry, UnitMeters), iso.MaxRadius)
			iso.ReachFactor = &v
		}
	}
}

func hasAttribute(attrs []Attribute, want Attribute) bool {
	for _, a := range attrs {
		if a == want {
			return true
		}
	}
	return false
}
