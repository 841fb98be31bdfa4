package isochrone

import (
	"context"

	"github.com/paulmach/orb"
)

// Profile is the travel metadata the pipeline needs from a routing profile
type Profile struct {
	Name string
	// Speed is the typical travel speed in km/h
	Speed float64
	// MaxSpeed is the highest speed in km/h, used to convert time to distance
	MaxSpeed float64
}

// SearchRequest asks for the shortest-path tree around one location
type SearchRequest struct {
	Location  orb.Point
	Profile   string
	RangeType RangeType
	// Bound is the largest cost to explore, in seconds or metres
	Bound float64
}

// Searcher produces accessibility maps. It must be safe for concurrent use.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (*AccessibilityMap, error)
	Profile(name string) (Profile, error)
}
