package isochrone

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
)

// SpatialDeduper accepts boundary points, rejecting those that fall within
// the neighbour threshold of an already accepted point.
type SpatialDeduper struct {
	searchWidth        float64
	pointWidth         float64
	neighbourThreshold float64

	tree     *quadtree.Quadtree
	overflow []orb.Point // accepted points outside the tree bound
	seen     map[orb.Point]struct{}
	points   []orb.Point
	buf      []orb.Pointer
}

// NewSpatialDeduper creates an empty point set indexed over bound.
// Points outside bound are still accepted and checked linearly.
func NewSpatialDeduper(bound orb.Bound, cfg SamplingConfig) *SpatialDeduper {
	return &SpatialDeduper{
		searchWidth:        cfg.SearchWidth,
		pointWidth:         cfg.PointWidth,
		neighbourThreshold: cfg.NeighbourThreshold,
		tree:               quadtree.New(bound),
		seen:               make(map[orb.Point]struct{}),
	}
}

// TryAdd inserts p unless it coincides with an accepted point or, when
// checkNeighbours is set, lies within the neighbour threshold of one.
func (d *SpatialDeduper) TryAdd(p orb.Point, checkNeighbours bool) bool {
	if checkNeighbours && d.hasNeighbour(p) {
		return false
	}
	if _, ok := d.seen[p]; ok {
		return false
	}

	d.seen[p] = struct{}{}
	d.points = append(d.points, p)
	if err := d.tree.Add(p); err != nil {
		d.overflow = append(d.overflow, p)
	}
	return true
}

func (d *SpatialDeduper) hasNeighbour(p orb.Point) bool {
	w := d.searchWidth + d.pointWidth
	env := orb.Bound{
		Min: orb.Point{p[0] - w, p[1] - w},
		Max: orb.Point{p[0] + w, p[1] + w},
	}

	found := false
	d.buf = d.tree.InBoundMatching(d.buf[:0], env, func(q orb.Pointer) bool {
		if found {
			return false
		}
		if d.isNeighbour(p, q.Point()) {
			found = true
			return true
		}
		return false
	})
	if found {
		return true
	}

	for _, q := range d.overflow {
		if d.isNeighbour(p, q) {
			return true
		}
	}
	return false
}

func (d *SpatialDeduper) isNeighbour(p, q orb.Point) bool {
	dx := math.Abs(p[0] - q[0])
	if dx > d.neighbourThreshold {
		return false
	}
	dy := math.Abs(p[1] - q[1])
	if dy > d.neighbourThreshold {
		return false
	}
	return math.Hypot(dx, dy) <= d.neighbourThreshold
}

// Points returns the accepted points in insertion order
func (d *SpatialDeduper) Points() []orb.Point {
	return d.points
}

// Len returns the number of accepted points
func (d *SpatialDeduper) Len() int {
	return len(d.points)
}
