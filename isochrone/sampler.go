package isochrone

import (
	"context"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// ctxCheckInterval is how many entries the sampler walks between context checks
const ctxCheckInterval = 1024

// edgeClass is the position of a tree edge relative to a threshold
type edgeClass int

const (
	edgeOutside edgeClass = iota
	edgeInside
	edgeCrossing
	edgeResolved
)

// classifyEdge places the edge [minCost, maxCost] against threshold. Edges
// that started below the previous threshold are resolved once the gap
// between thresholds is wide enough for the carried seed to cover them.
func classifyEdge(minCost, maxCost, threshold, prevThreshold, gap float64) edgeClass {
	if prevThreshold > 0 && minCost < prevThreshold && threshold-prevThreshold > gap {
		return edgeResolved
	}
	if threshold >= maxCost {
		return edgeInside
	}
	if minCost < threshold {
		return edgeCrossing
	}
	return edgeOutside
}

// BoundarySampler turns the tree edges of one accessibility map into
// candidate boundary points for a threshold.
type BoundarySampler struct {
	am       *AccessibilityMap
	deadEnds EdgeSet
	cfg      SamplingConfig
}

// NewBoundarySampler binds a sampler to one map and its dead ends
func NewBoundarySampler(am *AccessibilityMap, deadEnds EdgeSet, cfg SamplingConfig) *BoundarySampler {
	return &BoundarySampler{am: am, deadEnds: deadEnds, cfg: cfg}
}

// Sample walks every tree edge and feeds points for threshold into points.
// splitLength is the smoothing distance in metres; detailed geometries
// longer than that have their segments subdivided.
func (s *BoundarySampler) Sample(ctx context.Context, points *SpatialDeduper, threshold, prevThreshold, splitLength float64) error {
	detailZone := threshold * s.cfg.DetailFactor
	entries := s.am.Entries
	graph := s.am.Graph

	for i, e := range entries {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return aborted(err)
			}
		}
		if e.Edge == NoEdge || e.Parent < 0 {
			continue
		}

		minCost := entries[e.Parent].Weight
		maxCost := e.Weight

		switch classifyEdge(minCost, maxCost, threshold, prevThreshold, s.cfg.SkipGap) {
		case edgeInside:
			if !s.cfg.HighDetail && s.deadEnds.Contains(e.Edge) {
				continue
			}
			length := graph.EdgeLength(e.Edge)
			if length > s.cfg.LongEdge || maxCost >= detailZone {
				line := graph.EdgeGeometry(e.Edge, e.Node)
				line = splitSegments(line, splitLength, s.cfg.MaxSplitLength)
				s.addBufferedLine(points, line)
				continue
			}
			points.TryAdd(graph.NodeCoordinate(e.Node), true)

		case edgeCrossing:
			// no dead end filter here: the far node of a crossing edge is
			// never expanded, so every crossing edge is a dead end
			line := graph.EdgeGeometry(e.Edge, e.Node)
			line = splitSegments(line, splitLength, s.cfg.MaxSplitLength)
			s.addCrossingEdge(points, line, minCost, maxCost, threshold)
		}
	}
	return nil
}

// addBufferedLine thickens a fully reached geometry with offset points on
// both sides of every segment.
func (s *BoundarySampler) addBufferedLine(points *SpatialDeduper, line orb.LineString) {
	if len(line) == 1 {
		points.TryAdd(line[0], true)
		return
	}
	for i := 0; i+1 < len(line); i++ {
		s.addBufferedSegment(points, line[i], line[i+1], i+2 == len(line))
	}
}

// addBufferedSegment emits the offset pair at a, a midpoint pair for long
// segments and, if withEnd is set, the offset pair at b.
func (s *BoundarySampler) addBufferedSegment(points *SpatialDeduper, a, b orb.Point, withEnd bool) {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	norm := math.Hypot(dx, dy)
	if norm == 0 {
		return
	}

	buf := s.cfg.BufferSize
	ox := -dy / norm * buf
	oy := dx / norm * buf

	addPair := func(p orb.Point) {
		points.TryAdd(orb.Point{p[0] + ox, p[1] + oy}, true)
		points.TryAdd(orb.Point{p[0] - ox, p[1] - oy}, true)
	}

	addPair(a)
	if norm > 2*buf {
		addPair(orb.Point{a[0] + dx/2, a[1] + dy/2})
	}
	if withEnd {
		addPair(b)
	}
}

// addCrossingEdge samples a boundary edge up to the point where the
// interpolated cost reaches threshold. Cost grows linearly with distance.
func (s *BoundarySampler) addCrossingEdge(points *SpatialDeduper, line orb.LineString, minCost, maxCost, threshold float64) {
	if len(line) < 2 {
		return
	}

	total := lineLength(line)
	if total == 0 {
		points.TryAdd(line[0], true)
		return
	}
	costPerMetre := (maxCost - minCost) / total

	cost := minCost
	for i := 0; i+1 < len(line); i++ {
		a, b := line[i], line[i+1]
		segCost := geo.DistanceHaversine(a, b) * costPerMetre
		if cost+segCost <= threshold {
			s.addBufferedSegment(points, a, b, false)
			cost += segCost
			continue
		}

		f := 0.0
		if segCost > 0 {
			f = (threshold - cost) / segCost
		}
		crossing := orb.Point{a[0] + (b[0]-a[0])*f, a[1] + (b[1]-a[1])*f}
		s.addBufferedSegment(points, a, crossing, false)
		points.TryAdd(crossing, true)
		return
	}
	points.TryAdd(line[len(line)-1], true)
}

// splitSegments subdivides segments longer than splitLength metres into
// equal pieces. Segments of maxSplit metres or more are left alone.
func splitSegments(line orb.LineString, splitLength, maxSplit float64) orb.LineString {
	if splitLength <= 0 || len(line) < 2 || lineLength(line) <= splitLength {
		return line
	}

	out := make(orb.LineString, 0, len(line))
	out = append(out, line[0])
	for i := 0; i+1 < len(line); i++ {
		a, b := line[i], line[i+1]
		d := geo.DistanceHaversine(a, b)
		if d > splitLength && d < maxSplit {
			n := int(math.Ceil(d / splitLength))
			for k := 1; k < n; k++ {
				f := float64(k) / float64(n)
				out = append(out, orb.Point{a[0] + (b[0]-a[0])*f, a[1] + (b[1]-a[1])*f})
			}
		}
		out = append(out, b)
	}
	return out
}

func lineLength(line orb.LineString) float64 {
	total := 0.0
	for i := 0; i+1 < len(line); i++ {
		total += geo.DistanceHaversine(line[i], line[i+1])
	}
	return total
}
