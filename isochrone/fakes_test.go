package isochrone

import (
	"context"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// fakeGraph is a GraphView of straight edges
type fakeGraph struct {
	nodes []orb.Point
	edges [][2]int
}

func (g *fakeGraph) NodeCoordinate(node int) orb.Point { return g.nodes[node] }

func (g *fakeGraph) EdgeGeometry(edge, adjNode int) orb.LineString {
	e := g.edges[edge]
	if adjNode == e[0] {
		return orb.LineString{g.nodes[e[1]], g.nodes[e[0]]}
	}
	return orb.LineString{g.nodes[e[0]], g.nodes[e[1]]}
}

func (g *fakeGraph) EdgeLength(edge int) float64 {
	e := g.edges[edge]
	return geo.DistanceHaversine(g.nodes[e[0]], g.nodes[e[1]])
}

// lineMap is a three node road along the equator, 0.01 degrees per edge,
// with costs 0, 100 and 200.
func lineMap() *AccessibilityMap {
	g := &fakeGraph{
		nodes: []orb.Point{{0, 0}, {0.01, 0}, {0.02, 0}},
		edges: [][2]int{{0, 1}, {1, 2}},
	}
	return &AccessibilityMap{
		Graph: g,
		Entries: []Entry{
			{Node: 0, Edge: NoEdge, Weight: 0, Parent: -1},
			{Node: 1, Edge: 0, Weight: 100, Parent: 0},
			{Node: 2, Edge: 1, Weight: 200, Parent: 1},
		},
	}
}

// fakeSearcher returns a fixed map or error, optionally waiting for ctx
type fakeSearcher struct {
	am      *AccessibilityMap
	err     error
	block   bool
	profile Profile

	mu   sync.Mutex
	reqs []SearchRequest
}

func (s *fakeSearcher) Search(ctx context.Context, req SearchRequest) (*AccessibilityMap, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.am, nil
}

func (s *fakeSearcher) Profile(name string) (Profile, error) {
	if name != s.profile.Name {
		return Profile{}, ErrUnknownProfile
	}
	return s.profile, nil
}

// square returns a closed CCW square polygon with lower left corner at (x, y)
func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{{
		{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y},
	}}
}

// fixedHull returns the same square for every point cloud, optionally
// recording the maxEdge of each call
type fixedHull struct {
	poly     orb.Polygon
	err      error
	maxEdges *[]float64
}

func (h fixedHull) Build(points []orb.Point, maxEdge float64) (orb.Polygon, error) {
	if h.maxEdges != nil {
		*h.maxEdges = append(*h.maxEdges, maxEdge)
	}
	if h.err != nil {
		return nil, h.err
	}
	return h.poly.Clone(), nil
}

// fakeStats returns a constant population
type fakeStats struct {
	pop float64
	err error
}

func (s fakeStats) Population(ctx context.Context, poly orb.Polygon) (float64, error) {
	return s.pop, s.err
}
