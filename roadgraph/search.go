package roadgraph

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/kwv/isoreach/isochrone"
)

// DefaultSnapDistance is how far, in metres, a location may lie from the network
const DefaultSnapDistance = 350.0

const ctxCheckInterval = 1024

// Searcher runs bounded Dijkstra searches over a Graph
type Searcher struct {
	graph           *Graph
	profiles        map[string]isochrone.Profile
	maxVisitedNodes int
	snapDistance    float64
}

// NewSearcher creates a searcher serving the given profiles and freezes g.
// maxVisitedNodes <= 0 disables the node budget.
func NewSearcher(g *Graph, profiles []isochrone.Profile, maxVisitedNodes int) *Searcher {
	g.Freeze()
	pm := make(map[string]isochrone.Profile, len(profiles))
	for _, p := range profiles {
		pm[p.Name] = p
	}
	return &Searcher{
		graph:           g,
		profiles:        pm,
		maxVisitedNodes: maxVisitedNodes,
		snapDistance:    DefaultSnapDistance,
	}
}

// SetSnapDistance changes the snapping radius in metres
func (s *Searcher) SetSnapDistance(d float64) {
	s.snapDistance = d
}

// Profile implements isochrone.Searcher
func (s *Searcher) Profile(name string) (isochrone.Profile, error) {
	p, ok := s.profiles[name]
	if !ok {
		return isochrone.Profile{}, fmt.Errorf("%w: %s", isochrone.ErrUnknownProfile, name)
	}
	return p, nil
}

// Search implements isochrone.Searcher. Nodes are settled in cost order;
// the first node beyond the bound on each branch is kept so that edges
// crossing the bound are present, but it is not expanded.
func (s *Searcher) Search(ctx context.Context, req isochrone.SearchRequest) (*isochrone.AccessibilityMap, error) {
	profile, err := s.Profile(req.Profile)
	if err != nil {
		return nil, err
	}
	src, err := s.graph.Nearest(req.Location, s.snapDistance)
	if err != nil {
		return nil, err
	}

	g := s.graph
	snapped := g.nodes[src]
	am := &isochrone.AccessibilityMap{SnappedPosition: &snapped, Graph: g}

	best := map[int]float64{src: 0}
	settled := make(map[int]bool)
	q := &searchQueue{{node: src, edge: isochrone.NoEdge, parent: -1}}

	for q.Len() > 0 {
		it := heap.Pop(q).(searchItem)
		if settled[it.node] {
			continue
		}
		if len(am.Entries)%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %w", isochrone.ErrRangeComputationAborted, err)
			}
		}

		settled[it.node] = true
		if s.maxVisitedNodes > 0 && len(am.Entries) >= s.maxVisitedNodes {
			return nil, fmt.Errorf("%w: limit is %d", isochrone.ErrMaxVisitedNodesExceeded, s.maxVisitedNodes)
		}

		idx := len(am.Entries)
		am.Entries = append(am.Entries, isochrone.Entry{
			Node:   it.node,
			Edge:   it.edge,
			Weight: it.weight,
			Parent: it.parent,
		})
		if it.weight > req.Bound {
			continue
		}

		for _, edge := range g.neighbours(it.node) {
			next := g.other(edge, it.node)
			if settled[next] {
				continue
			}
			w := it.weight + edgeCost(g.edges[edge], profile, req.RangeType)
			if b, ok := best[next]; ok && b <= w {
				continue
			}
			best[next] = w
			heap.Push(q, searchItem{node: next, edge: edge, parent: idx, weight: w})
		}
	}
	return am, nil
}

// edgeCost is the edge length for distance ranges and its travel time in
// seconds for time ranges
func edgeCost(e Edge, p isochrone.Profile, rangeType isochrone.RangeType) float64 {
	if rangeType == isochrone.RangeDistance {
		return e.Length
	}
	speed := p.Speed
	if e.MaxSpeed > 0 && e.MaxSpeed < speed {
		speed = e.MaxSpeed
	}
	return e.Length / (speed / 3.6)
}

type searchItem struct {
	node   int
	edge   int
	parent int
	weight float64
}

// searchQueue is a min-heap on weight
type searchQueue []searchItem

func (q searchQueue) Len() int            { return len(q) }
func (q searchQueue) Less(i, j int) bool  { return q[i].weight < q[j].weight }
func (q searchQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *searchQueue) Push(x interface{}) { *q = append(*q, x.(searchItem)) }
func (q *searchQueue) Pop() interface{} {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}
