// Package roadgraph holds an in-memory road network and the bounded
// shortest-path search that produces accessibility maps from it.
package roadgraph

import (
	"errors"
	"fmt"
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const (
	tolerance   = 1e-9
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
)

// ErrPointNotFound is returned when no node lies within the snapping radius
var ErrPointNotFound = errors.New("no road within snapping radius")

// ErrFrozen is returned when a frozen graph is modified
var ErrFrozen = errors.New("graph is frozen")

// Edge is a road segment between two nodes. Geometry runs From -> To.
type Edge struct {
	From     int
	To       int
	Geometry orb.LineString
	Length   float64 // metres
	MaxSpeed float64 // km/h, 0 means no limit
	Oneway   bool
}

// nodeItem wraps a node for R-Tree indexing
type nodeItem struct {
	id   int
	rect *rtreego.Rect
}

func (n *nodeItem) Bounds() *rtreego.Rect {
	return n.rect
}

// Graph is a road network. It is built by one goroutine and then frozen;
// a frozen graph never changes and is safe for concurrent reads without
// locking.
type Graph struct {
	frozen    bool
	nodes     []orb.Point
	edges     []Edge
	adj       [][]int
	nodeIndex map[orb.Point]int
	tree      *rtreego.Rtree
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		nodeIndex: make(map[orb.Point]int),
		tree:      rtreego.NewTree(dimensions, minChildren, maxChildren),
	}
}

// AddNode returns the id of the node at p, creating it if needed
func (g *Graph) AddNode(p orb.Point) (int, error) {
	if g.frozen {
		return 0, ErrFrozen
	}
	return g.addNode(p), nil
}

func (g *Graph) addNode(p orb.Point) int {
	if id, ok := g.nodeIndex[p]; ok {
		return id
	}
	id := len(g.nodes)
	g.nodes = append(g.nodes, p)
	g.adj = append(g.adj, nil)
	g.nodeIndex[p] = id
	g.tree.Insert(&nodeItem{id: id, rect: rtreego.Point{p[0], p[1]}.ToRect(tolerance)})
	return id
}

// AddEdge adds a road following line. Its end points become nodes.
func (g *Graph) AddEdge(line orb.LineString, oneway bool, maxSpeed float64) (int, error) {
	if g.frozen {
		return 0, ErrFrozen
	}
	if len(line) < 2 {
		return 0, fmt.Errorf("edge needs at least 2 points, got %d", len(line))
	}
	length := geo.LengthHaversine(line)
	if length == 0 {
		return 0, fmt.Errorf("edge has zero length")
	}

	from := g.addNode(line[0])
	to := g.addNode(line[len(line)-1])
	id := len(g.edges)
	g.edges = append(g.edges, Edge{
		From:     from,
		To:       to,
		Geometry: line.Clone(),
		Length:   length,
		MaxSpeed: maxSpeed,
		Oneway:   oneway,
	})
	g.adj[from] = append(g.adj[from], id)
	if !oneway && to != from {
		g.adj[to] = append(g.adj[to], id)
	}
	return id, nil
}

// Freeze ends construction. Later AddNode and AddEdge calls fail.
func (g *Graph) Freeze() {
	g.frozen = true
}

// Frozen reports whether the graph has been frozen
func (g *Graph) Frozen() bool {
	return g.frozen
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Edge returns a copy of edge id
func (g *Graph) Edge(id int) Edge {
	return g.edges[id]
}

// NodeCoordinate returns the position of a node
func (g *Graph) NodeCoordinate(node int) orb.Point {
	return g.nodes[node]
}

// EdgeGeometry returns the geometry of edge oriented to end at adjNode
func (g *Graph) EdgeGeometry(edge, adjNode int) orb.LineString {
	e := g.edges[edge]

	line := e.Geometry.Clone()
	if adjNode == e.From && e.From != e.To {
		line.Reverse()
	}
	return line
}

// EdgeLength returns the length of edge in metres
func (g *Graph) EdgeLength(edge int) float64 {
	return g.edges[edge].Length
}

// Bound returns the extent of all nodes
func (g *Graph) Bound() orb.Bound {
	if len(g.nodes) == 0 {
		return orb.Bound{}
	}
	return orb.MultiPoint(g.nodes).Bound()
}

// Nearest returns the node closest to p within maxDistance metres.
// maxDistance <= 0 disables the radius check.
func (g *Graph) Nearest(p orb.Point, maxDistance float64) (int, error) {

	if len(g.nodes) == 0 {
		return 0, ErrPointNotFound
	}
	item, ok := g.tree.NearestNeighbor(rtreego.Point{p[0], p[1]}).(*nodeItem)
	if !ok || item == nil {
		return 0, ErrPointNotFound
	}
	if maxDistance > 0 && geo.DistanceHaversine(p, g.nodes[item.id]) > maxDistance {
		return 0, fmt.Errorf("%w: nearest road is %.0f m away",
			ErrPointNotFound, math.Round(geo.DistanceHaversine(p, g.nodes[item.id])))
	}
	return item.id, nil
}

// neighbours returns the edges leaving node
func (g *Graph) neighbours(node int) []int {
	return g.adj[node]
}

// other returns the end of edge opposite node
func (g *Graph) other(edge, node int) int {
	e := g.edges[edge]
	if e.From == node {
		return e.To
	}
	return e.From
}
