package isochrone

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/fogleman/delaunay"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/peterstace/simplefeatures/geom"
)

// ConcaveHullBuilder turns a point cloud into one simple polygon. maxEdge is
// the longest boundary edge, in degrees, the builder may leave in place.
type ConcaveHullBuilder interface {
	Build(points []orb.Point, maxEdge float64) (orb.Polygon, error)
}

// DelaunayHull erodes the Delaunay triangulation of the cloud from the
// outside, removing border triangles whose longest border edge exceeds
// maxEdge for as long as the remaining region stays a simple polygon.
type DelaunayHull struct{}

// NewDelaunayHull returns the default hull builder
func NewDelaunayHull() *DelaunayHull {
	return &DelaunayHull{}
}

// Build implements ConcaveHullBuilder
func (DelaunayHull) Build(points []orb.Point, maxEdge float64) (orb.Polygon, error) {
	if len(points) < 3 {
		return nil, fmt.Errorf("%w: %d points", ErrDegeneratePointCloud, len(points))
	}

	pts := make([]delaunay.Point, len(points))
	for i, p := range points {
		pts[i] = delaunay.Point{X: p[0], Y: p[1]}
	}
	tri, err := delaunay.Triangulate(pts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegeneratePointCloud, err)
	}
	if len(tri.Triangles) < 3 {
		return nil, fmt.Errorf("%w: no triangles", ErrDegeneratePointCloud)
	}

	m := newTriMesh(pts, tri.Triangles, tri.Halfedges)
	m.erode(maxEdge)

	ring, err := m.boundary()
	if err != nil {
		return nil, err
	}
	if ring.Orientation() != orb.CCW {
		ring.Reverse()
	}
	if math.Abs(planar.Area(ring)) == 0 {
		return nil, fmt.Errorf("%w: zero area hull", ErrDegeneratePointCloud)
	}
	return orb.Polygon{ring}, nil
}

// triMesh tracks which triangles of a triangulation are still part of the hull
type triMesh struct {
	pts       []delaunay.Point
	triangles []int
	halfedges []int
	removed   []bool
	alive     int
	// borderCount counts border halfedges touching each vertex
	borderCount []int
}

func newTriMesh(pts []delaunay.Point, triangles, halfedges []int) *triMesh {
	m := &triMesh{
		pts:         pts,
		triangles:   triangles,
		halfedges:   halfedges,
		removed:     make([]bool, len(triangles)/3),
		alive:       len(triangles) / 3,
		borderCount: make([]int, len(pts)),
	}
	for e := range triangles {
		if halfedges[e] == -1 {
			m.borderCount[triangles[e]]++
			m.borderCount[triangles[nextHalfedge(e)]]++
		}
	}
	return m
}

func nextHalfedge(e int) int {
	if e%3 == 2 {
		return e - 2
	}
	return e + 1
}

func (m *triMesh) isBorder(e int) bool {
	o := m.halfedges[e]
	return o == -1 || m.removed[o/3]
}

func (m *triMesh) edgeLength(e int) float64 {
	a := m.pts[m.triangles[e]]
	b := m.pts[m.triangles[nextHalfedge(e)]]
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// longestBorder returns the length of the longest border edge of triangle t
// and the number of border edges it has
func (m *triMesh) longestBorder(t int) (float64, int) {
	longest, n := 0.0, 0
	for k := 0; k < 3; k++ {
		e := 3*t + k
		if !m.isBorder(e) {
			continue
		}
		n++
		if l := m.edgeLength(e); l > longest {
			longest = l
		}
	}
	return longest, n
}

// removable reports whether taking t away keeps the hull a single simple ring
func (m *triMesh) removable(t int) bool {
	if m.alive <= 1 {
		return false
	}
	_, borders := m.longestBorder(t)
	switch borders {
	case 2:
		return true
	case 1:
		for k := 0; k < 3; k++ {
			e := 3*t + k
			if m.isBorder(e) {
				apex := m.triangles[nextHalfedge(nextHalfedge(e))]
				return m.borderCount[apex] == 0
			}
		}
	}
	return false
}

func (m *triMesh) remove(t int) {
	for k := 0; k < 3; k++ {
		e := 3*t + k
		a := m.triangles[e]
		b := m.triangles[nextHalfedge(e)]
		if m.isBorder(e) {
			m.borderCount[a]--
			m.borderCount[b]--
		} else {
			m.borderCount[a]++
			m.borderCount[b]++
		}
	}
	m.removed[t] = true
	m.alive--
}

func (m *triMesh) erode(maxEdge float64) {
	q := &triQueue{}
	for t := range m.removed {
		if l, n := m.longestBorder(t); n > 0 {
			heap.Push(q, triItem{tri: t, length: l})
		}
	}

	for q.Len() > 0 {
		it := heap.Pop(q).(triItem)
		if m.removed[it.tri] {
			continue
		}
		if l, _ := m.longestBorder(it.tri); l != it.length {
			continue // superseded by a newer entry
		}
		if it.length <= maxEdge {
			return
		}
		if !m.removable(it.tri) {
			continue
		}

		m.remove(it.tri)
		for k := 0; k < 3; k++ {
			o := m.halfedges[3*it.tri+k]
			if o == -1 || m.removed[o/3] {
				continue
			}
			l, _ := m.longestBorder(o / 3)
			heap.Push(q, triItem{tri: o / 3, length: l})
		}
	}
}

// boundary walks the border halfedges of the remaining triangles into a ring
func (m *triMesh) boundary() (orb.Ring, error) {
	start := -1
	for e := range m.triangles {
		if !m.removed[e/3] && m.isBorder(e) {
			start = e
			break
		}
	}
	if start == -1 {
		return nil, fmt.Errorf("%w: empty hull", ErrDegeneratePointCloud)
	}

	ring := orb.Ring{}
	limit := len(m.triangles) + 1
	e := start
	for {
		p := m.pts[m.triangles[e]]
		ring = append(ring, orb.Point{p.X, p.Y})

		cur := nextHalfedge(e)
		for steps := 0; !m.isBorder(cur); steps++ {
			if steps > limit {
				return nil, fmt.Errorf("%w: broken triangle fan", ErrDegeneratePointCloud)
			}
			cur = nextHalfedge(m.halfedges[cur])
		}
		e = cur
		if e == start {
			break
		}
		if len(ring) > limit {
			return nil, fmt.Errorf("%w: boundary does not close", ErrDegeneratePointCloud)
		}
	}

	if len(ring) < 3 {
		return nil, fmt.Errorf("%w: %d boundary vertices", ErrDegeneratePointCloud, len(ring))
	}
	ring = append(ring, ring[0])
	return ring, nil
}

type triItem struct {
	tri    int
	length float64
}

// triQueue is a max-heap on the longest border edge
type triQueue []triItem

func (q triQueue) Len() int            { return len(q) }
func (q triQueue) Less(i, j int) bool  { return q[i].length > q[j].length }
func (q triQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *triQueue) Push(x interface{}) { *q = append(*q, x.(triItem)) }
func (q *triQueue) Pop() interface{} {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}

// ringIsSimple reports whether a closed ring has at least three distinct
// vertices and touches itself only at its closing point
func ringIsSimple(r orb.Ring) bool {
	if len(r) < 4 || !r.Closed() {
		return false
	}
	coords := make([]float64, 0, 2*len(r))
	for _, p := range r {
		coords = append(coords, p[0], p[1])
	}
	ls := geom.NewLineString(geom.NewSequence(coords, geom.DimXY))
	return ls.IsSimple()
}
