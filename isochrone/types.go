package isochrone

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// NoEdge marks an accessibility map entry that was not reached over an edge (the root)
const NoEdge = -1

// metresPerDegree is the mean length of one degree of latitude
const metresPerDegree = 111139.0

// RangeType selects the cost family of the thresholds
type RangeType int

const (
	RangeTime RangeType = iota
	RangeDistance
)

func (r RangeType) String() string {
	if r == RangeDistance {
		return "distance"
	}
	return "time"
}

// ParseRangeType accepts "time" or "distance" (case-insensitive); empty means time
func ParseRangeType(s string) (RangeType, error) {
	switch strings.ToLower(s) {
	case "", "time":
		return RangeTime, nil
	case "distance":
		return RangeDistance, nil
	}
	return RangeTime, fmt.Errorf("unknown range type %q", s)
}

// Unit is a length unit used for distance thresholds and area reporting
type Unit string

const (
	UnitMeters     Unit = "m"
	UnitKilometers Unit = "km"
	UnitMiles      Unit = "mi"
)

// ParseUnit accepts m, km or mi; empty means metres
func ParseUnit(s string) (Unit, error) {
	switch Unit(strings.ToLower(s)) {
	case "", UnitMeters:
		return UnitMeters, nil
	case UnitKilometers:
		return UnitKilometers, nil
	case UnitMiles:
		return UnitMiles, nil
	}
	return "", fmt.Errorf("unknown unit %q", s)
}

// Metres returns the length of one unit in metres
func (u Unit) Metres() float64 {
	switch u {
	case UnitKilometers:
		return 1000
	case UnitMiles:
		return 1609.344
	default:
		return 1
	}
}

// Attribute is an optional per-isochrone value requested by the caller
type Attribute string

const (
	AttrArea        Attribute = "area"
	AttrReachFactor Attribute = "reachfactor"
	AttrTotalPop    Attribute = "total_pop"
)

// ParseAttribute validates a requested attribute name
func ParseAttribute(s string) (Attribute, error) {
	switch a := Attribute(strings.ToLower(s)); a {
	case AttrArea, AttrReachFactor, AttrTotalPop:
		return a, nil
	}
	return "", fmt.Errorf("unknown attribute %q", s)
}

// Entry is one node of the shortest-path tree.
// Edge is the graph edge the node was reached over (NoEdge for the root)
// and Parent indexes the predecessor entry in AccessibilityMap.Entries.
type Entry struct {
	Node   int
	Edge   int
	Weight float64
	Parent int
}

// GraphView is the read-only slice of the road graph the pipeline needs.
// Implementations must be safe for concurrent use.
type GraphView interface {
	// NodeCoordinate returns the lon/lat position of a node
	NodeCoordinate(node int) orb.Point
	// EdgeGeometry returns the full geometry of an edge, oriented so that it
	// ends at adjNode
	EdgeGeometry(edge, adjNode int) orb.LineString
	// EdgeLength returns the edge length in metres
	EdgeLength(edge int) float64
}

// AccessibilityMap is the bounded shortest-path tree rooted at one source
type AccessibilityMap struct {
	Entries         []Entry
	SnappedPosition *orb.Point
	Graph           GraphView
}

// EdgeCount returns the number of entries reached over an edge
func (am *AccessibilityMap) EdgeCount() int {
	n := 0
	for _, e := range am.Entries {
		if e.Edge != NoEdge && e.Parent >= 0 {
			n++
		}
	}
	return n
}

// Bound returns the lon/lat extent of all nodes in the map
func (am *AccessibilityMap) Bound() orb.Bound {
	if len(am.Entries) == 0 || am.Graph == nil {
		return orb.Bound{}
	}
	b := orb.Bound{Min: am.Graph.NodeCoordinate(am.Entries[0].Node), Max: am.Graph.NodeCoordinate(am.Entries[0].Node)}
	for _, e := range am.Entries[1:] {
		b = b.Extend(am.Graph.NodeCoordinate(e.Node))
	}
	return b
}

// EdgeSet is a read-only set of graph edge ids
type EdgeSet map[int]struct{}

// Contains reports whether edge is in the set
func (s EdgeSet) Contains(edge int) bool {
	_, ok := s[edge]
	return ok
}

// Isochrone is the polygon for one (location, threshold) pair
type Isochrone struct {
	Geometry    orb.Polygon
	Value       float64 // threshold in the request's unit
	MaxRadius   float64 // metres
	Area        *float64
	ReachFactor *float64
	Stats       map[string]float64
}

// IsochroneMap holds all isochrones of one source location, ascending
type IsochroneMap struct {
	Index      int
	Center     orb.Point
	Isochrones []*Isochrone
}

// IsEmpty reports whether no isochrone could be built for the location
func (m *IsochroneMap) IsEmpty() bool {
	return len(m.Isochrones) == 0
}

// Bound returns the extent of all isochrones of the map
func (m *IsochroneMap) Bound() orb.Bound {
	b := orb.Bound{Min: m.Center, Max: m.Center}
	for _, iso := range m.Isochrones {
		b = b.Union(iso.Geometry.Bound())
	}
	return b
}

// ContourRef identifies one isochrone contributing to an intersection
type ContourRef struct {
	GroupIndex     int `json:"group_index"`
	IsochroneIndex int `json:"isochrone_index"`
}

// IsochroneMapCollection is the result of one request, in location order
type IsochroneMapCollection struct {
	Maps          []*IsochroneMap
	Intersections []*IsochronesIntersection
}

// Bound returns the extent of everything in the collection
func (c *IsochroneMapCollection) Bound() orb.Bound {
	var b orb.Bound
	for i, m := range c.Maps {
		if i == 0 {
			b = m.Bound()
			continue
		}
		b = b.Union(m.Bound())
	}
	return b
}

// metresToDegrees converts a ground distance into an approximate angular one
func metresToDegrees(m float64) float64 {
	return m / metresPerDegree
}

// degreesToMetres is the inverse of metresToDegrees
func degreesToMetres(d float64) float64 {
	return d * metresPerDegree
}
