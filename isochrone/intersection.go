package isochrone

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/peterstace/simplefeatures/geom"
)

// IsochronesIntersection is the overlap of isochrones from different locations
type IsochronesIntersection struct {
	Geometry orb.Geometry
	Contours []ContourRef

	mu    sync.Mutex
	areas map[Unit]float64
}

// Area returns the intersection area in unit squared, computed once per unit
func (x *IsochronesIntersection) Area(unit Unit) float64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	if v, ok := x.areas[unit]; ok {
		return v
	}
	if x.areas == nil {
		x.areas = make(map[Unit]float64)
	}
	v := Area(x.Geometry, unit)
	x.areas[unit] = v
	return v
}

// ComputeIntersections intersects every pair of isochrones belonging to
// different locations and returns the non-empty polygonal overlaps.
func ComputeIntersections(maps []*IsochroneMap) ([]*IsochronesIntersection, error) {
	converted := make([][]geom.Geometry, len(maps))
	for i, m := range maps {
		converted[i] = make([]geom.Geometry, len(m.Isochrones))
		for j, iso := range m.Isochrones {
			g, err := toSimpleFeatures(iso.Geometry)
			if err != nil {
				return nil, fmt.Errorf("converting isochrone %d/%d: %w", m.Index, j, err)
			}
			converted[i][j] = g
		}
	}

	var out []*IsochronesIntersection
	for a := 0; a < len(maps); a++ {
		for b := a + 1; b < len(maps); b++ {
			for i, ga := range converted[a] {
				for j, gb := range converted[b] {
					if !maps[a].Isochrones[i].Geometry.Bound().Intersects(maps[b].Isochrones[j].Geometry.Bound()) {
						continue
					}
					x, err := intersect(ga, gb)
					if err != nil {
						return nil, fmt.Errorf("intersecting %d/%d with %d/%d: %w",
							maps[a].Index, i, maps[b].Index, j, err)
					}
					if x == nil {
						continue
					}
					out = append(out, &IsochronesIntersection{
						Geometry: x,
						Contours: []ContourRef{
							{GroupIndex: maps[a].Index, IsochroneIndex: i},
							{GroupIndex: maps[b].Index, IsochroneIndex: j},
						},
					})
				}
			}
		}
	}
	return out, nil
}

// Intersect returns the polygonal overlap of two polygons, or nil when they
// only touch or are disjoint.
func Intersect(a, b orb.Polygon) (orb.Geometry, error) {
	ga, err := toSimpleFeatures(a)
	if err != nil {
		return nil, err
	}
	gb, err := toSimpleFeatures(b)
	if err != nil {
		return nil, err
	}
	return intersect(ga, gb)
}

func intersect(a, b geom.Geometry) (orb.Geometry, error) {
	x, err := geom.Intersection(a, b)
	if err != nil {
		return nil, err
	}
	if x.IsEmpty() {
		return nil, nil
	}
	g, err := wkb.Unmarshal(x.AsBinary())
	if err != nil {
		return nil, fmt.Errorf("decoding intersection: %w", err)
	}
	return polygonalPart(g), nil
}

// polygonalPart drops points and lines left over where the inputs touch
func polygonalPart(g orb.Geometry) orb.Geometry {
	var polys orb.MultiPolygon
	var collect func(orb.Geometry)
	collect = func(g orb.Geometry) {
		switch v := g.(type) {
		case orb.Polygon:
			polys = append(polys, v)
		case orb.MultiPolygon:
			polys = append(polys, v...)
		case orb.Collection:
			for _, c := range v {
				collect(c)
			}
		}
	}
	collect(g)

	switch len(polys) {
	case 0:
		return nil
	case 1:
		return polys[0]
	}
	return polys
}

func toSimpleFeatures(p orb.Polygon) (geom.Geometry, error) {
	data, err := wkb.Marshal(p)
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("encoding polygon: %w", err)
	}
	g, err := geom.UnmarshalWKB(data)
	if err != nil {
		return geom.Geometry{}, fmt.Errorf("decoding polygon: %w", err)
	}
	return g, nil
}
