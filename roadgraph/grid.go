package roadgraph

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// NewGrid builds a rows x cols lattice of two-way roads centred on center,
// spaced step apart (lon, lat degrees). Each road gets a midpoint vertex so
// edges carry real geometry.
func NewGrid(center orb.Point, rows, cols int, step orb.Point) (*Graph, error) {
	if rows < 2 || cols < 2 {
		return nil, fmt.Errorf("grid needs at least 2x2 nodes, got %dx%d", rows, cols)
	}
	g := New()
	origin := orb.Point{
		center[0] - step[0]*float64(cols-1)/2,
		center[1] - step[1]*float64(rows-1)/2,
	}
	at := func(r, c int) orb.Point {
		return orb.Point{origin[0] + step[0]*float64(c), origin[1] + step[1]*float64(r)}
	}
	road := func(a, b orb.Point) orb.LineString {
		return orb.LineString{a, {(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}, b}
	}

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c+1 < cols {
				if _, err := g.AddEdge(road(at(r, c), at(r, c+1)), false, 0); err != nil {
					return nil, err
				}
			}
			if r+1 < rows {
				if _, err := g.AddEdge(road(at(r, c), at(r+1, c)), false, 0); err != nil {
					return nil, err
				}
			}
		}
	}
	g.Freeze()
	return g, nil
}

// FeatureCollection exports the graph in the format Load reads
func (g *Graph) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, e := range g.edges {
		f := geojson.NewFeature(e.Geometry.Clone())
		if e.Oneway {
			f.Properties["oneway"] = true
		}
		if e.MaxSpeed > 0 {
			f.Properties["maxspeed"] = e.MaxSpeed
		}
		fc.Append(f)
	}
	return fc
}
