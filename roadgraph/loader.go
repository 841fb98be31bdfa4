package roadgraph

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LoadFile reads a road network from a GeoJSON file
func LoadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("graph file not found: %s", path)
		}
		return nil, fmt.Errorf("opening graph file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a GeoJSON FeatureCollection of LineString or MultiLineString
// roads. Lines must already be split at junctions; only their end points
// become nodes. Optional properties: "oneway" (bool or "yes") and
// "maxspeed" (km/h).
func Load(r io.Reader) (*Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading graph: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing graph GeoJSON: %w", err)
	}

	g := New()
	skipped := 0
	for i, f := range fc.Features {
		oneway := boolProperty(f.Properties, "oneway")
		maxSpeed := floatProperty(f.Properties, "maxspeed")

		var lines []orb.LineString
		switch geom := f.Geometry.(type) {
		case orb.LineString:
			lines = []orb.LineString{geom}
		case orb.MultiLineString:
			lines = geom
		default:
			skipped++
			continue
		}

		for _, line := range lines {
			if _, err := g.AddEdge(line, oneway, maxSpeed); err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
		}
	}
	if g.EdgeCount() == 0 {
		return nil, fmt.Errorf("graph has no line features (%d skipped)", skipped)
	}
	g.Freeze()
	return g, nil
}

func boolProperty(p geojson.Properties, key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		s := strings.ToLower(v)
		return s == "yes" || s == "true" || s == "1"
	case float64:
		return v != 0
	}
	return false
}

func floatProperty(p geojson.Properties, key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return f
		}
	}
	return 0
}
