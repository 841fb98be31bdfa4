package isochrone

import (
	"math"

	"github.com/paulmach/orb/geojson"
)

// ToFeatureCollection encodes the collection as GeoJSON. Isochrone features
// come first in location order, followed by intersection features.
func ToFeatureCollection(c *IsochroneMapCollection, req Request) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, m := range c.Maps {
		for _, iso := range m.Isochrones {
			f := geojson.NewFeature(iso.Geometry)
			f.Properties["group_index"] = m.Index
			f.Properties["value"] = iso.Value
			f.Properties["center"] = []float64{m.Center[0], m.Center[1]}
			if iso.Area != nil {
				f.Properties["area"] = round(*iso.Area, 4)
			}
			if iso.ReachFactor != nil {
				f.Properties["reachfactor"] = *iso.ReachFactor
			}
			for k, v := range iso.Stats {
				f.Properties[k] = v
			}
			fc.Append(f)
		}
	}

	for _, x := range c.Intersections {
		f := geojson.NewFeature(x.Geometry)
		contours := make([][2]int, len(x.Contours))
		for i, ref := range x.Contours {
			contours[i] = [2]int{ref.GroupIndex, ref.IsochroneIndex}
		}
		f.Properties["contours"] = contours
		if hasAttribute(req.Attributes, AttrArea) {
			f.Properties["area"] = round(x.Area(req.AreaUnits), 4)
		}
		fc.Append(f)
	}

	if len(c.Maps) > 0 {
		fc.BBox = geojson.NewBBox(c.Bound())
	}
	return fc
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
