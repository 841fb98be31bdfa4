package isochrone

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// Request is one isochrone computation over one or more locations
type Request struct {
	Locations            []orb.Point
	Profile              string
	Ranges               []float64
	RangeType            RangeType
	Units                Unit
	AreaUnits            Unit
	Smoothing            float64 // negative selects the default
	Attributes           []Attribute
	IncludeIntersections bool
}

// Limits bounds what a single request may ask for. Zero disables a check.
type Limits struct {
	MaxLocations     int     `yaml:"max_locations"`
	MaxRanges        int     `yaml:"max_ranges"`
	MaxRangeTime     float64 `yaml:"max_range_time"`
	MaxRangeDistance float64 `yaml:"max_range_distance"`
}

// RequestBody is the JSON form of a request, shared by HTTP and MQTT
type RequestBody struct {
	ID            string       `json:"id,omitempty"`
	Profile       string       `json:"profile,omitempty"`
	Locations     [][2]float64 `json:"locations"`
	Range         []float64    `json:"range"`
	Interval      float64      `json:"interval,omitempty"`
	RangeType     string       `json:"range_type,omitempty"`
	Units         string       `json:"units,omitempty"`
	AreaUnits     string       `json:"area_units,omitempty"`
	Smoothing     *float64     `json:"smoothing,omitempty"`
	Attributes    []string     `json:"attributes,omitempty"`
	Intersections bool         `json:"intersections,omitempty"`
}

// ParseRequestBody decodes a JSON request body
func ParseRequestBody(data []byte) (*RequestBody, error) {
	var body RequestBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return &body, nil
}

// ToRequest validates the body against limits and builds a Request.
// profile overrides the body's profile when non-empty.
func (b *RequestBody) ToRequest(profile string, limits Limits) (Request, error) {
	req := Request{Profile: b.Profile, Smoothing: -1}
	if profile != "" {
		req.Profile = profile
	}
	if req.Profile == "" {
		return req, invalid("profile is required")
	}

	if len(b.Locations) == 0 {
		return req, invalid("at least one location is required")
	}
	if limits.MaxLocations > 0 && len(b.Locations) > limits.MaxLocations {
		return req, invalid("at most %d locations are allowed", limits.MaxLocations)
	}
	for i, l := range b.Locations {
		if l[0] < -180 || l[0] > 180 || l[1] < -90 || l[1] > 90 {
			return req, invalid("location[%d] is out of range", i)
		}
		req.Locations = append(req.Locations, orb.Point{l[0], l[1]})
	}

	var err error
	if req.RangeType, err = ParseRangeType(b.RangeType); err != nil {
		return req, invalid("%v", err)
	}
	if req.Units, err = ParseUnit(b.Units); err != nil {
		return req, invalid("%v", err)
	}
	if req.RangeType == RangeTime && req.Units != UnitMeters && b.Units != "" {
		return req, invalid("units are only valid for distance ranges")
	}
	req.AreaUnits = req.Units
	if b.AreaUnits != "" {
		if req.AreaUnits, err = ParseUnit(b.AreaUnits); err != nil {
			return req, invalid("%v", err)
		}
	}

	if req.Ranges, err = expandRanges(b.Range, b.Interval); err != nil {
		return req, err
	}
	if limits.MaxRanges > 0 && len(req.Ranges) > limits.MaxRanges {
		return req, invalid("at most %d ranges are allowed", limits.MaxRanges)
	}
	maxRange := limits.MaxRangeTime
	if req.RangeType == RangeDistance {
		maxRange = limits.MaxRangeDistance
	}
	if top := req.Ranges[len(req.Ranges)-1]; maxRange > 0 && top*rangeScale(req) > maxRange {
		return req, invalid("range %g exceeds the limit of %g", top, maxRange)
	}

	if b.Smoothing != nil {
		if *b.Smoothing < 0 || *b.Smoothing > 100 {
			return req, invalid("smoothing must be between 0 and 100")
		}
		req.Smoothing = *b.Smoothing
	}

	for _, name := range b.Attributes {
		a, err := ParseAttribute(name)
		if err != nil {
			return req, invalid("%v", err)
		}
		req.Attributes = append(req.Attributes, a)
	}
	req.IncludeIntersections = b.Intersections
	return req, nil
}

// ladderEpsilon absorbs rounding in range/interval so an exact multiple
// does not produce an extra step just below the range
const ladderEpsilon = 1e-9

// expandRanges turns a single range plus interval into a ladder of ranges and
// sorts the result ascending.
func expandRanges(ranges []float64, interval float64) ([]float64, error) {
	if len(ranges) == 0 {
		return nil, invalid("at least one range is required")
	}
	for _, r := range ranges {
		if r <= 0 {
			return nil, invalid("ranges must be positive")
		}
	}
	if interval < 0 {
		return nil, invalid("interval must be positive")
	}

	out := append([]float64(nil), ranges...)
	if len(ranges) == 1 && interval > 0 {
		out = out[:0]
		steps := int(math.Ceil(ranges[0]/interval - ladderEpsilon))
		for k := 1; k < steps; k++ {
			out = append(out, math.Round(float64(k)*interval*1e9)/1e9)
		}
		out = append(out, ranges[0])
	}
	sort.Float64s(out)

	uniq := out[:1]
	for _, v := range out[1:] {
		if v != uniq[len(uniq)-1] {
			uniq = append(uniq, v)
		}
	}
	return uniq, nil
}

// rangeScale converts request values to cost units
func rangeScale(req Request) float64 {
	if req.RangeType == RangeDistance {
		return req.Units.Metres()
	}
	return 1
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
