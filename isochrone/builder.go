package isochrone

import (
	"context"
	"errors"
	"log/slog"

	"github.com/paulmach/orb"
)

// RangeParams describes the thresholds of one location
type RangeParams struct {
	// Thresholds in cost units (seconds or metres), ascending
	Thresholds []float64
	// Values are the thresholds as reported to the caller
	Values    []float64
	RangeType RangeType
	// MaxSpeed of the profile in km/h, for time to distance conversion
	MaxSpeed float64
	// Smoothing factor; negative selects DefaultSmoothing
	Smoothing        float64
	DefaultSmoothing float64
}

// MaxRadius returns the distance in metres equivalent to threshold
func (p RangeParams) MaxRadius(threshold float64) float64 {
	return MaxRadius(threshold, p.RangeType, p.MaxSpeed)
}

// RangeProcessor builds the isochrones of one location, carrying each hull
// forward as the seed of the next threshold.
type RangeProcessor struct {
	hull   ConcaveHullBuilder
	logger *slog.Logger
}

// NewRangeProcessor creates a processor using hull to close point clouds
func NewRangeProcessor(hull ConcaveHullBuilder, logger *slog.Logger) *RangeProcessor {
	if hull == nil {
		hull = NewDelaunayHull()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RangeProcessor{hull: hull, logger: logger}
}

// rangeState is the value folded over the thresholds
type rangeState struct {
	seed      orb.Ring
	prevValue float64
	out       []*Isochrone
}

// BuildMap computes one isochrone per threshold. Thresholds whose hull
// cannot be built are skipped and leave the seed untouched.
func (p *RangeProcessor) BuildMap(ctx context.Context, am *AccessibilityMap, params RangeParams) ([]*Isochrone, error) {
	if am == nil || am.EdgeCount() == 0 {
		return nil, nil
	}

	cfg := NewSamplingConfig(len(am.Entries))
	sampler := NewBoundarySampler(am, DeadEnds(am), cfg)
	bound := am.Bound().Pad(cfg.SearchWidth + cfg.PointWidth + cfg.BufferSize)

	state := rangeState{}
	for i, threshold := range params.Thresholds {
		var err error
		state, err = p.step(ctx, sampler, bound, cfg, params, i, threshold, state)
		if err != nil {
			return nil, err
		}
	}
	return state.out, nil
}

func (p *RangeProcessor) step(ctx context.Context, sampler *BoundarySampler, bound orb.Bound, cfg SamplingConfig, params RangeParams, i int, threshold float64, state rangeState) (rangeState, error) {
	points := NewSpatialDeduper(bound, cfg)
	for _, c := range state.seed {
		points.TryAdd(c, false)
	}

	maxRadius := params.MaxRadius(threshold)
	smoothing := SmoothingDistance(params.Smoothing, maxRadius, params.DefaultSmoothing)

	if err := sampler.Sample(ctx, points, threshold, state.prevValue, degreesToMetres(smoothing)); err != nil {
		return state, err
	}
	boundaryPoints.Observe(float64(points.Len()))

	poly, err := p.hull.Build(points.Points(), smoothing)
	if err == nil && (len(poly) == 0 || !ringIsSimple(poly[0])) {
		err = ErrDegeneratePointCloud
	}
	if err != nil {
		if !errors.Is(err, ErrDegeneratePointCloud) {
			return state, err
		}
		hullFailures.Inc()
		p.logger.Warn("skipping threshold, hull failed",
			"threshold", threshold, "points", points.Len(), "error", err)
		return state, nil
	}

	value := threshold
	if i < len(params.Values) {
		value = params.Values[i]
	}
	state.out = append(state.out, &Isochrone{
		Geometry:  poly,
		Value:     value,
		MaxRadius: maxRadius,
	})
	state.seed = poly[0]
	state.prevValue = threshold
	return state, nil
}
