package isochrone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// EngineConfig tunes an Engine. Zero values select defaults.
type EngineConfig struct {
	// Workers bounds how many locations are computed at once
	Workers int
	// DefaultSmoothing is the hull edge length in degrees when the request
	// carries no smoothing factor
	DefaultSmoothing float64
	Hull             ConcaveHullBuilder
	Stats            StatisticsProvider
	Logger           *slog.Logger
}

// Engine answers isochrone requests against a Searcher
type Engine struct {
	searcher  Searcher
	processor *RangeProcessor
	stats     StatisticsProvider
	workers   int
	smoothing float64
	logger    *slog.Logger
}

// NewEngine creates an engine over searcher
func NewEngine(searcher Searcher, cfg EngineConfig) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.DefaultSmoothing <= 0 {
		cfg.DefaultSmoothing = DefaultSmoothing
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		searcher:  searcher,
		processor: NewRangeProcessor(cfg.Hull, cfg.Logger),
		stats:     cfg.Stats,
		workers:   cfg.Workers,
		smoothing: cfg.DefaultSmoothing,
		logger:    cfg.Logger,
	}
}

// Compute builds the isochrones of every location of req. Maps are returned
// in location order; intersections follow when requested.
func (e *Engine) Compute(ctx context.Context, req Request) (*IsochroneMapCollection, error) {
	start := time.Now()
	coll, err := e.compute(ctx, req)
	computeDuration.WithLabelValues(req.Profile).Observe(time.Since(start).Seconds())
	requestsTotal.WithLabelValues(req.Profile, outcome(err)).Inc()
	return coll, err
}

func (e *Engine) compute(ctx context.Context, req Request) (*IsochroneMapCollection, error) {
	if len(req.Locations) == 0 || len(req.Ranges) == 0 {
		return nil, fmt.Errorf("%w: locations and ranges are required", ErrInvalidRequest)
	}
	if hasAttribute(req.Attributes, AttrTotalPop) && e.stats == nil {
		return nil, ErrStatisticsUnavailable
	}

	profile, err := e.searcher.Profile(req.Profile)
	if err != nil {
		return nil, err
	}

	params := e.rangeParams(req, profile)

	maps := make([]*IsochroneMap, len(req.Locations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range req.Locations {
		g.Go(func() error {
			m, err := e.computeLocation(gctx, req, params, i)
			if err != nil {
				return &LocationError{Index: i, Err: err}
			}
			maps[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	coll := &IsochroneMapCollection{Maps: maps}
	if req.IncludeIntersections && len(maps) > 1 {
		coll.Intersections, err = ComputeIntersections(maps)
		if err != nil {
			return nil, fmt.Errorf("computing intersections: %w", err)
		}
	}
	return coll, nil
}

func (e *Engine) rangeParams(req Request, profile Profile) RangeParams {
	scale := rangeScale(req)
	thresholds := make([]float64, len(req.Ranges))
	for i, r := range req.Ranges {
		thresholds[i] = r * scale
	}
	return RangeParams{
		Thresholds:       thresholds,
		Values:           req.Ranges,
		RangeType:        req.RangeType,
		MaxSpeed:         profile.MaxSpeed,
		Smoothing:        req.Smoothing,
		DefaultSmoothing: e.smoothing,
	}
}

func (e *Engine) computeLocation(ctx context.Context, req Request, params RangeParams, index int) (*IsochroneMap, error) {
	loc := req.Locations[index]
	am, err := e.searcher.Search(ctx, SearchRequest{
		Location:  loc,
		Profile:   req.Profile,
		RangeType: req.RangeType,
		Bound:     params.Thresholds[len(params.Thresholds)-1],
	})
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrRangeComputationAborted) {
			return nil, aborted(ctx.Err())
		}
		return nil, err
	}

	m := &IsochroneMap{Index: index, Center: loc}
	if am.SnappedPosition != nil {
		m.Center = *am.SnappedPosition
	}

	isos, err := e.processor.BuildMap(ctx, am, params)
	if err != nil {
		return nil, err
	}
	if len(isos) == 0 {
		e.logger.Info("no isochrones for location", "index", index, "entries", len(am.Entries))
	}

	for _, iso := range isos {
		ApplyAttributes(iso, req.Attributes, req.AreaUnits)
		if hasAttribute(req.Attributes, AttrTotalPop) {
			pop, err := e.stats.Population(ctx, iso.Geometry)
			if err != nil {
				return nil, fmt.Errorf("total_pop for %g: %w", iso.Value, err)
			}
			iso.Stats = map[string]float64{string(AttrTotalPop): pop}
		}
	}
	m.Isochrones = isos
	return m, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMaxVisitedNodesExceeded):
		return "max_visited_nodes"
	case errors.Is(err, ErrRangeComputationAborted):
		return "aborted"
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrUnknownProfile):
		return "invalid"
	}
	return "error"
}
