package isochrone

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyEdge(t *testing.T) {
	tests := []struct {
		name             string
		minCost, maxCost float64
		threshold, prev  float64
		want             edgeClass
	}{
		{"inside", 10, 20, 30, 0, edgeInside},
		{"inside at threshold", 10, 30, 30, 0, edgeInside},
		{"crossing", 10, 40, 30, 0, edgeCrossing},
		{"outside", 30, 40, 30, 0, edgeOutside},
		{"outside beyond", 50, 60, 30, 0, edgeOutside},
		{"resolved by previous threshold", 10, 20, 2000, 500, edgeResolved},
		{"small gap keeps inside", 10, 20, 1400, 500, edgeInside},
		{"started after previous threshold", 600, 700, 2000, 500, edgeInside},
		{"no previous threshold", 10, 20, 5000, 0, edgeInside},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyEdge(tt.minCost, tt.maxCost, tt.threshold, tt.prev, skipGap))
		})
	}
}

func maxX(points []orb.Point) float64 {
	m := math.Inf(-1)
	for _, p := range points {
		m = math.Max(m, p[0])
	}
	return m
}

func minX(points []orb.Point) float64 {
	m := math.Inf(1)
	for _, p := range points {
		m = math.Min(m, p[0])
	}
	return m
}

func sampleLine(t *testing.T, cfg SamplingConfig, threshold, prev float64) []orb.Point {
	t.Helper()
	am := lineMap()
	s := NewBoundarySampler(am, DeadEnds(am), cfg)
	points := NewSpatialDeduper(am.Bound().Pad(0.01), cfg)
	require.NoError(t, s.Sample(context.Background(), points, threshold, prev, 0))
	return points.Points()
}

func TestBoundarySampler_CrossingEdgeStopsAtThreshold(t *testing.T) {
	points := sampleLine(t, NewSamplingConfig(3), 150, 0)
	require.NotEmpty(t, points)

	// cost grows linearly along e1 from 100 to 200, so 150 is its midpoint
	assert.InDelta(t, 0.015, maxX(points), 1e-9)
}

func TestBoundarySampler_FullyReached(t *testing.T) {
	points := sampleLine(t, NewSamplingConfig(3), 250, 0)
	assert.InDelta(t, 0.02, maxX(points), 1e-9, "end of the line is buffered")
	assert.InDelta(t, 0.0, minX(points), 1e-9)
}

func TestBoundarySampler_DeadEndsSkippedWithoutHighDetail(t *testing.T) {
	cfg := NewSamplingConfig(5000)
	require.False(t, cfg.HighDetail)

	points := sampleLine(t, cfg, 250, 0)
	require.NotEmpty(t, points)
	assert.Less(t, maxX(points), 0.0101, "e1 is a dead end and must not be sampled")

	points = sampleLine(t, cfg, 150, 0)
	assert.Greater(t, maxX(points), 0.0101, "a crossing dead end is still sampled")
}

func TestBoundarySampler_DetailZoneBuffered(t *testing.T) {
	// two 111 m edges, well below the long edge length
	am := &AccessibilityMap{
		Graph: &fakeGraph{
			nodes: []orb.Point{{0, 0}, {0.001, 0}, {0.002, 0}},
			edges: [][2]int{{0, 1}, {1, 2}},
		},
		Entries: []Entry{
			{Node: 0, Edge: NoEdge, Weight: 0, Parent: -1},
			{Node: 1, Edge: 0, Weight: 10, Parent: 0},
			{Node: 2, Edge: 1, Weight: 100, Parent: 1},
		},
	}
	cfg := NewSamplingConfig(3)
	cfg.NeighbourThreshold = 1e-6

	tests := []struct {
		name         string
		threshold    float64
		wantBuffered bool
	}{
		{"last edge in detail zone", 100, true},
		{"no edge in detail zone", 1000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewBoundarySampler(am, DeadEnds(am), cfg)
			points := NewSpatialDeduper(am.Bound().Pad(0.01), cfg)
			require.NoError(t, s.Sample(context.Background(), points, tt.threshold, 0, 0))

			var offset []orb.Point
			for _, p := range points.Points() {
				if p[1] != 0 {
					offset = append(offset, p)
				}
			}
			assert.Contains(t, points.Points(), orb.Point{0.001, 0}, "short edge outside the zone keeps its node")
			if !tt.wantBuffered {
				assert.Empty(t, offset)
				assert.Contains(t, points.Points(), orb.Point{0.002, 0})
				return
			}
			require.NotEmpty(t, offset)
			assert.GreaterOrEqual(t, minX(offset), 0.001-1e-12, "only the detail zone edge is buffered")
			assert.InDelta(t, 0.002, maxX(offset), 1e-12, "end pair of the fully reached line")
			for _, p := range offset {
				assert.InDelta(t, cfg.BufferSize, math.Abs(p[1]), 1e-12)
			}
		})
	}
}

func TestBoundarySampler_ResolvedEdgesSkipped(t *testing.T) {
	// e0 started below the previous threshold and the gap exceeds skipGap
	points := sampleLine(t, NewSamplingConfig(3), 1200, 100)
	require.NotEmpty(t, points)
	assert.GreaterOrEqual(t, minX(points), 0.01-1e-9)
}

func TestBoundarySampler_Cancelled(t *testing.T) {
	am := lineMap()
	cfg := NewSamplingConfig(3)
	s := NewBoundarySampler(am, DeadEnds(am), cfg)
	points := NewSpatialDeduper(am.Bound(), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Sample(ctx, points, 150, 0, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRangeComputationAborted))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSplitSegments(t *testing.T) {
	a := orb.Point{0, 0}
	b := orb.Point{0.01, 0}
	length := geo.DistanceHaversine(a, b) // about 1112 m

	tests := []struct {
		name        string
		splitLength float64
		maxSplit    float64
		wantPoints  int
	}{
		{"disabled", 0, maxSplitMetres, 2},
		{"shorter than split", length + 1, maxSplitMetres, 2},
		{"four pieces", 300, maxSplitMetres, 5},
		{"exact division rounds up", length / 2.5, maxSplitMetres, 4},
		{"segment above max split", 300, length - 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := splitSegments(orb.LineString{a, b}, tt.splitLength, tt.maxSplit)
			require.Len(t, out, tt.wantPoints)
			assert.Equal(t, a, out[0])
			assert.Equal(t, b, out[len(out)-1])
			assert.InDelta(t, length, lineLength(out), 1e-6)
		})
	}
}

func TestAddBufferedSegmentOffsets(t *testing.T) {
	cfg := NewSamplingConfig(3)
	s := &BoundarySampler{cfg: cfg}
	points := NewSpatialDeduper(orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{1, 1}}, cfg)

	s.addBufferedSegment(points, orb.Point{0, 0}, orb.Point{0.1, 0}, true)

	// offsets are perpendicular to the segment, BufferSize away
	got := points.Points()
	require.NotEmpty(t, got)
	for _, p := range got {
		assert.InDelta(t, cfg.BufferSize, math.Abs(p[1]), 1e-12)
	}
	assert.InDelta(t, 0.1, maxX(got), 1e-12, "end pair requested")
}
