package isochrone

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jitteredGrid returns an n x n grid of points spaced step apart, each moved
// by up to 5% of step, skipping those for which skip returns true
func jitteredGrid(n int, step float64, skip func(i, j int) bool) []orb.Point {
	rng := rand.New(rand.NewSource(1))
	var pts []orb.Point
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if skip != nil && skip(i, j) {
				continue
			}
			dx := (rng.Float64() - 0.5) * 0.1 * step
			dy := (rng.Float64() - 0.5) * 0.1 * step
			pts = append(pts, orb.Point{float64(i)*step + dx, float64(j)*step + dy})
		}
	}
	return pts
}

func TestDelaunayHull_ConvexWithLargeMaxEdge(t *testing.T) {
	pts := []orb.Point{{0, 0}, {0.01, 0}, {0.01, 0.01}, {0, 0.01}}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		pts = append(pts, orb.Point{0.001 + rng.Float64()*0.008, 0.001 + rng.Float64()*0.008})
	}

	poly, err := NewDelaunayHull().Build(pts, 1)
	require.NoError(t, err)
	require.Len(t, poly, 1)

	ring := poly[0]
	assert.Equal(t, ring[0], ring[len(ring)-1], "ring is closed")
	assert.Equal(t, orb.CCW, ring.Orientation())
	assert.InDelta(t, 0.0001, planar.Area(poly), 1e-12)
	assert.True(t, ringIsSimple(ring))
}

func TestDelaunayHull_ErodesConcavity(t *testing.T) {
	// L shape: the upper right quadrant is empty
	pts := jitteredGrid(10, 0.001, func(i, j int) bool { return i >= 5 && j >= 5 })

	convex, err := NewDelaunayHull().Build(pts, 1)
	require.NoError(t, err)
	concave, err := NewDelaunayHull().Build(pts, 0.003)
	require.NoError(t, err)

	convexArea := planar.Area(convex)
	concaveArea := planar.Area(concave)
	assert.Less(t, concaveArea, convexArea)
	assert.Less(t, concaveArea, 66e-6)
	assert.Greater(t, concaveArea, 50e-6)
	assert.True(t, ringIsSimple(concave[0]))
	assert.Equal(t, orb.CCW, concave[0].Orientation())

	// every input point stays inside or on the hull boundary region
	assert.True(t, planar.RingContains(concave[0], orb.Point{0.001, 0.001}))
}

func TestDelaunayHull_Degenerate(t *testing.T) {
	tests := []struct {
		name   string
		points []orb.Point
	}{
		{"empty", nil},
		{"two points", []orb.Point{{0, 0}, {1, 1}}},
		{"collinear", []orb.Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDelaunayHull().Build(tt.points, 1)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDegeneratePointCloud))
		})
	}
}

// wavyRing is a closed ring of n vertices around a circle with a ripple
func wavyRing(n int) orb.Ring {
	r := make(orb.Ring, 0, n+1)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		radius := 1 + 0.05*math.Sin(12*a)
		r = append(r, orb.Point{radius * math.Cos(a), radius * math.Sin(a)})
	}
	return append(r, r[0])
}

func TestRingIsSimple(t *testing.T) {
	tests := []struct {
		name string
		ring orb.Ring
		want bool
	}{
		{"square", square(0, 0, 1)[0], true},
		{"bowtie", orb.Ring{{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0}}, false},
		{"too short", orb.Ring{{0, 0}, {1, 0}, {0, 0}}, false},
		{"touching vertex", orb.Ring{{0, 0}, {2, 0}, {2, 2}, {1, 0}, {0, 2}, {0, 0}}, false},
		{"concave", orb.Ring{{0, 0}, {2, 0}, {2, 2}, {1, 1}, {0, 2}, {0, 0}}, true},
		{"not closed", orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, false},
		{"wavy circle", wavyRing(4000), true},
		{"crossing spike", append(wavyRing(400)[:200:200], orb.Point{-2, 0}, orb.Point{0, 0.9}, orb.Point{1, 0}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ringIsSimple(tt.ring))
		})
	}
}
