package isochrone

import (
	"bytes"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallCollection spans about 200 m so rendered images stay small
func smallCollection() *IsochroneMapCollection {
	return &IsochroneMapCollection{
		Maps: []*IsochroneMap{
			{Index: 0, Center: orb.Point{8.6805, 49.4205}, Isochrones: []*Isochrone{
				{Geometry: square(8.6802, 49.4202, 0.0006), Value: 60},
				{Geometry: square(8.68, 49.42, 0.001), Value: 120},
			}},
			{Index: 1, Center: orb.Point{8.6815, 49.4205}, Isochrones: []*Isochrone{
				{Geometry: square(8.681, 49.42, 0.001), Value: 120},
			}},
		},
		Intersections: []*IsochronesIntersection{
			{Geometry: square(8.681, 49.42, 0.0001), Contours: []ContourRef{{0, 1}, {1, 0}}},
		},
	}
}

func TestNrgbaToRGBA(t *testing.T) {
	tests := []struct {
		name string
		in   color.NRGBA
		want color.RGBA
	}{
		{"transparent", color.NRGBA{255, 255, 255, 0}, color.RGBA{0, 0, 0, 0}},
		{"opaque", color.NRGBA{10, 20, 30, 255}, color.RGBA{10, 20, 30, 255}},
		{"half", color.NRGBA{200, 100, 50, 128}, color.RGBA{100, 50, 25, 128}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nrgbaToRGBA(tt.in))
		})
	}
}

func TestRenderToSVG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMapRenderer(smallCollection()).RenderToSVG(&buf))

	svg := buf.String()
	assert.True(t, strings.Contains(svg, "<svg"), "missing svg root")
	assert.GreaterOrEqual(t, strings.Count(svg, "<path"), 4, "background, three isochrones and markers")
}

func TestRenderToPNG(t *testing.T) {
	var buf bytes.Buffer
	r := NewMapRenderer(smallCollection())
	require.NoError(t, r.RenderToPNG(&buf))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	b := img.Bounds()
	assert.Greater(t, b.Dx(), 50)
	assert.Greater(t, b.Dy(), 50)
}

func TestRender_Empty(t *testing.T) {
	r := NewMapRenderer(&IsochroneMapCollection{})
	assert.Error(t, r.RenderToSVG(&bytes.Buffer{}))
	assert.Error(t, r.RenderToPNG(&bytes.Buffer{}))
}

func TestRenderColorsWrap(t *testing.T) {
	r := NewMapRenderer(smallCollection())
	assert.Equal(t, r.Colors[0], r.color(len(r.Colors)))
}
