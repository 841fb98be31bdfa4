package isochrone

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/paulmach/orb"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// GroupColor is the palette entry of one location
type GroupColor struct {
	Fill   color.NRGBA
	Stroke color.NRGBA
}

// DefaultColors returns distinct colors for up to 4 locations
func DefaultColors() []GroupColor {
	return []GroupColor{
		{Fill: color.NRGBA{100, 149, 237, 90}, Stroke: color.NRGBA{0, 0, 139, 255}},    // blue
		{Fill: color.NRGBA{255, 99, 71, 90}, Stroke: color.NRGBA{139, 0, 0, 255}},      // red
		{Fill: color.NRGBA{144, 238, 144, 90}, Stroke: color.NRGBA{0, 100, 0, 255}},    // green
		{Fill: color.NRGBA{255, 255, 150, 90}, Stroke: color.NRGBA{184, 134, 11, 255}}, // yellow
	}
}

// nrgbaToRGBA premultiplies alpha for the canvas library
func nrgbaToRGBA(c color.NRGBA) color.RGBA {
	if c.A == 0 {
		return color.RGBA{0, 0, 0, 0}
	}
	if c.A == 255 {
		return color.RGBA{c.R, c.G, c.B, 255}
	}
	a := uint32(c.A)
	return color.RGBA{
		R: uint8(uint32(c.R) * a / 255),
		G: uint8(uint32(c.G) * a / 255),
		B: uint8(uint32(c.B) * a / 255),
		A: c.A,
	}
}

// MapRenderer draws an isochrone collection as SVG or PNG. Canvas units are
// millimetres; MetresPerUnit sets the map scale.
type MapRenderer struct {
	Collection    *IsochroneMapCollection
	Colors        []GroupColor
	MetresPerUnit float64
	Padding       float64
	Resolution    canvas.Resolution
	Labels        bool
}

// NewMapRenderer creates a renderer with default settings
func NewMapRenderer(c *IsochroneMapCollection) *MapRenderer {
	return &MapRenderer{
		Collection:    c,
		Colors:        DefaultColors(),
		MetresPerUnit: 10,
		Padding:       10,
		Resolution:    canvas.DPI(150),
		Labels:        true,
	}
}

// canvasRenderer is implemented by both the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// projection maps lon/lat into canvas units around the collection's bound
type projection struct {
	bound   orb.Bound
	kx, ky  float64
	padding float64
}

func (r *MapRenderer) projection() (projection, float64, float64) {
	b := r.Collection.Bound()
	lat0 := b.Center()[1] * math.Pi / 180
	scale := metresPerDegree / r.MetresPerUnit
	p := projection{
		bound:   b,
		kx:      scale * math.Cos(lat0),
		ky:      scale,
		padding: r.Padding,
	}
	width := (b.Max[0]-b.Min[0])*p.kx + 2*r.Padding
	height := (b.Max[1]-b.Min[1])*p.ky + 2*r.Padding
	return p, width, height
}

func (p projection) apply(pt orb.Point) (float64, float64) {
	return (pt[0]-p.bound.Min[0])*p.kx + p.padding, (pt[1]-p.bound.Min[1])*p.ky + p.padding
}

// RenderToSVG writes the collection as SVG
func (r *MapRenderer) RenderToSVG(w io.Writer) error {
	if len(r.Collection.Maps) == 0 {
		return fmt.Errorf("nothing to render")
	}
	proj, width, height := r.projection()
	s := svg.New(w, width, height, nil)
	r.renderToCanvas(s, proj, width, height)
	return s.Close()
}

// RenderToPNG writes the collection as PNG, with a legend when Labels is set
func (r *MapRenderer) RenderToPNG(w io.Writer) error {
	if len(r.Collection.Maps) == 0 {
		return fmt.Errorf("nothing to render")
	}
	proj, width, height := r.projection()
	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, proj, width, height)
	if r.Labels {
		r.drawLegend(rast)
	}
	return png.Encode(w, rast)
}

func (r *MapRenderer) color(group int) GroupColor {
	return r.Colors[group%len(r.Colors)]
}

func (r *MapRenderer) renderToCanvas(renderer canvasRenderer, proj projection, width, height float64) {
	bg := canvas.DefaultStyle
	bg.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bg, canvas.Identity)

	for _, m := range r.Collection.Maps {
		gc := r.color(m.Index)
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: nrgbaToRGBA(gc.Fill)}
		style.Stroke = canvas.Paint{Color: nrgbaToRGBA(gc.Stroke)}
		style.StrokeWidth = 0.5

		// largest first so smaller ranges stay visible
		for i := len(m.Isochrones) - 1; i >= 0; i-- {
			renderer.RenderPath(polygonPath(m.Isochrones[i].Geometry, proj), style, canvas.Identity)
		}

		cx, cy := proj.apply(m.Center)
		marker := canvas.DefaultStyle
		marker.Fill = canvas.Paint{Color: nrgbaToRGBA(gc.Stroke)}
		renderer.RenderPath(canvas.Circle(1.5).Translate(cx, cy), marker, canvas.Identity)
	}

	hatch := canvas.DefaultStyle
	hatch.Fill = canvas.Paint{Color: canvas.Transparent}
	hatch.Stroke = canvas.Paint{Color: canvas.Black}
	hatch.StrokeWidth = 0.3
	hatch.Dashes = []float64{1, 1}
	for _, x := range r.Collection.Intersections {
		for _, poly := range polygonsOf(x.Geometry) {
			renderer.RenderPath(polygonPath(poly, proj), hatch, canvas.Identity)
		}
	}
}

func polygonPath(poly orb.Polygon, proj projection) *canvas.Path {
	cp := &canvas.Path{}
	for _, ring := range poly {
		for i, pt := range ring {
			x, y := proj.apply(pt)
			if i == 0 {
				cp.MoveTo(x, y)
			} else {
				cp.LineTo(x, y)
			}
		}
		cp.Close()
	}
	return cp
}

func polygonsOf(g orb.Geometry) []orb.Polygon {
	switch v := g.(type) {
	case orb.Polygon:
		return []orb.Polygon{v}
	case orb.MultiPolygon:
		return v
	}
	return nil
}

// drawLegend lists every isochrone in the top-left corner of the image
func (r *MapRenderer) drawLegend(img draw.Image) {
	y := 16
	for _, m := range r.Collection.Maps {
		gc := r.color(m.Index)
		for _, iso := range m.Isochrones {
			for dy := 0; dy < 8; dy++ {
				for dx := 0; dx < 8; dx++ {
					img.Set(10+dx, y+dy-8, gc.Stroke)
				}
			}
			drawText(img, 24, y, fmt.Sprintf("group %d: %g", m.Index, iso.Value), color.RGBA{0, 0, 0, 255})
			y += 16
		}
	}
}

// drawText renders text onto an image at the specified position
func drawText(img draw.Image, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
