// Package plot draws the valid samples of a projector coloured by viewport,
// with the pixel-space hull of each viewport outlined on top.
package plot

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"

	"projblend/internal/models"
	"projblend/pkg/errs"
)

// DefaultMaxPoints bounds the number of samples drawn per plot.
const DefaultMaxPoints = 20000

// palette colours viewports in order, wrapping around for larger counts.
var palette = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
	{R: 140, G: 86, B: 75, A: 255},
}

// Plotter renders sample scatter plots.
type Plotter struct {
	// MaxPoints is the largest number of samples drawn per viewport; denser
	// viewports are subsampled with a fixed stride. Zero draws every sample.
	MaxPoints int

	// PointRadius is the dot radius in pixels
	PointRadius float64

	// LineWidth is the hull outline width in pixels
	LineWidth float64
}

// NewPlotter returns a plotter with default settings.
func NewPlotter() *Plotter {
	return &Plotter{MaxPoints: DefaultMaxPoints, PointRadius: 1, LineWidth: 2}
}

// Color returns the plot colour of viewport v.
func Color(v int) color.RGBA {
	return palette[v%len(palette)]
}

// Draw renders the clusters of one projector on a width x height canvas in
// pixel coordinates, then outlines the hulls.
func (p *Plotter) Draw(width, height int, clusters []*models.Cluster, hulls []orb.Ring) image.Image {
	ctx := gg.NewContext(width, height)
	ctx.DrawRectangle(0, 0, float64(width), float64(height))
	ctx.SetRGBA(1, 1, 1, 1)
	ctx.Fill()

	for _, cl := range clusters {
		ctx.SetFillStyle(gg.NewSolidPattern(Color(cl.ID.Viewport)))
		for _, i := range p.stride(len(cl.Pixels)) {
			pt := cl.Pixels[i]
			ctx.DrawCircle(pt[0], pt[1], p.PointRadius)
			ctx.Fill()
		}
	}

	ctx.SetStrokeStyle(gg.NewSolidPattern(color.RGBA{A: 255}))
	ctx.SetLineWidth(p.LineWidth)
	for _, h := range hulls {
		drawRing(ctx, h)
	}
	return ctx.Image()
}

// SavePNG draws the clusters and hulls and writes the plot to filename.
func (p *Plotter) SavePNG(filename string, width, height int, clusters []*models.Cluster, hulls []orb.Ring) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.IO("mkdir", dir, err)
	}
	if err := gg.SavePNG(filename, p.Draw(width, height, clusters, hulls)); err != nil {
		return errs.IO("write", filename, fmt.Errorf("saving sample plot: %w", err))
	}
	return nil
}

// stride returns the sample indices to draw out of n.
func (p *Plotter) stride(n int) []int {
	step := 1
	if p.MaxPoints > 0 && n > p.MaxPoints {
		step = (n + p.MaxPoints - 1) / p.MaxPoints
	}
	idx := make([]int, 0, n/step+1)
	for i := 0; i < n; i += step {
		idx = append(idx, i)
	}
	return idx
}

func drawRing(ctx *gg.Context, ring orb.Ring) {
	if len(ring) < 2 {
		return
	}
	ctx.Push()
	ctx.MoveTo(ring[0][0], ring[0][1])
	for _, pt := range ring[1:] {
		ctx.LineTo(pt[0], pt[1])
	}
	ctx.ClosePath()
	ctx.Stroke()
	ctx.Pop()
}
