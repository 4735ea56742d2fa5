// Package resample looks up UV-space blend weights at projector pixels.
package resample

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"projblend/pkg/mask"
	"projblend/pkg/raster"
)

// Lookup converts a UV coordinate to a cell of a rows x cols UV grid:
// col = floor(u*cols - 0.5), row = floor(v*rows - 0.5). ok is false when the
// cell falls outside the grid or the coordinate is not a number.
func Lookup(u, v float64, rows, cols int) (row, col int, ok bool) {
	if math.IsNaN(u) || math.IsNaN(v) {
		return 0, 0, false
	}
	c := math.Floor(u*float64(cols) - 0.5)
	r := math.Floor(v*float64(rows) - 0.5)
	if c < 0 || r < 0 || c >= float64(cols) || r >= float64(rows) {
		return 0, 0, false
	}
	return int(r), int(c), true
}

// Stats counts what Apply did for one viewport.
type Stats struct {
	// Written is the number of pixels that received a weight
	Written int
	// Outside is the number of masked pixels whose UV lookup fell off the grid
	Outside int
}

// Apply writes weights into the intensity channel of out for every pixel set
// in pixelMask, using the U and V channels of uv to find the weight cell.
// Pixels already written by an earlier viewport are overwritten.
func Apply(out, uv *raster.Image, pixelMask *mask.Mask, weights *mat.Dense) Stats {
	rows, cols := weights.Dims()
	var st Stats
	for y := 0; y < pixelMask.Height; y++ {
		for x := 0; x < pixelMask.Width; x++ {
			if pixelMask.At(x, y) == 0 {
				continue
			}
			r, c, ok := Lookup(uv.At(raster.U, x, y), uv.At(raster.V, x, y), rows, cols)
			if !ok {
				st.Outside++
				continue
			}
			out.Set(raster.I, x, y, weights.At(r, c))
			st.Written++
		}
	}
	return st
}

// Output starts a projector's output image: U and V copied from the
// interpolated correspondence raster and a zero intensity channel.
func Output(uv *raster.Image) *raster.Image {
	out := raster.New(uv.Width, uv.Height)
	copy(out.Planes[raster.U], uv.Planes[raster.U])
	copy(out.Planes[raster.V], uv.Planes[raster.V])
	return out
}
