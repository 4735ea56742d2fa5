// Package raster holds three-channel float rasters and reads and writes them
// as Portable Float Map (PFM) files.
//
// The channel layout used by projblend is (U, V, I): the UV coordinate of a
// projector pixel on the projection surface and its intensity or blend weight.
package raster

// Channel indices of the (U, V, I) layout.
const (
	U = 0
	V = 1
	I = 2
)

// Invalid is the sentinel stored in U and V for pixels without a sample.
const Invalid = -1.0

// Image is a three-channel float raster. Each plane is stored row-major with
// row 0 at the top of the image.
type Image struct {
	Width  int
	Height int
	Planes [3][]float32
}

// New allocates a zeroed width x height image.
func New(width, height int) *Image {
	img := &Image{Width: width, Height: height}
	for c := range img.Planes {
		img.Planes[c] = make([]float32, width*height)
	}
	return img
}

// At returns channel c at pixel (x, y).
func (m *Image) At(c, x, y int) float64 {
	return float64(m.Planes[c][y*m.Width+x])
}

// Set stores v in channel c at pixel (x, y).
func (m *Image) Set(c, x, y int, v float64) {
	m.Planes[c][y*m.Width+x] = float32(v)
}

// FromGrid builds an image whose three channels all hold the grid values,
// the same way the calibration tools dump masks as r=g=b.
func FromGrid(width, height int, at func(x, y int) float64) *Image {
	img := New(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := float32(at(x, y))
			i := y*width + x
			img.Planes[U][i] = v
			img.Planes[V][i] = v
			img.Planes[I][i] = v
		}
	}
	return img
}

// HasSize reports whether m is width x height.
func (m *Image) HasSize(width, height int) bool {
	return m.Width == width && m.Height == height
}
