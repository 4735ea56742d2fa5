package models

import (
	"fmt"

	"github.com/paulmach/orb"
)

// ViewportID identifies one viewport of one projector. Projector is the
// position of the projector in the configured projector list, not its file
// number, so IDs index directly into per-run slices.
type ViewportID struct {
	Projector int
	Viewport  int
}

func (id ViewportID) String() string {
	return fmt.Sprintf("%d/%d", id.Projector, id.Viewport)
}

// SampleSet holds the valid samples read from one projector's
// correspondence raster
type SampleSet struct {
	// Projector is the index of the projector in the run
	Projector int

	// Number is the projector's file number used in file name templates
	Number int

	// Width and Height are the projector raster dimensions
	Width, Height int

	// Pixels holds the pixel coordinate of every valid sample, X = column
	// and Y = row, in row-major order
	Pixels []orb.Point

	// U, V, I are the channel values of the valid samples. U is seam
	// corrected when Wrapped is set.
	U, V, I []float64

	// Wrapped records that U was shifted by half a turn to undo a texture
	// seam; the UV gradient of every viewport of this projector is rolled
	// back by half the grid width
	Wrapped bool
}

// Len returns the number of valid samples.
func (s *SampleSet) Len() int { return len(s.Pixels) }

// UVPoints returns the samples in UV grid coordinates, X = U*width and
// Y = V*height.
func (s *SampleSet) UVPoints(width, height int) []orb.Point {
	pts := make([]orb.Point, len(s.U))
	for i := range s.U {
		pts[i] = orb.Point{s.U[i] * float64(width), s.V[i] * float64(height)}
	}
	return pts
}

// Cluster is the subset of one projector's samples believed to belong to a
// single viewport
type Cluster struct {
	ID ViewportID

	// Indices are positions into the projector's SampleSet
	Indices []int

	// Pixels and UV are the member samples in pixel and UV grid space
	Pixels []orb.Point
	UV     []orb.Point
}

// Viewport carries everything computed for one viewport on its way through
// the pipeline
type Viewport struct {
	ID ViewportID

	// Samples is the number of samples in the viewport's cluster
	Samples int

	// PixelHull and UVHull are the ordered hull polygons in pixel and UV space
	PixelHull orb.Ring
	UVHull    orb.Ring

	// Wrapped is copied from the projector's SampleSet
	Wrapped bool
}
