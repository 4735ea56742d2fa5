// Package preview renders scalar fields such as blend weights and gradient
// sums as grayscale PNG images for inspection.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/mat"

	"projblend/pkg/errs"
)

// DefaultMaxSize bounds the longer side of a saved preview.
const DefaultMaxSize = 1024

// Viewer renders a field stored row-major with row 0 at the top.
type Viewer struct {
	// field holds the values to render
	field *mat.Dense

	// scale maps field values to [0, 1]
	scale float64

	// MaxSize is the longest side of a saved preview in pixels. Larger
	// fields are downscaled; zero keeps the full resolution.
	MaxSize int
}

// NewViewer creates a viewer for a field whose values already lie in [0, 1],
// such as blend weights.
func NewViewer(field *mat.Dense) *Viewer {
	return &Viewer{field: field, scale: 1, MaxSize: DefaultMaxSize}
}

// NewNormalizedViewer creates a viewer that divides by the field maximum, for
// unbounded fields such as distance sums.
func NewNormalizedViewer(field *mat.Dense) *Viewer {
	v := NewViewer(field)
	if m := mat.Max(field); m > 0 {
		v.scale = 1 / m
	}
	return v
}

// Image converts the field to a 16-bit grayscale image, clamping to [0, 1].
// NaN renders black.
func (v *Viewer) Image() *image.Gray16 {
	rows, cols := v.field.Dims()
	img := image.NewGray16(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			f := v.field.At(y, x) * v.scale
			if math.IsNaN(f) {
				f = 0
			}
			value := uint16(math.Max(0, math.Min(65535, f*65535)))
			img.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return img
}

// Render returns the preview as displayed: flipped vertically so row 0 is at
// the bottom, and downscaled to MaxSize.
func (v *Viewer) Render() image.Image {
	img := imaging.FlipV(v.Image())
	b := img.Bounds()
	if v.MaxSize > 0 && (b.Dx() > v.MaxSize || b.Dy() > v.MaxSize) {
		return imaging.Fit(img, v.MaxSize, v.MaxSize, imaging.Lanczos)
	}
	return img
}

// Save writes the rendered preview to filename. The format follows the file
// extension.
func (v *Viewer) Save(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.IO("mkdir", dir, err)
	}
	if err := imaging.Save(v.Render(), filename); err != nil {
		return errs.IO("write", filename, fmt.Errorf("saving preview: %w", err))
	}
	return nil
}
