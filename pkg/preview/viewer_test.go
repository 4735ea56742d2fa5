package preview

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/mat"
)

// rampField returns a rows x cols field whose value grows with the row.
func rampField(rows, cols int) *mat.Dense {
	f := mat.NewDense(rows, cols, nil)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			f.Set(y, x, float64(y)/float64(rows-1))
		}
	}
	return f
}

// TestImageClamps verifies that values outside [0, 1] and NaN are clamped
func TestImageClamps(t *testing.T) {
	f := mat.NewDense(1, 4, []float64{-0.5, 0.5, 2, math.NaN()})
	img := NewViewer(f).Image()

	want := []uint16{0, 32767, 65535, 0}
	for x, w := range want {
		if got := img.Gray16At(x, 0).Y; got != w {
			t.Errorf("pixel %d = %d, want %d", x, got, w)
		}
	}
}

// TestRenderFlipsVertically verifies that row 0 ends up at the bottom
func TestRenderFlipsVertically(t *testing.T) {
	f := rampField(10, 4)
	img := NewViewer(f).Render()

	b := img.Bounds()
	if b.Dx() != 4 || b.Dy() != 10 {
		t.Fatalf("Expected 4x10 preview, got %dx%d", b.Dx(), b.Dy())
	}
	top := color.Gray16Model.Convert(img.At(0, 0)).(color.Gray16).Y
	bottom := color.Gray16Model.Convert(img.At(0, 9)).(color.Gray16).Y
	if top <= bottom {
		t.Errorf("Expected top pixel (last row) brighter than bottom, got %d <= %d", top, bottom)
	}
}

// TestNormalizedViewer verifies that the field maximum maps to white
func TestNormalizedViewer(t *testing.T) {
	f := mat.NewDense(1, 2, []float64{50, 100})
	img := NewNormalizedViewer(f).Image()
	if got := img.Gray16At(1, 0).Y; got != 65535 {
		t.Errorf("Expected maximum to render 65535, got %d", got)
	}
	if got := img.Gray16At(0, 0).Y; got < 32000 || got > 33000 {
		t.Errorf("Expected half maximum near 32767, got %d", got)
	}
}

// TestSaveDownscales verifies that large fields are saved within MaxSize
func TestSaveDownscales(t *testing.T) {
	v := NewViewer(rampField(200, 100))
	v.MaxSize = 50

	path := filepath.Join(t.TempDir(), "debug", "blend_0_0.png")
	if err := v.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("preview not written: %v", err)
	}

	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("Failed to reopen preview: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 25 || b.Dy() != 50 {
		t.Errorf("Expected 25x50 preview, got %dx%d", b.Dx(), b.Dy())
	}
}
