package pipeline

import (
	"github.com/paulmach/orb"

	"projblend/internal/models"
	"projblend/pkg/errs"
	"projblend/pkg/raster"
	"projblend/pkg/seam"
)

// LoadSamples reads the per-pixel correspondence raster of one projector and
// collects every pixel whose U value exceeds threshold, in row-major order.
// U is unwrapped in place when the samples straddle the texture seam.
func LoadSamples(path string, projector, number int, threshold float64) (*models.SampleSet, error) {
	img, err := raster.ReadFile(path)
	if err != nil {
		return nil, err
	}

	set := Samples(img, threshold)
	set.Projector = projector
	set.Number = number
	if set.Len() == 0 {
		return nil, errs.Dataf(number, errs.NoIndex, "no valid samples in %s", path)
	}
	set.Wrapped = seam.Unwrap(set.U)
	return set, nil
}

// Samples extracts the valid samples of img without seam correction.
func Samples(img *raster.Image, threshold float64) *models.SampleSet {
	set := &models.SampleSet{Width: img.Width, Height: img.Height}
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			u := img.At(raster.U, x, y)
			if !(u > threshold) {
				continue
			}
			set.Pixels = append(set.Pixels, orb.Point{float64(x), float64(y)})
			set.U = append(set.U, u)
			set.V = append(set.V, img.At(raster.V, x, y))
			set.I = append(set.I, img.At(raster.I, x, y))
		}
	}
	return set
}
