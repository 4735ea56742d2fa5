// Package blend turns per-viewport distance fields into cross-fade weights.
//
// Each viewport's weight at a UV pixel is its distance to its own mask
// boundary divided by the sum of all viewports' distances there, so weights
// fall off smoothly towards each viewport's edge and sum to one wherever any
// viewport covers the pixel.
package blend

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Sum adds the fields element-wise. All fields must share one shape.
func Sum(fields []*mat.Dense) (*mat.Dense, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to sum")
	}
	rows, cols := fields[0].Dims()
	sum := mat.NewDense(rows, cols, nil)
	for i, f := range fields {
		if r, c := f.Dims(); r != rows || c != cols {
			return nil, fmt.Errorf("field %d is %dx%d, want %dx%d", i, r, c, rows, cols)
		}
		sum.Add(sum, f)
	}
	return sum, nil
}

// Normalize converts fields to weights in place and returns the aggregate
// sum: field/sum where the field is positive and 0 elsewhere.
func Normalize(fields []*mat.Dense) (*mat.Dense, error) {
	sum, err := Sum(fields)
	if err != nil {
		return nil, err
	}
	for _, f := range fields {
		f.Apply(func(r, c int, v float64) float64 {
			if v > 0 {
				return v / sum.At(r, c)
			}
			return 0
		}, f)
	}
	return sum, nil
}
