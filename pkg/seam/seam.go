// Package seam detects and undoes UV wraparound where the texture coordinate
// of a cylindrical projection surface jumps from 1 back to 0.
package seam

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Span is the U range above which a projector's samples are treated as
// wrapping the seam.
const Span = 0.5

// Wraps reports whether the U coordinates straddle the texture seam.
func Wraps(u []float64) bool {
	if len(u) == 0 {
		return false
	}
	return floats.Max(u)-floats.Min(u) > Span
}

// Unwrap shifts U in place by half a turn when the samples wrap the seam:
// values above 0.5 move down by 0.5 and values at or below 0.5 move up by
// 0.5, giving one contiguous range. It reports whether a shift was applied.
func Unwrap(u []float64) bool {
	if !Wraps(u) {
		return false
	}
	for i, v := range u {
		if v > Span {
			u[i] = v - Span
		} else {
			u[i] = v + Span
		}
	}
	return true
}

// HalfTurn is the column shift that maps a grid computed in unwrapped UV
// space back to the unshifted UV space. It floors -cols/2, matching a roll by
// minus half the width.
func HalfTurn(cols int) int {
	return -((cols + 1) / 2)
}

// Roll cyclically shifts the columns of m by shift: column c moves to column
// (c+shift) mod cols. It returns a new matrix.
func Roll(m *mat.Dense, shift int) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	shift %= cols
	if shift < 0 {
		shift += cols
	}
	src := m.RawMatrix()
	dst := out.RawMatrix()
	for r := 0; r < rows; r++ {
		srow := src.Data[r*src.Stride : r*src.Stride+cols]
		drow := dst.Data[r*dst.Stride : r*dst.Stride+cols]
		copy(drow[shift:], srow[:cols-shift])
		copy(drow[:shift], srow[cols-shift:])
	}
	return out
}
