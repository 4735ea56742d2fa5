// Package distance computes exact Euclidean distance transforms of binary
// masks.
package distance

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"projblend/pkg/mask"
)

// Transform returns, for every non-zero pixel of m, the Euclidean distance to
// the nearest zero pixel, and 0 for zero pixels. The result has m.Height rows
// and m.Width columns.
//
// A mask without any zero pixel measures distance to the grid exterior
// instead, as if the mask were padded with a one pixel zero border.
func Transform(m *mask.Mask) *mat.Dense {
	if m.Count() == len(m.Pix) {
		return padded(m)
	}

	rows, cols := m.Height, m.Width
	// exceeds every squared distance on the grid and keeps the parabola
	// intersections in exact integer range
	far := float64(rows*rows + cols*cols + 1)
	f := make([]float64, rows*cols)
	for i, v := range m.Pix {
		if v != 0 {
			f[i] = far
		}
	}
	squared(f, rows, cols)
	for i, v := range f {
		f[i] = math.Sqrt(v)
	}
	return mat.NewDense(rows, cols, f)
}

func padded(m *mask.Mask) *mat.Dense {
	p := mask.New(m.Width+2, m.Height+2)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			p.Set(x+1, y+1, m.At(x, y))
		}
	}
	full := Transform(p)
	out := mat.NewDense(m.Height, m.Width, nil)
	out.Copy(full.Slice(1, m.Height+1, 1, m.Width+1))
	return out
}

// squared runs the one-dimensional squared distance transform down every
// column and then along every row of the row-major grid f.
func squared(f []float64, rows, cols int) {
	n := max(rows, cols)
	buf := make([]float64, n)
	out := make([]float64, n)
	v := make([]int, n)
	z := make([]float64, n+1)

	col := buf[:rows]
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			col[r] = f[r*cols+c]
		}
		transform1D(col, out[:rows], v, z)
		for r := 0; r < rows; r++ {
			f[r*cols+c] = out[r]
		}
	}

	for r := 0; r < rows; r++ {
		row := f[r*cols : (r+1)*cols]
		copy(buf[:cols], row)
		transform1D(buf[:cols], row, v, z)
	}
}

// transform1D computes d[q] = min_p (q-p)^2 + f[p] by the lower envelope of
// parabolas (Felzenszwalb and Huttenlocher).
func transform1D(f, d []float64, v []int, z []float64) {
	n := len(f)
	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)
	for q := 1; q < n; q++ {
		s := intersect(f, q, v[k])
		for s <= z[k] {
			k--
			s = intersect(f, q, v[k])
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}

	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - v[k])
		d[q] = dq*dq + f[v[k]]
	}
}

func intersect(f []float64, q, p int) float64 {
	fq, fp := float64(q), float64(p)
	return ((f[q] + fq*fq) - (f[p] + fp*fp)) / (2*fq - 2*fp)
}
