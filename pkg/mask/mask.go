// Package mask rasterizes polygons into binary and label grids.
//
// Pixel (x, y) is sampled at its integer coordinate. A pixel belongs to a
// polygon when its coordinate is inside or on the boundary: the interior is
// scanline filled and the outline is drawn on top, so boundary pixels are
// always set.
package mask

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Mask is a width x height grid of small integer values, row-major with
// row 0 at the top. Binary masks hold 0 and 1, label masks 0..n.
type Mask struct {
	Width  int
	Height int
	Pix    []uint8
}

// New returns an all-zero mask.
func New(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// Polygon returns a binary mask of ring on a width x height grid.
func Polygon(ring orb.Ring, width, height int) *Mask {
	m := New(width, height)
	m.Fill(ring, 1)
	return m
}

// At returns the value at (x, y), or 0 outside the grid.
func (m *Mask) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0
	}
	return m.Pix[y*m.Width+x]
}

// Set stores v at (x, y); coordinates outside the grid are ignored.
func (m *Mask) Set(x, y int, v uint8) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = v
}

// Count returns the number of non-zero pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Degenerate reports whether ring encloses no area: fewer than three
// vertices or all vertices collinear.
func Degenerate(ring orb.Ring) bool {
	if len(ring) < 3 {
		return true
	}
	return planar.Area(closed(ring)) == 0
}

// Fill sets every pixel inside or on ring to value. Degenerate rings leave
// the mask untouched.
func (m *Mask) Fill(ring orb.Ring, value uint8) {
	if Degenerate(ring) {
		return
	}
	m.scanline(ring, value)
	m.outline(ring, value)
}

// scanline fills the interior using the even-odd rule. Edges are treated as
// half-open in y so a vertex shared by two edges is counted once.
func (m *Mask) scanline(ring orb.Ring, value uint8) {
	b := ring.Bound()
	y0 := max(int(math.Ceil(b.Min[1])), 0)
	y1 := min(int(math.Floor(b.Max[1])), m.Height-1)

	n := len(ring)
	xs := make([]float64, 0, n)
	for y := y0; y <= y1; y++ {
		fy := float64(y)
		xs = xs[:0]
		for i := 0; i < n; i++ {
			a, c := ring[i], ring[(i+1)%n]
			if a[1] == c[1] {
				continue
			}
			lo, hi := a, c
			if lo[1] > hi[1] {
				lo, hi = hi, lo
			}
			if fy < lo[1] || fy >= hi[1] {
				continue
			}
			xs = append(xs, lo[0]+(fy-lo[1])*(hi[0]-lo[0])/(hi[1]-lo[1]))
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			x0 := max(int(math.Ceil(xs[i])), 0)
			x1 := min(int(math.Floor(xs[i+1])), m.Width-1)
			row := m.Pix[y*m.Width : (y+1)*m.Width]
			for x := x0; x <= x1; x++ {
				row[x] = value
			}
		}
	}
}

// outline draws every edge, including the closing one, with Bresenham lines
// between the rounded vertex coordinates.
func (m *Mask) outline(ring orb.Ring, value uint8) {
	n := len(ring)
	for i := 0; i < n; i++ {
		a, c := ring[i], ring[(i+1)%n]
		m.line(int(math.Round(a[0])), int(math.Round(a[1])), int(math.Round(c[0])), int(math.Round(c[1])), value)
	}
}

func (m *Mask) line(x0, y0, x1, y1 int, value uint8) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		m.Set(x0, y0, value)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// closed returns ring with its first vertex repeated at the end, the form
// orb's planar functions expect.
func closed(ring orb.Ring) orb.Ring {
	if ring.Closed() {
		return ring
	}
	out := make(orb.Ring, len(ring), len(ring)+1)
	copy(out, ring)
	return append(out, ring[0])
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
