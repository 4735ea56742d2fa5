// Package hull computes ordered convex hull polygons of viewport sample sets.
//
// Hulls are returned as vertex indices into the input point slice so the same
// vertices can be looked up in a second coordinate space. Vertex order is
// ascending atan2(y-cy, x-cx) around the centroid of the hull vertices, which
// is clockwise on screen where y grows downwards.
package hull

import (
	"math"
	"slices"
	"sort"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat"
)

// Mode selects how the pixel-space and UV-space hulls of one viewport are
// built from the same samples.
type Mode string

const (
	// ModeMerged unions the hull vertices of both spaces and orders the union
	// around the pixel-space centroid, so both polygons share one vertex list.
	// The UV polygon may then pass through interior points or self-intersect;
	// this matches blend masks produced by earlier calibration runs.
	ModeMerged Mode = "merged"

	// ModeIndependent builds and orders a true convex hull in each space.
	ModeIndependent Mode = "independent"
)

// Valid reports whether m names a known mode.
func (m Mode) Valid() bool {
	return m == ModeMerged || m == ModeIndependent
}

// Convex returns the indices of the convex hull vertices of pts, without
// duplicates or collinear boundary points, ordered around their centroid.
// Fewer than three non-collinear points yield the one or two extreme points.
func Convex(pts []orb.Point) []int {
	return Order(pts, vertices(pts))
}

// Order sorts idx by angle around the centroid of pts[idx]. The input slice
// is not modified.
func Order(pts []orb.Point, idx []int) []int {
	if len(idx) == 0 {
		return nil
	}
	xs := make([]float64, len(idx))
	ys := make([]float64, len(idx))
	for i, k := range idx {
		xs[i], ys[i] = pts[k][0], pts[k][1]
	}
	cx, cy := stat.Mean(xs, nil), stat.Mean(ys, nil)

	out := slices.Clone(idx)
	angle := make(map[int]float64, len(out))
	for _, k := range out {
		angle[k] = math.Atan2(pts[k][1]-cy, pts[k][0]-cx)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := angle[out[i]], angle[out[j]]
		if ai != aj {
			return ai < aj
		}
		return out[i] < out[j]
	})
	return out
}

// Merged returns one shared vertex list for two corresponding point sets:
// the union of the hull vertices of p and of q, ordered around the centroid
// of the union in p.
func Merged(p, q []orb.Point) []int {
	seen := make(map[int]bool)
	var union []int
	for _, set := range [][]orb.Point{p, q} {
		for _, k := range vertices(set) {
			if !seen[k] {
				seen[k] = true
				union = append(union, k)
			}
		}
	}
	sort.Ints(union)
	return Order(p, union)
}

// Independent returns the convex hull of p and of q, each ordered in its own
// space.
func Independent(p, q []orb.Point) ([]int, []int) {
	return Convex(p), Convex(q)
}

// Build returns the pixel-space and UV-space hull polygons for one viewport
// according to mode.
func Build(mode Mode, pixels, uv []orb.Point) (orb.Ring, orb.Ring) {
	if mode == ModeIndependent {
		pi, ui := Independent(pixels, uv)
		return Ring(pixels, pi), Ring(uv, ui)
	}
	idx := Merged(pixels, uv)
	return Ring(pixels, idx), Ring(uv, idx)
}

// Ring collects pts[idx] into a polygon ring. The ring is left open; the
// closing edge is implied.
func Ring(pts []orb.Point, idx []int) orb.Ring {
	r := make(orb.Ring, len(idx))
	for i, k := range idx {
		r[i] = pts[k]
	}
	return r
}

// vertices returns the unordered convex hull vertex indices of pts using
// Andrew's monotone chain.
func vertices(pts []orb.Point) []int {
	n := len(pts)
	if n == 0 {
		return nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := pts[order[i]], pts[order[j]]
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		if a[1] != b[1] {
			return a[1] < b[1]
		}
		return order[i] < order[j]
	})

	// drop coincident points, keeping the lowest index
	uniq := order[:1]
	for _, k := range order[1:] {
		if pts[k] != pts[uniq[len(uniq)-1]] {
			uniq = append(uniq, k)
		}
	}
	if len(uniq) < 3 {
		if len(uniq) == 2 {
			return []int{uniq[0], uniq[1]}
		}
		return []int{uniq[0]}
	}

	chain := make([]int, 0, 2*len(uniq))
	for _, k := range uniq {
		for len(chain) >= 2 && cross(pts[chain[len(chain)-2]], pts[chain[len(chain)-1]], pts[k]) <= 0 {
			chain = chain[:len(chain)-1]
		}
		chain = append(chain, k)
	}
	lower := len(chain) + 1
	for i := len(uniq) - 2; i >= 0; i-- {
		k := uniq[i]
		for len(chain) >= lower && cross(pts[chain[len(chain)-2]], pts[chain[len(chain)-1]], pts[k]) <= 0 {
			chain = chain[:len(chain)-1]
		}
		chain = append(chain, k)
	}
	chain = chain[:len(chain)-1]

	// all points collinear: the chain collapses to the two end points
	if len(chain) < 3 {
		return []int{uniq[0], uniq[len(uniq)-1]}
	}
	return chain
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}
