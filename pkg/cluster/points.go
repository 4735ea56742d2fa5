package cluster

import (
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// point is a sample position that remembers its index in the caller's slice,
// since building a kd-tree reorders the points.
type point struct {
	X, Y float64
	ID   int
}

// Compare implements the kdtree.Comparable interface
func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(point)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the kd-tree
func (p point) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between two points
func (p point) Distance(c kdtree.Comparable) float64 {
	q := c.(point)
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// points is a collection of point that satisfies kdtree.Interface
type points []point

func newPoints(pts []orb.Point, ids []int) points {
	ps := make(points, len(ids))
	for i, id := range ids {
		ps[i] = point{X: pts[id][0], Y: pts[id][1], ID: id}
	}
	return ps
}

func (p points) Index(i int) kdtree.Comparable         { return p[i] }
func (p points) Len() int                              { return len(p) }
func (p points) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot partitions around the median of medians so tree shape, and with it
// the order of equidistant neighbours, is the same on every run.
func (p points) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(plane{points: p, Dim: d}, kdtree.MedianOfMedians(plane{points: p, Dim: d}))
}

// plane implements sort.Interface and kdtree.SortSlicer for points
type plane struct {
	points
	kdtree.Dim
}

func (p plane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.points[i].X < p.points[j].X
	case 1:
		return p.points[i].Y < p.points[j].Y
	default:
		panic("illegal dimension")
	}
}

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{points: p.points[start:end], Dim: p.Dim}
}

func (p plane) Swap(i, j int) {
	p.points[i], p.points[j] = p.points[j], p.points[i]
}
