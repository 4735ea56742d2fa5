package cluster

import (
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// mixed marks a kd-tree subtree holding points of more than one component.
const mixed = -1

// link is the shortest known edge leaving a component. dist is squared.
type link struct {
	lo, hi int
	dist   float64
}

func newLink() link { return link{lo: -1, hi: -1, dist: math.Inf(1)} }

// offer keeps (a, b) if it is shorter than the current link. Equal lengths
// are decided by the endpoint indices so every run picks the same edge.
func (l *link) offer(a, b int, dist float64) {
	if dist > l.dist {
		return
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	if dist == l.dist && l.lo >= 0 && (lo > l.lo || lo == l.lo && hi >= l.hi) {
		return
	}
	l.lo, l.hi, l.dist = lo, hi, dist
}

// forest is a disjoint set over sample indices.
type forest []int

func newForest(n int) forest {
	f := make(forest, n)
	for i := range f {
		f[i] = i
	}
	return f
}

func (f forest) find(i int) int {
	for f[i] != i {
		f[i] = f[f[i]]
		i = f[i]
	}
	return i
}

func (f forest) union(a, b int) bool {
	ra, rb := f.find(a), f.find(b)
	if ra == rb {
		return false
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	f[rb] = ra
	return true
}

// boruvka builds the exact Euclidean minimum spanning tree of a point set.
// Each round links every component to its nearest outside point. The
// nearest-neighbour lists give each component a starting bound, and the
// kd-tree search skips subtrees that lie entirely inside the querying
// component.
type boruvka struct {
	pts  []orb.Point
	tree *kdtree.Tree

	// near holds each point's candidate neighbours
	near [][]int

	// comp is the component of every point in the current round
	comp []int

	// pure is the component of every single-component subtree, or mixed
	pure map[*kdtree.Node]int
}

// minimumSpanningTree returns the Euclidean minimum spanning tree of pts
// with edges weighted by distance. nb nearest neighbours per point seed the
// search bounds.
func minimumSpanningTree(pts []orb.Point, nb int) *simple.WeightedUndirectedGraph {
	n := len(pts)
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}

	b := &boruvka{
		pts:  pts,
		tree: kdtree.New(newPoints(pts, ids), false),
		comp: make([]int, n),
		pure: make(map[*kdtree.Node]int),
	}
	b.near = b.neighbours(nb)

	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for _, id := range ids {
		g.AddNode(simple.Node(id))
	}

	sets := newForest(n)
	for parts := n; parts > 1; {
		for i := range b.comp {
			b.comp[i] = sets.find(i)
		}
		clear(b.pure)
		b.annotate(b.tree.Root)

		best := make([]link, n)
		for i := range best {
			best[i] = newLink()
		}
		for i := 0; i < n; i++ {
			c := b.comp[i]
			for _, j := range b.near[i] {
				if b.comp[j] != c {
					best[c].offer(i, j, b.distance(i, j))
				}
			}
		}
		for i := 0; i < n; i++ {
			c := b.comp[i]
			q := point{X: pts[i][0], Y: pts[i][1], ID: i}
			b.nearest(b.tree.Root, q, c, &best[c])
		}

		merged := false
		for c := 0; c < n; c++ {
			e := best[c]
			if e.lo < 0 || !sets.union(e.lo, e.hi) {
				continue
			}
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(e.lo), simple.Node(e.hi), math.Sqrt(e.dist)))
			parts--
			merged = true
		}
		if !merged {
			break
		}
	}
	return g
}

// neighbours returns the nb nearest other points of every point.
func (b *boruvka) neighbours(nb int) [][]int {
	near := make([][]int, len(b.pts))
	for i, p := range b.pts {
		keeper := kdtree.NewNKeeper(nb + 1)
		b.tree.NearestSet(keeper, point{X: p[0], Y: p[1], ID: i})
		for _, item := range keeper.Heap {
			// Skip the sentinel value
			if item.Comparable == nil {
				continue
			}
			if other := item.Comparable.(point).ID; other != i {
				near[i] = append(near[i], other)
			}
		}
	}
	return near
}

// annotate records the component of every single-component subtree of n and
// returns it, mixed, or -2 for an empty subtree.
func (b *boruvka) annotate(n *kdtree.Node) int {
	if n == nil {
		return -2
	}
	c := b.comp[n.Point.(point).ID]
	l, r := b.annotate(n.Left), b.annotate(n.Right)
	if (l != -2 && l != c) || (r != -2 && r != c) {
		c = mixed
	}
	b.pure[n] = c
	return c
}

// nearest offers every point of n's subtree outside component c that could
// beat e.
func (b *boruvka) nearest(n *kdtree.Node, q point, c int, e *link) {
	if n == nil || b.pure[n] == c {
		return
	}
	p := n.Point.(point)
	if b.comp[p.ID] != c {
		e.offer(q.ID, p.ID, q.Distance(p))
	}

	d := q.Compare(n.Point, n.Plane)
	near, far := n.Left, n.Right
	if d > 0 {
		near, far = far, near
	}
	b.nearest(near, q, c, e)
	if d*d <= e.dist {
		b.nearest(far, q, c, e)
	}
}

func (b *boruvka) distance(i, j int) float64 {
	dx := b.pts[i][0] - b.pts[j][0]
	dy := b.pts[i][1] - b.pts[j][1]
	return dx*dx + dy*dy
}
