// Package cluster splits a projector's valid samples into viewports.
//
// SingleLinkage reproduces hierarchical single-linkage clustering cut to a
// maximum cluster count: the partition obtained by removing the heaviest
// edges of the Euclidean minimum spanning tree. The tree is built exactly
// with Borůvka rounds over a kd-tree.
package cluster

import (
	"sort"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// DefaultNeighbors is the candidate neighbour count per sample.
const DefaultNeighbors = 8

// Unlabeled marks a sample that belongs to no cluster.
const Unlabeled = -1

// Options tunes SingleLinkage.
type Options struct {
	// Neighbors is the number of nearest neighbours per sample that seed
	// the spanning tree search. Zero means DefaultNeighbors.
	Neighbors int
}

// SingleLinkage assigns each point a label in [0, k). Labels are numbered in
// the order of each cluster's first member in pts.
//
// When the points do not contain k separable groups (for instance an evenly
// spaced lattice, where every spanning tree edge has the same length) fewer
// than k labels are returned rather than splitting ties arbitrarily.
func SingleLinkage(pts []orb.Point, k int, opts Options) []int {
	n := len(pts)
	if n == 0 {
		return nil
	}
	if k < 1 {
		k = 1
	}
	nb := opts.Neighbors
	if nb <= 0 {
		nb = DefaultNeighbors
	}

	tree := minimumSpanningTree(pts, nb)
	cut(tree, k)

	return label(topo.ConnectedComponents(tree), n)
}

// Groups returns the member indices of each label, in label order. Unlabeled
// points are skipped.
func Groups(labels []int) [][]int {
	var groups [][]int
	for i, l := range labels {
		if l == Unlabeled {
			continue
		}
		for len(groups) <= l {
			groups = append(groups, nil)
		}
		groups[l] = append(groups[l], i)
	}
	return groups
}

// cut removes up to k-1 of the heaviest edges of the spanning tree. An edge
// is only removed together with every edge of equal weight, as a height
// threshold on the single-linkage dendrogram would.
func cut(tree *simple.WeightedUndirectedGraph, k int) {
	edges := graph.WeightedEdgesOf(tree.WeightedEdges())
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Weight() != edges[j].Weight() {
			return edges[i].Weight() > edges[j].Weight()
		}
		fi, ti := edgeKey(edges[i])
		fj, tj := edgeKey(edges[j])
		if fi != fj {
			return fi < fj
		}
		return ti < tj
	})

	m := min(k-1, len(edges))
	for m > 0 && m < len(edges) && edges[m-1].Weight() == edges[m].Weight() {
		m--
	}
	// coincident samples always share a cluster
	for m > 0 && edges[m-1].Weight() <= 0 {
		m--
	}
	for _, e := range edges[:m] {
		tree.RemoveEdge(e.From().ID(), e.To().ID())
	}
}

// label numbers components by their smallest member index.
func label(parts [][]graph.Node, n int) []int {
	groups := make([][]int, len(parts))
	for i, part := range parts {
		groups[i] = nodeIDs(part)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })

	labels := make([]int, n)
	for i := range labels {
		labels[i] = Unlabeled
	}
	for l, ids := range groups {
		for _, id := range ids {
			labels[id] = l
		}
	}
	return labels
}

func nodeIDs(nodes []graph.Node) []int {
	ids := make([]int, len(nodes))
	for i, n := range nodes {
		ids[i] = int(n.ID())
	}
	sort.Ints(ids)
	return ids
}

func edgeKey(e graph.Edge) (int64, int64) {
	f, t := e.From().ID(), e.To().ID()
	if f > t {
		f, t = t, f
	}
	return f, t
}
