package cluster

import (
	"math"

	"github.com/paulmach/orb"

	"projblend/pkg/mask"
)

// FromMask labels each point with the label grid value under it, minus one,
// so polygon i of a viewport calibration becomes label i. Points on label 0
// or outside the grid stay Unlabeled.
func FromMask(pts []orb.Point, labels *mask.Mask) []int {
	out := make([]int, len(pts))
	for i, p := range pts {
		v := labels.At(int(math.Round(p[0])), int(math.Round(p[1])))
		out[i] = int(v) - 1
	}
	return out
}
