package mask

import (
	"math"

	"github.com/paulmach/orb"
)

// MaxLabel is the largest label a Mask holds.
const MaxLabel = math.MaxUint8

// Labels rasterizes polygons into a label grid: polygon i is drawn with
// label i+1 and later polygons overwrite earlier ones where they overlap.
// Callers pass at most MaxLabel polygons.
func Labels(polygons []orb.Ring, width, height int) *Mask {
	m := New(width, height)
	for i, p := range polygons {
		m.Fill(p, uint8(i+1))
	}
	return m
}
