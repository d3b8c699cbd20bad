package geo

import "math"

// Neighbor is one corner of the 2×2 pixel neighborhood enclosing a
// fractional position, with its bilinear weight.
type Neighbor struct {
	Col    int
	Row    int
	Weight float64
}

// Neighbors returns the four enclosing neighbors of p with weights summing to
// exactly 1 before any validity filtering. Indices may lie outside any grid;
// bounds and validity are the consumer's responsibility.
func Neighbors(p FractionalPixel) [4]Neighbor {
	i0 := floorIndex(p.X)
	j0 := floorIndex(p.Y)

	tx := p.X - math.Floor(p.X)
	ty := p.Y - math.Floor(p.Y)
	if math.IsNaN(tx) || math.IsInf(tx, 0) {
		tx = 0
	}
	if math.IsNaN(ty) || math.IsInf(ty, 0) {
		ty = 0
	}

	return [4]Neighbor{
		{Col: i0, Row: j0, Weight: (1 - tx) * (1 - ty)},
		{Col: i0 + 1, Row: j0, Weight: tx * (1 - ty)},
		{Col: i0, Row: j0 + 1, Weight: (1 - tx) * ty},
		{Col: i0 + 1, Row: j0 + 1, Weight: tx * ty},
	}
}

// floorIndex converts a floor to int, saturating so non-finite or huge
// positions (off-disk sites) stay representable and simply fail every bounds
// check downstream.
func floorIndex(v float64) int {
	f := math.Floor(v)
	const limit = 1 << 30
	switch {
	case math.IsNaN(f):
		return -limit
	case f >= limit:
		return limit
	case f <= -limit:
		return -limit
	default:
		return int(f)
	}
}
