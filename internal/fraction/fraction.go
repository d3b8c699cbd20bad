// Package fraction computes weighted cloud statistics over a bilinear pixel
// neighborhood.
//
// Both operations follow the same renormalization contract: accumulate
// (numerator, denominator) over the weighted neighbors, skipping any neighbor
// that is out of bounds or invalid at a required array, and return
// numerator/denominator — or NaN when no neighbor is valid at all (site
// entirely off-swath).
package fraction

import (
	"math"

	"github.com/cerro-obs/cloudfrac/internal/geo"
)

// CloudFraction returns the weighted mean of cloud presence over the
// neighborhood. mask holds 0 = clear, nonzero = cloudy, NaN = invalid.
func CloudFraction(mask [][]float64, neighbors [4]geo.Neighbor) float64 {
	var num, den float64

	for _, nb := range neighbors {
		if nb.Weight <= 0 || !inBounds(mask, nb) {
			continue
		}
		m := mask[nb.Row][nb.Col]
		if !isFinite(m) {
			continue
		}
		if m != 0 {
			num += nb.Weight
		}
		den += nb.Weight
	}

	if den == 0 {
		return math.NaN()
	}
	return num / den
}

// FractionAbove returns the weighted fraction of the neighborhood where cloud
// is present AND its top height exceeds altitudeM. mask and height must be
// aligned to the same grid. A neighbor counts toward the denominator only
// when both values are finite there, so clear sky — or cloud entirely below
// the altitude — yields exactly 0, never NaN; only total neighbor invalidity
// yields NaN.
func FractionAbove(height, mask [][]float64, neighbors [4]geo.Neighbor, altitudeM float64) float64 {
	var num, den float64

	for _, nb := range neighbors {
		if nb.Weight <= 0 || !inBounds(mask, nb) || !inBounds(height, nb) {
			continue
		}
		m := mask[nb.Row][nb.Col]
		h := height[nb.Row][nb.Col]
		if !isFinite(m) || !isFinite(h) {
			continue
		}
		den += nb.Weight
		if m != 0 && h > altitudeM {
			num += nb.Weight
		}
	}

	if den == 0 {
		return math.NaN()
	}
	return num / den
}

func inBounds(arr [][]float64, nb geo.Neighbor) bool {
	return nb.Row >= 0 && nb.Row < len(arr) && nb.Col >= 0 && nb.Col < len(arr[nb.Row])
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
