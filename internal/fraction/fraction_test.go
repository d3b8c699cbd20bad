package fraction

import (
	"math"
	"testing"

	"github.com/cerro-obs/cloudfrac/internal/geo"
)

func centerNeighbors() [4]geo.Neighbor {
	// Equal-weight 2x2 block at rows/cols 1..2, the neighborhood of
	// fractional position (1.5, 1.5).
	return geo.Neighbors(geo.FractionalPixel{X: 1.5, Y: 1.5})
}

func grid4x4(fill float64) [][]float64 {
	g := make([][]float64, 4)
	for i := range g {
		g[i] = make([]float64, 4)
		for j := range g[i] {
			g[i][j] = fill
		}
	}
	return g
}

func TestCloudFractionAllCloudy(t *testing.T) {
	cf := CloudFraction(grid4x4(1), centerNeighbors())
	if math.Abs(cf-1) > 1e-12 {
		t.Errorf("cf = %g, want 1", cf)
	}
}

func TestCloudFractionAllClear(t *testing.T) {
	cf := CloudFraction(grid4x4(0), centerNeighbors())
	if cf != 0 {
		t.Errorf("cf = %g, want 0", cf)
	}
}

func TestCloudFractionMixed(t *testing.T) {
	mask := grid4x4(0)
	mask[1][1] = 1
	mask[2][2] = 1

	cf := CloudFraction(mask, centerNeighbors())
	if math.Abs(cf-0.5) > 1e-12 {
		t.Errorf("cf = %g, want 0.5", cf)
	}
}

func TestCloudFractionRenormalizesOverInvalid(t *testing.T) {
	mask := grid4x4(1)
	mask[1][1] = math.NaN()
	mask[1][2] = math.NaN()

	// Two invalid cloudy corners drop out; the remaining two are cloudy, so
	// the renormalized fraction is still 1.
	cf := CloudFraction(mask, centerNeighbors())
	if math.Abs(cf-1) > 1e-12 {
		t.Errorf("cf = %g, want 1 after renormalization", cf)
	}
}

func TestCloudFractionAllInvalid(t *testing.T) {
	cf := CloudFraction(grid4x4(math.NaN()), centerNeighbors())
	if !math.IsNaN(cf) {
		t.Errorf("cf = %g, want NaN", cf)
	}
}

func TestCloudFractionOffGrid(t *testing.T) {
	ns := geo.Neighbors(geo.FractionalPixel{X: 100.5, Y: 100.5})
	cf := CloudFraction(grid4x4(1), ns)
	if !math.IsNaN(cf) {
		t.Errorf("cf = %g, want NaN for fully out-of-bounds neighborhood", cf)
	}
}

func TestCloudFractionPartialOverlap(t *testing.T) {
	// Position (-0.5, 1.5): the left column of the neighborhood is off-grid,
	// the right column (col 0) is in-bounds and renormalizes to weight 1.
	ns := geo.Neighbors(geo.FractionalPixel{X: -0.5, Y: 1.5})

	mask := grid4x4(0)
	mask[1][0] = 1

	cf := CloudFraction(mask, ns)
	if math.Abs(cf-0.5) > 1e-12 {
		t.Errorf("cf = %g, want 0.5 over the surviving column", cf)
	}
}

func TestFractionAboveAllAbove(t *testing.T) {
	height := grid4x4(8000)
	mask := grid4x4(1)

	fa := FractionAbove(height, mask, centerNeighbors(), 2660)
	if math.Abs(fa-1) > 1e-12 {
		t.Errorf("fa = %g, want 1", fa)
	}
}

func TestFractionAboveCloudBelowAltitude(t *testing.T) {
	height := grid4x4(1500)
	mask := grid4x4(1)

	fa := FractionAbove(height, mask, centerNeighbors(), 2660)
	if fa != 0 {
		t.Errorf("fa = %g, want 0 for cloud entirely below the site", fa)
	}
}

func TestFractionAboveClearSkyIsZeroNotNaN(t *testing.T) {
	// Clear neighbors with valid (zero) heights count toward the
	// denominator, so the result is exactly 0.
	height := grid4x4(0)
	mask := grid4x4(0)

	fa := FractionAbove(height, mask, centerNeighbors(), 2660)
	if fa != 0 {
		t.Errorf("fa = %g, want 0", fa)
	}
}

func TestFractionAboveMixed(t *testing.T) {
	height := grid4x4(math.NaN())
	mask := grid4x4(0)

	// One cloudy neighbor above the site, one below, two with no retrieval.
	mask[1][1], height[1][1] = 1, 9000
	mask[2][2], height[2][2] = 1, 1000

	fa := FractionAbove(height, mask, centerNeighbors(), 2660)
	if math.Abs(fa-0.5) > 1e-12 {
		t.Errorf("fa = %g, want 0.5 over the retrieved neighbors", fa)
	}
}

func TestFractionAboveAllInvalid(t *testing.T) {
	fa := FractionAbove(grid4x4(math.NaN()), grid4x4(math.NaN()), centerNeighbors(), 2660)
	if !math.IsNaN(fa) {
		t.Errorf("fa = %g, want NaN", fa)
	}
}
