// Package geo locates a geographic site inside a satellite fixed-grid image.
package geo

import (
	"math"
	"sort"
	"strings"
)

// FixedGrid describes a geostationary (geos) map projection.
type FixedGrid struct {
	// PerspectiveHeight is the satellite height above the ellipsoid, meters.
	PerspectiveHeight float64
	// OriginLongitude is the sub-satellite longitude, degrees.
	OriginLongitude float64
	// SweepX reports whether the sweep angle axis is "x" (GOES ABI).
	// Meteosat-style instruments sweep along y.
	SweepX bool
	// SemiMajor and SemiMinor are the ellipsoid axes, meters.
	SemiMajor float64
	SemiMinor float64
}

// FractionalPixel is a real-valued position in a grid's index space. It is
// not guaranteed to be in bounds.
type FractionalPixel struct {
	X float64 // column index
	Y float64 // row index
}

// Axis is a grid's 1-D coordinate array for one dimension, ascending or
// descending, with its unit attribute.
type Axis struct {
	Values []float64
	Units  string
}

// angular reports whether the axis carries scan angles in radians rather than
// linear meters. Published grids vary between the two encodings; the unit
// must come from axis metadata, never be assumed.
func (a Axis) angular() bool {
	u := strings.ToLower(a.Units)
	return strings.Contains(u, "rad")
}

// Forward projects geodetic (longitude, latitude) in degrees to
// projection-plane coordinates in meters. The boolean reports whether the
// point is visible from the satellite; invisible points still return the
// projected coordinates of the formula, which land far outside any grid.
func (g FixedGrid) Forward(lonDeg, latDeg float64) (x, y float64, visible bool) {
	radiusG1 := g.PerspectiveHeight / g.SemiMajor
	radiusG := 1.0 + radiusG1
	radiusP := g.SemiMinor / g.SemiMajor
	radiusP2 := radiusP * radiusP
	radiusPInv2 := 1.0 / radiusP2

	lam := deg2rad(normalizeLonDeg(lonDeg - g.OriginLongitude))
	// Geodetic to geocentric latitude on the sphere of view.
	phi := math.Atan(radiusP2 * math.Tan(deg2rad(latDeg)))
	r := radiusP / math.Hypot(radiusP*math.Cos(phi), math.Sin(phi))

	vx := r * math.Cos(lam) * math.Cos(phi)
	vy := r * math.Sin(lam) * math.Cos(phi)
	vz := r * math.Sin(phi)

	visible = (radiusG-vx)*vx-vy*vy-vz*vz*radiusPInv2 >= 0

	tmp := radiusG - vx
	var xa, ya float64
	if g.SweepX {
		xa = radiusG1 * math.Atan(vy/math.Hypot(vz, tmp))
		ya = radiusG1 * math.Atan(vz/tmp)
	} else {
		xa = radiusG1 * math.Atan(vy/tmp)
		ya = radiusG1 * math.Atan(vz/math.Hypot(vy, tmp))
	}

	// Scale by the semi-major axis: the plane coordinate is H * scan angle.
	return xa * g.SemiMajor, ya * g.SemiMajor, visible
}

// Locate converts a site's (latitude, longitude) into fractional pixel
// coordinates against the grid's coordinate axes. Out-of-bounds sites are not
// an error: they yield fractional coordinates outside the valid index range,
// left for downstream bounds checks.
func (g FixedGrid) Locate(latDeg, lonDeg float64, xAxis, yAxis Axis) FractionalPixel {
	xm, ym, _ := g.Forward(lonDeg, latDeg)

	// Match the axis units: angular axes hold off-nadir scan angles, linear
	// axes hold ground-projected meters.
	xq, yq := xm, ym
	if xAxis.angular() {
		xq = math.Atan2(xm, g.PerspectiveHeight)
	}
	if yAxis.angular() {
		yq = math.Atan2(ym, g.PerspectiveHeight)
	}

	i0, tx := bracket(xAxis.Values, xq)
	j0, ty := bracket(yAxis.Values, yq)

	return FractionalPixel{X: float64(i0) + tx, Y: float64(j0) + ty}
}

// bracket finds the interior interval [v0, v1] of a monotonic axis containing
// the query, clamped so the interval stays within bounds even when the query
// falls outside the axis, and returns the lower index with the fractional
// position t = (query - v0) / (v1 - v0). Degenerate intervals yield t = 0.
func bracket(axis []float64, query float64) (int, float64) {
	n := len(axis)
	if n < 2 {
		return 0, 0
	}

	ascending := axis[n-1] > axis[0]
	i1 := searchAxis(axis, query, ascending)
	i0 := i1 - 1
	if i0 < 0 {
		i0 = 0
	}
	if i0 > n-2 {
		i0 = n - 2
	}

	v0, v1 := axis[i0], axis[i0+1]
	t := 0.0
	if v1 != v0 {
		t = (query - v0) / (v1 - v0)
	}
	return i0, t
}

// searchAxis returns the insertion index of query, handling both axis
// orientations.
func searchAxis(axis []float64, query float64, ascending bool) int {
	if ascending {
		return sort.SearchFloat64s(axis, query)
	}
	return sort.Search(len(axis), func(i int) bool { return axis[i] <= query })
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }

// normalizeLonDeg wraps a longitude difference into [-180, 180).
func normalizeLonDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d >= 180 {
		d -= 360
	} else if d < -180 {
		d += 360
	}
	return d
}
