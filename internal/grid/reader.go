// Package grid opens cached GOES ABI L2 NetCDF files and extracts their
// physical fields as dense 2-D arrays with a uniform invalid-value
// convention: invalid is always NaN.
package grid

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/fhs/go-netcdf/netcdf"

	"github.com/cerro-obs/cloudfrac/internal/geo"
)

// ErrVariableNotFound is returned when no known variable name matches.
var ErrVariableNotFound = errors.New("variable not found")

// Grid is a dense 2-D field plus the coordinate axes and projection needed to
// locate a geographic point in it. Values is [row][col]; rows follow the y
// axis, columns the x axis. NaN marks invalid pixels.
type Grid struct {
	Values [][]float64
	XAxis  geo.Axis
	YAxis  geo.Axis
	Proj   geo.FixedGrid
}

var maskVarNames = []string{"BCM", "Binary_Cloud_Mask", "Cloud_Mask", "cloud_mask", "mask"}

var heightVarNames = []string{
	"HT", // ACHA family
	"Cloud_Top_Height",
	"cloud_top_height",
	"cth",
	"CLOUD_TOP_HEIGHT",
	"mean_cloud_top_height",
	"maximum_cloud_top_height",
}

// OpenMask reads a cloud-mask grid. Valid values are normalized to
// 0 = clear, 1 = cloudy regardless of source encoding.
func OpenMask(path string) (*Grid, error) {
	g, _, err := open(path, maskVarNames, "mask", func(values [][]float64, _ string) {
		NormalizeMask(values)
	})
	if err != nil {
		return nil, fmt.Errorf("open mask %s: %w", path, err)
	}
	return g, nil
}

// OpenHeight reads a cloud-top-height grid in meters. Kilometer-encoded
// sources are converted; non-physical values (≤ 0, which covers fill and
// sentinel encodings) become NaN.
func OpenHeight(path string) (*Grid, error) {
	g, _, err := open(path, heightVarNames, "height", NormalizeHeight)
	if err != nil {
		return nil, fmt.Errorf("open height %s: %w", path, err)
	}
	return g, nil
}

// open shares the read pattern of both readers: locate the data variable,
// read it oriented [y][x], read the axes, extract the projection, then hand
// the values to the field-specific normalizer along with the units attribute.
func open(path string, candidates []string, substring string, normalize func(values [][]float64, units string)) (*Grid, string, error) {
	ds, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, "", fmt.Errorf("open dataset: %w", err)
	}
	defer ds.Close()

	v, name, err := findVar(ds, candidates, substring)
	if err != nil {
		return nil, "", err
	}

	xVar, err := ds.Var("x")
	if err != nil {
		return nil, "", fmt.Errorf("%w: coordinate x", ErrVariableNotFound)
	}
	yVar, err := ds.Var("y")
	if err != nil {
		return nil, "", fmt.Errorf("%w: coordinate y", ErrVariableNotFound)
	}

	xs, err := read1D(xVar)
	if err != nil {
		return nil, "", fmt.Errorf("read x axis: %w", err)
	}
	ys, err := read1D(yVar)
	if err != nil {
		return nil, "", fmt.Errorf("read y axis: %w", err)
	}

	values, err := read2D(v)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", name, err)
	}

	// Datasets vary in axis order; normalize to [y][x].
	switch {
	case len(values) == len(ys) && rowLen(values) == len(xs):
	case len(values) == len(xs) && rowLen(values) == len(ys):
		values = transpose(values)
	default:
		return nil, "", fmt.Errorf("%s is [%d][%d], axes are x=%d y=%d",
			name, len(values), rowLen(values), len(xs), len(ys))
	}

	proj, err := projectionFrom(ds)
	if err != nil {
		return nil, "", err
	}

	normalize(values, strings.ToLower(attrString(v, "units")))

	return &Grid{
		Values: values,
		XAxis:  geo.Axis{Values: xs, Units: attrString(xVar, "units")},
		YAxis:  geo.Axis{Values: ys, Units: attrString(yVar, "units")},
		Proj:   proj,
	}, name, nil
}

// NormalizeMask rewrites mask values in place to the uniform encoding
// 0 = clear, 1 = cloudy, NaN = invalid. Sources already in {0,1} pass
// through; {0,255} is thresholded at 255; any other encoding falls back to
// "nonzero means cloudy".
func NormalizeMask(values [][]float64) {
	zeroOne := true
	zero255 := true
	for _, row := range values {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			if v != 0 && v != 1 {
				zeroOne = false
			}
			if v != 0 && v != 255 {
				zero255 = false
			}
		}
	}

	for _, row := range values {
		for i, v := range row {
			if math.IsNaN(v) {
				continue
			}
			switch {
			case zeroOne:
				// already normalized
			case zero255:
				if v == 255 {
					row[i] = 1
				} else {
					row[i] = 0
				}
			default:
				if v != 0 {
					row[i] = 1
				} else {
					row[i] = 0
				}
			}
		}
	}
}

// NormalizeHeight rewrites height values in place to meters, treating
// non-physical values as invalid.
func NormalizeHeight(values [][]float64, units string) {
	km := strings.Contains(units, "km") && !strings.Contains(strings.ReplaceAll(units, "km", ""), "m")
	for _, row := range values {
		for i, v := range row {
			if km {
				v *= 1000
				row[i] = v
			}
			if !(v > 0) {
				row[i] = math.NaN()
			}
		}
	}
}

func rowLen(values [][]float64) int {
	if len(values) == 0 {
		return 0
	}
	return len(values[0])
}
