package grid

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fhs/go-netcdf/netcdf"

	"github.com/cerro-obs/cloudfrac/internal/geo"
)

// ErrMissingProjection is returned when a dataset carries no usable
// fixed-grid projection metadata.
var ErrMissingProjection = errors.New("missing projection metadata")

// GRS80 ellipsoid, the GOES fixed-grid reference. Used when a dataset omits
// the ellipsoid attributes.
const (
	defaultSemiMajor = 6378137.0
	defaultSemiMinor = 6356752.31414
)

const projectionVarName = "goes_imager_projection"

// projectionFrom extracts the fixed-grid projection from the dataset's
// projection descriptor variable. The descriptor is a side-channel: data
// variables reference it by name through their grid_mapping attribute, so we
// look it up directly first and fall back to following a grid_mapping
// reference. Everything downstream sees only the plain parameter record.
func projectionFrom(ds netcdf.Dataset) (geo.FixedGrid, error) {
	v, err := ds.Var(projectionVarName)
	if err != nil {
		v, err = varByGridMapping(ds)
		if err != nil {
			return geo.FixedGrid{}, err
		}
	}

	h, okH := attrFloat(v, "perspective_point_height")
	lon0, okLon := attrFloat(v, "longitude_of_projection_origin")
	if !okH || !okLon {
		return geo.FixedGrid{}, fmt.Errorf("%w: perspective_point_height/longitude_of_projection_origin", ErrMissingProjection)
	}

	sweep := attrString(v, "sweep_angle_axis")
	if sweep == "" {
		sweep = "x"
	}

	a, ok := attrFloat(v, "semi_major_axis")
	if !ok {
		a = defaultSemiMajor
	}
	b, ok := attrFloat(v, "semi_minor_axis")
	if !ok {
		b = defaultSemiMinor
	}

	return geo.FixedGrid{
		PerspectiveHeight: h,
		OriginLongitude:   lon0,
		SweepX:            strings.EqualFold(sweep, "x"),
		SemiMajor:         a,
		SemiMinor:         b,
	}, nil
}

// varByGridMapping scans the dataset for any variable whose grid_mapping
// attribute names a projection descriptor, and returns that descriptor.
func varByGridMapping(ds netcdf.Dataset) (netcdf.Var, error) {
	for i := 0; i < maxVarScan; i++ {
		v := ds.VarN(i)
		if _, err := v.Name(); err != nil {
			break
		}
		mapping := attrString(v, "grid_mapping")
		if mapping == "" {
			continue
		}
		if pv, err := ds.Var(mapping); err == nil {
			return pv, nil
		}
	}
	return netcdf.Var{}, fmt.Errorf("%w: no projection descriptor variable", ErrMissingProjection)
}
