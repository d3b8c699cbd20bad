package grid

import (
	"fmt"
	"math"
	"strings"

	"github.com/fhs/go-netcdf/netcdf"
)

// maxVarScan bounds the variable-name scan used by the substring heuristic.
const maxVarScan = 512

// findVar locates the first matching variable: the case-sensitive candidate
// list first, then a case-insensitive substring match over all variable names
// as a last resort.
func findVar(ds netcdf.Dataset, candidates []string, substring string) (netcdf.Var, string, error) {
	for _, name := range candidates {
		if v, err := ds.Var(name); err == nil {
			return v, name, nil
		}
	}

	for i := 0; i < maxVarScan; i++ {
		v := ds.VarN(i)
		name, err := v.Name()
		if err != nil {
			break
		}
		if strings.Contains(strings.ToLower(name), substring) {
			return v, name, nil
		}
	}

	return netcdf.Var{}, "", fmt.Errorf("%w: tried %v, then substring %q",
		ErrVariableNotFound, candidates, substring)
}

// readFloats reads a variable of any supported numeric type as float64s,
// honoring the _Unsigned convention for byte data.
func readFloats(v netcdf.Var, n uint64) ([]float64, error) {
	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("variable type: %w", err)
	}

	switch t {
	case netcdf.DOUBLE:
		out := make([]float64, n)
		if err := v.ReadFloat64s(out); err != nil {
			return nil, err
		}
		return out, nil
	case netcdf.FLOAT:
		tmp := make([]float32, n)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.INT:
		tmp := make([]int32, n)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.SHORT:
		tmp := make([]int16, n)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.USHORT:
		tmp := make([]uint16, n)
		if err := v.ReadUint16s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.BYTE:
		tmp := make([]int8, n)
		if err := v.ReadInt8s(tmp); err != nil {
			return nil, err
		}
		unsigned := strings.EqualFold(attrString(v, "_Unsigned"), "true")
		out := make([]float64, n)
		for i, val := range tmp {
			f := float64(val)
			if unsigned && f < 0 {
				f += 256
			}
			out[i] = f
		}
		return out, nil
	case netcdf.UBYTE:
		tmp := make([]uint8, n)
		if err := v.ReadUint8s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported variable type: %v", t)
	}
}

// read1D reads a 1-D coordinate variable, unpacking scale/offset storage.
func read1D(v netcdf.Var) ([]float64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("variable dims: %w", err)
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("expected 1-D coordinate variable, got %d dims", len(dims))
	}
	n, err := dims[0].Len()
	if err != nil {
		return nil, err
	}
	flat, err := readFloats(v, n)
	if err != nil {
		return nil, err
	}
	applyPacking(v, flat)
	return flat, nil
}

// applyPacking replaces fill values with NaN and unpacks scale/offset
// storage in place. Fill comparison happens on the packed value.
func applyPacking(v netcdf.Var, flat []float64) {
	fill, hasFill := attrFloat(v, "_FillValue")
	miss, hasMiss := attrFloat(v, "missing_value")
	scale, hasScale := attrFloat(v, "scale_factor")
	offset, hasOffset := attrFloat(v, "add_offset")
	if !hasScale {
		scale = 1
	}
	if !hasOffset {
		offset = 0
	}

	for i, raw := range flat {
		if (hasFill && raw == fill) || (hasMiss && raw == miss) {
			flat[i] = math.NaN()
			continue
		}
		flat[i] = raw*scale + offset
	}
}

// read2D reads a 2-D data variable as [row][col], applying fill values
// (to NaN) and scale/offset packing.
func read2D(v netcdf.Var) ([][]float64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("variable dims: %w", err)
	}
	if len(dims) != 2 {
		return nil, fmt.Errorf("expected 2-D data variable, got %d dims", len(dims))
	}
	nRows, err := dims[0].Len()
	if err != nil {
		return nil, err
	}
	nCols, err := dims[1].Len()
	if err != nil {
		return nil, err
	}

	flat, err := readFloats(v, nRows*nCols)
	if err != nil {
		return nil, err
	}
	applyPacking(v, flat)

	rows := make([][]float64, nRows)
	for r := uint64(0); r < nRows; r++ {
		rows[r] = flat[r*nCols : (r+1)*nCols]
	}
	return rows, nil
}

// attrFloat reads a numeric attribute, trying the common storage types.
func attrFloat(v netcdf.Var, name string) (float64, bool) {
	a := v.Attr(name)
	n, err := a.Len()
	if err != nil || n == 0 {
		return 0, false
	}

	buf64 := make([]float64, n)
	if err := a.ReadFloat64s(buf64); err == nil {
		return buf64[0], true
	}
	buf32 := make([]float32, n)
	if err := a.ReadFloat32s(buf32); err == nil {
		return float64(buf32[0]), true
	}
	bufi32 := make([]int32, n)
	if err := a.ReadInt32s(bufi32); err == nil {
		return float64(bufi32[0]), true
	}
	bufi16 := make([]int16, n)
	if err := a.ReadInt16s(bufi16); err == nil {
		return float64(bufi16[0]), true
	}
	bufi8 := make([]int8, n)
	if err := a.ReadInt8s(bufi8); err == nil {
		return float64(bufi8[0]), true
	}
	return 0, false
}

// attrString reads a text attribute, returning "" when absent.
func attrString(v netcdf.Var, name string) string {
	a := v.Attr(name)
	n, err := a.Len()
	if err != nil || n == 0 {
		return ""
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return ""
	}
	return strings.TrimRight(string(buf), "\x00")
}

func transpose(values [][]float64) [][]float64 {
	if len(values) == 0 {
		return values
	}
	nRows, nCols := len(values), len(values[0])
	out := make([][]float64, nCols)
	for i := 0; i < nCols; i++ {
		out[i] = make([]float64, nRows)
		for j := 0; j < nRows; j++ {
			out[i][j] = values[j][i]
		}
	}
	return out
}
