package parser

import (
	"context"
	"os"

	"github.com/ctessum/cdf"
	"github.com/pkg/errors"
)

// NetCDF loads arrays from netCDF classic files. A variable with dimensions
// (member, time, lat, lon) or (time, lat, lon) is read in full; _FillValue
// and missing_value cells become NaN.
type NetCDF struct{}

func (NetCDF) Load(ctx context.Context, key Key) (*Array, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ff, err := openFile(key.Path)
	if err != nil {
		return nil, err
	}
	defer ff.Close()

	f, err := cdf.Open(ff)
	if err != nil {
		return nil, errors.Wrapf(err, "netcdf %s", key.Path)
	}

	name := key.Object
	if name == "" {
		name = firstGridVariable(f.Header)
		if name == "" {
			return nil, errors.Wrapf(ErrObjectNotFound, "no gridded variable in %s", key.Path)
		}
	} else if !hasVariable(f.Header, name) {
		return nil, errors.Wrapf(ErrObjectNotFound, "%q in %s", name, key.Path)
	}

	shape := f.Header.Lengths(name)
	if len(shape) < 3 {
		return nil, errors.Wrapf(ErrNotArray, "variable %q has %d dimensions", name, len(shape))
	}

	r := f.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, errors.Wrapf(err, "read %q", name)
	}

	fill, hasFill := fillValue(f.Header, name)
	out := NewArray(shape...)
	if err := copyNumbers(out.Data, buf); err != nil {
		return nil, errors.Wrapf(err, "variable %q", name)
	}
	for i, v := range out.Data {
		if isMissing(v, fill, hasFill) {
			out.Data[i] = nan
		}
	}
	return out, nil
}

func (NetCDF) Describe(ctx context.Context, path string) ([]ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ff, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer ff.Close()

	f, err := cdf.Open(ff)
	if err != nil {
		return nil, errors.Wrapf(err, "netcdf %s", path)
	}
	var infos []ObjectInfo
	for _, v := range f.Header.Variables() {
		infos = append(infos, ObjectInfo{
			Name:  v,
			Type:  cdfTypeName(f.Reader(v, nil, nil).Zero(0)),
			Shape: f.Header.Lengths(v),
		})
	}
	return infos, nil
}

// WriteNetCDF stores a (member, time, lat, lon) array as a float32 variable
// with a NaN _FillValue.
func WriteNetCDF(path, name string, a *Array) error {
	if a.Rank() != 4 {
		return errors.Wrapf(ErrNotArray, "want rank 4, got %v", a)
	}
	dims := []string{"member", "time", "lat", "lon"}
	h := cdf.NewHeader(dims, a.Shape)
	h.AddAttribute("", "comment", "polarmap gridded field")
	h.AddVariable(name, dims, []float32{0})
	h.AddAttribute(name, "_FillValue", []float32{float32(nan)})
	h.Define()

	ff, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer ff.Close()

	f, err := cdf.Create(ff, h)
	if err != nil {
		return errors.Wrapf(err, "write header %s", path)
	}

	data := make([]float32, len(a.Data))
	for i, v := range a.Data {
		data[i] = float32(v)
	}
	end := f.Header.Lengths(name)
	w := f.Writer(name, make([]int, len(end)), end)
	if _, err := w.Write(data); err != nil {
		return errors.Wrapf(err, "write %q", name)
	}
	return ff.Close()
}

func hasVariable(h *cdf.Header, name string) bool {
	for _, v := range h.Variables() {
		if v == name {
			return true
		}
	}
	return false
}

func firstGridVariable(h *cdf.Header) string {
	for _, v := range h.Variables() {
		if n := len(h.Lengths(v)); n == 3 || n == 4 {
			return v
		}
	}
	return ""
}

func fillValue(h *cdf.Header, name string) (float64, bool) {
	for _, attr := range []string{"_FillValue", "missing_value"} {
		vals := make([]float64, 1)
		if copyNumbers(vals, h.GetAttribute(name, attr)) == nil {
			return vals[0], true
		}
	}
	return 0, false
}

// copyNumbers widens a typed netCDF buffer into dst.
func copyNumbers(dst []float64, buf interface{}) error {
	n := 0
	switch b := buf.(type) {
	case []float64:
		n = copy(dst, b)
	case []float32:
		for i := range dst[:min(len(dst), len(b))] {
			dst[i] = float64(b[i])
		}
		n = len(b)
	case []int32:
		for i := range dst[:min(len(dst), len(b))] {
			dst[i] = float64(b[i])
		}
		n = len(b)
	case []int16:
		for i := range dst[:min(len(dst), len(b))] {
			dst[i] = float64(b[i])
		}
		n = len(b)
	case []int8:
		for i := range dst[:min(len(dst), len(b))] {
			dst[i] = float64(b[i])
		}
		n = len(b)
	default:
		return errors.Wrapf(ErrNotArray, "netcdf type %T", buf)
	}
	if n < len(dst) {
		return errors.Errorf("read %d values, want %d", n, len(dst))
	}
	return nil
}

func cdfTypeName(zero interface{}) string {
	switch zero.(type) {
	case []float64:
		return "double"
	case []float32:
		return "float"
	case []int32:
		return "int"
	case []int16:
		return "short"
	case []int8:
		return "byte"
	case []byte, string:
		return "char"
	}
	return "unknown"
}
