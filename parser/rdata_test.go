package parser

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// xdr builds R serialization streams for tests.
type xdr struct {
	bytes.Buffer
	syms map[string]int
	refs int
}

func newXDR(version int) *xdr {
	x := &xdr{syms: map[string]int{}}
	x.WriteString("X\n")
	x.int(int32(version))
	x.int(0x040200)
	x.int(0x030500)
	if version == 3 {
		x.int(5)
		x.WriteString("UTF-8")
	}
	return x
}

func (x *xdr) int(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	x.Write(b[:])
}

func (x *xdr) flags(kind int, attr, tag bool) {
	f := int32(kind)
	if attr {
		f |= hasAttrFlag
	}
	if tag {
		f |= hasTagFlag
	}
	x.int(f)
}

func (x *xdr) char(s string) {
	x.int(charSxp | 64<<12)
	x.int(int32(len(s)))
	x.WriteString(s)
}

// sym writes a symbol, or a back reference when it was already written.
func (x *xdr) sym(name string) {
	if idx, ok := x.syms[name]; ok {
		x.int(int32(idx<<8 | refSxp))
		return
	}
	x.flags(symSxp, false, false)
	x.char(name)
	x.refs++
	x.syms[name] = x.refs
}

func (x *xdr) null() { x.int(nilValueSxp) }

func (x *xdr) reals(v []float64, attr bool) {
	x.flags(realSxp, attr, false)
	x.int(int32(len(v)))
	for _, f := range v {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(f))
		x.Write(b[:])
	}
}

func (x *xdr) ints(v []int32, attr bool) {
	x.flags(intSxp, attr, false)
	x.int(int32(len(v)))
	for _, i := range v {
		x.int(i)
	}
}

// dimAttr writes the pairlist attribute list(dim = dims).
func (x *xdr) dimAttr(dims []int32) {
	x.flags(listSxp, false, true)
	x.sym("dim")
	x.ints(dims, false)
	x.null()
}

// columnMajor flattens f(idx) over shape with the first index fastest.
func columnMajor(shape []int, f func(idx []int) float64) []float64 {
	n := size(shape)
	out := make([]float64, 0, n)
	idx := make([]int, len(shape))
	for i := 0; i < n; i++ {
		out = append(out, f(idx))
		for k := range idx {
			idx[k]++
			if idx[k] < shape[k] {
				break
			}
			idx[k] = 0
		}
	}
	return out
}

func cellValue(idx []int) float64 {
	v := 0.0
	for _, i := range idx {
		v = v*10 + float64(i)
	}
	return v
}

// savedRData writes save(label, field) where field is a 4-D double array
// whose value at [e,t,i,j] is the decimal number "etij".
func savedRData(t *testing.T, shape []int, gz bool) string {
	t.Helper()
	x := newXDR(3)

	// label <- "not an array"
	x.flags(listSxp, false, true)
	x.sym("label")
	x.flags(strSxp, false, false)
	x.int(1)
	x.char("not an array")

	// field <- array(..., dim = shape)
	x.flags(listSxp, false, true)
	x.sym("field")
	data := columnMajor(shape, cellValue)
	data[len(data)-1] = math.Float64frombits(0x7FF00000000007A2) // NA_real_
	x.reals(data, true)
	dims := make([]int32, len(shape))
	for i, d := range shape {
		dims[i] = int32(d)
	}
	x.dimAttr(dims)

	x.null()

	payload := append([]byte("RDX3\n"), x.Bytes()...)
	if gz {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write(payload)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		payload = buf.Bytes()
	}

	path := filepath.Join(t.TempDir(), "sic_day_a1q0_NSIDC_nov_1988_2012_bias.RData")
	require.NoError(t, os.WriteFile(path, payload, 0o644))
	return path
}

func TestRData_LoadFirstArray(t *testing.T) {
	path := savedRData(t, []int{2, 3, 4, 5}, true)

	a, err := RData{}.Load(context.Background(), Key{Path: path})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3, 4, 5}, a.Shape)
	assert.InDelta(t, 0.0, a.At(0, 0, 0, 0), 0)
	assert.True(t, math.IsNaN(a.At(1, 2, 3, 4)))
	assert.InDelta(t, 123.0, a.At(0, 1, 2, 3), 0)
	assert.InDelta(t, 1021.0, a.At(1, 0, 2, 1), 0)
}

func TestRData_LoadNamedUncompressed(t *testing.T) {
	path := savedRData(t, []int{1, 2, 2, 3}, false)

	a, err := RData{}.Load(context.Background(), Key{Path: path, Object: "field"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2, 3}, a.Shape)
	assert.InDelta(t, 102.0, a.At(0, 1, 0, 2), 0)
	assert.InDelta(t, 111.0, a.At(0, 1, 1, 1), 0)
	assert.True(t, math.IsNaN(a.At(0, 1, 1, 2)))
}

func TestRData_Errors(t *testing.T) {
	ctx := context.Background()
	path := savedRData(t, []int{1, 2, 2, 3}, true)

	_, err := RData{}.Load(ctx, Key{Path: path, Object: "missing"})
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = RData{}.Load(ctx, Key{Path: path, Object: "label"})
	assert.ErrorIs(t, err, ErrNotArray)

	_, err = RData{}.Load(ctx, Key{Path: filepath.Join(t.TempDir(), "nope.RData")})
	assert.ErrorIs(t, err, ErrFileNotFound)

	bad := filepath.Join(t.TempDir(), "bad.RData")
	require.NoError(t, os.WriteFile(bad, []byte("RDA2\nA\n"), 0o644))
	_, err = RData{}.Load(ctx, Key{Path: bad})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRData_Describe(t *testing.T) {
	path := savedRData(t, []int{1, 2, 2, 3}, true)

	infos, err := RData{}.Describe(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, ObjectInfo{Name: "label", Type: "character"}, infos[0])
	assert.Equal(t, ObjectInfo{Name: "field", Type: "double", Shape: []int{1, 2, 2, 3}}, infos[1])
}

func TestRData_RDSWithCompactDims(t *testing.T) {
	// saveRDS(array(1:24, dim = 2:4)) with the dim stored as an ALTREP
	// compact integer sequence.
	x := newXDR(2)
	values := make([]int32, 24)
	for i := range values {
		values[i] = int32(i + 1)
	}
	values[23] = math.MinInt32
	x.ints(values, true)

	x.flags(listSxp, false, true)
	x.sym("dim")
	x.int(altrepSxp)
	x.flags(listSxp, false, false)
	x.sym("compact_intseq")
	x.flags(listSxp, false, false)
	x.sym("base")
	x.flags(listSxp, false, false)
	x.ints([]int32{intSxp}, false)
	x.null()
	x.reals([]float64{3, 2, 1}, false)
	x.null()
	x.null()

	path := filepath.Join(t.TempDir(), "field.rds")
	require.NoError(t, os.WriteFile(path, x.Bytes(), 0o644))

	a, err := RData{}.Load(context.Background(), Key{Path: path})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, a.Shape)

	// [i,j,k] = 1 + i + 2j + 6k
	assert.InDelta(t, 1.0, a.At(0, 0, 0), 0)
	assert.InDelta(t, 2.0, a.At(1, 0, 0), 0)
	assert.InDelta(t, 3.0, a.At(0, 1, 0), 0)
	assert.InDelta(t, 7.0, a.At(0, 0, 1), 0)
	assert.InDelta(t, 18.0, a.At(1, 2, 2), 0)
	assert.True(t, math.IsNaN(a.At(1, 2, 3)))
}

func TestFromColumnMajor(t *testing.T) {
	shape := []int{2, 3, 4}
	a, err := fromColumnMajor(shape, columnMajor(shape, cellValue))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 4; k++ {
				assert.InDelta(t, cellValue([]int{i, j, k}), a.At(i, j, k), 0)
			}
		}
	}

	_, err = fromColumnMajor([]int{2, 2}, []float64{1, 2, 3})
	require.Error(t, err)
}

func TestRData_Corrupt(t *testing.T) {
	tests := []struct {
		name  string
		write func(x *xdr)
	}{
		{
			name: "negative persistent name count",
			write: func(x *xdr) {
				x.int(persistSxp)
				x.int(0)
				x.int(-1)
			},
		},
		{
			name: "negative builtin name length",
			write: func(x *xdr) {
				x.int(builtinSxp)
				x.int(-5)
			},
		},
		{
			name: "truncated string",
			write: func(x *xdr) {
				x.flags(strSxp, false, false)
				x.int(1)
				x.int(charSxp)
				x.int(100)
				x.WriteString("abc")
			},
		},
		{
			name: "vector length beyond the stream",
			write: func(x *xdr) {
				x.flags(realSxp, false, false)
				x.int(math.MaxInt32)
				x.Write(make([]byte, 16))
			},
		},
		{
			name: "long vector length too large",
			write: func(x *xdr) {
				x.flags(realSxp, false, false)
				x.int(-1)
				x.int(1)
				x.int(0)
			},
		},
		{
			name: "negative dims",
			write: func(x *xdr) {
				x.reals([]float64{1, 2, 3, 4, 5, 6}, true)
				x.dimAttr([]int32{-2, -3})
			},
		},
		{
			name: "oversized compact sequence",
			write: func(x *xdr) {
				x.int(altrepSxp)
				x.flags(listSxp, false, false)
				x.sym("compact_intseq")
				x.flags(listSxp, false, false)
				x.sym("base")
				x.flags(listSxp, false, false)
				x.ints([]int32{intSxp}, false)
				x.null()
				x.reals([]float64{1 << 30, 1, 1}, false)
				x.null()
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := newXDR(2)
			tt.write(x)
			path := filepath.Join(t.TempDir(), "field.rds")
			require.NoError(t, os.WriteFile(path, x.Bytes(), 0o644))

			_, err := RData{}.Load(context.Background(), Key{Path: path})
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}
