package parser

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

var nan = math.NaN()

// Array is a dense row-major n-dimensional array. Missing values are NaN.
type Array struct {
	Shape []int
	Data  []float64
}

// NewArray allocates a zeroed array of the given shape.
func NewArray(shape ...int) *Array {
	return &Array{Shape: append([]int(nil), shape...), Data: make([]float64, size(shape))}
}

func (a *Array) Rank() int { return len(a.Shape) }

func (a *Array) index(idx ...int) int {
	off := 0
	for k, i := range idx {
		off = off*a.Shape[k] + i
	}
	return off
}

func (a *Array) At(idx ...int) float64 { return a.Data[a.index(idx...)] }

func (a *Array) Set(v float64, idx ...int) { a.Data[a.index(idx...)] = v }

func (a *Array) String() string {
	return fmt.Sprintf("array%v", a.Shape)
}

// Field is the (day, lat, lon) slice of an array that a run renders.
type Field struct {
	Days, Lats, Lons int
	// FirstDay is the 1-based day number of Day(0).
	FirstDay int
	Values   []float64
}

// Day returns the lat × lon values of the k-th selected day, row-major.
func (f *Field) Day(k int) []float64 {
	n := f.Lats * f.Lons
	return f.Values[k*n : (k+1)*n]
}

func (f *Field) At(k, i, j int) float64 {
	return f.Values[(k*f.Lats+i)*f.Lons+j]
}

// Number is the 1-based day number of the k-th selected day.
func (f *Field) Number(k int) int { return f.FirstDay + k }

// Extract selects one member of a (member, time, lat, lon) array and slices
// the time axis to the 1-based inclusive range [dayBegin, dayEnd], i.e. the
// 0-based half-open range [dayBegin-1, dayEnd). A rank-3 array is treated as
// a single member.
func Extract(a *Array, member, dayBegin, dayEnd int) (*Field, error) {
	shape := a.Shape
	switch a.Rank() {
	case 3:
		if member != 0 {
			return nil, errors.Errorf("member %d requested from a single-member %v", member, a)
		}
		shape = append([]int{1}, shape...)
	case 4:
		if member < 0 || member >= shape[0] {
			return nil, errors.Errorf("member %d out of range for %v", member, a)
		}
	default:
		return nil, errors.Wrapf(ErrNotArray, "want rank 3 or 4, got %v", a)
	}

	times, lats, lons := shape[1], shape[2], shape[3]
	if dayBegin < 1 || dayEnd < dayBegin || dayEnd > times {
		return nil, errors.Wrapf(ErrDayRange, "days %d-%d, time axis has %d steps", dayBegin, dayEnd, times)
	}

	plane := lats * lons
	start := (member*times + dayBegin - 1) * plane
	end := (member*times + dayEnd) * plane

	return &Field{
		Days:     dayEnd - dayBegin + 1,
		Lats:     lats,
		Lons:     lons,
		FirstDay: dayBegin,
		Values:   append([]float64(nil), a.Data[start:end]...),
	}, nil
}

// fromColumnMajor reorders a column-major (first index fastest) buffer into
// a row-major Array.
func fromColumnMajor(shape []int, data []float64) (*Array, error) {
	for _, d := range shape {
		if d < 1 {
			return nil, errors.Wrapf(ErrCorrupt, "dim %v", shape)
		}
	}
	if size(shape) != len(data) {
		return nil, errors.Errorf("dim %v does not match %d values", shape, len(data))
	}
	out := NewArray(shape...)
	rank := len(shape)
	if rank == 0 {
		return out, nil
	}

	strides := make([]int, rank)
	strides[rank-1] = 1
	for k := rank - 2; k >= 0; k-- {
		strides[k] = strides[k+1] * shape[k+1]
	}

	idx := make([]int, rank)
	off := 0
	for _, v := range data {
		out.Data[off] = v
		for k := 0; k < rank; k++ {
			idx[k]++
			off += strides[k]
			if idx[k] < shape[k] {
				break
			}
			off -= idx[k] * strides[k]
			idx[k] = 0
		}
	}
	return out, nil
}

func size(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func isMissing(v, fill float64, hasFill bool) bool {
	return math.IsNaN(v) || (hasFill && v == fill)
}
