package colormap

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"hstin/polarmap/internal/config"
)

var ErrInvalidLevels = errors.New("invalid contour levels")

// Extend selects which out-of-range ends are coloured.
type Extend int

const (
	ExtendNeither Extend = iota
	ExtendMin
	ExtendMax
	ExtendBoth
)

// ParseExtend parses an --extmethod value; the empty string means neither.
func ParseExtend(s string) (Extend, error) {
	switch s {
	case "neither", "":
		return ExtendNeither, nil
	case "min":
		return ExtendMin, nil
	case "max":
		return ExtendMax, nil
	case "both":
		return ExtendBoth, nil
	}
	return ExtendNeither, fmt.Errorf("unknown extend policy %q", s)
}

func (e Extend) String() string {
	switch e {
	case ExtendMin:
		return "min"
	case ExtendMax:
		return "max"
	case ExtendBoth:
		return "both"
	}
	return "neither"
}

// Lower reports whether values below the first level get the under colour.
func (e Extend) Lower() bool { return e == ExtendMin || e == ExtendBoth }

// Upper reports whether values above the last level get the over colour.
func (e Extend) Upper() bool { return e == ExtendMax || e == ExtendBoth }

// Levels mirrors arange(lower, upper+step, step): lower, lower+step, ...
// while below upper+step. When step does not divide the range the last level
// overshoots upper. Levels are computed from the index, and a level within
// rounding of upper+step is not added.
func Levels(lower, upper, step float64) ([]float64, error) {
	if !(lower < upper) {
		return nil, fmt.Errorf("%w: lower %g must be below upper %g", ErrInvalidLevels, lower, upper)
	}
	if !(step > 0) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("%w: step %g must be positive", ErrInvalidLevels, step)
	}
	count := math.Ceil((upper-lower)/step + 1 - 1e-9)
	if !(count <= config.MaxLevels) {
		return nil, fmt.Errorf("%w: step %g gives more than %d levels in [%g, %g]",
			ErrInvalidLevels, step, config.MaxLevels, lower, upper)
	}
	n := int(count)
	if n < 2 {
		return nil, fmt.Errorf("%w: step %g leaves fewer than two levels in [%g, %g]", ErrInvalidLevels, step, lower, upper)
	}
	levels := make([]float64, n)
	for i := range levels {
		levels[i] = lower + float64(i)*step
	}
	return levels, nil
}

// LevelsN returns n evenly spaced levels from lower to upper.
func LevelsN(lower, upper float64, n int) ([]float64, error) {
	if !(lower < upper) {
		return nil, fmt.Errorf("%w: lower %g must be below upper %g", ErrInvalidLevels, lower, upper)
	}
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least two levels, got %d", ErrInvalidLevels, n)
	}
	if n > config.MaxLevels {
		return nil, fmt.Errorf("%w: %d levels exceeds %d", ErrInvalidLevels, n, config.MaxLevels)
	}
	return floats.Span(make([]float64, n), lower, upper), nil
}

// Class tells where a value falls relative to the levels.
type Class int

const (
	Inside Class = iota
	Below
	Above
	Missing
)

// Scale is a discrete colour scale: band i spans (Levels[i], Levels[i+1]]
// and Levels[0] belongs to band 0.
type Scale struct {
	Levels []float64
	Extend Extend
	Colors []color.RGBA
	Under  color.RGBA
	Over   color.RGBA
}

// NewScale colours each band with the ramp at its midpoint. The under and
// over colours are the ramp ends.
func NewScale(levels []float64, extend Extend, ramp Ramp) (*Scale, error) {
	if len(levels) < 2 {
		return nil, fmt.Errorf("%w: need at least two levels", ErrInvalidLevels)
	}
	for i := 1; i < len(levels); i++ {
		if !(levels[i] > levels[i-1]) {
			return nil, fmt.Errorf("%w: levels must be strictly increasing at %d", ErrInvalidLevels, i)
		}
	}
	lo, hi := levels[0], levels[len(levels)-1]
	s := &Scale{
		Levels: levels,
		Extend: extend,
		Colors: make([]color.RGBA, len(levels)-1),
		Under:  ramp.At(0),
		Over:   ramp.At(1),
	}
	for i := range s.Colors {
		mid := (levels[i] + levels[i+1]) / 2
		s.Colors[i] = ramp.At((mid - lo) / (hi - lo))
	}
	return s, nil
}

// Bands is the number of filled bands.
func (s *Scale) Bands() int { return len(s.Colors) }

// Lower is the first level.
func (s *Scale) Lower() float64 { return s.Levels[0] }

// Upper is the last level, which may overshoot the configured bound.
func (s *Scale) Upper() float64 { return s.Levels[len(s.Levels)-1] }

// Band classifies v and, for Inside, returns its band index.
func (s *Scale) Band(v float64) (int, Class) {
	switch {
	case math.IsNaN(v):
		return -1, Missing
	case v < s.Levels[0]:
		return -1, Below
	case v > s.Levels[len(s.Levels)-1]:
		return -1, Above
	case v == s.Levels[0]:
		return 0, Inside
	}
	// first level >= v closes band k-1
	k := sort.SearchFloat64s(s.Levels, v)
	return k - 1, Inside
}

// Color returns the fill colour of v. ok is false for missing values and
// for out-of-range values on an end the scale does not extend.
func (s *Scale) Color(v float64) (c color.RGBA, ok bool) {
	band, class := s.Band(v)
	switch class {
	case Inside:
		return s.Colors[band], true
	case Below:
		if s.Extend.Lower() {
			return s.Under, true
		}
	case Above:
		if s.Extend.Upper() {
			return s.Over, true
		}
	}
	return color.RGBA{}, false
}
