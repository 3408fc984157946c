package colormap

import (
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hstin/polarmap/internal/config"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		name               string
		lower, upper, step float64
		count              int
		last               float64
	}{
		{"sea ice bias", -100, 100, 1, 201, 100},
		{"coarse", -100, 100, 10, 21, 100},
		{"fractional", 0, 1, 0.1, 11, 1},
		{"overshoot", 0, 1, 0.3, 5, 1.2},
		{"single band", 0, 5, 5, 2, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			levels, err := Levels(tt.lower, tt.upper, tt.step)
			require.NoError(t, err)
			require.Len(t, levels, tt.count)
			assert.InDelta(t, tt.lower, levels[0], 0)
			assert.InDelta(t, tt.last, levels[len(levels)-1], 1e-9)
			for i := 1; i < len(levels); i++ {
				assert.Greater(t, levels[i], levels[i-1])
			}
		})
	}
}

func TestLevels_DivisibleCount(t *testing.T) {
	levels, err := Levels(-100, 100, 1)
	require.NoError(t, err)
	assert.Len(t, levels, int((100-(-100))/1)+1)
}

func TestLevels_Errors(t *testing.T) {
	for _, tc := range [][3]float64{
		{1, 1, 1},
		{2, 1, 1},
		{0, 1, 0},
		{0, 1, -1},
		{0, 1, math.NaN()},
		{0, 1, math.Inf(1)},
		{-1e12, 1e12, 1e-6},
		{math.Inf(-1), 0, 1},
		{0, config.MaxLevels, 1},
	} {
		_, err := Levels(tc[0], tc[1], tc[2])
		assert.ErrorIs(t, err, ErrInvalidLevels, "%v", tc)
	}
}

func TestLevelsN(t *testing.T) {
	levels, err := LevelsN(-2, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{-2, -1, 0, 1, 2}, levels)

	_, err = LevelsN(0, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidLevels)
	_, err = LevelsN(1, 0, 3)
	assert.ErrorIs(t, err, ErrInvalidLevels)
	_, err = LevelsN(0, 1, config.MaxLevels+1)
	assert.ErrorIs(t, err, ErrInvalidLevels)

	levels, err = LevelsN(0, 1, config.MaxLevels)
	require.NoError(t, err)
	assert.Len(t, levels, config.MaxLevels)
}

func TestParseExtend(t *testing.T) {
	for _, name := range []string{"neither", "min", "max", "both"} {
		e, err := ParseExtend(name)
		require.NoError(t, err)
		assert.Equal(t, name, e.String())
	}
	_, err := ParseExtend("sometimes")
	require.Error(t, err)
}

func greyScale(t *testing.T, extend Extend) *Scale {
	t.Helper()
	ramp := EvenRamp([]color.Color{color.RGBA{0, 0, 0, 255}, color.RGBA{200, 200, 200, 255}})
	s, err := NewScale([]float64{0, 10, 20, 30, 40}, extend, ramp)
	require.NoError(t, err)
	return s
}

func TestScale_Band(t *testing.T) {
	s := greyScale(t, ExtendNeither)
	require.Equal(t, 4, s.Bands())

	tests := []struct {
		v     float64
		band  int
		class Class
	}{
		{0, 0, Inside},
		{5, 0, Inside},
		{10, 0, Inside},
		{10.001, 1, Inside},
		{20, 1, Inside},
		{39.9, 3, Inside},
		{40, 3, Inside},
		{-0.1, -1, Below},
		{40.1, -1, Above},
		{math.NaN(), -1, Missing},
	}
	for _, tt := range tests {
		band, class := s.Band(tt.v)
		assert.Equal(t, tt.class, class, "value %v", tt.v)
		assert.Equal(t, tt.band, band, "value %v", tt.v)
	}
}

func TestScale_Colors(t *testing.T) {
	s := greyScale(t, ExtendNeither)

	// band midpoints 5, 15, 25, 35 over [0, 40]
	assert.Equal(t, color.RGBA{25, 25, 25, 255}, s.Colors[0])
	assert.Equal(t, color.RGBA{75, 75, 75, 255}, s.Colors[1])
	assert.Equal(t, color.RGBA{175, 175, 175, 255}, s.Colors[3])
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, s.Under)
	assert.Equal(t, color.RGBA{200, 200, 200, 255}, s.Over)

	c, ok := s.Color(12)
	assert.True(t, ok)
	assert.Equal(t, s.Colors[1], c)

	_, ok = s.Color(math.NaN())
	assert.False(t, ok)
}

func TestScale_Extend(t *testing.T) {
	tests := []struct {
		extend      Extend
		under, over bool
	}{
		{ExtendNeither, false, false},
		{ExtendMin, true, false},
		{ExtendMax, false, true},
		{ExtendBoth, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.extend.String(), func(t *testing.T) {
			s := greyScale(t, tt.extend)

			c, ok := s.Color(-5)
			assert.Equal(t, tt.under, ok)
			if ok {
				assert.Equal(t, s.Under, c)
			}

			c, ok = s.Color(45)
			assert.Equal(t, tt.over, ok)
			if ok {
				assert.Equal(t, s.Over, c)
			}
		})
	}
}

func TestNewScale_Errors(t *testing.T) {
	ramp := EvenRamp([]color.Color{color.Black, color.White})
	_, err := NewScale([]float64{1}, ExtendNeither, ramp)
	assert.ErrorIs(t, err, ErrInvalidLevels)
	_, err = NewScale([]float64{1, 1, 2}, ExtendNeither, ramp)
	assert.ErrorIs(t, err, ErrInvalidLevels)
}
