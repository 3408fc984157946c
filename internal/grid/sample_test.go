package grid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// planeField is v = lat + lon/1000 on a lats × lons grid, row-major.
func planeField(g *Grid, lats, lons int) []float64 {
	values := make([]float64, lats*lons)
	for i := 0; i < lats; i++ {
		for j := 0; j < lons; j++ {
			values[i*lons+j] = g.Lats[i] + g.Lons[j]/1000
		}
	}
	return values
}

func TestSample_Bilinear(t *testing.T) {
	g, err := New(44, 361)
	require.NoError(t, err)
	padded := Pad(planeField(g, 44, 361), 44, 361)

	// a plane is reproduced exactly by bilinear interpolation
	assert.InDelta(t, 60.5+0.12025, g.SampleAt(padded, 60.5, 120.25), 1e-9)
	assert.InDelta(t, 47.0, g.SampleAt(padded, 47, 0), 1e-9)
	assert.InDelta(t, 89.9+0.3595, g.SampleAt(padded, 89.9, 359.5), 1e-9)

	// wrapped longitude
	assert.InDelta(t, g.SampleAt(padded, 70, 10), g.SampleAt(padded, 70, 370), 1e-12)
	assert.InDelta(t, g.SampleAt(padded, 70, 350), g.SampleAt(padded, 70, -10), 1e-12)

	assert.True(t, math.IsNaN(g.SampleAt(padded, 40, 10)))
}

func TestSample_Missing(t *testing.T) {
	g, err := New(2, 3)
	require.NoError(t, err)
	nan := math.NaN()

	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"all valid", []float64{0, 2, 0, 2, 4, 2}, 2},
		{"one missing", []float64{nan, 2, 0, 2, 4, 2}, (2*0.25 + 2*0.25 + 4*0.25) / 0.75},
		{"two missing", []float64{nan, nan, 0, 2, 4, 2}, 3},
		{"three missing", []float64{nan, nan, 0, nan, 4, 2}, nan},
		{"all missing", []float64{nan, nan, nan, nan, nan, nan}, nan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			padded := Pad(tt.values, 2, 3)
			got := g.Sample(padded, Cell{I: 0, J: 0, U: 0.5, V: 0.5})
			if math.IsNaN(tt.want) {
				assert.True(t, math.IsNaN(got))
				return
			}
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}
