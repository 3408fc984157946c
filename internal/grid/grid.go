// Package grid builds the regular latitude/longitude grid of a polar field
// and closes it across the 0/360 meridian.
package grid

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"hstin/polarmap/internal/config"
)

var ErrGridSize = errors.New("grid needs at least two points per axis")

// Grid holds the axes of a (lat, lon) field. Lons is cyclically padded: it
// has one more value than the data has columns, lon[0]+360.
type Grid struct {
	Lats []float64
	Lons []float64

	nlat, nlon int
	dlat, dlon float64
}

// New spaces lats latitudes evenly over [47, 90] and lons longitudes over
// [0, 360], then pads the longitude axis.
func New(lats, lons int) (*Grid, error) {
	if lats < 2 || lons < 2 {
		return nil, fmt.Errorf("%w: got %d x %d", ErrGridSize, lats, lons)
	}
	g := &Grid{
		Lats: floats.Span(make([]float64, lats), config.MinLat, config.MaxLat),
		Lons: PadLon(floats.Span(make([]float64, lons), config.MinLon, config.MaxLon)),
		nlat: lats,
		nlon: lons,
	}
	g.dlat = (config.MaxLat - config.MinLat) / float64(lats-1)
	g.dlon = (config.MaxLon - config.MinLon) / float64(lons-1)
	return g, nil
}

// Rows is the number of latitudes.
func (g *Grid) Rows() int { return g.nlat }

// Width is the padded number of longitudes.
func (g *Grid) Width() int { return g.nlon + 1 }

// PadLon appends lon[0]+360 to a longitude axis.
func PadLon(lon []float64) []float64 {
	out := make([]float64, len(lon)+1)
	copy(out, lon)
	out[len(lon)] = lon[0] + 360
	return out
}

// Pad copies a row-major lats × lons field into a lats × (lons+1) field
// whose last column repeats the first.
func Pad(values []float64, lats, lons int) []float64 {
	w := lons + 1
	out := make([]float64, lats*w)
	for i := 0; i < lats; i++ {
		row := out[i*w : (i+1)*w]
		copy(row, values[i*lons:(i+1)*lons])
		row[lons] = row[0]
	}
	return out
}

// Mesh returns the lat × padded-lon coordinate matrices.
func (g *Grid) Mesh() (lon2d, lat2d [][]float64) {
	lon2d = make([][]float64, len(g.Lats))
	lat2d = make([][]float64, len(g.Lats))
	for i, lat := range g.Lats {
		lon2d[i] = append([]float64(nil), g.Lons...)
		lat2d[i] = make([]float64, len(g.Lons))
		for j := range lat2d[i] {
			lat2d[i][j] = lat
		}
	}
	return lon2d, lat2d
}

// Cell locates a point between four grid nodes: (I, J) is the lower-left
// node of the padded grid and U, V the fractional offsets along lon and lat.
type Cell struct {
	I, J int
	U, V float64
}

// Locate finds the grid cell holding (lat, lon). Longitude is wrapped to
// [0, 360). Points south of the grid are reported as not found.
func (g *Grid) Locate(lat, lon float64) (Cell, bool) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < config.MinLat || lat > config.MaxLat {
		return Cell{}, false
	}
	lon = math.Mod(lon-config.MinLon, 360)
	if lon < 0 {
		lon += 360
	}

	y := (lat - config.MinLat) / g.dlat
	i := int(math.Floor(y))
	if i > g.nlat-2 {
		i = g.nlat - 2
	}
	x := lon / g.dlon
	j := int(math.Floor(x))
	if j > g.nlon-1 {
		j = g.nlon - 1
	}
	return Cell{I: i, J: j, U: x - float64(j), V: y - float64(i)}, true
}
