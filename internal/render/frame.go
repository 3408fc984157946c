package render

import (
	"image"
	"image/color"
	"math"

	"hstin/polarmap/internal/colormap"
	"hstin/polarmap/internal/grid"
)

// LandColor paints cells without data.
var LandColor = color.RGBA{192, 192, 192, 255}

// Raster maps every pixel of a square image to its grid cell once, so each
// day only samples and colours.
type Raster struct {
	Size int

	grid   *grid.Grid
	cells  []grid.Cell
	inside []bool
}

// NewRaster inverse-projects the pixel centres of a size × size image.
// Pixels outside the 47N disk stay transparent.
func NewRaster(g *grid.Grid, size int) *Raster {
	r := &Raster{
		Size:   size,
		grid:   g,
		cells:  make([]grid.Cell, size*size),
		inside: make([]bool, size*size),
	}
	for py := 0; py < size; py++ {
		for px := 0; px < size; px++ {
			x, y := PixelToPlane(px, py, size)
			lat, lon, ok := Inverse(x, y)
			if !ok {
				continue
			}
			cell, ok := g.Locate(lat, lon)
			if !ok {
				continue
			}
			idx := py*size + px
			r.cells[idx] = cell
			r.inside[idx] = true
		}
	}
	return r
}

// Paint fills the disk from a padded field. Every pixel takes the colour of
// exactly one band, so neighbouring bands meet without gaps.
func (r *Raster) Paint(padded []float64, scale *colormap.Scale) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.Size, r.Size))

	for py := 0; py < r.Size; py++ {
		rowOffset := py * img.Stride
		for px := 0; px < r.Size; px++ {
			i := py*r.Size + px
			if !r.inside[i] {
				continue
			}

			val := r.grid.Sample(padded, r.cells[i])

			var pixelColor color.RGBA
			if math.IsNaN(val) {
				pixelColor = LandColor
			} else {
				c, ok := scale.Color(val)
				if !ok {
					continue
				}
				pixelColor = c
			}

			idx := rowOffset + px*4
			img.Pix[idx] = pixelColor.R
			img.Pix[idx+1] = pixelColor.G
			img.Pix[idx+2] = pixelColor.B
			img.Pix[idx+3] = pixelColor.A
		}
	}
	return img
}
