package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	xfont "golang.org/x/image/font"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"hstin/polarmap/internal/colormap"
	"hstin/polarmap/internal/config"
)

const (
	titleSize    = 24
	labelSize    = 16
	colorbarW    = 1.6 // inches, including tick labels and caption
	extendFrac   = 0.05
	graticuleLon = 30.0
)

var graticuleLats = []float64{60, 70, 80}

// Figure is one day's map: the painted disk, its title and the colour scale.
type Figure struct {
	Title string
	Day   int
	Label string
	Scale *colormap.Scale
	Image image.Image

	// Mesh is the padded lat × lon coordinate mesh of the field.
	LonMesh, LatMesh [][]float64
}

// Draw lays the map out square on the left of c and the colourbar on the
// right.
func (f *Figure) Draw(c draw.Canvas) error {
	mapPlot, err := f.mapPlot()
	if err != nil {
		return err
	}
	bar, err := f.colorbar()
	if err != nil {
		return err
	}

	area := c.Rectangle
	barW := vg.Length(colorbarW) * vg.Inch
	mapW := area.Size().X - barW
	titleH := mapPlot.Title.TextStyle.Height(mapPlot.Title.Text) + mapPlot.Title.Padding
	side := vg.Length(math.Min(float64(mapW), float64(area.Size().Y-titleH)))

	// map panel: side wide, side + title high, centred vertically
	spare := area.Size().Y - side - titleH
	mapC := draw.Crop(c, 0, -(barW + mapW - side), spare/2, -spare/2)
	mapPlot.Draw(mapC)

	// colourbar spans the middle 80% of the map height
	barC := draw.Crop(c, mapW, 0, spare/2+side/10, -(spare/2 + titleH + side/10))
	bar.Draw(barC)
	return nil
}

func (f *Figure) mapPlot() (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s Day %d", f.Title, f.Day)
	p.Title.TextStyle.Font.Size = vg.Points(titleSize)
	p.HideAxes()
	p.X.Padding, p.Y.Padding = 0, 0
	p.X.Min, p.X.Max = -1.01, 1.01
	p.Y.Min, p.Y.Max = -1.01, 1.01

	p.Add(plotter.NewImage(f.Image, -1, -1, 1, 1))

	lines, err := f.graticule()
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		p.Add(l)
	}
	return p, nil
}

// graticule draws the boundary ring along the southern mesh row, parallels
// at 60, 70 and 80N and meridians every 30 degrees.
func (f *Figure) graticule() ([]plot.Plotter, error) {
	var out []plot.Plotter
	if len(f.LatMesh) == 0 {
		return out, nil
	}

	faint := draw.LineStyle{
		Color:  color.Gray{Y: 90},
		Width:  vg.Points(0.5),
		Dashes: []vg.Length{vg.Points(2), vg.Points(2)},
	}

	ringLons := f.LonMesh[0]
	for _, lat := range graticuleLats {
		xys := make(plotter.XYs, len(ringLons))
		for j, lon := range ringLons {
			xys[j].X, xys[j].Y = Forward(lat, lon)
		}
		l, err := plotter.NewLine(xys)
		if err != nil {
			return nil, err
		}
		l.LineStyle = faint
		out = append(out, l)
	}

	top := f.LatMesh[len(f.LatMesh)-1][0]
	for lon := 0.0; lon < 360; lon += graticuleLon {
		x0, y0 := Forward(f.LatMesh[0][0], lon)
		x1, y1 := Forward(top, lon)
		l, err := plotter.NewLine(plotter.XYs{{X: x0, Y: y0}, {X: x1, Y: y1}})
		if err != nil {
			return nil, err
		}
		l.LineStyle = faint
		out = append(out, l)
	}

	ring := make(plotter.XYs, len(ringLons))
	for j, lon := range ringLons {
		ring[j].X, ring[j].Y = Forward(f.LatMesh[0][j], lon)
	}
	boundary, err := plotter.NewLine(ring)
	if err != nil {
		return nil, err
	}
	boundary.LineStyle.Width = vg.Points(1)
	boundary.LineStyle.Color = color.Black
	out = append(out, boundary)
	return out, nil
}

// colorbar draws one rectangle per band and a triangle for each extended
// end.
func (f *Figure) colorbar() (*plot.Plot, error) {
	s := f.Scale
	lo, hi := s.Lower(), s.Upper()
	ext := (hi - lo) * extendFrac

	p := plot.New()
	p.HideX()
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = lo, hi
	if s.Extend.Lower() {
		p.Y.Min = lo - ext
	}
	if s.Extend.Upper() {
		p.Y.Max = hi + ext
	}
	p.Y.Padding = 0
	p.Y.Label.Text = f.Label
	p.Y.Label.TextStyle.Font.Size = vg.Points(labelSize)
	p.Y.Label.TextStyle.Font.Weight = xfont.WeightBold
	p.Y.Tick.Marker = tickerFor(lo, hi, config.TickBins)

	for i, c := range s.Colors {
		band, err := plotter.NewPolygon(plotter.XYs{
			{X: 0, Y: s.Levels[i]}, {X: 1, Y: s.Levels[i]},
			{X: 1, Y: s.Levels[i+1]}, {X: 0, Y: s.Levels[i+1]},
		})
		if err != nil {
			return nil, err
		}
		band.Color = c
		band.LineStyle.Width = 0
		p.Add(band)
	}

	if s.Extend.Lower() {
		tri, err := plotter.NewPolygon(plotter.XYs{{X: 0, Y: lo}, {X: 1, Y: lo}, {X: 0.5, Y: lo - ext}})
		if err != nil {
			return nil, err
		}
		tri.Color = s.Under
		tri.LineStyle.Width = 0
		p.Add(tri)
	}
	if s.Extend.Upper() {
		tri, err := plotter.NewPolygon(plotter.XYs{{X: 0, Y: hi}, {X: 1, Y: hi}, {X: 0.5, Y: hi + ext}})
		if err != nil {
			return nil, err
		}
		tri.Color = s.Over
		tri.LineStyle.Width = 0
		p.Add(tri)
	}
	return p, nil
}
