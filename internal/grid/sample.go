package grid

import "math"

// Sample interpolates a padded field (see Pad) bilinearly inside c. Missing
// corners are dropped and the remaining weights renormalised; with fewer
// than two valid corners the result is NaN.
func (g *Grid) Sample(padded []float64, c Cell) float64 {
	w := g.Width()
	pixel := func(row, col int) (float64, bool) {
		if row < 0 || row >= g.nlat || col < 0 || col >= w {
			return 0, false
		}
		v := padded[row*w+col]
		return v, !math.IsNaN(v)
	}

	u, v := c.U, c.V
	v00, ok00 := pixel(c.I, c.J)
	v01, ok01 := pixel(c.I, c.J+1)
	v10, ok10 := pixel(c.I+1, c.J)
	v11, ok11 := pixel(c.I+1, c.J+1)

	if ok00 && ok01 && ok10 && ok11 {
		return v00*(1-u)*(1-v) + v01*u*(1-v) + v10*(1-u)*v + v11*u*v
	}

	valid := 0
	total, sum := 0.0, 0.0
	add := func(val float64, ok bool, weight float64) {
		if !ok {
			return
		}
		valid++
		sum += val * weight
		total += weight
	}
	add(v00, ok00, (1-u)*(1-v))
	add(v01, ok01, u*(1-v))
	add(v10, ok10, (1-u)*v)
	add(v11, ok11, u*v)

	if valid < 2 || total == 0 {
		return math.NaN()
	}
	return sum / total
}

// SampleAt locates (lat, lon) and samples the padded field there.
func (g *Grid) SampleAt(padded []float64, lat, lon float64) float64 {
	c, ok := g.Locate(lat, lon)
	if !ok {
		return math.NaN()
	}
	return g.Sample(padded, c)
}
