package render

import (
	"math"

	"hstin/polarmap/internal/config"
)

const deg = math.Pi / 180

// boundaryScale is tan(pi/4 - lat_b/2) for the 47N boundary. Dividing by it
// puts the boundary circle at radius 1.
var boundaryScale = math.Tan(math.Pi/4 - config.MinLat*deg/2)

// Forward projects (lat, lon) in degrees onto the north polar stereographic
// plane with lon 0 pointing down. The 47N parallel maps to the unit circle.
func Forward(lat, lon float64) (x, y float64) {
	rho := math.Tan(math.Pi/4-lat*deg/2) / boundaryScale
	lam := lon * deg
	return rho * math.Sin(lam), -rho * math.Cos(lam)
}

// Inverse maps a plane point back to (lat, lon), lon in [0, 360). Points
// outside the boundary circle are reported as not ok.
func Inverse(x, y float64) (lat, lon float64, ok bool) {
	rho := math.Hypot(x, y)
	if rho > 1 {
		return 0, 0, false
	}
	lat = 90 - 2*math.Atan(rho*boundaryScale)/deg
	lon = math.Atan2(x, -y) / deg
	if lon < 0 {
		lon += 360
	}
	if lon >= 360 {
		lon -= 360
	}
	return lat, lon, true
}

// PixelToPlane maps the centre of pixel (px, py) of a size × size raster to
// the plane square [-1, 1]², y up.
func PixelToPlane(px, py, size int) (x, y float64) {
	n := float64(size)
	return 2*(float64(px)+0.5)/n - 1, 1 - 2*(float64(py)+0.5)/n
}
