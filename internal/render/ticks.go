package render

import (
	"math"
	"strconv"

	"gonum.org/v1/plot"
)

var niceSteps = []float64{1, 2, 2.5, 5, 10}

// tickStep picks the smallest nice step that splits [lo, hi] into at most
// nbins intervals.
func tickStep(lo, hi float64, nbins int) float64 {
	raw := (hi - lo) / float64(nbins)
	if raw <= 0 || math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 1
	}
	scale := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, s := range niceSteps {
		if s*scale >= raw*(1-1e-9) {
			return s * scale
		}
	}
	return 10 * scale
}

// decimals is the number of fraction digits needed to print multiples of
// step exactly.
func decimals(step float64) int {
	for p := 0; p < 10; p++ {
		v := step * math.Pow(10, float64(p))
		if math.Abs(v-math.Round(v)) < 1e-6 {
			return p
		}
	}
	return 10
}

// NiceTicks labels multiples of a nice step inside [lo, hi], with at most
// nbins intervals.
func NiceTicks(lo, hi float64, nbins int) []plot.Tick {
	step := tickStep(lo, hi, nbins)
	prec := decimals(step)

	var ticks []plot.Tick
	first := math.Ceil(lo/step - 1e-9)
	for k := first; k*step <= hi+step*1e-9; k++ {
		v := k * step
		if v == 0 {
			v = 0 // no negative zero in labels
		}
		ticks = append(ticks, plot.Tick{Value: v, Label: strconv.FormatFloat(v, 'f', prec, 64)})
	}
	return ticks
}

func tickerFor(lo, hi float64, nbins int) plot.Ticker {
	return plot.TickerFunc(func(_, _ float64) []plot.Tick {
		return NiceTicks(lo, hi, nbins)
	})
}
