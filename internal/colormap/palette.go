package colormap

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/brewer"
	"gonum.org/v1/plot/palette/moreland"
)

var ErrUnknownPalette = errors.New("unknown palette")

// Stop is a control colour at position Pos in [0, 1].
type Stop struct {
	Pos   float64
	Color color.RGBA
}

// Ramp interpolates linearly between control colours.
type Ramp struct {
	stops []Stop
}

// NewRamp sorts stops by position. Duplicate positions make a hard edge.
func NewRamp(stops ...Stop) Ramp {
	s := append([]Stop(nil), stops...)
	sort.SliceStable(s, func(i, j int) bool { return s[i].Pos < s[j].Pos })
	return Ramp{stops: s}
}

// EvenRamp places colours at equal spacing over [0, 1].
func EvenRamp(colors []color.Color) Ramp {
	stops := make([]Stop, len(colors))
	for i, c := range colors {
		pos := 0.0
		if len(colors) > 1 {
			pos = float64(i) / float64(len(colors)-1)
		}
		stops[i] = Stop{Pos: pos, Color: color.RGBAModel.Convert(c).(color.RGBA)}
	}
	return Ramp{stops: stops}
}

// At returns the colour at t, clamped to [0, 1].
func (r Ramp) At(t float64) color.RGBA {
	if len(r.stops) == 0 {
		return color.RGBA{}
	}
	if math.IsNaN(t) || t <= r.stops[0].Pos {
		return r.stops[0].Color
	}
	last := r.stops[len(r.stops)-1]
	if t >= last.Pos {
		return last.Color
	}
	k := sort.Search(len(r.stops), func(i int) bool { return r.stops[i].Pos > t })
	a, b := r.stops[k-1], r.stops[k]
	f := (t - a.Pos) / (b.Pos - a.Pos)
	return color.RGBA{
		R: lerp(a.Color.R, b.Color.R, f),
		G: lerp(a.Color.G, b.Color.G, f),
		B: lerp(a.Color.B, b.Color.B, f),
		A: lerp(a.Color.A, b.Color.A, f),
	}
}

// Reverse mirrors the ramp.
func (r Ramp) Reverse() Ramp {
	out := make([]Stop, len(r.stops))
	for i, s := range r.stops {
		out[len(out)-1-i] = Stop{Pos: 1 - s.Pos, Color: s.Color}
	}
	return Ramp{stops: out}
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*f))
}

func rgb(r, g, b float64) color.Color {
	return color.RGBA{uint8(math.Round(r * 255)), uint8(math.Round(g * 255)), uint8(math.Round(b * 255)), 255}
}

// rampSamples is the resolution used to sample continuous colour maps.
const rampSamples = 256

func fromColorMap(cm palette.ColorMap) Ramp {
	cm.SetMax(1)
	cm.SetMin(0)
	return EvenRamp(cm.Palette(rampSamples).Colors())
}

var named = map[string]func() Ramp{
	"seismic": func() Ramp {
		return EvenRamp([]color.Color{rgb(0, 0, 0.3), rgb(0, 0, 1), rgb(1, 1, 1), rgb(1, 0, 0), rgb(0.5, 0, 0)})
	},
	"bwr": func() Ramp {
		return EvenRamp([]color.Color{rgb(0, 0, 1), rgb(1, 1, 1), rgb(1, 0, 0)})
	},
	"gray": func() Ramp {
		return EvenRamp([]color.Color{rgb(0, 0, 0), rgb(1, 1, 1)})
	},
	"coolwarm":     func() Ramp { return fromColorMap(moreland.SmoothBlueRed()) },
	"greenpurple":  func() Ramp { return fromColorMap(moreland.SmoothGreenPurple()) },
	"hot":          func() Ramp { return fromColorMap(moreland.BlackBody()) },
	"afmhot":       func() Ramp { return fromColorMap(moreland.ExtendedBlackBody()) },
	"kindlmann":    func() Ramp { return fromColorMap(moreland.Kindlmann()) },
	"extkindlmann": func() Ramp { return fromColorMap(moreland.ExtendedKindlmann()) },
	"heat":         func() Ramp { return EvenRamp(palette.Heat(rampSamples, 1).Colors()) },
	"jet": func() Ramp {
		return EvenRamp(palette.Rainbow(rampSamples, palette.Blue, palette.Red, 1, 1, 1).Colors())
	},
	"rainbow": func() Ramp {
		return EvenRamp(palette.Rainbow(rampSamples, palette.Magenta, palette.Red, 1, 1, 1).Colors())
	},
}

// Palette resolves a palette by name. Besides the built-in names, any
// ColorBrewer scheme ("RdBu", "Blues", ...) is accepted, "_r" reverses a
// palette and "file:<path>" loads a colour table.
func Palette(name string) (Ramp, error) {
	if path, ok := strings.CutPrefix(name, "file:"); ok {
		entries, err := LoadFile(path)
		if err != nil {
			return Ramp{}, err
		}
		return TableRamp(entries)
	}

	if base, ok := strings.CutSuffix(name, "_r"); ok {
		r, err := Palette(base)
		if err != nil {
			return Ramp{}, err
		}
		return r.Reverse(), nil
	}

	if f, ok := named[name]; ok {
		return f(), nil
	}
	if r, ok := brewerRamp(name); ok {
		return r, nil
	}
	return Ramp{}, fmt.Errorf("%w: %q", ErrUnknownPalette, name)
}

// brewerRamp uses the largest size a ColorBrewer scheme is defined for.
func brewerRamp(name string) (Ramp, bool) {
	for n := 12; n >= 3; n-- {
		p, err := brewer.GetPalette(brewer.TypeAny, name, n)
		if err == nil {
			return EvenRamp(p.Colors()), true
		}
	}
	return Ramp{}, false
}

// Names lists the built-in palette names.
func Names() []string {
	names := make([]string, 0, len(named))
	for n := range named {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
