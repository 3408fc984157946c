// Package colormap turns palettes and level bounds into the discrete colour
// scale of a filled-contour map.
package colormap

import (
	"bufio"
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"strconv"
	"strings"
)

// Entry is one row of a colour table: values at or above Threshold take
// Color.
type Entry struct {
	Threshold float64
	Color     color.RGBA
}

var ErrEmptyTable = errors.New("no valid entries found in color map file")

// LoadFile reads a colour table. Each non-comment line holds a threshold
// ("-inf" allowed) followed by R G B A components in 0-255.
func LoadFile(filename string) ([]Entry, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("error opening color map file: %w", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			return nil, fmt.Errorf("%s:%d: want threshold and 4 color components, got %q", filename, lineNo, line)
		}

		var threshold float64
		if fields[0] == "-inf" {
			threshold = math.Inf(-1)
		} else {
			threshold, err = strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: invalid threshold %q", filename, lineNo, fields[0])
			}
		}

		var rgba [4]uint8
		for i := range rgba {
			v, err := strconv.Atoi(fields[i+1])
			if err != nil || v < 0 || v > 255 {
				return nil, fmt.Errorf("%s:%d: invalid color component %q", filename, lineNo, fields[i+1])
			}
			rgba[i] = uint8(v)
		}

		entries = append(entries, Entry{
			Threshold: threshold,
			Color:     color.RGBA{rgba[0], rgba[1], rgba[2], rgba[3]},
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: %w", filename, ErrEmptyTable)
	}
	return entries, nil
}

// TableRamp spreads the entries of a colour table over [0, 1] in threshold
// order. A -inf threshold sits at 0; with a single finite threshold, or none,
// entries are spaced evenly.
func TableRamp(entries []Entry) (Ramp, error) {
	if len(entries) == 0 {
		return Ramp{}, ErrEmptyTable
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, e := range entries {
		if i > 0 && e.Threshold < entries[i-1].Threshold {
			return Ramp{}, fmt.Errorf("color table thresholds must not decrease (%g after %g)", e.Threshold, entries[i-1].Threshold)
		}
		if math.IsInf(e.Threshold, 0) {
			continue
		}
		lo = math.Min(lo, e.Threshold)
		hi = math.Max(hi, e.Threshold)
	}

	stops := make([]Stop, len(entries))
	for i, e := range entries {
		pos := float64(i) / float64(max(len(entries)-1, 1))
		if hi > lo {
			switch {
			case math.IsInf(e.Threshold, -1):
				pos = 0
			case math.IsInf(e.Threshold, 1):
				pos = 1
			default:
				pos = (e.Threshold - lo) / (hi - lo)
			}
		}
		stops[i] = Stop{Pos: pos, Color: e.Color}
	}
	return NewRamp(stops...), nil
}
