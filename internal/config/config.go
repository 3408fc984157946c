package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// RunConfig holds every parameter of a render run. It fully determines the
// input file name and the output file name template.
type RunConfig struct {
	Experiment  string `yaml:"exp"`
	Observation string `yaml:"obs"`
	Variable    string `yaml:"var"`
	Frequency   string `yaml:"freq"`
	StartMonth  string `yaml:"start_month"`
	YearBegin   int    `yaml:"yearb"`
	YearEnd     int    `yaml:"yeare"`
	Diagnostic  string `yaml:"calc"`

	// DayBegin and DayEnd are 1-based and inclusive.
	DayBegin int `yaml:"dayb"`
	DayEnd   int `yaml:"daye"`

	ColorMap   string  `yaml:"colmap"`
	Upper      float64 `yaml:"ub"`
	Lower      float64 `yaml:"lb"`
	ColorStep  float64 `yaml:"colsteps"`
	ColorCount int     `yaml:"nlevels"`
	Extend     string  `yaml:"extmethod"`
	Units      string  `yaml:"units"`
	Title      string  `yaml:"title"`

	DataDir     string `yaml:"datadir"`
	FigDir      string `yaml:"figdir"`
	ImageFormat string `yaml:"imageformat"`

	Member int    `yaml:"member"`
	Object string `yaml:"object"`
	Format string `yaml:"format"`

	DPI        float64 `yaml:"dpi"`
	RasterSize int     `yaml:"raster"`
	Workers    int     `yaml:"workers"`
	Quality    int     `yaml:"quality"`
}

const (
	MinLat       = 47.0
	MaxLat       = 90.0
	MinLon       = 0.0
	MaxLon       = 360.0
	FigureWidth  = 8.5 // inches
	FigureHeight = 8.0 // inches
	TickBins     = 12

	// MaxLevels bounds the number of colour levels a run may ask for.
	MaxLevels = 10000
	MaxDPI    = 2400
	MaxRaster = 8192
)

var (
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidField  = errors.New("invalid field")
	ErrUnknownFormat = errors.New("unknown format")

	// ErrUnknownVariable rejects variables without a colourbar label.
	ErrUnknownVariable = errors.New("unknown variable")
)

// Variables lists the variable names a run can render.
var Variables = []string{"sic", "tos", "psl"}

// ImageFormats lists the supported output encodings.
var ImageFormats = []string{"png", "jpg", "jpeg", "tif", "tiff", "svg", "pdf", "eps", "webp"}

var inputExt = map[string]string{
	"rdata":   ".RData",
	"netcdf":  ".nc",
	"parquet": ".parquet",
}

// Default returns a RunConfig with the render settings filled in and every
// run-identifying field left empty.
func Default() *RunConfig {
	return &RunConfig{
		Extend:      "neither",
		ImageFormat: "png",
		Format:      "rdata",
		DPI:         100,
		RasterSize:  800,
		Workers:     runtime.NumCPU(),
		Quality:     90,
	}
}

// LoadFile reads a YAML run file on top of Default.
func LoadFile(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse run file %s: %w", path, err)
	}
	return cfg, nil
}

// Set assigns a field from its flag name and string form.
func (c *RunConfig) Set(name, value string) error {
	var err error
	switch name {
	case "exp":
		c.Experiment = value
	case "obs":
		c.Observation = value
	case "var":
		c.Variable = value
	case "freq":
		c.Frequency = value
	case "start_month":
		c.StartMonth = value
	case "yearb":
		c.YearBegin, err = strconv.Atoi(value)
	case "yeare":
		c.YearEnd, err = strconv.Atoi(value)
	case "calc":
		c.Diagnostic = value
	case "dayb":
		c.DayBegin, err = strconv.Atoi(value)
	case "daye":
		c.DayEnd, err = strconv.Atoi(value)
	case "colmap":
		c.ColorMap = value
	case "ub":
		c.Upper, err = strconv.ParseFloat(value, 64)
	case "lb":
		c.Lower, err = strconv.ParseFloat(value, 64)
	case "colsteps":
		c.ColorStep, err = strconv.ParseFloat(value, 64)
	case "nlevels":
		c.ColorCount, err = strconv.Atoi(value)
	case "extmethod":
		c.Extend = value
	case "units":
		c.Units = value
	case "title":
		c.Title = value
	case "datadir":
		c.DataDir = value
	case "figdir":
		c.FigDir = value
	case "imageformat":
		c.ImageFormat = strings.ToLower(value)
	case "member":
		c.Member, err = strconv.Atoi(value)
	case "object":
		c.Object = value
	case "format":
		c.Format = strings.ToLower(value)
	case "dpi":
		c.DPI, err = strconv.ParseFloat(value, 64)
	case "raster":
		c.RasterSize, err = strconv.Atoi(value)
	case "workers":
		c.Workers, err = strconv.Atoi(value)
	case "quality":
		c.Quality, err = strconv.Atoi(value)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidField, name, value)
	}
	return nil
}

// Validate reports the first missing or inconsistent field.
func (c *RunConfig) Validate() error {
	required := []struct{ name, value string }{
		{"exp", c.Experiment},
		{"obs", c.Observation},
		{"var", c.Variable},
		{"freq", c.Frequency},
		{"start_month", c.StartMonth},
		{"calc", c.Diagnostic},
		{"colmap", c.ColorMap},
		{"figdir", c.FigDir},
		{"imageformat", c.ImageFormat},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: --%s", ErrMissingField, f.name)
		}
	}

	if !contains(Variables, c.Variable) {
		return fmt.Errorf("%w: --var %q (want one of %s)", ErrUnknownVariable, c.Variable, strings.Join(Variables, ", "))
	}
	if c.YearBegin <= 0 || c.YearEnd <= 0 {
		return fmt.Errorf("%w: --yearb and --yeare", ErrMissingField)
	}
	if c.YearBegin > c.YearEnd {
		return fmt.Errorf("%w: --yearb %d is after --yeare %d", ErrInvalidField, c.YearBegin, c.YearEnd)
	}
	if c.DayBegin < 1 {
		return fmt.Errorf("%w: --dayb must be >= 1, got %d", ErrInvalidField, c.DayBegin)
	}
	if c.DayEnd < c.DayBegin {
		return fmt.Errorf("%w: --daye %d is before --dayb %d", ErrInvalidField, c.DayEnd, c.DayBegin)
	}
	if !(c.Lower < c.Upper) {
		return fmt.Errorf("%w: --lb %g must be below --ub %g", ErrInvalidField, c.Lower, c.Upper)
	}
	switch {
	case c.ColorStep != 0 && c.ColorCount != 0:
		return fmt.Errorf("%w: --colsteps and --nlevels are mutually exclusive", ErrInvalidField)
	case c.ColorCount != 0 && c.ColorCount < 2:
		return fmt.Errorf("%w: --nlevels must be >= 2, got %d", ErrInvalidField, c.ColorCount)
	case c.ColorCount == 0 && !(c.ColorStep > 0):
		return fmt.Errorf("%w: --colsteps must be > 0, got %g", ErrInvalidField, c.ColorStep)
	case c.ColorCount > MaxLevels:
		return fmt.Errorf("%w: --nlevels %d exceeds %d", ErrInvalidField, c.ColorCount, MaxLevels)
	case c.ColorCount == 0 && !((c.Upper-c.Lower)/c.ColorStep+1 <= MaxLevels):
		return fmt.Errorf("%w: --colsteps %g gives more than %d levels in [%g, %g]",
			ErrInvalidField, c.ColorStep, MaxLevels, c.Lower, c.Upper)
	}
	switch c.Extend {
	case "neither", "min", "max", "both":
	default:
		return fmt.Errorf("%w: --extmethod %q", ErrInvalidField, c.Extend)
	}
	if !contains(ImageFormats, c.ImageFormat) {
		return fmt.Errorf("%w: image format %q", ErrUnknownFormat, c.ImageFormat)
	}
	if _, ok := inputExt[c.Format]; !ok {
		return fmt.Errorf("%w: input format %q", ErrUnknownFormat, c.Format)
	}
	if c.Member < 0 {
		return fmt.Errorf("%w: --member must be >= 0", ErrInvalidField)
	}
	if !(c.DPI >= 1 && c.DPI <= MaxDPI) {
		return fmt.Errorf("%w: --dpi must be within 1-%d, got %g", ErrInvalidField, MaxDPI, c.DPI)
	}
	if c.RasterSize < 1 || c.RasterSize > MaxRaster {
		return fmt.Errorf("%w: --raster must be within 1-%d, got %d", ErrInvalidField, MaxRaster, c.RasterSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("%w: --workers must be positive", ErrInvalidField)
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("%w: --quality must be within 1-100", ErrInvalidField)
	}
	return nil
}

// InputBase joins the run-identifying fields into the data file base name.
func (c *RunConfig) InputBase() string {
	return strings.Join([]string{
		c.Variable, c.Frequency, c.Experiment, c.Observation, c.StartMonth,
		strconv.Itoa(c.YearBegin), strconv.Itoa(c.YearEnd), c.Diagnostic,
	}, "_")
}

// InputPath resolves the data file for the configured input format. The data
// directory falls back to the figure directory.
func (c *RunConfig) InputPath() string {
	dir := c.DataDir
	if dir == "" {
		dir = c.FigDir
	}
	return filepath.Join(dir, c.InputBase()+InputExt(c.Format))
}

// InputExt returns the file extension used by an input format.
func InputExt(format string) string {
	return inputExt[format]
}

// OutputName is the image file name for a 1-based day number.
func (c *RunConfig) OutputName(day int) string {
	return fmt.Sprintf("%s_%s_%s-%s_%s_%d-%d_%d_%s.%s",
		c.Variable, c.Frequency, c.Experiment, c.Observation, c.StartMonth,
		c.YearBegin, c.YearEnd, day, c.Diagnostic, c.ImageFormat)
}

// OutputPath joins OutputName onto the figure directory.
func (c *RunConfig) OutputPath(day int) string {
	return filepath.Join(c.FigDir, c.OutputName(day))
}

// DayCount is the number of images a run produces.
func (c *RunConfig) DayCount() int {
	return c.DayEnd - c.DayBegin + 1
}

// Days lists the 1-based day numbers of the run in order.
func (c *RunConfig) Days() []int {
	days := make([]int, 0, c.DayCount())
	for d := c.DayBegin; d <= c.DayEnd; d++ {
		days = append(days, d)
	}
	return days
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
