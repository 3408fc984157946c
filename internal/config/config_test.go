package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleConfig() *RunConfig {
	cfg := Default()
	cfg.Experiment = "a1q0"
	cfg.Observation = "NSIDC"
	cfg.Variable = "sic"
	cfg.Frequency = "day"
	cfg.StartMonth = "nov"
	cfg.YearBegin = 1988
	cfg.YearEnd = 2012
	cfg.Diagnostic = "bias"
	cfg.DayBegin = 1
	cfg.DayEnd = 3
	cfg.ColorMap = "seismic"
	cfg.Upper = 100
	cfg.Lower = -100
	cfg.ColorStep = 1
	cfg.Units = "%"
	cfg.Title = "Bias"
	cfg.FigDir = "/data/out"
	return cfg
}

func TestValidate_Sample(t *testing.T) {
	require.NoError(t, sampleConfig().Validate())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *RunConfig)
		target error
		field  string
	}{
		{"missing experiment", func(c *RunConfig) { c.Experiment = "" }, ErrMissingField, "--exp"},
		{"missing figdir", func(c *RunConfig) { c.FigDir = " " }, ErrMissingField, "--figdir"},
		{"unknown variable", func(c *RunConfig) { c.Variable = "tas" }, ErrUnknownVariable, "tas"},
		{"missing years", func(c *RunConfig) { c.YearEnd = 0 }, ErrMissingField, "--yeare"},
		{"reversed years", func(c *RunConfig) { c.YearBegin = 2013 }, ErrInvalidField, "--yearb"},
		{"day zero", func(c *RunConfig) { c.DayBegin = 0 }, ErrInvalidField, "--dayb"},
		{"reversed days", func(c *RunConfig) { c.DayEnd = 0 }, ErrInvalidField, "--daye"},
		{"equal bounds", func(c *RunConfig) { c.Lower = 100 }, ErrInvalidField, "--lb"},
		{"zero step", func(c *RunConfig) { c.ColorStep = 0 }, ErrInvalidField, "--colsteps"},
		{"negative step", func(c *RunConfig) { c.ColorStep = -1 }, ErrInvalidField, "--colsteps"},
		{"step and count", func(c *RunConfig) { c.ColorCount = 10 }, ErrInvalidField, "mutually exclusive"},
		{"single level", func(c *RunConfig) { c.ColorStep = 0; c.ColorCount = 1 }, ErrInvalidField, "--nlevels"},
		{"bad extend", func(c *RunConfig) { c.Extend = "sometimes" }, ErrInvalidField, "--extmethod"},
		{"bad image format", func(c *RunConfig) { c.ImageFormat = "bmp" }, ErrUnknownFormat, "bmp"},
		{"bad input format", func(c *RunConfig) { c.Format = "grib" }, ErrUnknownFormat, "grib"},
		{"negative member", func(c *RunConfig) { c.Member = -1 }, ErrInvalidField, "--member"},
		{"bad quality", func(c *RunConfig) { c.Quality = 101 }, ErrInvalidField, "--quality"},
		{"too many levels", func(c *RunConfig) { c.Lower, c.Upper, c.ColorStep = -1e12, 1e12, 1e-6 }, ErrInvalidField, "--colsteps"},
		{"infinite bound", func(c *RunConfig) { c.Upper = math.Inf(1) }, ErrInvalidField, "--colsteps"},
		{"too many counted levels", func(c *RunConfig) { c.ColorStep = 0; c.ColorCount = MaxLevels + 1 }, ErrInvalidField, "--nlevels"},
		{"fractional dpi", func(c *RunConfig) { c.DPI = 0.5 }, ErrInvalidField, "--dpi"},
		{"huge dpi", func(c *RunConfig) { c.DPI = 1e6 }, ErrInvalidField, "--dpi"},
		{"huge raster", func(c *RunConfig) { c.RasterSize = 1 << 20 }, ErrInvalidField, "--raster"},
		{"no workers", func(c *RunConfig) { c.Workers = 0 }, ErrInvalidField, "--workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := sampleConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidate_CountMode(t *testing.T) {
	cfg := sampleConfig()
	cfg.ColorStep = 0
	cfg.ColorCount = 100
	require.NoError(t, cfg.Validate())
}

func TestOutputName(t *testing.T) {
	cfg := sampleConfig()

	assert.Equal(t, "sic_day_a1q0-NSIDC_nov_1988-2012_1_bias.png", cfg.OutputName(1))
	assert.Equal(t, "sic_day_a1q0-NSIDC_nov_1988-2012_3_bias.png", cfg.OutputName(3))
	assert.Equal(t, cfg.OutputName(2), cfg.OutputName(2))
	assert.Equal(t, filepath.Join("/data/out", cfg.OutputName(2)), cfg.OutputPath(2))

	cfg.ImageFormat = "webp"
	assert.Equal(t, "sic_day_a1q0-NSIDC_nov_1988-2012_2_bias.webp", cfg.OutputName(2))
}

func TestInputPath(t *testing.T) {
	cfg := sampleConfig()

	assert.Equal(t, "sic_day_a1q0_NSIDC_nov_1988_2012_bias", cfg.InputBase())
	assert.Equal(t, "/data/out/sic_day_a1q0_NSIDC_nov_1988_2012_bias.RData", cfg.InputPath())

	cfg.DataDir = "/data/in"
	cfg.Format = "netcdf"
	assert.Equal(t, "/data/in/sic_day_a1q0_NSIDC_nov_1988_2012_bias.nc", cfg.InputPath())

	cfg.Format = "parquet"
	assert.Equal(t, "/data/in/sic_day_a1q0_NSIDC_nov_1988_2012_bias.parquet", cfg.InputPath())
}

func TestDays(t *testing.T) {
	cfg := sampleConfig()
	assert.Equal(t, 3, cfg.DayCount())
	assert.Equal(t, []int{1, 2, 3}, cfg.Days())

	cfg.DayBegin, cfg.DayEnd = 5, 5
	assert.Equal(t, 1, cfg.DayCount())
	assert.Equal(t, []int{5}, cfg.Days())
}

func TestSet(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Set("exp", "a1q0"))
	require.NoError(t, cfg.Set("yearb", "1988"))
	require.NoError(t, cfg.Set("ub", "99.5"))
	require.NoError(t, cfg.Set("imageformat", "PNG"))
	require.NoError(t, cfg.Set("verbose", "true"))

	assert.Equal(t, "a1q0", cfg.Experiment)
	assert.Equal(t, 1988, cfg.YearBegin)
	assert.InDelta(t, 99.5, cfg.Upper, 1e-12)
	assert.Equal(t, "png", cfg.ImageFormat)

	err := cfg.Set("lb", "low")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidField)
	assert.Contains(t, err.Error(), "lb")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	content := `
exp: a1q0
obs: NSIDC
var: sic
freq: day
start_month: nov
yearb: 1988
yeare: 2012
calc: bias
dayb: 1
daye: 3
colmap: seismic
ub: 100
lb: -100
colsteps: 1
units: "%"
title: Bias
figdir: /data/out
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "a1q0", cfg.Experiment)
	assert.Equal(t, "%", cfg.Units)
	assert.Equal(t, "png", cfg.ImageFormat)
	assert.Equal(t, "rdata", cfg.Format)
	assert.InDelta(t, 100.0, cfg.DPI, 1e-12)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dayb: [1, 2"), 0o644))
	_, err = LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}
