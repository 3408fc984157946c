package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"hstin/polarmap/internal/config"
	"hstin/polarmap/internal/db"
	"hstin/polarmap/internal/render"
	"hstin/polarmap/parser"
)

// renderCmd writes one map per day of a run
var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render one polar map per forecast day",
	Long: `Loads the run's data file, slices the requested member and days and
writes one image per day to the figure directory.

The input file is <datadir>/<var>_<freq>_<exp>_<obs>_<start_month>_<yearb>_<yeare>_<calc>.<ext>
and images are named <var>_<freq>_<exp>-<obs>_<start_month>_<yearb>-<yeare>_<day>_<calc>.<imageformat>.

Example:
  polarmap render --exp a1q0 --obs NSIDC --var sic --freq day --start_month nov \
    --yearb 1988 --yeare 2012 --calc bias --dayb 1 --daye 3 --colmap seismic \
    --lb -1 --ub 1 --colsteps 0.01 --extmethod both --units frac \
    --title "SIC bias" --figdir ./figs --imageformat png`,
	Args: cobra.NoArgs,
	RunE: runRender,
}

func init() {
	defaults := config.Default()
	f := renderCmd.Flags()

	f.String("exp", "", "Experiment id")
	f.String("obs", "", "Observational reference")
	f.String("var", "", "Variable (sic, tos, psl)")
	f.String("freq", "", "Output frequency, e.g. day")
	f.String("start_month", "", "Initialisation month, e.g. nov")
	f.Int("yearb", 0, "First forecast year")
	f.Int("yeare", 0, "Last forecast year")
	f.String("calc", "", "Diagnostic name, e.g. bias")
	f.Int("dayb", 0, "First day to render (1-based, inclusive)")
	f.Int("daye", 0, "Last day to render (1-based, inclusive)")

	f.String("colmap", "", "Palette name, name_r for reversed, or file:<path>")
	f.Float64("lb", 0, "Lower colour bound")
	f.Float64("ub", 0, "Upper colour bound")
	f.Float64("colsteps", 0, "Level spacing")
	f.Int("nlevels", 0, "Number of levels, instead of --colsteps")
	f.String("extmethod", defaults.Extend, "Colourbar extension: neither, min, max or both")
	f.String("units", "", "Units shown in the colourbar label")
	f.String("title", "", "Figure title prefix")

	f.String("datadir", "", "Input directory (default: --figdir)")
	f.String("figdir", "", "Output directory")
	f.String("imageformat", defaults.ImageFormat, "Image format: png, jpg, tif, svg, pdf, eps or webp")
	f.Int("member", defaults.Member, "Index on the member axis")
	f.String("object", "", "Object name inside the data file (default: first array)")
	f.String("format", defaults.Format, "Input format: rdata, netcdf or parquet")
	f.Float64("dpi", defaults.DPI, "Raster image resolution")
	f.Int("raster", defaults.RasterSize, "Map raster size in pixels")
	f.Int("workers", defaults.Workers, "Number of days rendered in parallel")
	f.Int("quality", defaults.Quality, "WebP quality (1-100)")
}

// loadRunConfig reads --config when given and applies every flag the user set
// on top of it.
func loadRunConfig(cmd *cobra.Command) (*config.RunConfig, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.LoadFile(configFile); err != nil {
			return nil, err
		}
	}

	var setErr error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if setErr == nil {
			setErr = cfg.Set(f.Name, f.Value.String())
		}
	})
	if setErr != nil {
		return nil, setErr
	}
	return cfg, nil
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	loader, err := parser.Open(cfg.Format)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.FigDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", cfg.FigDir, err)
	}
	catalog, err := db.Open(filepath.Join(cfg.FigDir, db.FileName), clockwork.NewRealClock())
	if err != nil {
		return err
	}
	defer catalog.Close()

	logger.Info("Starting render",
		zap.String("input", cfg.InputPath()),
		zap.String("figdir", cfg.FigDir),
		zap.Int("dayb", cfg.DayBegin),
		zap.Int("daye", cfg.DayEnd),
		zap.Int("workers", cfg.Workers))

	paths, err := render.Generate(ctx, cfg, render.Deps{
		Loader:   loader,
		Catalog:  catalog,
		Metrics:  metrics,
		Logger:   logger,
		Clock:    clockwork.NewRealClock(),
		Progress: !verbose && isTerminal(os.Stderr),
	})
	if err != nil {
		return err
	}
	if err := catalog.UpdateMetadata(ctx, "last_run", cfg.InputBase()); err != nil {
		return err
	}

	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
