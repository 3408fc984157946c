package render

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/cheggaaa/pb"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot/vg/draw"

	"hstin/polarmap/internal/colormap"
	"hstin/polarmap/internal/config"
	"hstin/polarmap/internal/db"
	"hstin/polarmap/internal/grid"
	"hstin/polarmap/internal/observability"
	"hstin/polarmap/parser"
)

// Deps are the collaborators of a run. Only Loader is required.
type Deps struct {
	Loader   parser.Loader
	Catalog  *db.Catalog
	Metrics  *observability.Metrics
	Logger   *zap.Logger
	Clock    clockwork.Clock
	Progress bool
}

// BuildScale derives the colour scale of a run from its bounds, level
// spacing, extend policy and palette.
func BuildScale(cfg *config.RunConfig) (*colormap.Scale, error) {
	var (
		levels []float64
		err    error
	)
	if cfg.ColorCount > 0 {
		levels, err = colormap.LevelsN(cfg.Lower, cfg.Upper, cfg.ColorCount)
	} else {
		levels, err = colormap.Levels(cfg.Lower, cfg.Upper, cfg.ColorStep)
	}
	if err != nil {
		return nil, err
	}
	extend, err := colormap.ParseExtend(cfg.Extend)
	if err != nil {
		return nil, err
	}
	ramp, err := colormap.Palette(cfg.ColorMap)
	if err != nil {
		return nil, err
	}
	return colormap.NewScale(levels, extend, ramp)
}

// Generate renders one image per configured day and returns the written
// paths in day order. Days render in parallel; the first failure cancels
// the remaining days.
func Generate(ctx context.Context, cfg *config.RunConfig, deps Deps) ([]string, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	logger := deps.Logger
	startTime := deps.Clock.Now()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	label, err := colormap.Label(cfg.Variable, cfg.Units)
	if err != nil {
		return nil, err
	}
	scale, err := BuildScale(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build color scale: %w", err)
	}

	input := cfg.InputPath()
	logger.Debug("loading input", zap.String("path", input), zap.String("format", cfg.Format))
	loadStart := deps.Clock.Now()
	arr, err := deps.Loader.Load(ctx, parser.Key{Path: input, Object: cfg.Object})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", input, err)
	}
	if deps.Metrics != nil {
		deps.Metrics.LoadDuration.Observe(deps.Clock.Since(loadStart).Seconds())
	}

	field, err := parser.Extract(arr, cfg.Member, cfg.DayBegin, cfg.DayEnd)
	if err != nil {
		return nil, err
	}
	g, err := grid.New(field.Lats, field.Lons)
	if err != nil {
		return nil, err
	}
	lonMesh, latMesh := g.Mesh()
	raster := NewRaster(g, cfg.RasterSize)

	logger.Info("rendering",
		zap.String("run", cfg.InputBase()),
		zap.Stringer("array", arr),
		zap.Int("days", field.Days),
		zap.Int("levels", len(scale.Levels)),
		zap.String("extend", scale.Extend.String()))

	if err := os.MkdirAll(cfg.FigDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", cfg.FigDir, err)
	}

	if deps.Catalog != nil {
		err := deps.Catalog.UpsertRun(ctx, db.Run{
			Key:      cfg.InputBase(),
			Variable: cfg.Variable,
			Title:    cfg.Title,
			Units:    cfg.Units,
			Palette:  cfg.ColorMap,
			Lower:    cfg.Lower,
			Upper:    cfg.Upper,
			Levels:   len(scale.Levels),
			Extend:   scale.Extend.String(),
			Input:    input,
			DayBegin: cfg.DayBegin,
			DayEnd:   cfg.DayEnd,
		})
		if err != nil {
			return nil, err
		}
	}

	var bar *pb.ProgressBar
	if deps.Progress {
		bar = pb.New(field.Days)
		bar.Output = os.Stderr
		bar.Start()
	}

	job := &dayJob{
		cfg:     cfg,
		deps:    deps,
		field:   field,
		raster:  raster,
		scale:   scale,
		label:   label,
		lonMesh: lonMesh,
		latMesh: latMesh,
	}

	paths := make([]string, field.Days)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.Workers)
	for k := 0; k < field.Days; k++ {
		k := k
		eg.Go(func() error {
			path, err := job.render(egCtx, k)
			if err != nil {
				if deps.Metrics != nil {
					deps.Metrics.RenderFailures.Inc()
				}
				return fmt.Errorf("day %d: %w", field.Number(k), err)
			}
			paths[k] = path
			if bar != nil {
				bar.Increment()
			}
			return nil
		})
	}
	err = eg.Wait()
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return nil, err
	}

	logger.Info("render complete",
		zap.Int("images", len(paths)),
		zap.Duration("took", deps.Clock.Since(startTime)))
	return paths, nil
}

type dayJob struct {
	cfg     *config.RunConfig
	deps    Deps
	field   *parser.Field
	raster  *Raster
	scale   *colormap.Scale
	label   string
	lonMesh [][]float64
	latMesh [][]float64
}

func (j *dayJob) render(ctx context.Context, k int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	start := j.deps.Clock.Now()
	day := j.field.Number(k)
	values := j.field.Day(k)

	padded := grid.Pad(values, j.field.Lats, j.field.Lons)
	fig := &Figure{
		Title:   j.cfg.Title,
		Day:     day,
		Label:   j.label,
		Scale:   j.scale,
		Image:   j.raster.Paint(padded, j.scale),
		LonMesh: j.lonMesh,
		LatMesh: j.latMesh,
	}

	path := j.cfg.OutputPath(day)
	opts := EncodeOptions{Format: j.cfg.ImageFormat, DPI: j.cfg.DPI, Quality: j.cfg.Quality}
	n, err := WriteFile(path, opts, func(c draw.Canvas) error { return fig.Draw(c) })
	if err != nil {
		return "", err
	}

	sum := Summarize(values)
	if j.deps.Catalog != nil {
		err := j.deps.Catalog.RecordFrame(ctx, db.Frame{
			Run:    j.cfg.InputBase(),
			Day:    day,
			Path:   path,
			Format: j.cfg.ImageFormat,
			Levels: len(j.scale.Levels),
			Min:    sum.Min,
			Max:    sum.Max,
			Mean:   sum.Mean,
			Valid:  sum.Valid,
			Bytes:  n,
		})
		if err != nil {
			return "", err
		}
	}

	took := j.deps.Clock.Since(start)
	if m := j.deps.Metrics; m != nil {
		m.FramesRendered.Inc()
		m.FramesByFormat.WithLabelValues(j.cfg.ImageFormat).Inc()
		m.RenderDuration.Observe(took.Seconds())
		m.FrameBytes.Observe(float64(n))
	}
	j.deps.Logger.Debug("wrote image",
		zap.Int("day", day),
		zap.String("path", path),
		zap.Int64("bytes", n),
		zap.Float64("mean", sum.Mean),
		zap.Duration("took", took.Round(time.Millisecond)))
	return path, nil
}

// Summary describes the valid cells of one day.
type Summary struct {
	Min, Max, Mean float64
	Valid          int
}

// Summarize skips NaN cells. With no valid cells every statistic is NaN.
func Summarize(values []float64) Summary {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		nan := math.NaN()
		return Summary{Min: nan, Max: nan, Mean: nan}
	}
	return Summary{
		Min:   floats.Min(valid),
		Max:   floats.Max(valid),
		Mean:  stat.Mean(valid, nil),
		Valid: len(valid),
	}
}
