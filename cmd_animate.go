package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hstin/polarmap/internal/db"
	"hstin/polarmap/internal/render"
)

var (
	animateFormat string
	animateOut    string
	animateDelay  int
)

// animateCmd stitches the rendered days of a run into a GIF
var animateCmd = &cobra.Command{
	Use:   "animate [figdir] [run]",
	Short: "Stitch the rendered days of a run into an animated GIF",
	Long: `Reads the frames recorded in the figure directory catalog for a run and
writes them, in day order, as a looping GIF. The run is the input base name
shown by "polarmap inspect <figdir>".

Example:
  polarmap animate ./figs sic_day_a1q0_NSIDC_nov_1988_2012_bias --delay 50`,
	Args: cobra.ExactArgs(2),
	RunE: runAnimate,
}

func init() {
	animateCmd.Flags().StringVar(&animateFormat, "imageformat", "png", "Frame format to animate (png, jpg, tif or webp)")
	animateCmd.Flags().StringVarP(&animateOut, "output", "o", "", "Output file (default: <figdir>/<run>.gif)")
	animateCmd.Flags().IntVar(&animateDelay, "delay", 50, "Delay between frames in hundredths of a second")
}

func runAnimate(cmd *cobra.Command, args []string) error {
	figDir, run := args[0], args[1]
	if animateDelay < 0 {
		return fmt.Errorf("--delay must not be negative")
	}
	out := animateOut
	if out == "" {
		out = filepath.Join(figDir, run+".gif")
	}

	catalog, err := db.Open(filepath.Join(figDir, db.FileName), nil)
	if err != nil {
		return err
	}
	defer catalog.Close()

	if err := render.Animate(commandContext(cmd), catalog, run, animateFormat, out, animateDelay); err != nil {
		return err
	}
	logger.Info("Wrote animation", zap.String("run", run), zap.String("path", out))
	return nil
}
