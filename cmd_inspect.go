package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hstin/polarmap/internal/db"
	"hstin/polarmap/parser"
)

var inspectFormat string

// inspectCmd describes a data file or a figure directory catalog
var inspectCmd = &cobra.Command{
	Use:   "inspect [data-file | figdir]",
	Short: "List the objects of a data file or the runs of a catalog",
	Long: `Given a data file, lists every object it stores with its type and shape.
Given a figure directory (or its polarmap.db), lists the recorded runs and
the summary of each rendered day.

Examples:
  polarmap inspect data/sic_day_a1q0_NSIDC_nov_1988_2012_bias.RData
  polarmap inspect ./figs`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFormat, "format", "", "Input format (default: from the file extension)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	target := args[0]
	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return inspectCatalog(cmd, filepath.Join(target, db.FileName))
	}
	if filepath.Base(target) == db.FileName {
		return inspectCatalog(cmd, target)
	}
	return inspectDataFile(cmd, target)
}

// formatFromExt maps a data file extension to its input format name.
func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".rdata", ".rda", ".rds":
		return "rdata"
	case ".nc", ".nc4", ".cdf":
		return "netcdf"
	case ".parquet":
		return "parquet"
	}
	return ""
}

func inspectDataFile(cmd *cobra.Command, path string) error {
	format := inspectFormat
	if format == "" {
		format = formatFromExt(path)
	}
	loader, err := parser.Open(format)
	if err != nil {
		return err
	}
	describer, ok := loader.(parser.Describer)
	if !ok {
		return fmt.Errorf("format %q cannot list objects", format)
	}

	logger.Debug("Describing data file", zap.String("path", path), zap.String("format", format))
	objects, err := describer.Describe(commandContext(cmd), path)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OBJECT\tTYPE\tSHAPE")
	for _, o := range objects {
		fmt.Fprintf(w, "%s\t%s\t%v\n", o.Name, o.Type, o.Shape)
	}
	return w.Flush()
}

func inspectCatalog(cmd *cobra.Command, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no catalog at %s: %w", path, err)
	}
	ctx := commandContext(cmd)
	catalog, err := db.Open(path, nil)
	if err != nil {
		return err
	}
	defer catalog.Close()

	out := cmd.OutOrStdout()
	meta, err := catalog.Metadata(ctx)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%s: %s\n", k, meta[k])
	}

	runs, err := catalog.Runs(ctx)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(out, "\n%s\n  %s [%s] palette=%s range=[%g, %g] levels=%d extend=%s days=%d-%d updated=%s\n",
			r.Key, r.Variable, r.Units, r.Palette, r.Lower, r.Upper, r.Levels, r.Extend,
			r.DayBegin, r.DayEnd, r.Updated.Format("2006-01-02T15:04:05Z"))

		frames, err := catalog.Frames(ctx, r.Key, "")
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  DAY\tFORMAT\tMIN\tMAX\tMEAN\tVALID\tBYTES\tPATH")
		for _, f := range frames {
			fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
				f.Day, f.Format, summaryValue(f.Min), summaryValue(f.Max), summaryValue(f.Mean),
				f.Valid, f.Bytes, f.Path)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func summaryValue(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.4g", v)
}
