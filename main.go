package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hstin/polarmap/internal/observability"
)

var (
	// Global flags
	verbose     bool
	logFormat   string
	metricsFile string
	configFile  string

	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *observability.Metrics
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "polarmap",
	Short: "Polar stereographic maps of gridded forecast diagnostics",
	Long: `polarmap renders one north polar stereographic map per forecast day
from a 4-D (member, time, lat, lon) array stored in an RData, netCDF or
Parquet file.

Every run is described by a set of identifiers (experiment, observation,
variable, ...) that determine both the input file name and the names of the
written images. Runs are recorded in a catalog in the figure directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = observability.NewLogger(verbose, logFormat)
		if err != nil {
			return err
		}
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if metricsFile != "" && registry != nil {
			if err := observability.WriteTextfile(metricsFile, registry); err != nil {
				logger.Warn("failed to write metrics", zap.String("path", metricsFile), zap.Error(err))
			}
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log encoding (json or console)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML run file; flags override its values")

	rootCmd.AddCommand(renderCmd, inspectCmd, convertCmd, animateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
