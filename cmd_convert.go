package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hstin/polarmap/parser"
)

var (
	convertFrom   string
	convertTo     string
	convertObject string
	convertName   string
)

// convertCmd rewrites an array into another input format
var convertCmd = &cobra.Command{
	Use:   "convert [input] [output]",
	Short: "Convert a data array to netCDF or Parquet",
	Long: `Loads one array from the input file and writes it as a netCDF classic
variable or as a long-format Parquet table, so it can be rendered with
--format netcdf or --format parquet.

Example:
  polarmap convert --to netcdf in.RData sic_day_a1q0_NSIDC_nov_1988_2012_bias.nc`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertFrom, "from", "", "Input format (default: from the file extension)")
	convertCmd.Flags().StringVar(&convertTo, "to", "", "Output format: netcdf or parquet (default: from the file extension)")
	convertCmd.Flags().StringVar(&convertObject, "object", "", "Object to read (default: first array)")
	convertCmd.Flags().StringVar(&convertName, "name", "", "Object name in the output (default: --object or \"field\")")
}

func runConvert(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]
	ctx := commandContext(cmd)

	from := convertFrom
	if from == "" {
		from = formatFromExt(in)
	}
	to := convertTo
	if to == "" {
		to = formatFromExt(out)
	}
	name := convertName
	if name == "" {
		name = convertObject
	}
	if name == "" {
		name = "field"
	}

	loader, err := parser.Open(from)
	if err != nil {
		return err
	}
	arr, err := loader.Load(ctx, parser.Key{Path: in, Object: convertObject})
	if err != nil {
		return err
	}

	switch to {
	case "netcdf":
		err = parser.WriteNetCDF(out, name, arr)
	case "parquet":
		err = parser.WriteParquet(out, name, arr)
	default:
		return fmt.Errorf("cannot convert to %q", to)
	}
	if err != nil {
		return err
	}

	logger.Info("Converted array",
		zap.String("input", in),
		zap.String("output", out),
		zap.String("name", name),
		zap.Stringer("array", arr))
	return nil
}
