package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wyfcoding/geodist/geo"
	"github.com/wyfcoding/geodist/logging"
)

func newMatrixCmd(cc *cliContext) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "print the pairwise distance matrix (km) as CSV",
		Long: `
	Reads points from stdin and prints one CSV row per input point. With --other the
	columns are the points of that file, otherwise the input is compared with itself.
	`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			x, y, err := cc.inputs()
			if err != nil {
				return err
			}
			calc, cleanup, err := cc.session()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := commandContext(cmd)
			defer logging.LogDuration(ctx, "geodist matrix", "rows", x.Len())()

			m, err := calc.Distance(ctx, x, y)
			if err != nil {
				return err
			}
			if err := writeMatrix(cc.out, m, cc.precision); err != nil {
				return err
			}
			if strict {
				return m.Diagnostics.Err()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cc.otherPath, "other", "", "CSV file with the column point set")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any iterative solution did not converge")
	return cmd
}

func newWithinCmd(cc *cliContext) *cobra.Command {
	var (
		threshold float64
		point     string
	)
	cmd := &cobra.Command{
		Use:   "within",
		Short: "print index pairs whose distance does not exceed --threshold (km)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			x, y, err := cc.inputs()
			if err != nil {
				return err
			}
			calc, cleanup, err := cc.session()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := commandContext(cmd)
			defer logging.LogDuration(ctx, "geodist within", "rows", x.Len())()

			if point != "" {
				p, err := parsePoint(point)
				if err != nil {
					return err
				}
				res, err := calc.IndicesWithinDistanceOfPoint(ctx, x, p, threshold)
				if err != nil {
					return err
				}
				return writeIndices(cc.out, res.Values)
			}

			res, err := calc.IndicesWithinDistance(ctx, x, y, threshold)
			if err != nil {
				return err
			}
			return writePairs(cc.out, res.Pairs)
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "distance threshold in kilometres (inclusive)")
	cmd.Flags().StringVar(&point, "point", "", `reference point "lat,lon"; prints matching row indices only`)
	cmd.Flags().StringVar(&cc.otherPath, "other", "", "CSV file with the column point set")
	_ = cmd.MarkFlagRequired("threshold")
	cmd.MarkFlagsMutuallyExclusive("point", "other")
	return cmd
}

func newDisplaceCmd(cc *cliContext) *cobra.Command {
	var bearing, distance float64
	cmd := &cobra.Command{
		Use:   "displace",
		Short: "move every input point by --distance (km) along --bearing (degrees) and print the destinations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			x, err := readPoints(cc.in)
			if err != nil {
				return err
			}
			calc, cleanup, err := cc.session()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := commandContext(cmd)
			defer logging.LogDuration(ctx, "geodist displace", "rows", x.Len())()

			res, err := calc.DisplaceAll(ctx, x, bearing, distance)
			if err != nil {
				return err
			}
			return writePoints(cc.out, res.Points, cc.precision)
		},
	}
	cmd.Flags().Float64Var(&bearing, "bearing", 0, "initial bearing in degrees clockwise from north")
	cmd.Flags().Float64Var(&distance, "distance", 0, "distance in kilometres")
	return cmd
}

func newExplainCmd(cc *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "explain",
		Short: "print the effective calculation settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			calc, cleanup, err := cc.session()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := commandContext(cmd)
			defer logging.LogDuration(ctx, "geodist explain")()

			fmt.Fprintf(cc.out, "method: %s\n", calc.Method())
			fmt.Fprintln(cc.out, calc.Explain(ctx).String())
			return nil
		},
	}
}

func parsePoint(s string) (geo.Point, error) {
	fields, err := splitRecord(s)
	if err != nil {
		return geo.Point{}, err
	}
	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid latitude %q: %w", fields[0], err)
	}
	lon, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid longitude %q: %w", fields[1], err)
	}
	return geo.NewPoint(lat, lon)
}
