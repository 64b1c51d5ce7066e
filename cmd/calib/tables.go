package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/calib-tools/calib/pkg/channel"
	"github.com/calib-tools/calib/pkg/interpolation"
	"github.com/calib-tools/calib/pkg/tableio"
)

func loadTableFile(path string, strict bool) (*tableio.File, *interpolation.Table, error) {
	f, err := tableio.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var opts []interpolation.Option
	if strict {
		opts = append(opts, interpolation.Strict())
	}

	tbl, err := f.Table(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid table %s: %w", path, err)
	}

	return f, tbl, nil
}

func NewEvalCommand() *cobra.Command {
	var (
		tablePath string
		explain   bool
		strict    bool
	)

	cmd := &cobra.Command{
		Use:         "eval --table FILE [value...]",
		Short:       "Adjust values using a table file",
		GroupID:     gTables,
		Annotations: map[string]string{annotationOffline: ""},
		Long: `Adjust measured values using a calibration table file, without the daemon.

The table format is chosen by the file extension: .json, .yaml/.yml or .csv.
Values are read from the arguments, or from stdin when no arguments are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tbl, err := loadTableFile(tablePath, strict)
			if err != nil {
				return err
			}

			var values []float64
			if len(args) == 0 {
				values, err = readFloats(cmd.InOrStdin(), "value")
			} else {
				values, err = parseFloatArgs(args, "value")
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, v := range values {
				r, err := tbl.Explain(v)
				if err != nil {
					return fmt.Errorf("failed to adjust %s: %w", formatFloat(v), err)
				}
				if explain {
					fmt.Fprintln(out, r.Describe())
				} else {
					fmt.Fprintln(out, formatFloat(r.Adjusted))
				}
			}

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&tablePath, "table", "t", "", "calibration table file")
	f.BoolVar(&explain, "explain", false, "show how each value was adjusted")
	f.BoolVar(&strict, "strict", false, "reject tables whose measured values are not monotonic")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

func NewCheckCommand() *cobra.Command {
	var (
		tablePath string
		strict    bool
	)

	cmd := &cobra.Command{
		Use:         "check --table FILE",
		Short:       "Validate a table file",
		GroupID:     gTables,
		Annotations: map[string]string{annotationOffline: ""},
		Long: `Validate a calibration table file.

Fails on unreadable files, non-finite values and duplicate reference values.
Measured values that are not monotonic in the reference value are reported; with
--strict they fail the check.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, tbl, err := loadTableFile(tablePath, false)
			if err != nil {
				return err
			}

			info := (&channel.Channel{Name: tablePath, Description: f.Description, Table: tbl}).Info()
			cmd.Printf("%s\n", bold(tablePath))
			if info.Description != "" {
				cmd.Printf("  Description: %s\n", info.Description)
			}
			cmd.Printf("  Points: %s\n", bold("%d", info.Points))
			if info.Points > 0 {
				cmd.Printf("  Measured range: %s\n", bold("%g .. %g", info.MinMeasured, info.MaxMeasured))
			}

			monoErr := tbl.CheckMonotonic()
			cmd.Printf("  Monotonic: %s\n", bool2Text(monoErr == nil))
			if monoErr != nil {
				cmd.Printf("    %v\n", monoErr)
				if strict {
					return monoErr
				}
				logrus.Warn("measured values are not monotonic, adjusted values may be ambiguous")
			}

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&tablePath, "table", "t", "", "calibration table file")
	f.BoolVar(&strict, "strict", false, "fail if measured values are not monotonic")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

func NewImportCommand() *cobra.Command {
	var (
		dbPath      string
		query       string
		outPath     string
		format      string
		description string
	)

	cmd := &cobra.Command{
		Use:         "import --sqlite DB --out FILE",
		Short:       "Export calibration points from a SQLite database to a table file",
		GroupID:     gTables,
		Annotations: map[string]string{annotationOffline: ""},
		Long: `Export calibration points from a SQLite database to a table file.

The query must return two numeric columns: the reference value and the measured
value. The output format is chosen by the file extension; use '--out -' to write
to stdout in the format given by --format.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, err := tableio.OpenSQLite(ctx, dbPath)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					logrus.Warnf("failed to close database %s: %v", dbPath, err)
				}
			}()

			points, err := tableio.LoadSQL(ctx, db, query)
			if err != nil {
				return err
			}

			tbl, err := interpolation.NewFromPoints(points)
			if err != nil {
				return fmt.Errorf("invalid points from %s: %w", dbPath, err)
			}
			if err := tbl.CheckMonotonic(); err != nil {
				logrus.Warnf("imported points: %v", err)
			}

			out := &tableio.File{
				Description: description,
				Points:      tbl.Snapshot(),
			}

			if outPath == "-" {
				ft, err := tableio.ParseFormat(format)
				if err != nil {
					return err
				}
				return tableio.Encode(cmd.OutOrStdout(), ft, out)
			}

			if err := tableio.WriteFile(outPath, out); err != nil {
				return err
			}

			logrus.WithFields(logrus.Fields{
				"points": len(out.Points),
				"file":   outPath,
			}).Info("table written")

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&dbPath, "sqlite", "", "SQLite database file")
	f.StringVar(&query, "query", tableio.DefaultQuery, "SQL query returning (reference, measured) rows")
	f.StringVarP(&outPath, "out", "o", "", "output table file, or - for stdout")
	f.StringVar(&format, "format", string(tableio.FormatJSON), "output format when writing to stdout (json, yaml, csv)")
	f.StringVar(&description, "description", "", "description stored in the table file")
	_ = cmd.MarkFlagRequired("sqlite")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
