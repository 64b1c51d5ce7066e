package main

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/calib-tools/calib/pkg/interpolation"
	"github.com/calib-tools/calib/pkg/tableio"
)

var errNoValues = errors.New("no values given")

func NewChannelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "channel",
		Short:   "Manage channels served by the daemon",
		GroupID: gChannels,
		Long: `Manage channels served by the daemon.

Changes made here live in the daemon's memory only. They are discarded when
the daemon reloads its config; edit the config file to make them permanent.`,
	}

	cmd.AddCommand(
		newChannelListCommand(),
		newChannelShowCommand(),
		newChannelLoadCommand(),
		newChannelRemoveCommand(),
		newChannelAddCommand(),
	)

	return cmd
}

func newChannelListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List channels",
		RunE: func(cmd *cobra.Command, _ []string) error {
			infos, err := apiClient.ListChannels()
			if err != nil {
				return err
			}

			if len(infos) == 0 {
				cmd.Println("no channels")
				return nil
			}

			for _, info := range infos {
				cmd.Printf("%s  %d points", bold(info.Name), info.Points)
				if info.Points > 0 {
					cmd.Printf(", measured %g .. %g", info.MinMeasured, info.MaxMeasured)
				}
				if info.Description != "" {
					cmd.Printf("  (%s)", info.Description)
				}
				cmd.Println()
			}

			return nil
		},
	}
}

func newChannelShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show CHANNEL",
		Short: "Show the points of a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			info, err := apiClient.GetChannel(name)
			if err != nil {
				return err
			}
			points, err := apiClient.GetPoints(name)
			if err != nil {
				return err
			}

			cmd.Println(bold("%s:", info.Name))
			if info.Description != "" {
				cmd.Printf("  Description: %s\n", info.Description)
			}
			cmd.Printf("  Strict: %s\n", bool2Text(info.Strict))
			cmd.Printf("  Points: %s\n", bold("%d", info.Points))
			for _, p := range points {
				cmd.Printf("    reference %-12s measured %-12s offset %s\n",
					formatFloat(p.Reference), formatFloat(p.Measured), formatFloat(p.Offset()))
			}

			return nil
		},
	}
}

func newChannelLoadCommand() *cobra.Command {
	var (
		tablePath   string
		description string
	)

	cmd := &cobra.Command{
		Use:   "load CHANNEL --table FILE",
		Short: "Create or replace a channel from a table file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			name := args[0]

			f, err := tableio.ReadFile(tablePath)
			if err != nil {
				return err
			}
			if description == "" {
				description = f.Description
			}

			info, err := apiClient.PutChannel(name, description, f.Points)
			if err != nil {
				return err
			}

			logrus.Infof("successfully loaded %d points into channel %s", info.Points, info.Name)

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&tablePath, "table", "t", "", "calibration table file")
	f.StringVar(&description, "description", "", "channel description, defaults to the one in the table file")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}

func newChannelRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove CHANNEL",
		Aliases: []string{"rm"},
		Short:   "Remove a channel",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if err := apiClient.DeleteChannel(args[0]); err != nil {
				return err
			}

			logrus.Infof("successfully removed channel %s", args[0])

			return nil
		},
	}
}

func newChannelAddCommand() *cobra.Command {
	replace := false

	cmd := &cobra.Command{
		Use:   "add CHANNEL REFERENCE MEASURED",
		Short: "Add a calibration point to a channel",
		Long: `Add a calibration point to a channel.

REFERENCE is the true value and MEASURED the value the instrument reported for
it. Adding a point with an existing reference value fails unless --replace is
given.`,
		Args: cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			values, err := parseFloatArgs(args[1:], "point value")
			if err != nil {
				return err
			}
			p := interpolation.Point{Reference: values[0], Measured: values[1]}

			info, err := apiClient.AddPoint(args[0], p, replace)
			if err != nil {
				return err
			}

			logrus.Infof("successfully added point %s to channel %s, which now has %d points", p, info.Name, info.Points)

			return nil
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "replace an existing point with the same reference value")

	return cmd
}

func NewAdjustCommand() *cobra.Command {
	explain := false

	cmd := &cobra.Command{
		Use:     "adjust CHANNEL VALUE...",
		Short:   "Adjust measured values using a daemon channel",
		GroupID: gBasic,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			var (
				values []float64
				err    error
			)
			if len(args) == 1 {
				values, err = readFloats(cmd.InOrStdin(), "value")
			} else {
				values, err = parseFloatArgs(args[1:], "value")
			}
			if err != nil {
				return err
			}
			if len(values) == 0 {
				return errNoValues
			}

			out := cmd.OutOrStdout()

			if explain {
				for _, v := range values {
					r, err := apiClient.Explain(name, v)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, r.Describe())
				}
				return nil
			}

			adjusted, err := apiClient.AdjustMany(name, values)
			if err != nil {
				return err
			}
			for _, v := range adjusted {
				fmt.Fprintln(out, formatFloat(v))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&explain, "explain", false, "show how each value was adjusted")

	return cmd
}
