package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calib-tools/calib/pkg/channel"
	"github.com/calib-tools/calib/pkg/config"
	"github.com/calib-tools/calib/pkg/daemon"
)

type statusData struct {
	version  string
	config   *config.RawFileConfig
	channels []channel.Info
	reloads  []daemon.ReloadRecord
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	v, err := apiClient.GetVersion()
	if err != nil {
		return nil, fmt.Errorf("failed to get daemon version: %w", err)
	}

	conf, err := apiClient.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	channels, err := apiClient.ListChannels()
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}

	reloads, err := apiClient.GetReloads()
	if err != nil {
		return nil, fmt.Errorf("failed to get reload history: %w", err)
	}

	return &statusData{
		version:  v,
		config:   conf,
		channels: channels,
		reloads:  reloads,
	}, nil
}

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of calib daemon",
		Long:    `Get calib daemon status, its channels, and configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			conf := config.NewFileFromConfig(data.config, "")

			cmd.Println(bold("Daemon:"))
			cmd.Printf("  Version: %s\n", bold(data.version))
			if n := len(data.reloads); n > 0 {
				last := data.reloads[n-1]
				cmd.Printf("  Last reload: %s (%s, %s ago)\n",
					reloadText(last), last.Trigger, time.Since(last.Time).Round(time.Second))
			}
			cmd.Println()

			cmd.Println(bold("Channels:"))
			if len(data.channels) == 0 {
				cmd.Println("  No channels loaded.")
			}
			configured := conf.Channels()
			for _, info := range data.channels {
				cmd.Printf("  %s: %s", bold(info.Name), pointsText(info.Points))
				if info.Points > 0 {
					cmd.Printf(", measured %g .. %g", info.MinMeasured, info.MaxMeasured)
				}
				if _, ok := configured[info.Name]; !ok {
					cmd.Print(color.New(color.FgYellow).Sprint(" (not in config, lost on reload)"))
				}
				cmd.Println()
				if info.Description != "" {
					cmd.Printf("    %s\n", info.Description)
				}
			}
			cmd.Println()

			cmd.Println(bold("Configuration:"))
			cmd.Printf("  Strict monotonic tables: %s\n", bool2Text(conf.StrictMonotonic()))
			if s := conf.ReloadSchedule(); s != "" {
				cmd.Printf("  Reload schedule: %s\n", bold(s))
			} else {
				cmd.Printf("  Reload schedule: %s\n", bool2Text(false))
			}
			cmd.Printf("  Allow non-root users to access the daemon: %s\n", bool2Text(conf.AllowNonRootAccess()))

			return nil
		},
	}
}

func reloadText(r daemon.ReloadRecord) string {
	if r.Error != "" {
		return color.New(color.Bold, color.FgRed).Sprintf("failed: %s", r.Error)
	}
	return color.New(color.Bold, color.FgGreen).Sprintf("ok, %d channels", r.Channels)
}

func pointsText(n int) string {
	switch n {
	case 0:
		return color.New(color.FgYellow).Sprint("no points (values pass through unchanged)")
	case 1:
		return bold("1 point") + " (offset only)"
	default:
		return bold("%d points", n)
	}
}
