package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calib-tools/calib/pkg/events"
)

func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		GroupID: gBasic,
		Short:   "Print daemon events as they happen",
		Long: `Print daemon events as they happen.

Events are sent when points are added, channels are created or removed, and
when the daemon reloads its config. Press Ctrl-C to stop.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Fail early with a useful error if the daemon is unreachable.
			if _, err := apiClient.GetVersion(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for ev := range apiClient.SubscribeEvents(ctx) {
				printEvent(out, ev)
			}

			if ctx.Err() == nil {
				return fmt.Errorf("daemon closed the event stream")
			}
			return nil
		},
	}
}

func printEvent(w io.Writer, ev events.Event) {
	ts := time.Now().Format(time.TimeOnly)
	name := color.New(color.Bold).Sprintf("%-16s", ev.Name)

	switch ev.Name {
	case events.PointAdded:
		p, err := events.DecodeAs[events.PointAddedEvent](ev)
		if err != nil {
			break
		}
		verb := "added"
		if p.Replaced {
			verb = "set"
		}
		fmt.Fprintf(w, "%s %s %s: %s point (%g, %g)\n", ts, name, p.Channel, verb, p.Reference, p.Measured)
		return
	case events.ChannelUpdated:
		c, err := events.DecodeAs[events.ChannelEvent](ev)
		if err != nil {
			break
		}
		fmt.Fprintf(w, "%s %s %s: %d points\n", ts, name, c.Channel, c.Points)
		return
	case events.ChannelRemoved:
		c, err := events.DecodeAs[events.ChannelEvent](ev)
		if err != nil {
			break
		}
		fmt.Fprintf(w, "%s %s %s\n", ts, name, c.Channel)
		return
	case events.ConfigReloaded:
		r, err := events.DecodeAs[events.ConfigReloadedEvent](ev)
		if err != nil {
			break
		}
		if r.Error != "" {
			fmt.Fprintf(w, "%s %s %s: %s\n", ts, name, r.Trigger, color.RedString(r.Error))
			return
		}
		fmt.Fprintf(w, "%s %s %s: %v\n", ts, name, r.Trigger, r.Channels)
		return
	}

	fmt.Fprintf(w, "%s %s %s\n", ts, name, string(ev.Data))
}
