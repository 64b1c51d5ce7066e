package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/calib-tools/calib/pkg/daemon"
	"github.com/calib-tools/calib/pkg/version"
)

var (
	// alwaysAllowNonRootAccess indicates whether to always allow non-root users to access the calib daemon.
	alwaysAllowNonRootAccess = false
)

// NewDaemonCommand .
func NewDaemonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "daemon",
		Short:       "Run calib daemon in the foreground",
		GroupID:     gAdvanced,
		Annotations: map[string]string{annotationOffline: ""},
		Long: `Run calib daemon in the foreground.

The daemon loads the channels listed in the config file and serves them over a
unix socket. Send SIGHUP to reload the config and rebuild every channel.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
			}).Info("calib daemon starting")
			return daemon.Run(configPath, unixSocketPath, alwaysAllowNonRootAccess)
		},
	}

	f := cmd.Flags()

	f.BoolVar(&alwaysAllowNonRootAccess, "always-allow-non-root-access", false,
		"Always allow non-root users to access the daemon.")

	return cmd
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version",
		Annotations: map[string]string{annotationOffline: ""},
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewReloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "reload",
		Short:   "Reload channels from the daemon config",
		GroupID: gAdvanced,
		Long: `Reload channels from the daemon config.

The daemon re-reads its config file and rebuilds every channel from its
configured points and table file. Points added or channels created through the
API since the last reload are discarded. Channels that fail to load keep their
previous table.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := apiClient.Reload(); err != nil {
				return err
			}

			logrus.Infof("successfully reloaded channels")

			return nil
		},
	}
}
