package config

import (
	"github.com/sirupsen/logrus"

	"github.com/calib-tools/calib/pkg/interpolation"
)

// ChannelSource tells the daemon where the points of a channel come from.
// Inline points and a table file may be combined; file points are added
// after the inline ones.
type ChannelSource struct {
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	File        string                `json:"file,omitempty" yaml:"file,omitempty"`
	Points      []interpolation.Point `json:"points,omitempty" yaml:"points,omitempty"`
}

type Config interface {
	AllowNonRootAccess() bool
	StrictMonotonic() bool
	// ReloadSchedule is a cron expression for reloading channels from their
	// sources. Empty disables scheduled reloads.
	ReloadSchedule() string
	// Channels returns a copy of the configured channel sources.
	Channels() map[string]ChannelSource

	SetAllowNonRootAccess(bool)
	SetStrictMonotonic(bool)
	SetReloadSchedule(string)

	LogrusFields() logrus.Fields

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
