package daemon

import (
	"path/filepath"
	"slices"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/calib-tools/calib/pkg/channel"
	"github.com/calib-tools/calib/pkg/events"
	"github.com/calib-tools/calib/pkg/interpolation"
)

// Reload triggers.
const (
	TriggerStartup  = "startup"
	TriggerSignal   = "signal"
	TriggerSchedule = "schedule"
	TriggerAPI      = "api"
)

// ReloadRecord is one entry of the reload history.
type ReloadRecord struct {
	Time     time.Time `json:"time"`
	Trigger  string    `json:"trigger"`
	Channels int       `json:"channels"`
	Error    string    `json:"error,omitempty"`
}

// ReloadRecorder records the last N reloads.
type ReloadRecorder struct {
	MaxRecordCount int
	records        []ReloadRecord
	mu             *sync.Mutex
}

// NewReloadRecorder returns a new ReloadRecorder.
func NewReloadRecorder(maxRecordCount int) *ReloadRecorder {
	return &ReloadRecorder{
		MaxRecordCount: maxRecordCount,
		records:        make([]ReloadRecord, 0),
		mu:             &sync.Mutex{},
	}
}

// Add appends a record, dropping the oldest one when full.
func (r *ReloadRecorder) Add(rec ReloadRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Strip monotonic clock reading.
	rec.Time = rec.Time.Round(0)

	if len(r.records) >= r.MaxRecordCount {
		r.records = r.records[1:]
	}
	r.records = append(r.records, rec)
}

// Records returns a copy of the records, oldest first.
func (r *ReloadRecorder) Records() []ReloadRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.records)
}

// Last returns the most recent record.
func (r *ReloadRecorder) Last() (ReloadRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.records) == 0 {
		return ReloadRecord{}, false
	}
	return r.records[len(r.records)-1], true
}

// tableOptions returns the interpolation options implied by the config.
func tableOptions() []interpolation.Option {
	if conf.StrictMonotonic() {
		return []interpolation.Option{interpolation.Strict()}
	}
	return nil
}

// reloadChannels re-reads the config file and rebuilds every channel from its
// configured source. Channels that fail to build keep their previous table.
// Points added through the API since the last reload are discarded.
func reloadChannels(trigger string) error {
	reloadMu.Lock()
	defer reloadMu.Unlock()

	if err := conf.Load(); err != nil {
		err = pkgerrors.Wrapf(err, "failed to reload config")
		recordReload(trigger, 0, err)
		return err
	}

	sources := conf.Channels()
	built, buildErr := channel.Build(sources, filepath.Dir(configPath), tableOptions()...)

	next := make([]*channel.Channel, 0, len(sources))
	next = append(next, built...)
	for name := range sources {
		if slices.ContainsFunc(built, func(c *channel.Channel) bool { return c.Name == name }) {
			continue
		}
		if old, err := registry.Get(name); err == nil {
			logrus.WithField("channel", name).Warn("keeping previous table for channel that failed to reload")
			next = append(next, old)
		}
	}
	registry.ReplaceAll(next)

	if scheduler != nil {
		if err := scheduler.Schedule(conf.ReloadSchedule()); err != nil {
			logrus.WithError(err).Error("failed to apply reload schedule")
		}
	}

	recordReload(trigger, len(next), buildErr)

	if buildErr != nil {
		return pkgerrors.Wrapf(buildErr, "failed to build some channels")
	}

	logrus.WithFields(logrus.Fields{
		"trigger":  trigger,
		"channels": registry.Names(),
	}).Info("channels reloaded")
	return nil
}

func recordReload(trigger string, channels int, err error) {
	rec := ReloadRecord{
		Time:     time.Now(),
		Trigger:  trigger,
		Channels: channels,
	}
	ev := events.ConfigReloadedEvent{
		Channels: registry.Names(),
		Trigger:  trigger,
		Ts:       rec.Time.Unix(),
	}
	if err != nil {
		rec.Error = err.Error()
		ev.Error = err.Error()
	}

	reloadRecorder.Add(rec)
	sseHub.Publish(events.ConfigReloaded, ev)
}
