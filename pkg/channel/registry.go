// Package channel keeps named calibration tables, one per instrument channel.
package channel

import (
	"errors"
	"maps"
	"path/filepath"
	"regexp"
	"slices"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/calib-tools/calib/pkg/config"
	"github.com/calib-tools/calib/pkg/interpolation"
	"github.com/calib-tools/calib/pkg/tableio"
)

var (
	// ErrNotFound is returned for an unknown channel name.
	ErrNotFound = errors.New("channel not found")

	// ErrInvalidName is returned for names that cannot be used in a URL path.
	ErrInvalidName = errors.New("invalid channel name")
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidateName checks that name is usable as a channel name.
func ValidateName(name string) error {
	if !nameRe.MatchString(name) {
		return pkgerrors.Wrapf(ErrInvalidName, "%q", name)
	}
	return nil
}

// Channel is a calibration table with its description.
type Channel struct {
	Name        string
	Description string
	Table       *interpolation.Table
}

// Info summarises a channel.
type Info struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Points      int     `json:"points"`
	Strict      bool    `json:"strict"`
	MinMeasured float64 `json:"minMeasured"`
	MaxMeasured float64 `json:"maxMeasured"`
}

func (c *Channel) Info() Info {
	info := Info{
		Name:        c.Name,
		Description: c.Description,
		Strict:      c.Table.IsStrict(),
	}
	for p := range c.Table.Points() {
		if info.Points == 0 || p.Measured < info.MinMeasured {
			info.MinMeasured = p.Measured
		}
		if info.Points == 0 || p.Measured > info.MaxMeasured {
			info.MaxMeasured = p.Measured
		}
		info.Points++
	}
	return info
}

// Registry maps channel names to channels. It is safe for concurrent use.
type Registry struct {
	mu       *sync.RWMutex
	channels map[string]*Channel
}

func NewRegistry() *Registry {
	return &Registry{
		mu:       &sync.RWMutex{},
		channels: make(map[string]*Channel),
	}
}

// Get returns the named channel.
func (r *Registry) Get(name string) (*Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.channels[name]
	if !ok {
		return nil, pkgerrors.Wrapf(ErrNotFound, "%q", name)
	}
	return c, nil
}

// Put adds or replaces a channel.
func (r *Registry) Put(c *Channel) error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.channels[c.Name] = c
	return nil
}

// Remove deletes a channel. It returns ErrNotFound if there was none.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.channels[name]; !ok {
		return pkgerrors.Wrapf(ErrNotFound, "%q", name)
	}
	delete(r.channels, name)
	return nil
}

// Names returns the channel names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.channels))
}

// List returns a summary of every channel, sorted by name.
func (r *Registry) List() []Info {
	infos := []Info{}
	for _, name := range r.Names() {
		c, err := r.Get(name)
		if err != nil {
			// Removed since Names was called.
			continue
		}
		infos = append(infos, c.Info())
	}
	return infos
}

// ReplaceAll swaps the whole set of channels at once.
func (r *Registry) ReplaceAll(channels []*Channel) {
	next := make(map[string]*Channel, len(channels))
	for _, c := range channels {
		next[c.Name] = c
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.channels = next
}

// Build creates channels from configured sources. Relative table file paths
// are resolved against baseDir. Every source is built before any error is
// returned, so that one broken channel does not hide problems in others.
func Build(sources map[string]config.ChannelSource, baseDir string, opts ...interpolation.Option) ([]*Channel, error) {
	var (
		channels []*Channel
		errs     []error
	)

	for _, name := range slices.Sorted(maps.Keys(sources)) {
		c, err := build(name, sources[name], baseDir, opts...)
		if err != nil {
			errs = append(errs, pkgerrors.Wrapf(err, "channel %s", name))
			continue
		}
		logrus.WithFields(logrus.Fields{
			"channel": name,
			"points":  c.Table.Len(),
		}).Debug("channel built")
		channels = append(channels, c)
	}

	return channels, errors.Join(errs...)
}

func build(name string, src config.ChannelSource, baseDir string, opts ...interpolation.Option) (*Channel, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	points := slices.Clone(src.Points)
	if src.File != "" {
		path := src.File
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		f, err := tableio.ReadFile(path)
		if err != nil {
			return nil, err
		}
		points = append(points, f.Points...)
		if src.Description == "" {
			src.Description = f.Description
		}
	}

	tbl, err := interpolation.NewFromPoints(points, opts...)
	if err != nil {
		return nil, err
	}

	return &Channel{
		Name:        name,
		Description: src.Description,
		Table:       tbl,
	}, nil
}
