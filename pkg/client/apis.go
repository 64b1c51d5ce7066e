package client

import (
	"encoding/json"
	"net/url"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/calib-tools/calib/pkg/channel"
	"github.com/calib-tools/calib/pkg/config"
	"github.com/calib-tools/calib/pkg/daemon"
	"github.com/calib-tools/calib/pkg/interpolation"
)

func channelPath(name string, rest string) string {
	return "/channels/" + url.PathEscape(name) + rest
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// decodeResponse unmarshals a daemon response, or translates the request error.
func decodeResponse[T any](ret string, err error, what string) (T, error) {
	var v T
	if err != nil {
		return v, pkgerrors.Wrapf(translate(err), "failed to %s", what)
	}
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return v, pkgerrors.Wrapf(err, "failed to unmarshal response to %s", what)
	}
	return v, nil
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	return decodeResponse[string](ret, err, "get version")
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	conf, err := decodeResponse[config.RawFileConfig](ret, err, "get config")
	if err != nil {
		return nil, err
	}
	return &conf, nil
}

// Reload asks the daemon to reload its config and rebuild every channel.
func (c *Client) Reload() error {
	_, err := c.Post("/reload", "")
	if err != nil {
		return pkgerrors.Wrapf(translate(err), "failed to reload")
	}
	return nil
}

func (c *Client) GetReloads() ([]daemon.ReloadRecord, error) {
	ret, err := c.Get("/reloads")
	return decodeResponse[[]daemon.ReloadRecord](ret, err, "get reload history")
}

func (c *Client) ListChannels() ([]channel.Info, error) {
	ret, err := c.Get("/channels")
	return decodeResponse[[]channel.Info](ret, err, "list channels")
}

func (c *Client) GetChannel(name string) (*channel.Info, error) {
	ret, err := c.Get(channelPath(name, ""))
	info, err := decodeResponse[channel.Info](ret, err, "get channel "+name)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// PutChannel creates or replaces a channel on the daemon. The channel is not
// written to the config file.
func (c *Client) PutChannel(name string, description string, points []interpolation.Point) (*channel.Info, error) {
	if points == nil {
		points = []interpolation.Point{}
	}
	payload, err := json.Marshal(points)
	if err != nil {
		return nil, err
	}

	path := channelPath(name, "")
	if description != "" {
		path += "?description=" + url.QueryEscape(description)
	}

	ret, err := c.Put(path, string(payload))
	info, err := decodeResponse[channel.Info](ret, err, "put channel "+name)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) DeleteChannel(name string) error {
	_, err := c.Delete(channelPath(name, ""))
	if err != nil {
		return pkgerrors.Wrapf(translate(err), "failed to delete channel %s", name)
	}
	return nil
}

func (c *Client) GetPoints(name string) ([]interpolation.Point, error) {
	ret, err := c.Get(channelPath(name, "/points"))
	return decodeResponse[[]interpolation.Point](ret, err, "get points of "+name)
}

// AddPoint adds a point to a channel. With replace, an existing point with
// the same reference value is overwritten; otherwise ErrConflict is returned.
func (c *Client) AddPoint(name string, p interpolation.Point, replace bool) (*channel.Info, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	path := channelPath(name, "/points")
	if replace {
		path += "?replace=1"
	}

	ret, err := c.Post(path, string(payload))
	info, err := decodeResponse[channel.Info](ret, err, "add point to "+name)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) Adjust(name string, value float64) (float64, error) {
	ret, err := c.Get(channelPath(name, "/adjust?value="+formatFloat(value)))
	return decodeResponse[float64](ret, err, "adjust value")
}

func (c *Client) Explain(name string, value float64) (*interpolation.Result, error) {
	ret, err := c.Get(channelPath(name, "/adjust?explain=1&value="+formatFloat(value)))
	r, err := decodeResponse[interpolation.Result](ret, err, "adjust value")
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// AdjustMany adjusts all values against the same state of the channel.
func (c *Client) AdjustMany(name string, values []float64) ([]float64, error) {
	payload, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}

	ret, err := c.Post(channelPath(name, "/adjust"), string(payload))
	return decodeResponse[[]float64](ret, err, "adjust values")
}
