package daemon

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/calib-tools/calib/pkg/channel"
	"github.com/calib-tools/calib/pkg/config"
	"github.com/calib-tools/calib/pkg/events"
	"github.com/calib-tools/calib/pkg/interpolation"
	"github.com/calib-tools/calib/pkg/version"
)

// statusFor maps errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, channel.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, interpolation.ErrDuplicateReference):
		return http.StatusConflict
	case errors.Is(err, interpolation.ErrDegenerateCalibration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, interpolation.ErrInvalidValue),
		errors.Is(err, interpolation.ErrNonMonotonic),
		errors.Is(err, channel.ErrInvalidName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, code int, err error) {
	c.IndentedJSON(code, err.Error())
	_ = c.AbortWithError(code, err)
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

func getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func reload(c *gin.Context) {
	if err := reloadChannels(TriggerAPI); err != nil {
		logrus.Errorf("reload failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusOK, "ok")
}

func getReloads(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, reloadRecorder.Records())
}

func listChannels(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, registry.List())
}

func getChannel(c *gin.Context) {
	ch, err := registry.Get(c.Param("name"))
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}

	c.IndentedJSON(http.StatusOK, ch.Info())
}

// putChannel creates or replaces a channel with the points in the body. The
// channel lives in memory only; a reload restores the configured channels.
func putChannel(c *gin.Context) {
	name := c.Param("name")
	if err := channel.ValidateName(name); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	var points []interpolation.Point
	if err := c.BindJSON(&points); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	tbl, err := interpolation.NewFromPoints(points, tableOptions()...)
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}

	ch := &channel.Channel{
		Name:        name,
		Description: c.Query("description"),
		Table:       tbl,
	}
	if err := registry.Put(ch); err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"channel": name,
		"points":  tbl.Len(),
	}).Info("channel replaced")
	sseHub.Publish(events.ChannelUpdated, events.ChannelEvent{
		Channel: name,
		Points:  tbl.Len(),
		Ts:      time.Now().Unix(),
	})

	c.IndentedJSON(http.StatusCreated, ch.Info())
}

func deleteChannel(c *gin.Context) {
	name := c.Param("name")
	if err := registry.Remove(name); err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}

	logrus.WithField("channel", name).Info("channel removed")
	sseHub.Publish(events.ChannelRemoved, events.ChannelEvent{
		Channel: name,
		Ts:      time.Now().Unix(),
	})

	c.IndentedJSON(http.StatusOK, "ok")
}

func getPoints(c *gin.Context) {
	ch, err := registry.Get(c.Param("name"))
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}

	c.IndentedJSON(http.StatusOK, ch.Table.Snapshot())
}

// addPoint adds one point. With ?replace=1 an existing point with the same
// reference value is overwritten instead of rejected.
func addPoint(c *gin.Context) {
	ch, err := registry.Get(c.Param("name"))
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}

	var p interpolation.Point
	if err := c.BindJSON(&p); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	replace := queryBool(c, "replace")
	if replace {
		err = ch.Table.Set(p.Reference, p.Measured)
	} else {
		err = ch.Table.Add(p.Reference, p.Measured)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"channel": ch.Name,
			"point":   p.String(),
		}).Warnf("point rejected: %v", err)
		abortWithError(c, statusFor(err), err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"channel": ch.Name,
		"point":   p.String(),
	}).Info("point added")
	sseHub.Publish(events.PointAdded, events.PointAddedEvent{
		Channel:   ch.Name,
		Reference: p.Reference,
		Measured:  p.Measured,
		Replaced:  replace,
		Ts:        time.Now().Unix(),
	})

	c.IndentedJSON(http.StatusCreated, ch.Info())
}

// adjustOne adjusts ?value=. With ?explain=1 the full Result is returned
// instead of the bare number.
func adjustOne(c *gin.Context) {
	ch, err := registry.Get(c.Param("name"))
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}

	v, err := strconv.ParseFloat(c.Query("value"), 64)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	r, err := ch.Table.Explain(v)
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}

	if queryBool(c, "explain") {
		c.IndentedJSON(http.StatusOK, r)
		return
	}
	c.IndentedJSON(http.StatusOK, r.Adjusted)
}

func adjustMany(c *gin.Context) {
	ch, err := registry.Get(c.Param("name"))
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}

	var values []float64
	if err := c.BindJSON(&values); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	out, err := ch.Table.AdjustAll(values)
	if err != nil {
		abortWithError(c, statusFor(err), err)
		return
	}

	c.IndentedJSON(http.StatusOK, out)
}

func streamEvents(c *gin.Context) {
	ctx := c.Request.Context()
	ch := sseHub.Subscribe(ctx)

	logrus.WithField("subscribers", sseHub.Subscribers()).Debug("event stream opened")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		case <-ctx.Done():
			return false
		case <-stopStreams:
			return false
		}
	})
}

func queryBool(c *gin.Context, key string) bool {
	b, err := strconv.ParseBool(c.Query(key))
	return err == nil && b
}
