package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calib-tools/calib/pkg/channel"
	"github.com/calib-tools/calib/pkg/events"
	"github.com/calib-tools/calib/pkg/interpolation"
)

// serveUnix serves router on a unix socket in a temp dir and returns a
// client connected to it.
func serveUnix(t *testing.T, router http.Handler) *Client {
	t.Helper()

	sock := filepath.Join(t.TempDir(), "d.sock")
	l, err := net.Listen("unix", sock)
	require.NoError(t, err)

	srv := httptest.NewUnstartedServer(router)
	srv.Listener = l
	srv.Start()
	t.Cleanup(srv.Close)

	return NewClient(sock)
}

func fakeDaemon() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.GET("/version", func(c *gin.Context) { c.IndentedJSON(http.StatusOK, "v1.2.3") })
	r.GET("/channels", func(c *gin.Context) {
		c.IndentedJSON(http.StatusOK, []channel.Info{{Name: "temp", Points: 2, MinMeasured: 9, MaxMeasured: 22}})
	})
	r.GET("/channels/:name/adjust", func(c *gin.Context) {
		switch c.Param("name") {
		case "temp":
			if c.Query("explain") != "" {
				c.IndentedJSON(http.StatusOK, interpolation.Result{
					Value:    9,
					Adjusted: 10,
					Case:     interpolation.CaseExact,
					Points:   []interpolation.Point{{Reference: 10, Measured: 9}},
				})
				return
			}
			c.IndentedJSON(http.StatusOK, 10.0)
		case "flat":
			c.IndentedJSON(http.StatusUnprocessableEntity, "degenerate calibration")
		default:
			c.IndentedJSON(http.StatusNotFound, `"`+c.Param("name")+`": channel not found`)
		}
	})
	r.POST("/channels/:name/adjust", func(c *gin.Context) {
		var values []float64
		if err := c.BindJSON(&values); err != nil {
			return
		}
		for i := range values {
			values[i]++
		}
		c.IndentedJSON(http.StatusOK, values)
	})
	r.POST("/channels/:name/points", func(c *gin.Context) {
		if c.Query("replace") == "" {
			c.IndentedJSON(http.StatusConflict, "duplicate reference value")
			return
		}
		c.IndentedJSON(http.StatusCreated, channel.Info{Name: c.Param("name"), Points: 3})
	})
	r.DELETE("/channels/:name", func(c *gin.Context) {
		c.IndentedJSON(http.StatusOK, "ok")
	})
	r.GET("/events", func(c *gin.Context) {
		c.SSEvent(events.PointAdded, `{"channel":"temp","reference":30,"measured":35,"ts":1}`)
		c.SSEvent(events.ChannelRemoved, `{"channel":"old","points":0,"ts":2}`)
	})

	return r
}

func TestClientGetVersion(t *testing.T) {
	c := serveUnix(t, fakeDaemon())

	v, err := c.GetVersion()
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", v)
}

func TestClientListChannels(t *testing.T) {
	c := serveUnix(t, fakeDaemon())

	infos, err := c.ListChannels()
	require.NoError(t, err)
	want := []channel.Info{{Name: "temp", Points: 2, MinMeasured: 9, MaxMeasured: 22}}
	if diff := cmp.Diff(want, infos); diff != "" {
		t.Errorf("ListChannels() mismatch (-want +got):\n%s", diff)
	}
}

func TestClientAdjust(t *testing.T) {
	c := serveUnix(t, fakeDaemon())

	v, err := c.Adjust("temp", 9)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)

	r, err := c.Explain("temp", 9)
	require.NoError(t, err)
	assert.Equal(t, interpolation.CaseExact, r.Case)
	assert.Equal(t, "9 -> 10 (exact match (10, 9))", r.Describe())

	out, err := c.AdjustMany("temp", []float64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3}, out)
}

func TestClientErrorMapping(t *testing.T) {
	c := serveUnix(t, fakeDaemon())

	_, err := c.Adjust("missing", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "channel not found")

	_, err = c.Adjust("flat", 1)
	assert.ErrorIs(t, err, ErrUnprocessable)

	_, err = c.AddPoint("temp", interpolation.Point{Reference: 30, Measured: 35}, false)
	assert.ErrorIs(t, err, ErrConflict)

	info, err := c.AddPoint("temp", interpolation.Point{Reference: 30, Measured: 35}, true)
	require.NoError(t, err)
	assert.Equal(t, 3, info.Points)

	require.NoError(t, c.DeleteChannel("temp"))
}

func TestClientDaemonNotRunning(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))

	_, err := c.GetVersion()
	assert.ErrorIs(t, err, ErrDaemonNotRunning)
}

func TestClientSubscribeEvents(t *testing.T) {
	c := serveUnix(t, fakeDaemon())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []events.Event
	for ev := range c.SubscribeEvents(ctx) {
		got = append(got, ev)
	}
	require.Len(t, got, 2)

	assert.Equal(t, events.PointAdded, got[0].Name)
	added, err := events.DecodeAs[events.PointAddedEvent](got[0])
	require.NoError(t, err)
	assert.Equal(t, "temp", added.Channel)
	assert.Equal(t, 35.0, added.Measured)

	assert.Equal(t, events.ChannelRemoved, got[1].Name)
	removed, err := events.DecodeAs[events.ChannelEvent](got[1])
	require.NoError(t, err)
	assert.Equal(t, "old", removed.Channel)
}

func TestReadEvents(t *testing.T) {
	stream := strings.Join([]string{
		": keepalive",
		"event: config.reloaded",
		`data: {"channels":["a"],`,
		`data: "trigger":"api","ts":3}`,
		"",
		"",
		"event:point.added",
		`data:{"channel":"a"}`,
		"",
	}, "\n")

	var got []events.Event
	readEvents(strings.NewReader(stream), func(ev events.Event) bool {
		got = append(got, ev)
		return true
	})

	require.Len(t, got, 2)
	reloaded, err := events.DecodeAs[events.ConfigReloadedEvent](got[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, reloaded.Channels)
	assert.Equal(t, "api", reloaded.Trigger)
	assert.Equal(t, events.PointAdded, got[1].Name)
}

func TestTranslatePassesThroughOtherErrors(t *testing.T) {
	err := errors.New("boom")
	assert.Same(t, err, translate(err))
}
