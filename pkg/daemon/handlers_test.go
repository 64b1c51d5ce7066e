package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calib-tools/calib/pkg/channel"
	"github.com/calib-tools/calib/pkg/config"
	"github.com/calib-tools/calib/pkg/events"
	"github.com/calib-tools/calib/pkg/interpolation"
)

const testConfig = `{
  "channels": {
    "temp": {
      "description": "thermocouple",
      "points": [
        {"reference": 10, "measured": 9},
        {"reference": 20, "measured": 22}
      ]
    }
  }
}`

// setupTestDaemon points the package globals at a fresh config written to a
// temp dir and loads its channels.
func setupTestDaemon(t *testing.T, raw string) *gin.Engine {
	t.Helper()

	configPath = filepath.Join(t.TempDir(), "calib.json")
	require.NoError(t, os.WriteFile(configPath, []byte(raw), 0644))

	var err error
	conf, err = config.NewFile(configPath)
	require.NoError(t, err)

	registry = channel.NewRegistry()
	sseHub = events.NewHub()
	reloadRecorder = NewReloadRecorder(20)
	scheduler = nil
	stopStreams = make(chan struct{})

	require.NoError(t, reloadChannels(TriggerStartup))

	return setupRoutes()
}

func do(t *testing.T, router *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestListChannels(t *testing.T) {
	router := setupTestDaemon(t, testConfig)

	w := do(t, router, http.MethodGet, "/channels", "")
	require.Equal(t, http.StatusOK, w.Code)

	infos := decode[[]channel.Info](t, w)
	require.Len(t, infos, 1)
	assert.Equal(t, "temp", infos[0].Name)
	assert.Equal(t, "thermocouple", infos[0].Description)
	assert.Equal(t, 2, infos[0].Points)
	assert.Equal(t, 9.0, infos[0].MinMeasured)
	assert.Equal(t, 22.0, infos[0].MaxMeasured)
}

func TestGetChannel(t *testing.T) {
	router := setupTestDaemon(t, testConfig)

	w := do(t, router, http.MethodGet, "/channels/temp", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[channel.Info](t, w).Points)

	w = do(t, router, http.MethodGet, "/channels/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdjustOne(t *testing.T) {
	router := setupTestDaemon(t, testConfig)

	w := do(t, router, http.MethodGet, "/channels/temp/adjust?value=9", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10.0, decode[float64](t, w))

	w = do(t, router, http.MethodGet, "/channels/temp/adjust?value=15", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 15-5.0/13, decode[float64](t, w), 1e-9)

	w = do(t, router, http.MethodGet, "/channels/temp/adjust?value=15&explain=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	r := decode[interpolation.Result](t, w)
	assert.Equal(t, interpolation.CaseInterpolated, r.Case)
	assert.Equal(t, []interpolation.Point{{Reference: 10, Measured: 9}, {Reference: 20, Measured: 22}}, r.Points)
}

func TestAdjustOneErrors(t *testing.T) {
	router := setupTestDaemon(t, testConfig)

	tests := []struct {
		name   string
		target string
		code   int
	}{
		{"unknown channel", "/channels/missing/adjust?value=1", http.StatusNotFound},
		{"missing value", "/channels/temp/adjust", http.StatusBadRequest},
		{"not a number", "/channels/temp/adjust?value=abc", http.StatusBadRequest},
		{"nan", "/channels/temp/adjust?value=NaN", http.StatusBadRequest},
		{"infinite", "/channels/temp/adjust?value=Inf", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestAdjustMany(t *testing.T) {
	router := setupTestDaemon(t, testConfig)

	w := do(t, router, http.MethodPost, "/channels/temp/adjust", `[9, 22, 15]`)
	require.Equal(t, http.StatusOK, w.Code)

	out := decode[[]float64](t, w)
	require.Len(t, out, 3)
	assert.Equal(t, 10.0, out[0])
	assert.Equal(t, 20.0, out[1])
	assert.InDelta(t, 15-5.0/13, out[2], 1e-9)

	w = do(t, router, http.MethodPost, "/channels/temp/adjust", `{"not": "a list"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddPoint(t *testing.T) {
	router := setupTestDaemon(t, testConfig)

	w := do(t, router, http.MethodPost, "/channels/temp/points", `{"reference": 30, "measured": 35}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 3, decode[channel.Info](t, w).Points)

	w = do(t, router, http.MethodPost, "/channels/temp/points", `{"reference": 30, "measured": 34}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, router, http.MethodPost, "/channels/temp/points?replace=1", `{"reference": 30, "measured": 34}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, http.MethodGet, "/channels/temp/points", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interpolation.Point{
		{Reference: 10, Measured: 9},
		{Reference: 20, Measured: 22},
		{Reference: 30, Measured: 34},
	}, decode[[]interpolation.Point](t, w))

	w = do(t, router, http.MethodPost, "/channels/missing/points", `{"reference": 1, "measured": 1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddPointStrict(t *testing.T) {
	router := setupTestDaemon(t, `{"strictMonotonic": true, "channels": {"temp": {"points": [{"reference": 10, "measured": 9}, {"reference": 20, "measured": 22}]}}}`)

	w := do(t, router, http.MethodPost, "/channels/temp/points", `{"reference": 30, "measured": 15}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/channels/temp", "")
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[channel.Info](t, w)
	assert.True(t, info.Strict)
	assert.Equal(t, 2, info.Points)
}

func TestAddPointPublishesEvent(t *testing.T) {
	router := setupTestDaemon(t, testConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := sseHub.Subscribe(ctx)

	w := do(t, router, http.MethodPost, "/channels/temp/points", `{"reference": 30, "measured": 35}`)
	require.Equal(t, http.StatusCreated, w.Code)

	select {
	case ev := <-sub:
		require.Equal(t, events.PointAdded, ev.Name)
		payload, err := events.DecodeAs[events.PointAddedEvent](ev)
		require.NoError(t, err)
		assert.Equal(t, "temp", payload.Channel)
		assert.Equal(t, 30.0, payload.Reference)
		assert.Equal(t, 35.0, payload.Measured)
		assert.False(t, payload.Replaced)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestPutAndDeleteChannel(t *testing.T) {
	router := setupTestDaemon(t, testConfig)

	w := do(t, router, http.MethodPut, "/channels/pressure?description=gauge", `[{"reference": 0, "measured": 1}, {"reference": 100, "measured": 98}]`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	info := decode[channel.Info](t, w)
	assert.Equal(t, "gauge", info.Description)
	assert.Equal(t, 2, info.Points)

	w = do(t, router, http.MethodGet, "/channels/pressure/adjust?value=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0.0, decode[float64](t, w))

	w = do(t, router, http.MethodPut, "/channels/-bad", `[]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPut, "/channels/dup", `[{"reference": 1, "measured": 1}, {"reference": 1, "measured": 2}]`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, router, http.MethodDelete, "/channels/pressure", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodDelete, "/channels/pressure", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdjustDegenerate(t *testing.T) {
	router := setupTestDaemon(t, testConfig)

	w := do(t, router, http.MethodPut, "/channels/flat", `[{"reference": 1, "measured": 5}, {"reference": 2, "measured": 5}]`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, router, http.MethodGet, "/channels/flat/adjust?value=10", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestReloadDiscardsRuntimeChanges(t *testing.T) {
	router := setupTestDaemon(t, testConfig)

	w := do(t, router, http.MethodPut, "/channels/extra", `[]`)
	require.Equal(t, http.StatusCreated, w.Code)
	w = do(t, router, http.MethodPost, "/channels/temp/points", `{"reference": 30, "measured": 35}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, router, http.MethodPost, "/reload", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, []string{"temp"}, registry.Names())
	ch, err := registry.Get("temp")
	require.NoError(t, err)
	assert.Equal(t, 2, ch.Table.Len())

	w = do(t, router, http.MethodGet, "/reloads", "")
	require.Equal(t, http.StatusOK, w.Code)
	records := decode[[]ReloadRecord](t, w)
	require.Len(t, records, 2)
	assert.Equal(t, TriggerStartup, records[0].Trigger)
	assert.Equal(t, TriggerAPI, records[1].Trigger)
	assert.Equal(t, 1, records[1].Channels)
	assert.Empty(t, records[1].Error)
}

func TestReloadKeepsPreviousTableOnFailure(t *testing.T) {
	router := setupTestDaemon(t, testConfig)

	broken := `{"channels": {"temp": {"file": "missing.csv"}, "other": {"points": [{"reference": 1, "measured": 2}]}}}`
	require.NoError(t, os.WriteFile(configPath, []byte(broken), 0644))

	w := do(t, router, http.MethodPost, "/reload", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	assert.Equal(t, []string{"other", "temp"}, registry.Names())
	ch, err := registry.Get("temp")
	require.NoError(t, err)
	assert.Equal(t, 2, ch.Table.Len())

	last, ok := reloadRecorder.Last()
	require.True(t, ok)
	assert.Equal(t, TriggerAPI, last.Trigger)
	assert.NotEmpty(t, last.Error)
}

func TestGetVersionAndConfig(t *testing.T) {
	router := setupTestDaemon(t, testConfig)

	w := do(t, router, http.MethodGet, "/version", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	raw := decode[config.RawFileConfig](t, w)
	require.Contains(t, raw.Channels, "temp")
	assert.Len(t, raw.Channels["temp"].Points, 2)
	require.NotNil(t, raw.StrictMonotonic)
	assert.False(t, *raw.StrictMonotonic)
}

func TestReloadRecorderDropsOldest(t *testing.T) {
	r := NewReloadRecorder(2)

	_, ok := r.Last()
	assert.False(t, ok)

	for _, trigger := range []string{TriggerStartup, TriggerSignal, TriggerSchedule} {
		r.Add(ReloadRecord{Time: time.Now(), Trigger: trigger})
	}

	records := r.Records()
	require.Len(t, records, 2)
	assert.Equal(t, TriggerSignal, records[0].Trigger)
	assert.Equal(t, TriggerSchedule, records[1].Trigger)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{channel.ErrNotFound, http.StatusNotFound},
		{interpolation.ErrDuplicateReference, http.StatusConflict},
		{interpolation.ErrDegenerateCalibration, http.StatusUnprocessableEntity},
		{interpolation.ErrInvalidValue, http.StatusBadRequest},
		{interpolation.ErrNonMonotonic, http.StatusBadRequest},
		{channel.ErrInvalidName, http.StatusBadRequest},
		{os.ErrPermission, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, statusFor(tt.err), tt.err.Error())
	}
}
