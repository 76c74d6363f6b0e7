package http

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"ridesim/internal/modules/dispatch"
	"ridesim/internal/modules/driver"
	"ridesim/internal/modules/engine"
	"ridesim/internal/modules/request"
	"ridesim/internal/observability"
	"ridesim/internal/types"
)

func newTestServer(t *testing.T, load bool) (http.Handler, *observability.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	metrics := observability.NewMetrics()
	ctrl := engine.NewController("run-test", zerolog.Nop(), metrics)
	if load {
		bounds := types.Bounds{Width: 50, Height: 50}
		var drivers []*driver.Driver
		for i := 1; i <= 3; i++ {
			d, err := driver.New(types.ID(i), types.Point{X: float64(i * 10), Y: 10}, 2, driver.GreedyDistance{MaxDistance: 100}, 0)
			require.NoError(t, err)
			drivers = append(drivers, d)
		}
		gen, err := request.NewGenerator(request.GeneratorConfig{Rate: 1, Bounds: bounds, Enabled: true, StartID: 1}, rand.New(rand.NewSource(3)))
		require.NoError(t, err)
		sim, err := engine.New(engine.Options{
			Drivers:   drivers,
			Policy:    dispatch.NearestNeighbor{},
			Generator: gen,
			Timeout:   20,
			Bounds:    bounds,
		})
		require.NoError(t, err)
		ctrl.Load(sim)
	}
	srv := NewServer(ServerDeps{Sim: ctrl, Metrics: metrics, Logger: zerolog.Nop()})
	return srv.Routes(), metrics
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, false)
	w := serve(h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "OK", w.Body.String())
}

func TestNotLoaded(t *testing.T) {
	h, _ := newTestServer(t, false)
	w := serve(h, http.MethodGet, "/api/sim/snapshot", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = serve(h, http.MethodPost, "/api/sim/step", `{"n":1}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStepThenRead(t *testing.T) {
	h, _ := newTestServer(t, true)

	w := serve(h, http.MethodPost, "/api/sim/step", `{"n":5}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(h, http.MethodGet, "/api/sim/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	var m engine.TickMetrics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	require.Equal(t, 5, m.Time)

	w = serve(h, http.MethodGet, "/api/sim/series?since=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var series struct {
		Samples []engine.TickMetrics `json:"samples"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &series))
	require.Len(t, series.Samples, 3)
	require.Equal(t, 3, series.Samples[0].Time)

	w = serve(h, http.MethodGet, "/api/sim/legacy", "")
	require.Equal(t, http.StatusOK, w.Code)
	var flat map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &flat))
	require.Equal(t, float64(5), flat["t"])
}

func TestGeneratorToggle(t *testing.T) {
	h, _ := newTestServer(t, true)

	w := serve(h, http.MethodPost, "/api/sim/generator", `{"rate":-1}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(h, http.MethodPost, "/api/sim/generator", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = serve(h, http.MethodPost, "/api/sim/step", `{"n":3}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Ticks []engine.TickReport `json:"ticks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	for _, rep := range resp.Ticks {
		require.Zero(t, rep.Generated)
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	h, _ := newTestServer(t, true)
	require.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/api/sim/step", `{"n":2}`).Code)

	w := serve(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.True(t, strings.Contains(body, "ridesim_sim_time 2"))
	require.True(t, strings.Contains(body, `route="/api/sim/step"`))
}
