// README: Simulation handler tests against a stub simulator.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"ridesim/internal/http/handlers"
	"ridesim/internal/modules/engine"
	"ridesim/internal/modules/mutation"
	"ridesim/internal/modules/request"
)

// stubSimulator is a test double for handlers.Simulator.
type stubSimulator struct {
	err       error
	snap      engine.Snapshot
	series    []engine.TickMetrics
	leaders   []engine.DriverView
	genErr    error
	stepErr   error
	steps     []int
	since     int
	limit     int
	enabled   *bool
	rate      *float64
	mutations []mutation.Record
}

func (s *stubSimulator) RunID() string { return "run-1" }

func (s *stubSimulator) Snapshot() (engine.Snapshot, error) { return s.snap, s.err }

func (s *stubSimulator) Metrics() (engine.TickMetrics, error) {
	return engine.TickMetrics{Time: s.snap.Time, Served: s.snap.Served}, s.err
}

func (s *stubSimulator) Series(since int) ([]engine.TickMetrics, error) {
	s.since = since
	return s.series, s.err
}

func (s *stubSimulator) Summary() (engine.Summary, error) { return engine.Summary{}, s.err }

func (s *stubSimulator) Mutations() ([]mutation.Record, error) { return s.mutations, s.err }

func (s *stubSimulator) Leaderboard(n int) ([]engine.DriverView, error) {
	s.limit = n
	return s.leaders, s.err
}

func (s *stubSimulator) OfferLog() ([]engine.OfferRecord, error) { return nil, s.err }

func (s *stubSimulator) Legacy() (map[string]any, error) {
	return map[string]any{"t": s.snap.Time}, s.err
}

func (s *stubSimulator) ConfigureGenerator(enabled *bool, perTick *float64) error {
	s.enabled, s.rate = enabled, perTick
	return s.genErr
}

func (s *stubSimulator) Step(_ context.Context, n int) ([]engine.TickReport, error) {
	s.steps = append(s.steps, n)
	if s.stepErr != nil {
		return nil, s.stepErr
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: step count %d must be positive", engine.ErrInvalidConfig, n)
	}
	out := make([]engine.TickReport, n)
	for i := range out {
		out[i].Time = i
	}
	return out, nil
}

func buildTestRouter(sim handlers.Simulator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := handlers.NewSimHandler(sim)
	r.GET("/snapshot", h.Snapshot)
	r.GET("/metrics", h.Metrics)
	r.GET("/series", h.Series)
	r.GET("/summary", h.Summary)
	r.GET("/mutations", h.Mutations)
	r.GET("/leaderboard", h.Leaderboard)
	r.GET("/offers", h.Offers)
	r.GET("/legacy", h.Legacy)
	r.POST("/step", h.Step)
	r.POST("/generator", h.Generator)
	return r
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not initialized", engine.ErrNotInitialized, http.StatusServiceUnavailable},
		{"invalid config", fmt.Errorf("%w: bad", engine.ErrInvalidConfig), http.StatusBadRequest},
		{"invalid rate", fmt.Errorf("%w: rate", request.ErrInvalidConfig), http.StatusBadRequest},
		{"not tunable", engine.ErrGeneratorNotTunable, http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := buildTestRouter(&stubSimulator{err: tt.err, genErr: tt.err})
			w := doRequest(r, http.MethodGet, "/snapshot", nil)
			require.Equal(t, tt.code, w.Code)
			w = doRequest(r, http.MethodPost, "/generator", map[string]any{"enabled": true})
			require.Equal(t, tt.code, w.Code)
		})
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	r := buildTestRouter(&stubSimulator{err: errors.New("pgx: secret detail")})
	w := doRequest(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, "internal error", decode(t, w)["error"])
}

func TestSnapshot(t *testing.T) {
	sim := &stubSimulator{snap: engine.Snapshot{Time: 7, Policy: "nearest", Served: 3}}
	w := doRequest(buildTestRouter(sim), http.MethodGet, "/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	require.Equal(t, "run-1", body["run_id"])
	snap := body["snapshot"].(map[string]any)
	require.Equal(t, float64(7), snap["time"])
	require.Equal(t, "nearest", snap["policy"])
}

func TestSeries_Since(t *testing.T) {
	sim := &stubSimulator{series: []engine.TickMetrics{{Time: 5}, {Time: 6}}}
	r := buildTestRouter(sim)

	w := doRequest(r, http.MethodGet, "/series?since=4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 4, sim.since)
	require.Len(t, decode(t, w)["samples"], 2)

	w = doRequest(r, http.MethodGet, "/series?since=-1", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = doRequest(r, http.MethodGet, "/series?since=abc", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSeries_EmptyIsArray(t *testing.T) {
	w := doRequest(buildTestRouter(&stubSimulator{}), http.MethodGet, "/series", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []any{}, decode(t, w)["samples"])
}

func TestLeaderboard_DefaultLimit(t *testing.T) {
	sim := &stubSimulator{leaders: []engine.DriverView{{ID: 1, Earnings: 9}}}
	r := buildTestRouter(sim)

	w := doRequest(r, http.MethodGet, "/leaderboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 10, sim.limit)

	w = doRequest(r, http.MethodGet, "/leaderboard?n=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 3, sim.limit)
}

func TestStep(t *testing.T) {
	tests := []struct {
		name  string
		body  any
		code  int
		ticks int
	}{
		{"default one tick", nil, http.StatusOK, 1},
		{"explicit count", map[string]any{"n": 4}, http.StatusOK, 4},
		{"zero rejected", map[string]any{"n": 0}, http.StatusBadRequest, 0},
		{"too many", map[string]any{"n": handlers.MaxStepsPerCall + 1}, http.StatusBadRequest, 0},
		{"bad json", "nope", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(buildTestRouter(&stubSimulator{}), http.MethodPost, "/step", tt.body)
			require.Equal(t, tt.code, w.Code)
			if tt.code == http.StatusOK {
				require.Len(t, decode(t, w)["ticks"], tt.ticks)
			}
		})
	}
}

func TestGenerator(t *testing.T) {
	sim := &stubSimulator{}
	r := buildTestRouter(sim)

	w := doRequest(r, http.MethodPost, "/generator", map[string]any{"enabled": false, "rate": 2.5})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, sim.enabled)
	require.False(t, *sim.enabled)
	require.InDelta(t, 2.5, *sim.rate, 1e-12)

	w = doRequest(r, http.MethodPost, "/generator", map[string]any{})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListsNeverNull(t *testing.T) {
	r := buildTestRouter(&stubSimulator{})
	for path, key := range map[string]string{
		"/mutations":   "mutations",
		"/leaderboard": "drivers",
		"/offers":      "offers",
	} {
		w := doRequest(r, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		require.Equal(t, []any{}, decode(t, w)[key], path)
	}
}

func TestLegacy(t *testing.T) {
	w := doRequest(buildTestRouter(&stubSimulator{snap: engine.Snapshot{Time: 12}}), http.MethodGet, "/legacy", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, float64(12), decode(t, w)["t"])
}
