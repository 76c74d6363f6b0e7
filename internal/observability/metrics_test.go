package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"ridesim/internal/modules/engine"
	"ridesim/internal/modules/mutation"
)

func TestMetrics_OnTick(t *testing.T) {
	m := NewMetrics()
	ev := engine.TickEvent{
		Report: engine.TickReport{Delivered: 2},
		Metrics: engine.TickMetrics{
			Time:              12,
			Served:            5,
			Expired:           1,
			AvgWait:           3.5,
			Utilization:       0.75,
			ServiceLevel:      5.0 / 6.0,
			MutationsByReason: map[mutation.Reason]int{mutation.ReasonLowEarnings: 3},
		},
	}
	require.NoError(t, m.OnTick(context.Background(), ev))
	require.NoError(t, m.OnTick(context.Background(), ev))

	require.Equal(t, 12.0, testutil.ToFloat64(m.simTime))
	require.Equal(t, 5.0, testutil.ToFloat64(m.served))
	require.Equal(t, 3.5, testutil.ToFloat64(m.avgWait))
	require.Equal(t, 0.75, testutil.ToFloat64(m.utilization))
	require.Equal(t, 3.0, testutil.ToFloat64(m.mutations.WithLabelValues(string(mutation.ReasonLowEarnings))))
	require.Equal(t, 0.0, testutil.ToFloat64(m.mutations.WithLabelValues(string(mutation.ReasonExploration))))
	require.Equal(t, 4.0, testutil.ToFloat64(m.delivered))
}

func TestMetrics_HandlerExposesSeries(t *testing.T) {
	m := NewMetrics()
	m.ObserveHTTP(http.MethodGet, "/health", http.StatusOK, 5*time.Millisecond)
	require.NoError(t, m.OnTick(context.Background(), engine.TickEvent{Metrics: engine.TickMetrics{Time: 1}}))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, "ridesim_sim_time 1"))
	require.True(t, strings.Contains(body, `http_requests_total{method="GET",route="/health",status="200"} 1`))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	require.NoError(t, a.OnTick(context.Background(), engine.TickEvent{Metrics: engine.TickMetrics{Served: 9}}))
	require.Equal(t, 9.0, testutil.ToFloat64(a.served))
	require.Equal(t, 0.0, testutil.ToFloat64(b.served))
}
