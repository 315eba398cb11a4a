package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestRegisterGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	depth := 3.0
	require.NoError(t, RegisterGauge(reg, "queue_depth", "Frames waiting.", func() float64 { return depth }))

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "netsentinel_queue_depth", families[0].GetName())
	assert.Equal(t, 3.0, families[0].GetMetric()[0].GetGauge().GetValue())
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(AlertsAccepted.WithLabelValues("TEST_KIND"))
	AlertsAccepted.WithLabelValues("TEST_KIND").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(AlertsAccepted.WithLabelValues("TEST_KIND")))
}

func TestServer_ExposesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	FramesDropped.Inc()

	rec := httptest.NewRecorder()
	NewServer(":0", reg).Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "netsentinel_frames_dropped_total")
}
