package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Registration(t *testing.T) {
	m := NewMetrics("metrics-test")
	m.RegisterBuildInfo("geodist", "")
	m.RegisterBuildInfo("geodist", "ignored")
	m.RegisterInputSizeMetrics()
	m.RegisterInputSizeMetrics()
	m.RegisterResultSizeMetrics()

	assert.Equal(t, 1, testutil.CollectAndCount(m.BuildInfo))

	m.CalculationsTotal.WithLabelValues("haversine", "distance", "OK").Inc()
	m.InputPoints.WithLabelValues("haversine", "distance").Observe(3)
	m.ResultElements.WithLabelValues("haversine", "distance").Observe(9)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `geodist_build_info{go_version=`)
	assert.Contains(t, text, `version="unknown"`)
	assert.Contains(t, text, `geodist_calculations_total{method="haversine",operation="distance",status="OK"} 1`)
	assert.Contains(t, text, "geodist_input_points_count")
	assert.Contains(t, text, "geodist_result_elements_sum")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RegisterBuildInfo("x", "y")
		m.RegisterInputSizeMetrics()
		m.RegisterResultSizeMetrics()
	})
}
