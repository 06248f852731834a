package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectionMetrics(t *testing.T) {
	SelectionsTotal.Reset()

	SelectionsTotal.WithLabelValues("round_robin", "ok").Inc()
	SelectionsTotal.WithLabelValues("round_robin", "ok").Inc()
	SelectionsTotal.WithLabelValues("random", "none").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(SelectionsTotal.WithLabelValues("round_robin", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(SelectionsTotal.WithLabelValues("random", "none")))
}

func TestSetPool(t *testing.T) {
	PoolProxies.Reset()
	SetPool(5, 3, 1, 1, 2)

	assert.Equal(t, 5.0, testutil.ToFloat64(PoolProxies.WithLabelValues(StateTotal)))
	assert.Equal(t, 3.0, testutil.ToFloat64(PoolProxies.WithLabelValues(StateAvailable)))
	assert.Equal(t, 1.0, testutil.ToFloat64(PoolProxies.WithLabelValues(StateCoolingDown)))
	assert.Equal(t, 1.0, testutil.ToFloat64(PoolProxies.WithLabelValues(StateBanned)))
	assert.Equal(t, 2.0, testutil.ToFloat64(PoolProxies.WithLabelValues(StateActive)))
}

func TestPrometheusHandlerExposesMetrics(t *testing.T) {
	ProbesTotal.WithLabelValues("http", "healthy").Inc()
	CooldownsTotal.Inc()

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "proxylane_probes_total"))
	assert.True(t, strings.Contains(body, "proxylane_cooldowns_total"))
}
