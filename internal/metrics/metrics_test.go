package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetrics_PrivateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.LoadFinished("ready", 120*time.Millisecond)
	m.LoadFinished("superseded", 10*time.Millisecond)
	m.LoadFinished("ready", 80*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoadsTotal.WithLabelValues("ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoadsTotal.WithLabelValues("superseded")))

	// A second registry accepts the same metric names.
	NewMetrics(prometheus.NewRegistry())
}

func TestIndicatorComputed(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.IndicatorComputed(time.Millisecond, false)
	m.IndicatorComputed(0, true)
	m.IndicatorComputed(0, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.EngineCacheTotal.WithLabelValues("miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EngineCacheTotal.WithLabelValues("hit")))
}

func TestCandleCacheAndPrefsWrites(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.CandleCacheLookup(false)
	m.CandleCacheLookup(true)
	m.PrefsWritten(nil)
	m.PrefsWritten(errors.New("locked"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CandleCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CandleCache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PrefsWrites.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PrefsWrites.WithLabelValues("error")))
}

func TestSurfacesAndBreakers(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SurfacesChanged(3)
	m.SurfacesChanged(-1)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LiveSurfaces))

	m.BreakerTransition("redis-prefs", 1)
	m.BreakerTransition("redis-prefs", 2)
	m.BreakerTransition("redis-prefs", 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("redis-prefs")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerTrips.WithLabelValues("redis-prefs")))

	m.PrefsWritten(nil)
	m.PrefsWritten(errors.New("x"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PrefsWrites.WithLabelValues("error")))
}

func TestHealthStatus(t *testing.T) {
	h := NewHealthStatus(false, true)
	status, code := h.Status()
	assert.Equal(t, "degraded", status)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	h.mu.Lock()
	h.SQLiteOK = true
	h.mu.Unlock()
	status, code = h.Status()
	assert.Equal(t, "healthy", status)
	assert.Equal(t, http.StatusOK, code)

	h.RecordLoad(errors.New("data unavailable"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"last_load_error":"data unavailable"`)
}

func TestHealthStatus_BothDown(t *testing.T) {
	h := NewHealthStatus(true, true)
	status, _ := h.Status()
	assert.Equal(t, "unhealthy", status)
}
