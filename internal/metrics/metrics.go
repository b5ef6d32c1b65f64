package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the chart service.
type Metrics struct {
	// Chart loads
	LoadsTotal   *prometheus.CounterVec // labels: outcome
	LoadDuration prometheus.Histogram
	FetchDur     *prometheus.HistogramVec // labels: source
	CandleCache  *prometheus.CounterVec   // labels: result=hit|miss

	// Indicator engine
	IndicatorComputeDur prometheus.Histogram
	EngineCacheTotal    *prometheus.CounterVec // labels: result=hit|miss

	// Surfaces and sessions
	LiveSurfaces prometheus.Gauge
	ExportsTotal prometheus.Counter
	WSSessions   prometheus.Gauge
	PrefsWrites  *prometheus.CounterVec // labels: result=ok|error

	// Circuit breakers
	CircuitBreakerState *prometheus.GaugeVec   // labels: breaker; 0=closed, 1=open, 2=half-open
	CircuitBreakerTrips *prometheus.CounterVec // labels: breaker
}

// NewMetrics creates every metric and registers it with reg. A nil reg uses
// the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		LoadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_loads_total",
			Help: "Chart loads by outcome (ready, data_unavailable, layout_unready, superseded, error)",
		}, []string{"outcome"}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chartd_load_duration_seconds",
			Help:    "Wall time from load start to Ready or Error",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		FetchDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chartd_fetch_duration_seconds",
			Help:    "Candle fetch latency by source",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		CandleCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_candle_cache_total",
			Help: "Candle cache lookups by result",
		}, []string{"result"}),

		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chartd_indicator_compute_duration_seconds",
			Help:    "Indicator engine latency per selection",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		EngineCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_indicator_cache_total",
			Help: "Indicator engine memo lookups by result",
		}, []string{"result"}),

		LiveSurfaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chartd_live_surfaces",
			Help: "Rendering surfaces currently alive",
		}),
		ExportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chartd_exports_total",
			Help: "PNG snapshots exported",
		}),
		WSSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chartd_ws_sessions",
			Help: "Open WebSocket chart sessions",
		}),
		PrefsWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_prefs_writes_total",
			Help: "Preference writes by result",
		}, []string{"result"}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chartd_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"breaker"}),
		CircuitBreakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chartd_circuit_breaker_trips_total",
			Help: "Times a circuit breaker tripped open",
		}, []string{"breaker"}),
	}

	reg.MustRegister(
		m.LoadsTotal,
		m.LoadDuration,
		m.FetchDur,
		m.CandleCache,
		m.IndicatorComputeDur,
		m.EngineCacheTotal,
		m.LiveSurfaces,
		m.ExportsTotal,
		m.WSSessions,
		m.PrefsWrites,
		m.CircuitBreakerState,
		m.CircuitBreakerTrips,
	)

	return m
}

// LoadFinished records one completed load.
func (m *Metrics) LoadFinished(outcome string, d time.Duration) {
	m.LoadsTotal.WithLabelValues(outcome).Inc()
	m.LoadDuration.Observe(d.Seconds())
}

// SurfacesChanged adjusts the live surface gauge.
func (m *Metrics) SurfacesChanged(delta int) {
	m.LiveSurfaces.Add(float64(delta))
}

// Exported counts one PNG export.
func (m *Metrics) Exported() {
	m.ExportsTotal.Inc()
}

// IndicatorComputed observes one engine call. Hits are counted but not timed.
func (m *Metrics) IndicatorComputed(d time.Duration, hit bool) {
	if hit {
		m.EngineCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	m.EngineCacheTotal.WithLabelValues("miss").Inc()
	m.IndicatorComputeDur.Observe(d.Seconds())
}

// FetchObserved records one candle fetch.
func (m *Metrics) FetchObserved(source string, d time.Duration) {
	m.FetchDur.WithLabelValues(source).Observe(d.Seconds())
}

// CandleCacheLookup counts one candle cache lookup.
func (m *Metrics) CandleCacheLookup(hit bool) {
	if hit {
		m.CandleCache.WithLabelValues("hit").Inc()
		return
	}
	m.CandleCache.WithLabelValues("miss").Inc()
}

// PrefsWritten records one preference write.
func (m *Metrics) PrefsWritten(err error) {
	if err != nil {
		m.PrefsWrites.WithLabelValues("error").Inc()
		return
	}
	m.PrefsWrites.WithLabelValues("ok").Inc()
}

// BreakerTransition records a circuit breaker state change. state is the
// numeric state (0=closed, 1=open, 2=half-open).
func (m *Metrics) BreakerTransition(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	if state == 1 {
		m.CircuitBreakerTrips.WithLabelValues(name).Inc()
	}
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	// Which dependencies are configured; unconfigured ones never degrade health.
	UsesRedis  bool `json:"uses_redis"`
	UsesSQLite bool `json:"uses_sqlite"`

	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LastLoadAt     time.Time `json:"last_load_at"`
	LastLoadError  string    `json:"last_load_error"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a health status for the given dependency set.
func NewHealthStatus(usesRedis, usesSQLite bool) *HealthStatus {
	return &HealthStatus{
		UsesRedis:  usesRedis,
		UsesSQLite: usesSQLite,
		StartedAt:  time.Now(),
	}
}

// RecordLoad notes the outcome of the latest chart load.
func (h *HealthStatus) RecordLoad(err error) {
	h.mu.Lock()
	h.LastLoadAt = time.Now()
	h.LastLoadError = ""
	if err != nil {
		h.LastLoadError = err.Error()
	}
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker probes once immediately, then every interval.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	probe := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if rdb != nil {
			h.CheckRedis(probeCtx, rdb)
		}
		if sqlDB != nil {
			h.CheckSQLite(probeCtx, sqlDB)
		}
	}
	go func() {
		probe()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()
}

// Status returns the overall status string and HTTP code.
func (h *HealthStatus) Status() (string, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.statusLocked()
}

func (h *HealthStatus) statusLocked() (string, int) {
	redisDown := h.UsesRedis && !h.RedisConnected
	sqliteDown := h.UsesSQLite && !h.SQLiteOK
	switch {
	case redisDown && sqliteDown:
		return "unhealthy", http.StatusServiceUnavailable
	case redisDown || sqliteDown:
		return "degraded", http.StatusServiceUnavailable
	default:
		return "healthy", http.StatusOK
	}
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus, httpCode := h.statusLocked()

	lastLoad := ""
	if !h.LastLoadAt.IsZero() {
		lastLoad = h.LastLoadAt.Format(time.RFC3339)
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastLoadAt      string  `json:"last_load_at"`
		LastLoadError   string  `json:"last_load_error,omitempty"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastLoadAt:      lastLoad,
		LastLoadError:   h.LastLoadError,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
