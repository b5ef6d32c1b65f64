package gateway

import (
	"runtime"
	"time"

	"chartdesk/internal/markethours"
)

// Status is the /api/status payload.
type Status struct {
	Sessions    int     `json:"sessions"`
	Goroutines  int     `json:"goroutines"`
	CPUCores    int     `json:"cpu_cores"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	SysMB       float64 `json:"sys_mb"`
	GCRuns      uint32  `json:"gc_runs"`
	UptimeSec   int64   `json:"uptime_sec"`
	Loads       int     `json:"loads_sampled"`
	LoadP50Ms   float64 `json:"load_p50_ms"`
	LoadP95Ms   float64 `json:"load_p95_ms"`
	LoadP99Ms   float64 `json:"load_p99_ms"`
	Health      string  `json:"health,omitempty"`
	MarketOpen  bool    `json:"market_open"`
	Market      string  `json:"market_status"`
	TS          string  `json:"ts"`
}

// CollectStatus gathers process and chart load statistics.
func CollectStatus(start, now time.Time, sessions int, lt *LatencyTracker) Status {
	s := Status{
		Sessions:   sessions,
		Goroutines: runtime.NumGoroutine(),
		CPUCores:   runtime.NumCPU(),
		UptimeSec:  int64(now.Sub(start).Seconds()),
		MarketOpen: markethours.IsMarketOpen(now),
		Market:     markethours.StatusString(now),
		TS:         now.UTC().Format(time.RFC3339Nano),
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.HeapAllocMB = float64(ms.HeapAlloc) / 1024 / 1024
	s.SysMB = float64(ms.Sys) / 1024 / 1024
	s.GCRuns = ms.NumGC

	if lt != nil {
		s.Loads = lt.Count()
		s.LoadP50Ms, s.LoadP95Ms, s.LoadP99Ms = lt.Percentiles()
	}
	return s
}
