package infrastructure

import (
	"runtime"
	"time"
)

// SystemStats holds current process statistics
type SystemStats struct {
	GoRoutines    int           `json:"goroutines"`
	MemoryUsage   uint64        `json:"memory_usage_bytes"`
	MemorySystem  uint64        `json:"memory_system_bytes"`
	GCCount       uint32        `json:"gc_count"`
	CPUCount      int           `json:"cpu_count"`
	ProcessUptime time.Duration `json:"-"`
	UptimeSeconds float64       `json:"uptime_seconds"`
	Timestamp     time.Time     `json:"timestamp"`
}

// CollectSystemStats snapshots the Go runtime. startTime is when the process
// started serving.
func CollectSystemStats(startTime time.Time) SystemStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	uptime := time.Since(startTime)
	return SystemStats{
		GoRoutines:    runtime.NumGoroutine(),
		MemoryUsage:   memStats.Alloc,
		MemorySystem:  memStats.Sys,
		GCCount:       memStats.NumGC,
		CPUCount:      runtime.NumCPU(),
		ProcessUptime: uptime,
		UptimeSeconds: uptime.Seconds(),
		Timestamp:     time.Now(),
	}
}
