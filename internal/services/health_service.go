package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"seriesdash/internal/infrastructure"
)

// DatasetCounter reports how many datasets are configured.
type DatasetCounter interface {
	DatasetCount() int
}

// SessionCounter reports the number of open websocket sessions.
type SessionCounter interface {
	SessionCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	dataDir   string
	datasets  DatasetCounter
	sessions  SessionCounter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a new health service. sessions may be nil.
func NewHealthService(version, buildTime, dataDir string, datasets DatasetCounter, sessions SessionCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("data_dir", dataDir))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		dataDir:   dataDir,
		datasets:  datasets,
		sessions:  sessions,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := hs.ReadinessCheck(ctx)
	if status.Status == "ready" {
		status.Status = "ok"
	} else {
		status.Status = "degraded"
	}
	status.Runtime = hs.runtimeInfo()
	return status
}

// ReadinessCheck reports ready when at least one dataset is configured and
// the data directory is present.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]interface{}{
			"datasets": hs.checkDatasets(),
			"data":     hs.checkDataDir(),
		},
	}
	if hs.sessions != nil {
		status.Services["websocket"] = ServiceHealth{
			Status:  "ready",
			Message: fmt.Sprintf("%d open sessions", hs.sessions.SessionCount()),
		}
	}

	for name, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			hs.logger.WarnContext(ctx, "readiness check failed",
				slog.String("service", name),
				slog.String("message", sh.Message))
		}
	}
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime:   hs.runtimeInfo(),
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	return result
}

// SystemStats returns runtime statistics of the process
func (hs *HealthService) SystemStats() infrastructure.SystemStats {
	return infrastructure.CollectSystemStats(hs.startTime)
}

func (hs *HealthService) runtimeInfo() map[string]interface{} {
	stats := hs.SystemStats()
	info := map[string]interface{}{
		"uptime":       stats.UptimeSeconds,
		"go_version":   runtime.Version(),
		"goroutines":   stats.GoRoutines,
		"memory_bytes": stats.MemoryUsage,
		"gc_count":     stats.GCCount,
	}
	if hs.sessions != nil {
		info["websocket_sessions"] = hs.sessions.SessionCount()
	}
	return info
}

func (hs *HealthService) checkDatasets() ServiceHealth {
	if hs.datasets == nil || hs.datasets.DatasetCount() == 0 {
		return ServiceHealth{Status: "not_ready", Message: "no datasets configured"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d datasets configured", hs.datasets.DatasetCount()),
	}
}

func (hs *HealthService) checkDataDir() ServiceHealth {
	if hs.dataDir == "" {
		return ServiceHealth{Status: "ready", Message: "no data directory configured"}
	}
	info, err := os.Stat(hs.dataDir)
	if err != nil {
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("data directory unavailable: %v", err)}
	}
	if !info.IsDir() {
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("%s is not a directory", hs.dataDir)}
	}
	return ServiceHealth{Status: "ready", Message: "data directory is accessible"}
}
