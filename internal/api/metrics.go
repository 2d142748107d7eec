package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-remote/internal/process"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          MQTTMetrics      `json:"mqtt"`
	Sessions      SessionMetrics   `json:"sessions"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
	Bridge        *process.Stats   `json:"bridge_process,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// SessionMetrics contains device session counts.
type SessionMetrics struct {
	DiscoveredDevices int `json:"discovered_devices"`
	ActiveConnections int `json:"active_connections"`
	PairingSessions   int `json:"pairing_sessions"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns a JSON summary for dashboards. Prometheus scrapes
// /metrics instead.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	health := s.sessions.Health()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Sessions: SessionMetrics{
			DiscoveredDevices: health.DiscoveredDevices,
			ActiveConnections: health.ActiveConnections,
			PairingSessions:   health.PairingSessions,
		},
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	if s.bridge != nil {
		stats := s.bridge.Stats()
		metrics.Bridge = &stats
	}

	writeJSON(w, http.StatusOK, metrics)
}
