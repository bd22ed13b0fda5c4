package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/hvcrate-core/internal/bridges/hv"
)

// SystemMetrics is the body of GET /api/v1/metrics.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Crate         string           `json:"crate"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	Bridge        *BridgeMetrics   `json:"bridge,omitempty"`
	Parameters    ParameterMetrics `json:"parameters"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics is a snapshot of the process: goroutines, heap and GC.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics describes the event hub.
type WSMetrics struct {
	ConnectedClients int   `json:"connected_clients"`
	DroppedEvents    int64 `json:"dropped_events"`
}

// BridgeMetrics is absent when the bridge is not running.
type BridgeMetrics struct {
	MQTTConnected bool                `json:"mqtt_connected"`
	Status        hv.HealthStatus     `json:"status"`
	Statistics    hv.BridgeStatistics `json:"statistics"`
}

// ParameterMetrics counts catalogued parameters per category.
type ParameterMetrics struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category"`
	ReadOnly   bool           `json:"read_only"`
}

// DatabaseMetrics mirrors sql.DBStats plus the applied schema version.
type DatabaseMetrics struct {
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"wait_count"`
	SchemaVersion   string `json:"schema_version,omitempty"`
}

// handleMetrics serves a point-in-time snapshot. Optional components that
// are not configured are omitted rather than zeroed.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	reg := s.router.Registry()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Crate:         s.crateID,
		Runtime:       readRuntime(),
		Parameters: ParameterMetrics{
			ByCategory: make(map[string]int),
			ReadOnly:   reg.Crate().ReadOnly,
		},
	}

	if s.hub != nil {
		metrics.WebSocket.ConnectedClients = s.hub.ClientCount()
		metrics.WebSocket.DroppedEvents = s.hub.Dropped()
	}

	if s.bridge != nil {
		m := s.bridge.GetMetrics()
		metrics.Bridge = &BridgeMetrics{
			MQTTConnected: m.Connected,
			Status:        m.Status,
			Statistics:    m.Statistics,
		}
	}

	stats := reg.Stats()
	metrics.Parameters.Total = stats.Total
	for cat, count := range stats.Categories {
		metrics.Parameters.ByCategory[cat.String()] = count
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
		if v, err := s.db.SchemaVersion(r.Context()); err == nil {
			metrics.Database.SchemaVersion = v
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

const mebibyte = 1 << 20

func readRuntime() RuntimeMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return RuntimeMetrics{
		Goroutines:    runtime.NumGoroutine(),
		MemoryAllocMB: float64(ms.Alloc) / mebibyte,
		MemoryTotalMB: float64(ms.TotalAlloc) / mebibyte,
		NumGC:         ms.NumGC,
	}
}
