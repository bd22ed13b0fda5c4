package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	// Telemetry is optional; callers skip it rather than fail.
	ErrDisabled = errors.New("influxdb: telemetry disabled")

	ErrConnectionFailed = errors.New("influxdb: cannot reach server")
	ErrNotConnected     = errors.New("influxdb: client closed")

	// ErrWriteFailed wraps a background batch failure reported by
	// HealthCheck.
	ErrWriteFailed = errors.New("influxdb: batch write failed")
)
