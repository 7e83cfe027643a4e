package influxdb

import "errors"

var (
	// ErrNotConnected is returned by HealthCheck after Close, or on a zero Client.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed means the startup ping failed or reported the
	// server unhealthy. Occupancy history is optional, so the caller may
	// choose to start without it.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
