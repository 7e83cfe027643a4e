// Package influxdb provides InfluxDB connectivity for occupancy telemetry.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched writes and health monitoring.
//
// # Measurements
//
//   - seat_status: every committed seat write (tags seat, status, source)
//   - ambient_light: sensor readings (tag seat)
//   - probe: reachability outcomes (tags seat, source)
//
// The SQLite seat table only holds current state; history lives here.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSeatStatus("Sugiura", "present", 1, "poll", time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Writes are non-blocking; asynchronous failures are reported through
// SetOnError.
package influxdb
