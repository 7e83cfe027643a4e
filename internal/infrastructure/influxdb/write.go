package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementSeatStatus = "seat_status"
	MeasurementAmbient    = "ambient_light"
	MeasurementProbe      = "probe"
)

// WriteSeatStatus records one committed seat status.
//
// Parameters:
//   - seat: Seat name (tag)
//   - status: Status label, e.g. "present_via_ambient" (tag)
//   - code: Numeric status code 0..2 (field, for graphing)
//   - source: Which writer produced it, "poll" or "sensor" (tag)
//
// Example:
//
//	client.WriteSeatStatus("Sugiura", "present", 1, "poll", time.Now())
func (c *Client) WriteSeatStatus(seat, status string, code int, source string, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementSeatStatus,
		map[string]string{
			"seat":   seat,
			"status": status,
			"source": source,
		},
		map[string]interface{}{
			"code":    code,
			"present": code != 0,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WriteAmbient records one sensor light reading and the seat it applied to.
func (c *Client) WriteAmbient(seat string, value int, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementAmbient,
		map[string]string{
			"seat": seat,
		},
		map[string]interface{}{
			"value": value,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WriteProbe records one reachability probe outcome.
func (c *Client) WriteProbe(seat string, reachable bool, source string, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementProbe,
		map[string]string{
			"seat":   seat,
			"source": source,
		},
		map[string]interface{}{
			"reachable": reachable,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Example:
//
//	client.WritePoint("poll_cycle",
//	    map[string]string{"site": "lab-7"},
//	    map[string]interface{}{"probed": 12, "present": 4})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
