package api

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the database ping made by /health.
const healthCheckTimeout = 2 * time.Second

// HealthResponse is the /api/v1/health body.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`

	// LastPoll is when the most recent poll cycle finished (null before the first).
	LastPoll *time.Time `json:"last_poll,omitempty"`
}

// handleHealth reports service health. The database is the only hard
// dependency; MQTT and InfluxDB are reported but never fail the check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "ok",
		Version:    s.version,
		Components: map[string]string{},
	}
	status := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Components["database"] = "error"
			status = http.StatusServiceUnavailable
		} else {
			resp.Components["database"] = "ok"
		}
	}

	if s.mqtt != nil {
		resp.Components["mqtt"] = connectionLabel(s.mqtt.IsConnected())
	}
	if s.influx != nil {
		resp.Components["influxdb"] = connectionLabel(s.influx.IsConnected())
	}

	if s.poller != nil {
		if last := s.poller.LastCycle(); !last.Finished.IsZero() {
			finished := last.Finished.UTC()
			resp.LastPoll = &finished
			resp.Components["poller"] = "ok"
		} else {
			resp.Components["poller"] = "starting"
		}
	}

	writeJSON(w, status, resp)
}

func connectionLabel(connected bool) string {
	if connected {
		return "connected"
	}
	return "disconnected"
}
