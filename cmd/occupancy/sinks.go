package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/api"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
)

// retainedPublisher is the subset of the MQTT client used by mqttSink.
type retainedPublisher interface {
	PublishRetained(topic string, payload []byte) error
}

// mqttSink publishes each seat's latest state as a retained message, so a
// subscriber joining late still sees the current table.
type mqttSink struct {
	client retainedPublisher
	topics mqtt.Topics
	log    *logging.Logger
}

func newMQTTSink(client retainedPublisher, log *logging.Logger) *mqttSink {
	return &mqttSink{client: client, log: log}
}

// SeatUpdated implements occupancy.Sink.
func (s *mqttSink) SeatUpdated(_ context.Context, change occupancy.Change) {
	payload, err := json.Marshal(api.NewSeatEvent(change))
	if err != nil {
		s.log.Error("encoding seat state", "seat", change.Seat.Name, "error", err)
		return
	}

	topic := s.topics.SeatState(change.Seat.Name)
	if err := s.client.PublishRetained(topic, payload); err != nil {
		s.log.Warn("publishing seat state", "topic", topic, "error", err)
	}
}

// pointWriter is the subset of the InfluxDB client used by influxSink.
type pointWriter interface {
	WriteSeatStatus(seat, status string, code int, source string, at time.Time)
	WriteAmbient(seat string, value int, at time.Time)
	WriteProbe(seat string, reachable bool, source string, at time.Time)
}

// influxSink records every write as telemetry points. Writes are
// non-blocking; the client batches them.
type influxSink struct {
	client pointWriter
}

func newInfluxSink(client pointWriter) *influxSink {
	return &influxSink{client: client}
}

// SeatUpdated implements occupancy.Sink.
func (s *influxSink) SeatUpdated(_ context.Context, change occupancy.Change) {
	seat := change.Seat.Name
	source := string(change.Source)

	s.client.WriteSeatStatus(seat, change.Seat.Status.String(), int(change.Seat.Status), source, change.At)
	s.client.WriteProbe(seat, change.Reachable, source, change.At)
	if change.Ambient != nil {
		s.client.WriteAmbient(seat, *change.Ambient, change.At)
	}
}
