package main

import (
	"context"
	"errors"

	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-occupancy/internal/occupancy"
)

// reportQueueSize bounds MQTT sensor reports waiting to be processed.
const reportQueueSize = 32

// errReportQueueFull is returned to the MQTT client when a report is dropped.
var errReportQueueFull = errors.New("sensor report queue full, report dropped")

// reportProcessor applies one sensor report payload.
type reportProcessor interface {
	Process(ctx context.Context, payload []byte) (occupancy.ProcessResult, error)
}

// reportQueue moves MQTT sensor reports off the client's dispatch goroutine.
// Processing probes the designated seat, which can take seconds; running it
// inside the message callback would hold up every other inbound message.
// Reports are applied one at a time in arrival order. There is no ack on
// this transport.
type reportQueue struct {
	reports chan []byte
	proc    reportProcessor
	log     *logging.Logger
}

func newReportQueue(proc reportProcessor, size int, log *logging.Logger) *reportQueue {
	if size < 1 {
		size = 1
	}
	return &reportQueue{
		reports: make(chan []byte, size),
		proc:    proc,
		log:     log,
	}
}

// Handle is the MQTT message handler. It never blocks.
func (q *reportQueue) Handle(_ string, payload []byte) error {
	report := append([]byte(nil), payload...)
	select {
	case q.reports <- report:
		return nil
	default:
		return errReportQueueFull
	}
}

// Run processes queued reports until ctx is cancelled.
func (q *reportQueue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case report := <-q.reports:
			if _, err := q.proc.Process(ctx, report); err != nil {
				q.log.Warn("sensor report not applied", "error", err)
			}
		}
	}
}
