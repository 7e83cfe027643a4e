package occupancy

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/logging"
)

// Source identifies which writer produced a Change.
type Source string

const (
	SourcePoll   Source = "poll"
	SourceSensor Source = "sensor"
)

// Change describes one committed seat write.
type Change struct {
	Seat      Seat
	Source    Source
	Reachable bool

	// Ambient is the reading that took part in the decision (sensor path only).
	Ambient *int

	At time.Time
}

// Sink receives committed changes. Implementations must not block for long;
// they run on the writer's goroutine.
type Sink interface {
	SeatUpdated(ctx context.Context, change Change)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, change Change)

// SeatUpdated implements Sink.
func (f SinkFunc) SeatUpdated(ctx context.Context, change Change) {
	f(ctx, change)
}

// Fanout delivers each change to every registered sink. A panicking sink is
// logged and skipped. Sinks are best-effort and can never fail a write.
type Fanout struct {
	mu     sync.RWMutex
	sinks  []Sink
	logger *logging.Logger
}

// NewFanout creates an empty fan-out.
func NewFanout(logger *logging.Logger) *Fanout {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Fanout{logger: logger}
}

// Add registers a sink. Nil sinks are ignored.
func (f *Fanout) Add(sink Sink) {
	if sink == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, sink)
}

// SeatUpdated implements Sink.
func (f *Fanout) SeatUpdated(ctx context.Context, change Change) {
	if f == nil {
		return
	}
	f.mu.RLock()
	sinks := make([]Sink, len(f.sinks))
	copy(sinks, f.sinks)
	f.mu.RUnlock()

	for _, sink := range sinks {
		f.deliver(ctx, sink, change)
	}
}

func (f *Fanout) deliver(ctx context.Context, sink Sink, change Change) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("change sink panicked",
				"seat", change.Seat.Name,
				"panic", r,
			)
		}
	}()
	sink.SeatUpdated(ctx, change)
}
