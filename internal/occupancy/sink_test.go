package occupancy

import (
	"context"
	"testing"
)

func TestFanout_DeliversToAllAndSurvivesPanics(t *testing.T) {
	first := &recordingSink{}
	last := &recordingSink{}

	f := NewFanout(nil)
	f.Add(first)
	f.Add(SinkFunc(func(context.Context, Change) { panic("boom") }))
	f.Add(nil)
	f.Add(last)

	f.SeatUpdated(context.Background(), Change{Seat: Seat{Name: "A"}, Source: SourcePoll})

	if len(first.Changes()) != 1 || len(last.Changes()) != 1 {
		t.Errorf("deliveries = %d/%d, want 1/1", len(first.Changes()), len(last.Changes()))
	}
}

func TestFanout_NilIsNoop(t *testing.T) {
	var f *Fanout
	f.SeatUpdated(context.Background(), Change{})
}
