package occupancy

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// SnapshotSeat is one row of a Snapshot.
type SnapshotSeat struct {
	Name        string     `json:"name"`
	Status      Status     `json:"status"`
	LastPresent *time.Time `json:"last_present_time"`
}

// Snapshot is the full occupancy table at one moment.
type Snapshot struct {
	Seats     []SnapshotSeat `json:"seats"`
	QueryTime time.Time      `json:"query_time"`
}

// SnapshotService answers read-only occupancy queries straight from the Store.
type SnapshotService struct {
	store Store
	now   func() time.Time
}

// NewSnapshotService creates a snapshot service.
func NewSnapshotService(store Store) *SnapshotService {
	return &SnapshotService{store: store, now: time.Now}
}

// Snapshot reads every seat in one query. Seats that are present in any form
// come first, then absent ones, each group sorted by name. Store failures
// wrap ErrStoreUnavailable.
func (s *SnapshotService) Snapshot(ctx context.Context) (Snapshot, error) {
	seats, err := s.store.ReadAll(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	rows := make([]SnapshotSeat, 0, len(seats))
	for _, seat := range seats {
		rows = append(rows, SnapshotSeat{
			Name:        seat.Name,
			Status:      seat.Status,
			LastPresent: seat.LastPresent,
		})
	}
	SortSeats(rows)

	return Snapshot{Seats: rows, QueryTime: s.now()}, nil
}

// SortSeats orders rows non-absent first, then by name.
func SortSeats(rows []SnapshotSeat) {
	sort.SliceStable(rows, func(i, j int) bool {
		pi, pj := rows[i].Status.IsPresent(), rows[j].Status.IsPresent()
		if pi != pj {
			return pi
		}
		return rows[i].Name < rows[j].Name
	})
}
