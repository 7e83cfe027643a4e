package occupancy

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-occupancy/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-occupancy/migrations"
)

// testClock is a manually advanced time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestStore opens a migrated database in a temp dir and seeds it.
func newTestStore(t *testing.T, seeds ...SeatSeed) (*SQLiteStore, *testClock) {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "occupancy.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}

	clock := newTestClock()
	store := NewSQLiteStore(db.DB)
	store.SetClock(clock.Now)

	if _, err := store.Seed(ctx, seeds); err != nil {
		t.Fatalf("seeding test db: %v", err)
	}

	return store, clock
}

// fakeProber answers from a fixed table and records every call.
type fakeProber struct {
	mu        sync.Mutex
	reachable map[string]bool
	calls     []string
	delay     time.Duration
}

func newFakeProber(reachable map[string]bool) *fakeProber {
	if reachable == nil {
		reachable = map[string]bool{}
	}
	return &fakeProber{reachable: reachable}
}

func (p *fakeProber) Probe(ctx context.Context, address string, _ time.Duration) bool {
	p.mu.Lock()
	p.calls = append(p.calls, address)
	delay := p.delay
	result := p.reachable[address]
	p.mu.Unlock()

	if address == "" {
		return false
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return false
		}
	}
	return result
}

func (p *fakeProber) Set(address string, reachable bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reachable[address] = reachable
}

func (p *fakeProber) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// recordingSink collects every change delivered to it.
type recordingSink struct {
	mu      sync.Mutex
	changes []Change
}

func (s *recordingSink) SeatUpdated(_ context.Context, change Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, change)
}

func (s *recordingSink) Changes() []Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Change(nil), s.changes...)
}

func mustSeat(t *testing.T, store *SQLiteStore, name string) Seat {
	t.Helper()
	seats, err := store.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	for _, s := range seats {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("seat %q not found", name)
	return Seat{}
}

func intPtr(v int) *int { return &v }
