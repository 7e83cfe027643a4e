package occupancy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// timestampLayout is how times are persisted. Nanosecond precision keeps
// consecutive writes ordered.
const timestampLayout = time.RFC3339Nano

// SeatSeed provisions one seat row.
type SeatSeed struct {
	Name    string
	Address string
}

// SQLiteStore implements Store and AdminStore on the seats table.
//
// Thread Safety: safe for concurrent use. Each write is a single UPDATE
// statement, so SQLite serialises conflicting writes to the same row.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates a store on an open, migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:  db,
		now: time.Now,
	}
}

// SetClock overrides the time source used for timestamps.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.now = now
}

// ListAddressed implements Store.
func (s *SQLiteStore) ListAddressed(ctx context.Context) ([]AddressedSeat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, bt_address FROM seats
		 WHERE bt_address IS NOT NULL AND bt_address <> ''
		 ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying addressed seats: %w", err)
	}
	defer rows.Close()

	var seats []AddressedSeat
	for rows.Next() {
		var a AddressedSeat
		if err := rows.Scan(&a.Name, &a.Address); err != nil {
			return nil, fmt.Errorf("scanning addressed seat: %w", err)
		}
		seats = append(seats, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating addressed seats: %w", err)
	}

	return seats, nil
}

// GetAddress implements Store.
func (s *SQLiteStore) GetAddress(ctx context.Context, name string) (string, error) {
	var address sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT bt_address FROM seats WHERE name = ?", name,
	).Scan(&address)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %q", ErrSeatNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("querying seat address: %w", err)
	}

	return address.String, nil
}

// WriteStatus implements Store.
func (s *SQLiteStore) WriteStatus(ctx context.Context, name string, status Status, refresh bool) (Seat, error) {
	if !status.Valid() {
		return Seat{}, fmt.Errorf("%w: code %d", ErrInvalidStatus, int(status))
	}

	now := s.now().UTC().Format(timestampLayout)

	var row *sql.Row
	if refresh {
		row = s.db.QueryRowContext(ctx,
			`UPDATE seats SET status = ?, last_present_time = ?, updated_at = ?
			 WHERE name = ?
			 RETURNING name, bt_address, status, last_present_time, updated_at`,
			int(status), now, now, name,
		)
	} else {
		row = s.db.QueryRowContext(ctx,
			`UPDATE seats SET status = ?, updated_at = ?
			 WHERE name = ?
			 RETURNING name, bt_address, status, last_present_time, updated_at`,
			int(status), now, name,
		)
	}

	seat, err := scanSeat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Seat{}, fmt.Errorf("%w: %q", ErrSeatNotFound, name)
	}
	if err != nil {
		return Seat{}, fmt.Errorf("writing seat status: %w", err)
	}

	return seat, nil
}

// ReadAll implements Store. Rows come back non-absent first, then by name.
func (s *SQLiteStore) ReadAll(ctx context.Context) ([]Seat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, bt_address, status, last_present_time, updated_at
		 FROM seats
		 ORDER BY CASE WHEN status = 0 THEN 1 ELSE 0 END, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying seats: %w", err)
	}
	defer rows.Close()

	seats := make([]Seat, 0)
	for rows.Next() {
		seat, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating seats: %w", err)
	}

	return seats, nil
}

// ListNames implements AdminStore.
func (s *SQLiteStore) ListNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name FROM seats ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying seat names: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning seat name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating seat names: %w", err)
	}

	return names, nil
}

// UpdateAddress implements AdminStore. The address is stored as given,
// apart from surrounding whitespace.
func (s *SQLiteStore) UpdateAddress(ctx context.Context, name, address string) error {
	var value sql.NullString
	if trimmed := strings.TrimSpace(address); trimmed != "" {
		value = sql.NullString{String: trimmed, Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE seats SET bt_address = ?, updated_at = ? WHERE name = ?",
		value, s.now().UTC().Format(timestampLayout), name,
	)
	if err != nil {
		return fmt.Errorf("updating seat address: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %q", ErrSeatNotFound, name)
	}

	return nil
}

// Seed inserts any seat that does not exist yet. Existing rows, including
// their addresses, are never modified. It returns the number of seats created.
func (s *SQLiteStore) Seed(ctx context.Context, seeds []SeatSeed) (int, error) {
	created := 0
	for _, seed := range seeds {
		var address sql.NullString
		if a := strings.TrimSpace(seed.Address); a != "" {
			address = sql.NullString{String: a, Valid: true}
		}

		result, err := s.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO seats (name, bt_address, status, updated_at) VALUES (?, ?, 0, ?)",
			seed.Name, address, s.now().UTC().Format(timestampLayout),
		)
		if err != nil {
			return created, fmt.Errorf("seeding seat %q: %w", seed.Name, err)
		}
		if n, err := result.RowsAffected(); err == nil && n > 0 {
			created++
		}
	}

	return created, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeat(row rowScanner) (Seat, error) {
	var (
		seat        Seat
		address     sql.NullString
		code        int64
		lastPresent sql.NullString
		updatedAt   string
	)

	if err := row.Scan(&seat.Name, &address, &code, &lastPresent, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Seat{}, err
		}
		return Seat{}, fmt.Errorf("scanning seat: %w", err)
	}

	status, err := statusFromCode(code)
	if err != nil {
		return Seat{}, fmt.Errorf("seat %q: %w", seat.Name, err)
	}
	seat.Status = status
	seat.Address = address.String

	if lastPresent.Valid && lastPresent.String != "" {
		t, err := parseTimestamp(lastPresent.String)
		if err != nil {
			return Seat{}, fmt.Errorf("seat %q last_present_time: %w", seat.Name, err)
		}
		seat.LastPresent = &t
	}

	if updatedAt != "" {
		t, err := parseTimestamp(updatedAt)
		if err != nil {
			return Seat{}, fmt.Errorf("seat %q updated_at: %w", seat.Name, err)
		}
		seat.UpdatedAt = t
	}

	return seat, nil
}

// parseTimestamp accepts both the layout this store writes and the
// second-precision default produced by the schema.
func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, value)
	if err == nil {
		return t, nil
	}
	if fallback, fallbackErr := time.Parse("2006-01-02T15:04:05Z", value); fallbackErr == nil {
		return fallback, nil
	}
	return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
}
