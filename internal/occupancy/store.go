package occupancy

import (
	"context"
	"time"
)

// Seat is one tracked occupant slot.
type Seat struct {
	Name string `json:"name"`

	// Address is the registered Bluetooth device address. Empty means no
	// device is registered and the seat is never probed.
	Address string `json:"address,omitempty"`

	Status Status `json:"status"`

	// LastPresent is the time of the most recent write into a present state.
	// It is nil until the seat is first seen and never cleared afterwards.
	LastPresent *time.Time `json:"last_present_time"`

	UpdatedAt time.Time `json:"updated_at"`
}

// AddressedSeat pairs a seat with its registered device address.
type AddressedSeat struct {
	Name    string
	Address string
}

// Store is the persistent seat table as seen by the reconciliation engine.
//
// Implementations must be safe for concurrent use. Every write touches
// exactly one seat, so concurrent writers to different seats never interfere.
type Store interface {
	// ListAddressed returns every seat with a non-empty registered address.
	ListAddressed(ctx context.Context) ([]AddressedSeat, error)

	// GetAddress returns the registered address of a seat ("" if none).
	// Unknown seats return ErrSeatNotFound.
	GetAddress(ctx context.Context, name string) (string, error)

	// WriteStatus sets a seat's status. When refresh is true the last-present
	// timestamp is set to now; otherwise it is left untouched.
	// The seat as stored after the write is returned.
	WriteStatus(ctx context.Context, name string, status Status, refresh bool) (Seat, error)

	// ReadAll returns every seat in one consistent read.
	ReadAll(ctx context.Context) ([]Seat, error)
}

// AdminStore is the address-editing surface used by the admin form.
type AdminStore interface {
	// ListNames returns every seat name, sorted.
	ListNames(ctx context.Context) ([]string, error)

	// UpdateAddress overwrites a seat's registered address. An empty address
	// clears the registration.
	UpdateAddress(ctx context.Context, name, address string) error
}
