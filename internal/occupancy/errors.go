package occupancy

import "errors"

// Domain errors for the occupancy package.
//
//	if errors.Is(err, occupancy.ErrSeatNotFound) {
//	    // unknown seat name
//	}
var (
	// ErrSeatNotFound is returned when a seat name does not exist in the store.
	ErrSeatNotFound = errors.New("occupancy: seat not found")

	// ErrInvalidStatus is returned for a status code or label outside the
	// three known states.
	ErrInvalidStatus = errors.New("occupancy: invalid status")

	// ErrMalformedReport is returned when a sensor payload cannot be parsed.
	ErrMalformedReport = errors.New("occupancy: malformed sensor report")

	// ErrStoreUnavailable wraps store failures surfaced to snapshot callers.
	ErrStoreUnavailable = errors.New("occupancy: store unavailable")

	// ErrListen is returned when the ingest listener cannot bind.
	ErrListen = errors.New("occupancy: ingest listener bind failed")
)
