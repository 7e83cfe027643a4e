package occupancy

import (
	"encoding/json"
	"fmt"
)

// Status is the occupancy state of a seat.
//
// The numeric values are the codes persisted in the seats table.
type Status int

const (
	// StatusAbsent means neither signal indicates presence.
	StatusAbsent Status = 0

	// StatusPresent means the seat's registered device answered a probe.
	StatusPresent Status = 1

	// StatusPresentViaAmbient means the device did not answer but the
	// ambient light sensor reads above the threshold.
	StatusPresentViaAmbient Status = 2
)

// Machine-readable labels used on the wire.
const (
	LabelAbsent            = "absent"
	LabelPresent           = "present"
	LabelPresentViaAmbient = "present_via_ambient"
)

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	switch s {
	case StatusAbsent, StatusPresent, StatusPresentViaAmbient:
		return true
	}
	return false
}

// IsPresent reports whether s is PRESENT or PRESENT_VIA_AMBIENT.
// Only these states refresh a seat's last-present timestamp.
func (s Status) IsPresent() bool {
	return s == StatusPresent || s == StatusPresentViaAmbient
}

// String returns the wire label.
func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return LabelAbsent
	case StatusPresent:
		return LabelPresent
	case StatusPresentViaAmbient:
		return LabelPresentViaAmbient
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// DisplayName returns the label shown on the attendance board.
func (s Status) DisplayName() string {
	switch s {
	case StatusAbsent:
		return "Absent"
	case StatusPresent:
		return "At desk"
	case StatusPresentViaAmbient:
		return "In lab"
	}
	return "Unknown"
}

// ParseStatus converts a wire label back to a Status.
func ParseStatus(label string) (Status, error) {
	switch label {
	case LabelAbsent:
		return StatusAbsent, nil
	case LabelPresent:
		return StatusPresent, nil
	case LabelPresentViaAmbient:
		return StatusPresentViaAmbient, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, label)
}

// statusFromCode validates a persisted status code.
func statusFromCode(code int64) (Status, error) {
	s := Status(code)
	if !s.Valid() {
		return 0, fmt.Errorf("%w: code %d", ErrInvalidStatus, code)
	}
	return s, nil
}

// MarshalJSON encodes the status as its wire label.
func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: code %d", ErrInvalidStatus, int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a wire label.
func (s *Status) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStatus, err)
	}
	parsed, err := ParseStatus(label)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
