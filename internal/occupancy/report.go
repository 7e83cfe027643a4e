package occupancy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ambientFields are the accepted names of the light-level field, in lookup
// order. "cds" is what the deployed sensor firmware sends.
var ambientFields = []string{"ambient-light", "ambient_light", "cds"}

// Report is one decoded sensor message.
type Report struct {
	// Ambient is the light level, or nil when the message carried none.
	Ambient *int
}

// ParseReport decodes a sensor payload. Surrounding whitespace is ignored.
// A payload that is not a JSON object, or whose light field is not a
// non-negative integer, returns ErrMalformedReport.
func ParseReport(payload []byte) (Report, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return Report{}, fmt.Errorf("%w: empty payload", ErrMalformedReport)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrMalformedReport, err)
	}
	if fields == nil {
		return Report{}, fmt.Errorf("%w: payload is not an object", ErrMalformedReport)
	}

	for _, name := range ambientFields {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		value, err := parseAmbient(raw)
		if err != nil {
			return Report{}, fmt.Errorf("%w: field %q: %w", ErrMalformedReport, name, err)
		}
		return Report{Ambient: &value}, nil
	}

	return Report{}, nil
}

func parseAmbient(raw json.RawMessage) (int, error) {
	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, fmt.Errorf("not a number: %s", raw)
	}
	value, err := strconv.Atoi(num.String())
	if err != nil {
		return 0, fmt.Errorf("not an integer: %s", num)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative value %d", value)
	}
	return value, nil
}
