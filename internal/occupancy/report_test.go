package occupancy

import (
	"errors"
	"testing"
)

func TestParseReport(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    *int
		wantErr bool
	}{
		{name: "sensor firmware field", payload: `{"cds": 700}`, want: intPtr(700)},
		{name: "hyphenated field", payload: `{"ambient-light": 12}`, want: intPtr(12)},
		{name: "underscored field", payload: `{"ambient_light": 0}`, want: intPtr(0)},
		{name: "trailing whitespace", payload: "{\"cds\":501}\r\n  ", want: intPtr(501)},
		{name: "no light field", payload: `{"temp": 21}`, want: nil},
		{name: "not json", payload: "not-json", wantErr: true},
		{name: "empty", payload: "   ", wantErr: true},
		{name: "null", payload: "null", wantErr: true},
		{name: "array", payload: "[700]", wantErr: true},
		{name: "negative", payload: `{"cds": -1}`, wantErr: true},
		{name: "fractional", payload: `{"cds": 12.5}`, wantErr: true},
		{name: "boolean", payload: `{"cds": true}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReport([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedReport) {
					t.Fatalf("ParseReport() error = %v, want ErrMalformedReport", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseReport() error = %v", err)
			}
			switch {
			case tt.want == nil && got.Ambient != nil:
				t.Errorf("Ambient = %d, want nil", *got.Ambient)
			case tt.want != nil && (got.Ambient == nil || *got.Ambient != *tt.want):
				t.Errorf("Ambient = %v, want %d", got.Ambient, *tt.want)
			}
		})
	}
}
