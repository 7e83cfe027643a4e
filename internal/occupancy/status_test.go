package occupancy

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestStatusLabels(t *testing.T) {
	tests := []struct {
		status  Status
		label   string
		display string
		present bool
	}{
		{StatusAbsent, "absent", "Absent", false},
		{StatusPresent, "present", "At desk", true},
		{StatusPresentViaAmbient, "present_via_ambient", "In lab", true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := tt.status.String(); got != tt.label {
				t.Errorf("String() = %q, want %q", got, tt.label)
			}
			if got := tt.status.DisplayName(); got != tt.display {
				t.Errorf("DisplayName() = %q, want %q", got, tt.display)
			}
			if got := tt.status.IsPresent(); got != tt.present {
				t.Errorf("IsPresent() = %v, want %v", got, tt.present)
			}

			parsed, err := ParseStatus(tt.label)
			if err != nil || parsed != tt.status {
				t.Errorf("ParseStatus(%q) = %v, %v", tt.label, parsed, err)
			}
		})
	}
}

func TestStatusRejectsUnknownCodes(t *testing.T) {
	if Status(3).Valid() {
		t.Error("Status(3).Valid() = true, want false")
	}
	if _, err := json.Marshal(Status(7)); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Marshal(Status(7)) error = %v, want ErrInvalidStatus", err)
	}
	if _, err := statusFromCode(-1); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("statusFromCode(-1) error = %v, want ErrInvalidStatus", err)
	}
	if _, err := ParseStatus("away"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("ParseStatus(away) error = %v, want ErrInvalidStatus", err)
	}
}

func TestStatusJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		S Status `json:"s"`
	}{StatusPresentViaAmbient})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `{"s":"present_via_ambient"}` {
		t.Errorf("Marshal() = %s", data)
	}

	var s Status
	if err := json.Unmarshal([]byte(`"present"`), &s); err != nil || s != StatusPresent {
		t.Errorf("Unmarshal(present) = %v, %v", s, err)
	}
	if err := json.Unmarshal([]byte(`1`), &s); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Unmarshal(1) error = %v, want ErrInvalidStatus", err)
	}
}

func TestReconcile(t *testing.T) {
	const threshold = DefaultAmbientThreshold

	tests := []struct {
		name      string
		reachable bool
		ambient   *int
		want      Status
	}{
		{"reachable without reading", true, nil, StatusPresent},
		{"reachable in the dark", true, intPtr(0), StatusPresent},
		{"reachable in bright light", true, intPtr(900), StatusPresent},
		{"unreachable without reading", false, nil, StatusAbsent},
		{"unreachable below threshold", false, intPtr(120), StatusAbsent},
		{"unreachable at threshold", false, intPtr(threshold), StatusAbsent},
		{"unreachable just above threshold", false, intPtr(threshold + 1), StatusPresentViaAmbient},
		{"unreachable bright", false, intPtr(700), StatusPresentViaAmbient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.reachable, tt.ambient, threshold)
			if got != tt.want {
				t.Errorf("Reconcile() = %v, want %v", got, tt.want)
			}
			if again := Reconcile(tt.reachable, tt.ambient, threshold); again != got {
				t.Errorf("Reconcile() not deterministic: %v then %v", got, again)
			}
		})
	}
}

func TestReconcileReachableAlwaysWins(t *testing.T) {
	for ambient := 0; ambient <= 2000; ambient += 50 {
		if got := Reconcile(true, intPtr(ambient), DefaultAmbientThreshold); got != StatusPresent {
			t.Fatalf("Reconcile(true, %d) = %v, want present", ambient, got)
		}
	}
}
