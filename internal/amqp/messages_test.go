package amqp

import (
	"testing"
	"time"
)

func TestNewRebuildRequest(t *testing.T) {
	msg := NewRebuildRequest(2025, 3)
	if msg.Year != 2025 || msg.Month != 3 {
		t.Fatalf("got %d-%d, want 2025-3", msg.Year, msg.Month)
	}
	if msg.RequestedAt.IsZero() {
		t.Fatal("RequestedAt not stamped")
	}
	if err := msg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestRebuildRequestValidate(t *testing.T) {
	cases := []struct {
		name        string
		year, month int
		ok          bool
	}{
		{"valid", 2025, 3, true},
		{"month low", 2025, 0, false},
		{"month high", 2025, 13, false},
		{"year zero", 0, 3, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := RebuildRequest{Year: tc.year, Month: tc.month, RequestedAt: time.Now()}
			if err := msg.Validate(); (err == nil) != tc.ok {
				t.Fatalf("validate %d-%d: %v", tc.year, tc.month, err)
			}
		})
	}
}

func TestRebuildRequestJSONRoundTrip(t *testing.T) {
	original := NewRebuildRequest(2025, 11)
	data, err := original.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := RebuildRequestFromJSON(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Year != original.Year || decoded.Month != original.Month {
		t.Fatalf("got %d-%d, want %d-%d", decoded.Year, decoded.Month, original.Year, original.Month)
	}
	if !decoded.RequestedAt.Equal(original.RequestedAt) {
		t.Fatalf("timestamp changed: %s vs %s", decoded.RequestedAt, original.RequestedAt)
	}
}

func TestRebuildRequestFromInvalidJSON(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"year": "nope"}`, `{"year": 2025, "month": 99}`} {
		if _, err := RebuildRequestFromJSON([]byte(raw)); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
