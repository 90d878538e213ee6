package reconcile

import (
	"testing"
	"time"

	"github.com/talkincode/wafleet/internal/domain"
)

func TestMapWorkerStatus(t *testing.T) {
	tests := []struct {
		worker string
		want   string
		known  bool
	}{
		{"connected", domain.DeviceStatusConnected, true},
		{"open", domain.DeviceStatusConnected, true},
		{"CONNECTED", domain.DeviceStatusConnected, true},
		{"connecting", domain.DeviceStatusConnecting, true},
		{"qr", domain.DeviceStatusAuthenticating, true},
		{"scan_qr", domain.DeviceStatusAuthenticating, true},
		{"disconnected", domain.DeviceStatusDisconnected, true},
		{"closed", domain.DeviceStatusDisconnected, true},
		{"error", domain.DeviceStatusError, true},
		{"failed", domain.DeviceStatusError, true},
		{"hibernating", "", false},
		{"", "", false},
	}

	for _, tc := range tests {
		got, ok := MapWorkerStatus(tc.worker)
		if ok != tc.known {
			t.Errorf("MapWorkerStatus(%q) known = %v, want %v", tc.worker, ok, tc.known)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("MapWorkerStatus(%q) = %q, want %q", tc.worker, got, tc.want)
		}
	}
}

func TestParseLastActivity(t *testing.T) {
	ref := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if got := ParseLastActivity(float64(ref.UnixMilli())); got == nil || !got.Equal(ref) {
		t.Errorf("epoch millis parsed as %v, want %v", got, ref)
	}
	if got := ParseLastActivity(float64(ref.Unix())); got == nil || !got.Equal(ref) {
		t.Errorf("epoch seconds parsed as %v, want %v", got, ref)
	}
	if got := ParseLastActivity("2024-05-01T12:00:00Z"); got == nil || !got.Equal(ref) {
		t.Errorf("rfc3339 parsed as %v, want %v", got, ref)
	}
	if got := ParseLastActivity(nil); got != nil {
		t.Errorf("nil parsed as %v, want nil", got)
	}
	if got := ParseLastActivity("not a timestamp"); got != nil {
		t.Errorf("garbage parsed as %v, want nil", got)
	}
}
