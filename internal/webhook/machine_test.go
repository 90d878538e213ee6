package webhook

import (
	"testing"

	"github.com/talkincode/wafleet/internal/domain"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name       string
		evt        Event
		status     string
		recognized bool
		wantQR     string
		clearsQR   bool
		stampsSeen bool
	}{
		{
			name:       "update open",
			evt:        Event{Event: EventConnectionUpdate, Data: map[string]interface{}{"connection": "open"}},
			status:     domain.DeviceStatusConnected,
			recognized: true,
			clearsQR:   true,
			stampsSeen: true,
		},
		{
			name:       "update connecting",
			evt:        Event{Event: EventConnectionUpdate, Data: map[string]interface{}{"connection": "connecting"}},
			status:     domain.DeviceStatusConnecting,
			recognized: true,
		},
		{
			name:       "update close without auth error",
			evt:        Event{Event: EventConnectionUpdate, Data: map[string]interface{}{"connection": "close"}},
			status:     domain.DeviceStatusDisconnected,
			recognized: true,
		},
		{
			name: "update close with 401",
			evt: Event{Event: EventConnectionUpdate, Data: map[string]interface{}{
				"connection": "close",
				"error":      map[string]interface{}{"code": 401},
			}},
			status:     domain.DeviceStatusAuthenticating,
			recognized: true,
		},
		{
			name:       "qr event",
			evt:        Event{Event: EventQR, Data: map[string]interface{}{"qr": "ABC123"}},
			status:     domain.DeviceStatusAuthenticating,
			recognized: true,
			wantQR:     "ABC123",
		},
		{
			name: "qr event with empty material",
			evt:  Event{Event: EventQR, Data: map[string]interface{}{"qr": ""}},
		},
		{
			name:       "ready",
			evt:        Event{Event: EventReady},
			status:     domain.DeviceStatusConnected,
			recognized: true,
			clearsQR:   true,
			stampsSeen: true,
		},
		{
			name:       "connection open",
			evt:        Event{Event: EventConnectionOpen},
			status:     domain.DeviceStatusConnected,
			recognized: true,
			clearsQR:   true,
			stampsSeen: true,
		},
		{
			name:       "close plain",
			evt:        Event{Event: EventConnectionClose},
			status:     domain.DeviceStatusDisconnected,
			recognized: true,
		},
		{
			name: "close logged out",
			evt: Event{Event: EventConnectionClose, Data: map[string]interface{}{
				"error": map[string]interface{}{"reason": "logged_out"},
			}},
			status:     domain.DeviceStatusAuthenticating,
			recognized: true,
		},
		{
			name:       "auth failure",
			evt:        Event{Event: EventAuthFailure},
			status:     domain.DeviceStatusAuthenticating,
			recognized: true,
			clearsQR:   true,
		},
		{
			name: "unknown event kind",
			evt:  Event{Event: "message.received"},
		},
		{
			name: "update with unknown connection value",
			evt:  Event{Event: EventConnectionUpdate, Data: map[string]interface{}{"connection": "paused"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := Transition(tc.evt)

			if out.Recognized != tc.recognized {
				t.Fatalf("recognized = %v, want %v", out.Recognized, tc.recognized)
			}
			if !tc.recognized {
				return
			}
			if out.Status != tc.status {
				t.Errorf("status = %q, want %q", out.Status, tc.status)
			}
			if out.StampLastSeen != tc.stampsSeen {
				t.Errorf("stampLastSeen = %v, want %v", out.StampLastSeen, tc.stampsSeen)
			}
			switch {
			case tc.wantQR != "":
				if out.QR == nil || *out.QR != tc.wantQR {
					t.Errorf("qr = %v, want %q", out.QR, tc.wantQR)
				}
			case tc.clearsQR:
				if out.QR == nil || *out.QR != "" {
					t.Errorf("qr = %v, want cleared", out.QR)
				}
			default:
				if out.QR != nil {
					t.Errorf("qr = %q, want untouched", *out.QR)
				}
			}
		})
	}
}
