package webhook

import "testing"

func TestIsAuthFailure(t *testing.T) {
	tests := []struct {
		name string
		err  ErrorPayload
		want bool
	}{
		{"status 401", ErrorPayload{Code: 401}, true},
		{"status 403", ErrorPayload{Code: 403}, true},
		{"status 500", ErrorPayload{Code: 500}, false},
		{"reason logged_out", ErrorPayload{Reason: "logged_out"}, true},
		{"reason mixed case", ErrorPayload{Reason: " Unauthorized "}, true},
		{"reason unknown", ErrorPayload{Reason: "network_error"}, false},
		{"message logged out", ErrorPayload{Message: "Device was logged out remotely"}, true},
		{"message bad session", ErrorPayload{Message: "bad session, relink required"}, true},
		{"message transient", ErrorPayload{Message: "connection reset by peer"}, false},
		{"empty", ErrorPayload{}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsAuthFailure(tc.err); got != tc.want {
				t.Errorf("IsAuthFailure(%+v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
