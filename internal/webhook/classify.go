package webhook

import "strings"

// Known auth-related reason codes workers emit on close events.
var authReasonCodes = map[string]struct{}{
	"logged_out":   {},
	"unauthorized": {},
	"auth_failure": {},
	"bad_session":  {},
}

// Free-text markers used when no structured code is available. This
// substring fallback is fragile; it is kept behind this single function so a
// structured worker error code can replace it without touching the state
// machine.
var authTextMarkers = []string{
	"logged out",
	"auth",
	"unauthorized",
	"forbidden",
	"credential",
	"bad session",
}

// IsAuthFailure decides whether a close error indicates an authentication
// failure. The structured code is consulted first, then the reason code,
// then the free-text fallback.
func IsAuthFailure(err ErrorPayload) bool {
	switch err.Code {
	case 401, 403:
		return true
	}
	if _, ok := authReasonCodes[strings.ToLower(strings.TrimSpace(err.Reason))]; ok {
		return true
	}
	message := strings.ToLower(err.Message)
	if message == "" {
		return false
	}
	for _, marker := range authTextMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}
