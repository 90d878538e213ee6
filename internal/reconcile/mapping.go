package reconcile

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/talkincode/wafleet/internal/domain"
)

// workerStatusMap translates the workers' native status vocabulary to the
// five-state enum. The table is explicit: an unlisted worker status is "no
// new information", never a positional guess.
var workerStatusMap = map[string]string{
	"connected":      domain.DeviceStatusConnected,
	"open":           domain.DeviceStatusConnected,
	"online":         domain.DeviceStatusConnected,
	"connecting":     domain.DeviceStatusConnecting,
	"starting":       domain.DeviceStatusConnecting,
	"qr":             domain.DeviceStatusAuthenticating,
	"pairing":        domain.DeviceStatusAuthenticating,
	"scan_qr":        domain.DeviceStatusAuthenticating,
	"authenticating": domain.DeviceStatusAuthenticating,
	"disconnected":   domain.DeviceStatusDisconnected,
	"closed":         domain.DeviceStatusDisconnected,
	"close":          domain.DeviceStatusDisconnected,
	"offline":        domain.DeviceStatusDisconnected,
	"error":          domain.DeviceStatusError,
	"failed":         domain.DeviceStatusError,
}

// MapWorkerStatus resolves a worker-native status string. Casing varies
// between worker versions, so the lookup is case-insensitive.
func MapWorkerStatus(status string) (string, bool) {
	mapped, ok := workerStatusMap[strings.ToLower(strings.TrimSpace(status))]
	return mapped, ok
}

// ParseLastActivity coerces the worker's lastActivity field, which arrives
// as epoch seconds, epoch millis or a formatted timestamp depending on the
// worker version.
func ParseLastActivity(value interface{}) *time.Time {
	switch v := value.(type) {
	case float64:
		if v <= 0 {
			return nil
		}
		sec := int64(v)
		if sec > 1e12 { // epoch millis
			t := time.UnixMilli(sec)
			return &t
		}
		t := time.Unix(sec, 0)
		return &t
	case int64:
		return ParseLastActivity(float64(v))
	case string:
		if v == "" {
			return nil
		}
		t, err := dateparse.ParseAny(v)
		if err != nil {
			return nil
		}
		return &t
	}
	return nil
}
