package domain

import "time"

// Device session lifecycle states.
const (
	DeviceStatusConnecting     = "CONNECTING"
	DeviceStatusAuthenticating = "AUTHENTICATING"
	DeviceStatusConnected      = "CONNECTED"
	DeviceStatusDisconnected   = "DISCONNECTED"
	DeviceStatusError          = "ERROR"
)

// DeviceSession is the orchestrator's record of one logical device
// connection. Name doubles as the worker-side session identifier. QRCode is
// non-empty only while status is AUTHENTICATING; any transition into
// CONNECTED clears it. Rows are mutated exclusively by the webhook handler
// and the reconciliation service.
type DeviceSession struct {
	ID          int64      `json:"id,string" form:"id"`                // Primary key ID
	OwnerID     int64      `json:"owner_id,string" form:"owner_id"`    // Owning account ID
	ServerID    *int64     `json:"server_id,string" form:"server_id"`  // Assigned worker server, nil until first connect
	Name        string     `json:"name" form:"name" gorm:"uniqueIndex"` // Display name / worker session identifier
	PhoneNumber string     `json:"phone_number" form:"phone_number"`   // Nil until authenticated
	Status      string     `json:"status" form:"status"`               // CONNECTING / AUTHENTICATING / CONNECTED / DISCONNECTED / ERROR
	QRCode      string     `json:"qr_code"`                            // Short-lived pairing material
	LastSeenAt  *time.Time `json:"last_seen_at"`                       // Last observed activity
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName Specify table name
func (DeviceSession) TableName() string {
	return "device_session"
}

// ValidDeviceStatus reports whether s is one of the five lifecycle states.
func ValidDeviceStatus(s string) bool {
	switch s {
	case DeviceStatusConnecting, DeviceStatusAuthenticating, DeviceStatusConnected,
		DeviceStatusDisconnected, DeviceStatusError:
		return true
	}
	return false
}
