package domain

import "time"

// Worker server status values. Probe failures degrade the health snapshot
// only; status is flipped by an operator, never by a probe.
const (
	ServerStatusActive      = "active"
	ServerStatusInactive    = "inactive"
	ServerStatusMaintenance = "maintenance"
	ServerStatusError       = "error"
)

// WorkerServer is a backend process hosting live messaging sessions for one
// or more devices. Capacity and selection attributes are operator-managed;
// the health snapshot fields are refreshed by probes.
type WorkerServer struct {
	ID           int64  `json:"id,string" form:"id"`                     // Primary key ID
	Name         string `json:"name" form:"name"`                        // Display name
	BaseURL      string `json:"base_url" form:"base_url"`                // Worker API base URL
	Environment  string `json:"environment" form:"environment"`          // Environment tag (production/staging/...)
	Status       string `json:"status" form:"status"`                    // active / inactive / maintenance / error
	MaxInstances int    `json:"max_instances" form:"max_instances"`      // Maximum device instance capacity
	Priority     int    `json:"priority" form:"priority"`                // Selection priority, lower = preferred
	Weight       int    `json:"weight" form:"weight"`                    // Load-balancing weight
	Timeout      int    `json:"timeout" form:"timeout"`                  // Per-call timeout in seconds
	RetryCount   int    `json:"retry_count" form:"retry_count"`          // Retry count for worker calls

	// Health snapshot, refreshed by probes only
	LastResponseMs int64     `json:"last_response_ms"` // Last probe round-trip in milliseconds
	LastCheckAt    time.Time `json:"last_check_at"`    // Last probe time
	InstanceCount  int       `json:"instance_count"`   // Current device instance count

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (WorkerServer) TableName() string {
	return "worker_server"
}
