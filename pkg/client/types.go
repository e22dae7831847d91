package client

import (
	"time"

	"github.com/custodian-sh/custodian/pkg/ownership"
)

// UpdateAttributes mirrors the transition applied by the registry.
type UpdateAttributes struct {
	Action   string `json:"action"`
	Owner    string `json:"owner,omitempty"`
	Proposed string `json:"proposed,omitempty"`
	Sender   string `json:"sender"`
}

// OwnershipResult is the registry's answer to a mutation.
type OwnershipResult struct {
	Resource   string             `json:"resource"`
	Attributes *UpdateAttributes  `json:"attributes,omitempty"`
	State      ownership.Snapshot `json:"state"`
}

// Resource is one entry in the registry's resource listing.
type Resource struct {
	Name      string             `json:"name"`
	State     ownership.Snapshot `json:"state"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Transition is one audited ownership change. Owner and Proposed carry the
// post-transition values.
type Transition struct {
	ID         string    `json:"id"`
	Resource   string    `json:"resource"`
	Action     string    `json:"action"`
	FromKind   string    `json:"from_kind"`
	ToKind     string    `json:"to_kind"`
	Sender     string    `json:"sender"`
	Owner      string    `json:"owner,omitempty"`
	Proposed   string    `json:"proposed,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Principal is an API principal as reported by the registry.
type Principal struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// PrincipalCreated is returned once at principal creation; the API key is not
// recoverable afterwards.
type PrincipalCreated struct {
	Principal Principal `json:"principal"`
	APIKey    string    `json:"api_key"`
}

// HostInfo describes the machine the registry runs on.
type HostInfo struct {
	Hostname          string  `json:"hostname"`
	Platform          string  `json:"platform,omitempty"`
	NumCPU            int     `json:"num_cpu"`
	CPUPercent        float64 `json:"cpu_percent"`
	MemoryTotalBytes  uint64  `json:"memory_total_bytes"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
}

// SystemStatus is the registry's status report.
type SystemStatus struct {
	Service       string         `json:"service"`
	Version       string         `json:"version"`
	StartedAt     time.Time      `json:"started_at"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StoreType     string         `json:"store_type"`
	Resources     map[string]int `json:"resources_by_state"`
	Host          HostInfo       `json:"host"`
}
