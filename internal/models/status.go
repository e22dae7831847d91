package models

import "time"

// SystemStatus is the answer to the system status query.
type SystemStatus struct {
	Service       string         `json:"service"`
	Version       string         `json:"version"`
	StartedAt     time.Time      `json:"started_at"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StoreType     string         `json:"store_type"`
	Resources     map[string]int `json:"resources_by_state"`
	Host          HostInfo       `json:"host"`
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
