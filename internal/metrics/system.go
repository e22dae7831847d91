package metrics

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/custodian-sh/custodian/internal/models"
)

// StartSystemSampler refreshes the host gauges on an interval until the
// context is canceled. Sampling errors are skipped; the previous reading
// stays in place.
func (m *Metrics) StartSystemSampler(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.sampleHost()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sampleHost()
			}
		}
	}()
}

func (m *Metrics) sampleHost() {
	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		m.hostCPU.Set(cpuPercent[0])
	}
	if memInfo, err := mem.VirtualMemory(); err == nil {
		m.hostMemory.Set(float64(memInfo.Used))
	}
}

// CollectHostInfo gathers a point-in-time host summary for the status
// endpoint.
func CollectHostInfo() models.HostInfo {
	info := models.HostInfo{
		NumCPU: runtime.NumCPU(),
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}
	if hostInfo, err := host.Info(); err == nil {
		info.Platform = hostInfo.Platform
	}
	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		info.CPUPercent = cpuPercent[0]
	}
	if memInfo, err := mem.VirtualMemory(); err == nil {
		info.MemoryTotalBytes = memInfo.Total
		info.MemoryUsedPercent = memInfo.UsedPercent
	}
	return info
}
