// Package monitor collects host resource usage for the admin status
// endpoint and the health checks.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// MemoryInfo describes physical memory usage.
type MemoryInfo struct {
	TotalMB float64 `json:"total_mb"`
	UsedMB  float64 `json:"used_mb"`
	Percent float64 `json:"percent"`
}

// DiskInfo describes usage of the filesystem holding the models directory.
type DiskInfo struct {
	TotalGB float64 `json:"total_gb"`
	UsedGB  float64 `json:"used_gb"`
	Percent float64 `json:"percent"`
}

// GPUInfo describes one NVIDIA device as reported by nvidia-smi.
type GPUInfo struct {
	Name           string  `json:"name"`
	MemoryTotalMB  float64 `json:"memory_total_mb"`
	MemoryUsedMB   float64 `json:"memory_used_mb"`
	UtilizationPct float64 `json:"utilization_percent"`
}

// Snapshot is a point-in-time view of host resources.
type Snapshot struct {
	CPUPercent    float64    `json:"cpu_percent"`
	Memory        MemoryInfo `json:"memory"`
	Disk          DiskInfo   `json:"disk"`
	GPU           *GPUInfo   `json:"gpu,omitempty"`
	UptimeSeconds float64    `json:"uptime_seconds"`
}

// Monitor samples host resources. The zero value is not usable; create one
// with New.
type Monitor struct {
	diskPath string
	started  time.Time

	gpuOnce    sync.Once
	gpuProbeOK bool
}

// New creates a Monitor. diskPath names the directory whose filesystem is
// reported in disk usage, typically the models directory.
func New(diskPath string) *Monitor {
	if diskPath == "" {
		diskPath = "/"
	}
	return &Monitor{diskPath: diskPath, started: time.Now()}
}

// Uptime reports time since the Monitor was created, which tracks process
// start in practice.
func (m *Monitor) Uptime() time.Duration {
	return time.Since(m.started)
}

// MemoryPercent returns the current physical memory usage percentage. Used
// by the memory health check.
func (m *Monitor) MemoryPercent(ctx context.Context) (float64, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return v.UsedPercent, nil
}

// Snapshot samples CPU, memory, disk, and GPU usage. Individual probe
// failures are logged and leave the corresponding field zeroed rather than
// failing the whole snapshot.
func (m *Monitor) Snapshot(ctx context.Context) Snapshot {
	snap := Snapshot{UptimeSeconds: m.Uptime().Seconds()}

	if pcts, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		slog.Warn("cpu usage probe failed", "error", err)
	} else if len(pcts) > 0 {
		snap.CPUPercent = round1(pcts[0])
	}

	if v, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		slog.Warn("memory usage probe failed", "error", err)
	} else {
		snap.Memory = MemoryInfo{
			TotalMB: round1(float64(v.Total) / (1 << 20)),
			UsedMB:  round1(float64(v.Used) / (1 << 20)),
			Percent: round1(v.UsedPercent),
		}
	}

	if u, err := disk.UsageWithContext(ctx, m.diskPath); err != nil {
		slog.Warn("disk usage probe failed", "path", m.diskPath, "error", err)
	} else {
		snap.Disk = DiskInfo{
			TotalGB: round1(float64(u.Total) / (1 << 30)),
			UsedGB:  round1(float64(u.Used) / (1 << 30)),
			Percent: round1(u.UsedPercent),
		}
	}

	snap.GPU = m.gpu(ctx)
	return snap
}

func round1(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}
