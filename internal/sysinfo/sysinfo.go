// Package sysinfo reports host resource usage for the status command.
package sysinfo

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is a point-in-time view of host resources.
type Snapshot struct {
	CPUPercent float64
	RAMUsedMB  uint64
	RAMTotalMB uint64
	RAMPercent float64
	Uptime     time.Duration
	Platform   string
}

// Collect samples CPU and memory usage. startTime is the process start
// time; the CPU sample blocks for one second, matching the historical
// behavior of the status command.
func Collect(ctx context.Context, startTime time.Time) (Snapshot, error) {
	percents, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		return Snapshot{}, fmt.Errorf("sample cpu: %w", err)
	}
	var cpuPercent float64
	if len(percents) > 0 {
		cpuPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read memory stats: %w", err)
	}

	return Snapshot{
		CPUPercent: cpuPercent,
		RAMUsedMB:  vm.Used / (1024 * 1024),
		RAMTotalMB: vm.Total / (1024 * 1024),
		RAMPercent: vm.UsedPercent,
		Uptime:     time.Since(startTime).Truncate(time.Second),
		Platform:   runtime.GOOS + " " + runtime.GOARCH,
	}, nil
}

// Format renders the snapshot for chat output.
func (s Snapshot) Format() string {
	return fmt.Sprintf(
		"📊 **System Resource Info**\n🧠 CPU Usage: %.1f%%\n💾 RAM Usage: %dMB / %dMB (%.1f%%)\n⏱️ Uptime: %s\n%s",
		s.CPUPercent, s.RAMUsedMB, s.RAMTotalMB, s.RAMPercent, s.Uptime, s.Platform)
}
