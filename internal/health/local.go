package health

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"infracopilot/internal/config"
	"infracopilot/internal/types"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// cpuSampleInterval is the blocking sample window for CPU usage
const cpuSampleInterval = 200 * time.Millisecond

// LocalChecker collects local machine telemetry
type LocalChecker struct {
	thresholds config.ThresholdConfig
	logger     *zap.Logger

	// Collectors are injectable so tests run without touching the host
	cpuPercent    func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage     func(ctx context.Context, path string) (*disk.UsageStat, error)
	uptime        func(ctx context.Context) (uint64, error)
}

// NewLocalChecker creates a new local health checker
func NewLocalChecker(thresholds config.ThresholdConfig, logger *zap.Logger) *LocalChecker {
	return &LocalChecker{
		thresholds:    thresholds,
		logger:        logger,
		cpuPercent:    cpu.PercentWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
		diskUsage:     disk.UsageWithContext,
		uptime:        host.UptimeWithContext,
	}
}

// Check collects a local health snapshot. It has no failure path: a collector
// error is logged and its reading reported as zero.
func (c *LocalChecker) Check(ctx context.Context) *types.LocalHealth {
	snapshot := &types.LocalHealth{
		Warnings: []string{},
	}

	if usage, err := c.cpuPercent(ctx, cpuSampleInterval, false); err != nil {
		c.logger.Warn("CPU collection failed", zap.Error(err))
	} else if len(usage) > 0 {
		snapshot.CPUPercent = round2(usage[0])
	}

	if vm, err := c.virtualMemory(ctx); err != nil {
		c.logger.Warn("Memory collection failed", zap.Error(err))
	} else {
		snapshot.MemoryPercent = round2(vm.UsedPercent)
	}

	if du, err := c.diskUsage(ctx, rootPath()); err != nil {
		c.logger.Warn("Disk collection failed", zap.Error(err))
	} else {
		snapshot.DiskPercent = round2(du.UsedPercent)
	}

	if up, err := c.uptime(ctx); err != nil {
		c.logger.Warn("Uptime collection failed", zap.Error(err))
	} else {
		snapshot.UptimeSeconds = int64(up)
	}

	// A reading equal to its threshold does not warn
	if snapshot.CPUPercent > c.thresholds.CPUWarnPercent {
		snapshot.Warnings = append(snapshot.Warnings,
			fmt.Sprintf("LOCAL: High CPU %.1f%% (> %.1f%%)", snapshot.CPUPercent, c.thresholds.CPUWarnPercent))
	}
	if snapshot.MemoryPercent > c.thresholds.MemoryWarnPercent {
		snapshot.Warnings = append(snapshot.Warnings,
			fmt.Sprintf("LOCAL: High Memory %.1f%% (> %.1f%%)", snapshot.MemoryPercent, c.thresholds.MemoryWarnPercent))
	}
	if snapshot.DiskPercent > c.thresholds.DiskWarnPercent {
		snapshot.Warnings = append(snapshot.Warnings,
			fmt.Sprintf("LOCAL: High Disk %.1f%% (> %.1f%%)", snapshot.DiskPercent, c.thresholds.DiskWarnPercent))
	}

	return snapshot
}

// BaseReadings returns live CPU and memory percentages for metrics synthesis
func (c *LocalChecker) BaseReadings(ctx context.Context) (cpuPercent, memPercent float64) {
	if usage, err := c.cpuPercent(ctx, cpuSampleInterval, false); err == nil && len(usage) > 0 {
		cpuPercent = round2(usage[0])
	}
	if vm, err := c.virtualMemory(ctx); err == nil {
		memPercent = round2(vm.UsedPercent)
	}
	return cpuPercent, memPercent
}

// rootPath returns the disk usage root for the running platform
func rootPath() string {
	if runtime.GOOS == "windows" {
		return `C:\`
	}
	return "/"
}

// round2 rounds to two decimal places
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
