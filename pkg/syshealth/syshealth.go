// Package syshealth samples this process's own resource usage once per
// epoch, so a very long simulation run can flag memory growth or sustained
// CPU pressure rather than silently degrading. Trimmed from the teacher's
// pkg/syshealth (a full health-scoring/autoscaling monitor covering system
// load, DB pool utilization, and worker concurrency) down to the one
// measurement worldforge's epoch stats actually need: this process's RSS
// and CPU time, mirroring the teacher's use of gopsutil without the
// health-score/autoscale machinery built around it.
package syshealth

import (
	"context"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/fx"
)

// Module provides a Sampler as an fx dependency.
var Module = fx.Module("syshealth",
	fx.Provide(NewSampler),
)

// Snapshot is one resource-usage reading, folded into
// domain/statistics.EpochStats.
type Snapshot struct {
	RSSBytes    uint64
	CPUPercent  float64
	NumGoroutine int
}

// Sampler reads process resource usage. The gopsutil call is behind a
// function field, same injectable-for-tests shape as the teacher's
// monitor (getLoadAvg/getCPUTimes/getMemStats func fields).
type Sampler struct {
	getProcess func() (*process.Process, error)
}

// NewSampler builds a Sampler bound to the current OS process.
func NewSampler() *Sampler {
	return &Sampler{
		getProcess: func() (*process.Process, error) {
			return process.NewProcess(int32(os.Getpid()))
		},
	}
}

// Sample reads the current process's RSS and CPU percentage. A gopsutil
// failure (unsupported platform, permission denied) yields a zero Snapshot
// rather than an error, since resource sampling is diagnostic, never load
// bearing for the simulation itself.
func (s *Sampler) Sample(ctx context.Context) Snapshot {
	proc, err := s.getProcess()
	if err != nil {
		return Snapshot{}
	}

	snap := Snapshot{NumGoroutine: runtime.NumGoroutine()}
	if mem, err := proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		snap.RSSBytes = mem.RSS
	}
	if pct, err := proc.CPUPercentWithContext(ctx); err == nil {
		snap.CPUPercent = pct
	}
	return snap
}
