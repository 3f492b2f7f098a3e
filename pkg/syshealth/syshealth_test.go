package syshealth

import (
	"context"
	"testing"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/stretchr/testify/require"
)

func TestSample_FallsBackToZeroOnProcessLookupFailure(t *testing.T) {
	s := &Sampler{getProcess: func() (*process.Process, error) {
		return nil, context.DeadlineExceeded
	}}

	snap := s.Sample(context.Background())
	require.Equal(t, Snapshot{}, snap)
}

func TestNewSampler_ReadsCurrentProcess(t *testing.T) {
	s := NewSampler()
	snap := s.Sample(context.Background())
	require.GreaterOrEqual(t, snap.NumGoroutine, 0)
}
