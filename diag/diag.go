// Package diag samples process resource usage for an owner process
// hosting many session vectors. Optional diagnostics; used by cmd/rtipcd.
package diag

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Sample is one point-in-time resource snapshot.
type Sample struct {
	RSSBytes        uint64
	SystemUsedBytes uint64
}

// Sampler wraps a gopsutil process handle for the current process. A
// sample always includes system-wide memory even when per-process stats
// are unavailable.
type Sampler struct {
	proc *process.Process
}

// NewSampler opens a gopsutil handle for the current process.
func NewSampler() (*Sampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("diag: process.NewProcess: %w", err)
	}
	return &Sampler{proc: proc}, nil
}

// Sample takes one resource snapshot.
func (s *Sampler) Sample() (Sample, error) {
	var out Sample

	if s.proc != nil {
		if mi, err := s.proc.MemoryInfo(); err == nil {
			out.RSSBytes = mi.RSS
		}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		out.SystemUsedBytes = vm.Used
	}

	return out, nil
}
