// Package sysinfo samples host CPU, memory and GPU counters.
package sysinfo

import (
	"context"
	"math"
	"time"

	sigar "github.com/elastic/gosigar"
)

const gib = 1 << 30

// Load is a host utilisation sample.
type Load struct {
	CPUPercent    float64
	MemoryPercent float64
	MemoryUsedGB  float64
	MemoryTotalGB float64
}

// Sampler reads CPU and memory counters.
type Sampler struct {
	// Interval between the two CPU readings. Default 1s.
	Interval time.Duration

	cpu func() (sigar.Cpu, error)
	mem func() (sigar.Mem, error)
}

// NewSampler returns a sampler over the live host counters.
func NewSampler(interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Sampler{
		Interval: interval,
		cpu: func() (sigar.Cpu, error) {
			var c sigar.Cpu
			err := c.Get()
			return c, err
		},
		mem: func() (sigar.Mem, error) {
			var m sigar.Mem
			err := m.Get()
			return m, err
		},
	}
}

// Sample blocks for Interval to measure CPU utilisation.
func (s *Sampler) Sample(ctx context.Context) (Load, error) {
	before, err := s.cpu()
	if err != nil {
		return Load{}, err
	}
	t := time.NewTimer(s.Interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return Load{}, ctx.Err()
	case <-t.C:
	}
	after, err := s.cpu()
	if err != nil {
		return Load{}, err
	}
	mem, err := s.mem()
	if err != nil {
		return Load{}, err
	}
	return Load{
		CPUPercent:    cpuPercent(before, after),
		MemoryPercent: memPercent(mem),
		MemoryUsedGB:  round(float64(mem.ActualUsed)/gib, 2),
		MemoryTotalGB: round(float64(mem.Total)/gib, 2),
	}, nil
}

func cpuPercent(before, after sigar.Cpu) float64 {
	d := after.Delta(before)
	total := d.Total()
	if total == 0 {
		return 0
	}
	busy := total - d.Idle - d.Wait
	return round(float64(busy)/float64(total)*100, 1)
}

// memPercent counts page cache and buffers as available.
func memPercent(m sigar.Mem) float64 {
	if m.Total == 0 {
		return 0
	}
	return round(float64(m.ActualUsed)/float64(m.Total)*100, 1)
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
