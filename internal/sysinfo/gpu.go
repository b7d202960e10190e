package sysinfo

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// GPU describes the first visible NVIDIA device.
type GPU struct {
	Available bool
	Name      string
	TotalMB   float64
	UsedMB    float64
}

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// GPUProbe queries nvidia-smi.
type GPUProbe struct {
	Bin     string
	Timeout time.Duration
	Run     Runner
}

// NewGPUProbe returns a probe running nvidia-smi from PATH.
func NewGPUProbe() *GPUProbe {
	return &GPUProbe{Bin: "nvidia-smi", Timeout: 5 * time.Second, Run: execRunner}
}

var gpuQuery = []string{"--query-gpu=name,memory.total,memory.used", "--format=csv,noheader,nounits"}

// Probe reports Available=false when nvidia-smi is missing or cannot reach a
// driver. Unparseable output is an error.
func (p *GPUProbe) Probe(ctx context.Context) (GPU, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	run := p.Run
	if run == nil {
		run = execRunner
	}
	out, err := run(ctx, p.Bin, gpuQuery...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.Is(err, exec.ErrNotFound) || errors.As(err, &exitErr) {
			return GPU{}, nil
		}
		return GPU{}, fmt.Errorf("nvidia-smi: %w", err)
	}
	return parseGPU(string(out))
}

// parseGPU reads the first line of "name, total, used" CSV.
func parseGPU(out string) (GPU, error) {
	line := strings.TrimSpace(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if line == "" {
		return GPU{}, nil
	}
	fields := strings.Split(line, ",")
	if len(fields) != 3 {
		return GPU{}, fmt.Errorf("nvidia-smi: unexpected output %q", line)
	}
	total, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return GPU{}, fmt.Errorf("nvidia-smi: memory.total: %w", err)
	}
	used, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return GPU{}, fmt.Errorf("nvidia-smi: memory.used: %w", err)
	}
	return GPU{Available: true, Name: strings.TrimSpace(fields[0]), TotalMB: total, UsedMB: used}, nil
}
