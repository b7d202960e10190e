package manager

import (
	"context"
	"errors"
	"math"
	"time"

	"fastvlmd/internal/engine"
	"fastvlmd/pkg/types"
)

// Wire messages for the unloaded and GPU-less cases.
const (
	msgModelNotLoaded = "Модель не загружена"
	msgGPUUnavailable = "GPU не доступен"
)

// Snapshot returns a read-only view of the manager state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	s := Snapshot{State: m.state, Err: m.err, Inflight: len(m.genCh), Queued: int(m.waiting.Load()), Uptime: m.Uptime()}
	m.mu.RUnlock()
	if h := m.handle.Load(); h != nil {
		s.LoadedAt = h.LoadedAt
	}
	return s
}

// Health builds the /health payload. It never fails. Before the model is
// published the device is the one probed when loading started.
func (m *Manager) Health() types.HealthResponse {
	resp := types.HealthResponse{
		Status:    "healthy",
		Timestamp: unixSeconds(time.Now()),
		Device:    engine.DeviceCPU,
	}
	m.mu.RLock()
	if m.device != "" {
		resp.Device = m.device
	}
	m.mu.RUnlock()
	if h := m.handle.Load(); h != nil {
		resp.ModelLoaded = true
		resp.Device = h.Info.Device
		resp.TorchVersion = h.Info.Version
	}
	return resp
}

// ModelInfo builds the /model payload.
func (m *Manager) ModelInfo(ctx context.Context) (types.ModelResponse, error) {
	h := m.handle.Load()
	if h == nil {
		return types.ModelResponse{Loaded: false, Message: msgModelNotLoaded}, nil
	}
	return types.ModelResponse{
		Loaded:        true,
		ModelName:     h.Info.Name,
		Device:        h.Info.Device,
		ContextLength: h.Info.ContextLength,
		TorchDtype:    h.Info.Dtype,
		ModelPath:     h.Info.ModelPath,
		Backend:       h.Info.Backend,
	}, nil
}

// GPU builds the /gpu payload. Allocated memory comes from the engine when it
// reports it, else it equals the memory in use on the device.
func (m *Manager) GPU(ctx context.Context) (types.GPUResponse, error) {
	if m.cfg.GPU == nil {
		return types.GPUResponse{GPUAvailable: false, Message: msgGPUUnavailable, Device: engine.DeviceCPU}, nil
	}
	g, err := m.cfg.GPU.Probe(ctx)
	if err != nil {
		return types.GPUResponse{}, err
	}
	if !g.Available {
		return types.GPUResponse{GPUAvailable: false, Message: msgGPUUnavailable, Device: engine.DeviceCPU}, nil
	}
	allocated := g.UsedMB
	if m.Ready() {
		if u, err := m.backend.Usage(ctx); err == nil && u.Known && u.VRAMBytes > 0 {
			allocated = float64(u.VRAMBytes) / (1 << 20)
		} else if err != nil {
			m.log.Debug().Err(err).Msg("engine usage unavailable")
		}
	}
	return types.GPUResponse{
		GPUAvailable:      true,
		GPUName:           g.Name,
		MemoryAllocatedMB: round2(allocated),
		MemoryReservedMB:  round2(g.UsedMB),
		MemoryTotalMB:     round2(g.TotalMB),
		Device:            engine.DeviceCUDA,
	}, nil
}

// SystemLoad builds the /load payload.
func (m *Manager) SystemLoad(ctx context.Context) (types.LoadResponse, error) {
	if m.cfg.Sampler == nil {
		return types.LoadResponse{}, errors.New("load sampler not configured")
	}
	l, err := m.cfg.Sampler.Sample(ctx)
	if err != nil {
		return types.LoadResponse{}, err
	}
	return types.LoadResponse{
		CPUPercent:    l.CPUPercent,
		MemoryPercent: l.MemoryPercent,
		MemoryUsedGB:  l.MemoryUsedGB,
		MemoryTotalGB: l.MemoryTotalGB,
		Timestamp:     unixSeconds(time.Now()),
	}, nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
