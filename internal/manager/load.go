package manager

import (
	"context"
	"time"

	"fastvlmd/internal/engine"
	"fastvlmd/internal/translate"
)

// LoadModel materializes the model through the backend exactly once. Later
// calls return the first result.
func (m *Manager) LoadModel(ctx context.Context) error {
	m.loadOnce.Do(func() {
		m.loadErr = m.load(ctx)
	})
	return m.loadErr
}

func (m *Manager) load(ctx context.Context) error {
	m.setState(StateLoading, "")
	if err := m.SanityCheck(); err != nil {
		m.setState(StateError, err.Error())
		return err
	}
	device := m.probeDevice(ctx)
	m.mu.Lock()
	m.device = device
	m.mu.Unlock()

	start := time.Now()
	m.log.Info().Str("backend", m.backend.Name()).Str("device", device).Msg("loading model")
	info, err := m.backend.Load(ctx)
	if err != nil {
		m.setState(StateError, err.Error())
		m.log.Error().Err(err).Msg("model load failed")
		return err
	}
	if info.Device == "" {
		info.Device = device
	}
	if info.ModelPath == "" {
		info.ModelPath = m.cfg.ModelPath
	}
	if info.Backend == "" {
		info.Backend = m.backend.Name()
	}
	if m.translator == nil {
		tmpl := m.cfg.Template
		m.translator = translate.NewEngine(m.backend, tmpl.BuildTextPrompt, m.cfg.MaxNewTokens)
		m.engineTranslate = true
	}
	h := &Handle{
		Info:       info,
		ImageToken: m.backend.ImageToken(),
		Template:   m.cfg.Template,
		LoadedAt:   time.Now(),
	}
	m.handle.Store(h)
	m.setState(StateReady, "")
	m.log.Info().
		Str("model", info.Name).
		Str("device", info.Device).
		Int("context_length", info.ContextLength).
		Str("dtype", info.Dtype).
		Str("engine_version", info.Version).
		Dur("took", time.Since(start)).
		Msg("model loaded")
	return nil
}

// probeDevice falls back to the host GPU when the engine does not say where
// the model runs.
func (m *Manager) probeDevice(ctx context.Context) string {
	if m.cfg.GPU == nil {
		return engine.DeviceCPU
	}
	g, err := m.cfg.GPU.Probe(ctx)
	if err != nil || !g.Available {
		return engine.DeviceCPU
	}
	return engine.DeviceCUDA
}
