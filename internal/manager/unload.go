package manager

import (
	"context"
	"time"
)

// Close stops admitting work, rejects queued analyses, waits up to
// DrainTimeout (or ctx) for the in-flight generation and releases the model
// in the engine.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateClosed || m.state == StateDraining {
		m.mu.Unlock()
		return nil
	}
	m.state = StateDraining
	close(m.drainCh)
	m.mu.Unlock()
	m.log.Info().Msg("draining")

	timer := time.NewTimer(m.cfg.DrainTimeout)
	defer timer.Stop()
	select {
	case m.genCh <- struct{}{}:
		// Holding the slot keeps late waiters out until the backend is gone.
		defer func() { <-m.genCh }()
	case <-timer.C:
		m.log.Warn().Dur("timeout", m.cfg.DrainTimeout).Msg("drain timeout, releasing model with generation in flight")
	case <-ctx.Done():
		m.log.Warn().Err(ctx.Err()).Msg("drain interrupted")
	}

	err := m.backend.Close(ctx)
	m.setState(StateClosed, "")
	if err != nil {
		m.log.Error().Err(err).Msg("release model")
		return err
	}
	m.log.Info().Msg("model released")
	return nil
}
