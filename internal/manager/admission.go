package manager

import (
	"context"
	"sync"
	"time"
)

// beginGeneration reserves a queue slot (when the queue is bounded) and then
// the single in-flight slot. Returns a release func to be deferred; calling it
// more than once is safe.
func (m *Manager) beginGeneration(ctx context.Context) (func(), error) {
	noop := func() {}
	if m.draining() {
		return noop, ErrShuttingDown
	}
	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return noop, err
	}

	var timeout <-chan time.Time
	if m.cfg.MaxWait > 0 {
		timer := time.NewTimer(m.cfg.MaxWait)
		defer timer.Stop()
		timeout = timer.C
	}

	if m.queueCh != nil {
		select {
		case m.queueCh <- struct{}{}:
		default:
			return noop, ErrTooBusy("queue_full")
		}
	}
	releaseQueue := func() {
		if m.queueCh != nil {
			<-m.queueCh
		}
	}

	m.waiting.Add(1)
	defer m.waiting.Add(-1)
	select {
	case m.genCh <- struct{}{}:
		// Close may have started while we waited; the backend must not see
		// another generation once draining.
		if m.draining() {
			<-m.genCh
			releaseQueue()
			return noop, ErrShuttingDown
		}
		var once sync.Once
		return func() {
			once.Do(func() {
				<-m.genCh
				releaseQueue()
			})
		}, nil
	case <-m.drainCh:
		releaseQueue()
		return noop, ErrShuttingDown
	case <-ctx.Done():
		releaseQueue()
		return noop, ctx.Err()
	case <-timeout:
		releaseQueue()
		return noop, ErrTooBusy("wait_timeout")
	}
}

func (m *Manager) draining() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateDraining || m.state == StateClosed
}
