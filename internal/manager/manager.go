package manager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"fastvlmd/internal/engine"
	"fastvlmd/internal/prompt"
	"fastvlmd/internal/translate"
)

type Manager struct {
	cfg     Config
	backend engine.Backend
	log     zerolog.Logger

	handle atomic.Pointer[Handle]

	mu    sync.RWMutex
	state State
	err   string
	// device is probed when loading starts, before the engine reports one.
	device string

	loadOnce sync.Once
	loadErr  error

	// genCh is the single in-flight generation slot; queueCh counts waiters
	// and is nil when the queue is unbounded.
	genCh   chan struct{}
	queueCh chan struct{}
	waiting atomic.Int32
	// drainCh is closed when Close starts; queued analyses give up on it.
	drainCh chan struct{}

	translator translate.Translator
	// engineTranslate is set when translation runs on the generation slot.
	engineTranslate bool

	startTime time.Time
}

// New constructs a Manager. The model is not loaded until LoadModel.
func New(cfg Config) *Manager {
	if cfg.MaxNewTokens <= 0 {
		cfg.MaxNewTokens = defaultMaxNewTokens
	}
	if cfg.MaxImageSize <= 0 {
		cfg.MaxImageSize = defaultMaxImageSize
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if cfg.Template.Name == "" {
		cfg.Template = prompt.Default()
	}
	m := &Manager{
		cfg:        cfg,
		backend:    cfg.Backend,
		log:        cfg.Logger.With().Str("component", "manager").Logger(),
		state:      StateLoading,
		genCh:      make(chan struct{}, 1),
		drainCh:    make(chan struct{}),
		translator: cfg.Translator,
		startTime:  time.Now(),
	}
	if cfg.MaxQueueDepth > 0 {
		m.queueCh = make(chan struct{}, cfg.MaxQueueDepth)
	}
	return m
}

// Ready reports whether the model handle is published.
func (m *Manager) Ready() bool { return m.handle.Load() != nil }

// Uptime is the time since New.
func (m *Manager) Uptime() time.Duration { return time.Since(m.startTime) }

func (m *Manager) setState(s State, err string) {
	m.mu.Lock()
	m.state = s
	m.err = err
	m.mu.Unlock()
}

// temperature maps do_sample=false to greedy decoding.
func (m *Manager) temperature() float64 {
	if !m.cfg.DoSample {
		return 0
	}
	return m.cfg.Temperature
}
