package manager

import (
	"time"

	"fastvlmd/internal/engine"
	"fastvlmd/internal/prompt"
)

// State represents lifecycle state of the manager.
type State string

const (
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateError    State = "error"
	StateDraining State = "draining"
	StateClosed   State = "closed"
)

// Handle is the loaded model. It is published once and never mutated.
type Handle struct {
	Info       engine.Info
	ImageToken string
	Template   prompt.Template
	LoadedAt   time.Time
}

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State    State
	Err      string
	Inflight int
	Queued   int
	Uptime   time.Duration
	// LoadedAt is zero until the model is published.
	LoadedAt time.Time
}
