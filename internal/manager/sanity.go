package manager

// preflighter is implemented by backends that depend on external binaries.
type preflighter interface {
	Preflight() error
}

// SanityReport describes runtime checks for external dependencies.
type SanityReport struct {
	Backend string `json:"backend"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// Sanity validates that required external dependencies are available.
// It does not mutate state and is safe to call at any time.
func (m *Manager) Sanity() SanityReport {
	r := SanityReport{Backend: m.backend.Name(), OK: true}
	if err := m.SanityCheck(); err != nil {
		r.OK = false
		r.Error = err.Error()
	}
	return r
}

// SanityCheck is Sanity as an error.
func (m *Manager) SanityCheck() error {
	if p, ok := m.backend.(preflighter); ok {
		return p.Preflight()
	}
	return nil
}
