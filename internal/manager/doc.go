// Package manager owns the loaded model and coordinates analyses. It is
// structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: Config and package defaults.
//   - types.go: State, Handle and Snapshot.
//   - errors.go: error types and helpers (IsModelNotLoaded, IsInvalidImage, IsTooBusy).
//   - load.go: one-time model load through the engine backend.
//   - admission.go: single in-flight generation slot with optional queue limits.
//   - analyze.go: the analysis flow (decode, stage, prompt, generate, clean, translate, classify).
//   - status_report.go: /health, /model, /gpu and /load projections.
//   - sanity.go: preflight checks of external dependencies.
//   - unload.go: drain and release on shutdown.
//
// External packages should use the public methods only (New, LoadModel, Ready,
// Analyze, Health, ModelInfo, GPU, SystemLoad, Close).
package manager
