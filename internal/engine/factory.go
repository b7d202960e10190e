package engine

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fastvlmd/internal/config"
)

// FromConfig builds the backend selected by cfg.Backend.
func FromConfig(cfg config.Config, log zerolog.Logger) (Backend, error) {
	switch cfg.Backend {
	case config.BackendOllama:
		return NewOllama(OllamaOptions{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaModel,
			Logger:  log.With().Str("backend", "ollama").Logger(),
		})
	case config.BackendLlamaServer:
		ready := time.Duration(cfg.LoadTimeoutSeconds) * time.Second
		return NewLlamaServer(LlamaOptions{
			URL:          cfg.LlamaURL,
			Checkpoint:   cfg.ModelPath,
			Bin:          cfg.LlamaBin,
			CtxSize:      cfg.LlamaCtx,
			NGL:          cfg.LlamaNGL,
			Threads:      cfg.LlamaThreads,
			ReadyTimeout: ready,
			Logger:       log.With().Str("backend", "llama-server").Logger(),
		}), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
