package main

import (
	"context"
	"fmt"
	"time"

	"fastvlmd/internal/config"
	"fastvlmd/internal/engine"
	"fastvlmd/internal/logging"
	"fastvlmd/internal/manager"
	"fastvlmd/internal/prompt"
	"fastvlmd/internal/sysinfo"
	"fastvlmd/internal/translate"
)

// newManager wires the engine backend, prompt, translator and system probes
// selected by cfg into a Manager. The model is not loaded yet.
func newManager(ctx context.Context, cfg config.Config, log *logging.Logger, defaultPrompt string) (*manager.Manager, error) {
	tpl, err := prompt.Lookup(cfg.Template)
	if err != nil {
		return nil, err
	}
	tpl.UseImStartEnd = cfg.UseImStartEnd

	path := resolvePromptFile(cfg.PromptFile)
	query, err := prompt.LoadOrDefault(path, defaultPrompt)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("prompt file unavailable, using built-in prompt")
	}

	backend, err := engine.FromConfig(cfg, log.Component("engine"))
	if err != nil {
		return nil, err
	}

	var tr translate.Translator
	if cfg.TranslateAPIKey != "" {
		g, err := translate.NewGoogle(ctx, cfg.TranslateAPIKey)
		if err != nil {
			return nil, fmt.Errorf("google translate: %w", err)
		}
		tr = g
	}

	return manager.New(manager.Config{
		Backend:       backend,
		Template:      tpl,
		DefaultPrompt: query,
		ModelPath:     cfg.ModelPath,
		MaxNewTokens:  cfg.MaxNewTokens,
		Temperature:   cfg.Temperature,
		DoSample:      cfg.DoSample,
		MaxImageSize:  cfg.MaxImageSize,
		TempDir:       cfg.TempDir,
		AutoTranslate: cfg.AutoTranslate,
		Translator:    tr,
		MaxQueueDepth: cfg.MaxQueueDepth,
		MaxWait:       time.Duration(cfg.MaxWaitSeconds) * time.Second,
		Sampler:       sysinfo.NewSampler(time.Second),
		GPU:           sysinfo.NewGPUProbe(),
		Logger:        log.Logger,
	}), nil
}
