package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fastvlmd/internal/config"
	"fastvlmd/internal/httpapi"
	"fastvlmd/internal/prompt"
)

const (
	shutdownTimeout = 30 * time.Second
	corsMethods     = "GET,POST,OPTIONS"
)

func newServeCmd(g *globalOpts) *cobra.Command {
	f := &serverFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the model and serve the HTTP API",
		Example: "  fastvlmd serve --backend ollama --ollama-model fastvlm:1.5b\n" +
			"  fastvlmd serve --backend llama-server --model-path ./checkpoints/llava-fastvithd_1.5b_stage3",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(g, nil, func(c *config.Config) { f.apply(cmd.Flags(), c) })
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func runServe(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log, err := newLogger(cfg, true)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr, err := newManager(ctx, cfg, log, prompt.DefaultClothingPrompt)
	if err != nil {
		return err
	}

	httpapi.SetLogger(log.Component("http"))
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetAnalyzeTimeout(time.Duration(cfg.AnalyzeTimeoutSeconds) * time.Second)
	httpapi.SetCORSOptions(len(cfg.CORSOrigins) > 0, cfg.CORSOrigins,
		splitCSV(corsMethods), []string{"Content-Type", "X-Log-Level", "X-Request-Id"})
	// In-flight analyses outlive the signal until the drain below gives up.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Str("addr", cfg.Addr()).Str("backend", cfg.Backend).Str("model", cfg.ModelName()).Msg("fastvlmd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		loadCtx, cancel := egCtx, context.CancelFunc(func() {})
		if cfg.LoadTimeoutSeconds > 0 {
			loadCtx, cancel = context.WithTimeout(egCtx, time.Duration(cfg.LoadTimeoutSeconds)*time.Second)
		}
		defer cancel()
		if err := mgr.LoadModel(loadCtx); err != nil {
			if ctx.Err() != nil {
				// Interrupted while loading; shut down quietly.
				return nil
			}
			return fmt.Errorf("load model: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		snap := mgr.Snapshot()
		log.Info().
			Str("state", string(snap.State)).
			Int("inflight", snap.Inflight).
			Int("queued", snap.Queued).
			Dur("uptime", snap.Uptime).
			Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown error")
		}
		if err := mgr.Close(sctx); err != nil {
			log.Error().Err(err).Msg("model close error")
		}
		cancelBase()
		return nil
	})
	return eg.Wait()
}
