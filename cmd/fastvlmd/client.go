package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fastvlmd/internal/client"
	"fastvlmd/internal/config"
	"fastvlmd/internal/logging"
)

func newClientCmd(g *globalOpts) *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Smoke-test a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("client requires a subcommand: health|analyze")
		},
	}
	cmd.PersistentFlags().StringVar(&server, "server", client.DefaultBaseURL, "Server base URL")

	newClient := func(cmd *cobra.Command) (*client.Client, *logging.Logger, error) {
		lvl, err := config.ParseLevel(g.logLevel)
		if err != nil {
			return nil, nil, err
		}
		log, err := logging.New(logging.Options{Level: lvl, Console: cmd.ErrOrStderr()})
		if err != nil {
			return nil, nil, err
		}
		return client.New(server, log.Component("client")), log, nil
	}

	health := &cobra.Command{
		Use:   "health",
		Short: "Check GET /health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, log, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer log.Close()
			h, err := c.Health(cmdContext(cmd))
			if err != nil {
				return fmt.Errorf("server unavailable: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status=%s model_loaded=%t device=%s engine=%s\n",
				h.Status, h.ModelLoaded, h.Device, h.TorchVersion)
			return nil
		},
	}

	var (
		query     string
		translate bool
	)
	analyze := &cobra.Command{
		Use:   "analyze [images...]",
		Short: "POST images to /analyze (defaults to images in the working directory)",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, log, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer log.Close()
			ctx := cmdContext(cmd)
			if _, err := c.Health(ctx); err != nil {
				return fmt.Errorf("server unavailable, make sure it is running: %w", err)
			}
			images := args
			if len(images) == 0 {
				if images, err = client.FindTestImages("."); err != nil {
					return err
				}
				if len(images) == 0 {
					return fmt.Errorf("no test images found (%s)", strings.Join(client.ImageExtensions, ", "))
				}
			}
			failed := 0
			for _, img := range images {
				res, err := c.AnalyzeFile(ctx, img, query, translate)
				if err != nil {
					log.Error().Err(err).Str("image", filepath.Base(img)).Msg("analysis failed")
					failed++
					continue
				}
				printClientResult(cmd.OutOrStdout(), img, res)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d analyses failed", failed, len(images))
			}
			return nil
		},
	}
	analyze.Flags().StringVar(&query, "prompt", "", "Prompt (server default when empty)")
	analyze.Flags().BoolVar(&translate, "translate", false, "Ask the server for a Russian translation")

	cmd.AddCommand(health, analyze)
	return cmd
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printClientResult(w io.Writer, path string, res client.Result) {
	rule := strings.Repeat("-", 50)
	fmt.Fprintf(w, "\n%s\n", filepath.Base(path))
	fmt.Fprintln(w, "Full Analysis:")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, res.Analysis)
	fmt.Fprintln(w, rule)
	if res.Translation != "" {
		fmt.Fprintln(w, res.Translation)
		fmt.Fprintln(w, rule)
	}
	if res.Device != "" {
		fmt.Fprintf(w, "Device: %s\n", res.Device)
	}
	if res.ModelUsed != "" {
		fmt.Fprintf(w, "Model: %s\n", res.ModelUsed)
	}
	fmt.Fprintf(w, "Execution time: %.2f seconds\n", res.Elapsed.Round(10*time.Millisecond).Seconds())
}
