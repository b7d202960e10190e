package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"fastvlmd/internal/config"
	"fastvlmd/internal/prompt"
	"fastvlmd/pkg/types"
)

func newDescribeCmd(g *globalOpts) *cobra.Command {
	f := &serverFlags{}
	var (
		noTranslate bool
		query       string
	)
	cmd := &cobra.Command{
		Use:   "describe <image>",
		Short: "Describe the clothing in a local image and exit",
		Example: "  fastvlmd describe photo.jpg\n" +
			"  fastvlmd describe --no-translate --prompt 'What is the person wearing?' photo.png",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(g, nil, func(c *config.Config) {
				f.apply(cmd.Flags(), c)
				// The translation is printed explicitly below.
				c.AutoTranslate = false
			})
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runDescribe(ctx, cfg, args[0], query, !noTranslate, cmd.OutOrStdout())
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().BoolVar(&noTranslate, "no-translate", false, "Print only the English description")
	cmd.Flags().StringVar(&query, "prompt", "", "Prompt to use instead of the prompt file")
	return cmd
}

func runDescribe(ctx context.Context, cfg config.Config, path, query string, translate bool, out io.Writer) error {
	log, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer log.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	mgr, err := newManager(ctx, cfg, log, prompt.DefaultEnglishPrompt)
	if err != nil {
		return err
	}
	if err := mgr.LoadModel(ctx); err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	defer func() {
		if err := mgr.Close(context.Background()); err != nil {
			log.Warn().Err(err).Msg("model close error")
		}
	}()

	res, err := mgr.Analyze(ctx, types.AnalyzeRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		Prompt:      query,
		Translate:   translate,
	})
	if err != nil {
		return err
	}
	printDescription(out, res, translate)
	return nil
}

func printDescription(w io.Writer, res types.AnalyzeResponse, translated bool) {
	rule := strings.Repeat("-", 50)
	fmt.Fprintln(w, "Description (EN):")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, res.Analysis)
	fmt.Fprintln(w, rule)
	if translated {
		fmt.Fprintln(w, "Описание (RU):")
		fmt.Fprintln(w, rule)
		fmt.Fprintln(w, res.Translation)
		fmt.Fprintln(w, rule)
	}
	if res.Garment != nil {
		fmt.Fprintf(w, "Garment: %s (%s)\n", res.Garment.ClassName, res.Garment.ClassNameRu)
	}
	fmt.Fprintf(w, "Device: %s\n", res.Device)
	fmt.Fprintf(w, "Model: %s\n", res.ModelUsed)
	fmt.Fprintf(w, "Generation time: %.2f seconds\n", float64(res.DurationMS)/1000)
}
