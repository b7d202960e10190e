package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"fastvlmd/internal/config"
	"fastvlmd/internal/logging"
	"fastvlmd/internal/prompt"
)

// globalOpts are the persistent flags shared by every subcommand.
type globalOpts struct {
	configFile string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalOpts{}
	root := &cobra.Command{
		Use:           "fastvlmd",
		Short:         "FastVLM clothing description service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configFile, "config", "", "Config file (.yaml, .yml, .json, .toml)")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: DEBUG|INFO|WARNING|ERROR (overrides LOG_LEVEL)")

	root.AddCommand(newServeCmd(g), newDescribeCmd(g), newClientCmd(g))
	return root
}

// serverFlags are the model and server settings settable on the command line.
type serverFlags struct {
	host           string
	port           int
	backend        string
	modelPath      string
	ollamaURL      string
	ollamaModel    string
	llamaURL       string
	llamaBin       string
	llamaNGL       int
	promptFile     string
	template       string
	maxNewTokens   int
	temperature    float64
	maxImageSize   int
	corsOrigins    string
	autoTranslate  bool
	analyzeTimeout int
}

func (f *serverFlags) register(fs *pflag.FlagSet) {
	d := config.Default()
	fs.StringVar(&f.host, "host", d.Host, "HTTP listen host")
	fs.IntVar(&f.port, "port", d.Port, "HTTP listen port")
	fs.StringVar(&f.backend, "backend", d.Backend, "Inference backend: ollama|llama-server")
	fs.StringVar(&f.modelPath, "model-path", d.ModelPath, "Checkpoint directory with the GGUF model and mmproj projector")
	fs.StringVar(&f.ollamaURL, "ollama-url", d.OllamaURL, "Ollama server URL")
	fs.StringVar(&f.ollamaModel, "ollama-model", d.OllamaModel, "Ollama model name")
	fs.StringVar(&f.llamaURL, "llama-url", "", "Attach to a running llama-server instead of spawning one")
	fs.StringVar(&f.llamaBin, "llama-bin", d.LlamaBin, "llama-server binary")
	fs.IntVar(&f.llamaNGL, "llama-ngl", d.LlamaNGL, "Layers to offload to the GPU (llama-server)")
	fs.StringVar(&f.promptFile, "prompt-file", d.PromptFile, "Default prompt file (first fenced block is used)")
	fs.StringVar(&f.template, "template", d.Template, "Conversation template: "+strings.Join(prompt.Names(), "|"))
	fs.IntVar(&f.maxNewTokens, "max-new-tokens", d.MaxNewTokens, "Maximum generated tokens per analysis")
	fs.Float64Var(&f.temperature, "temperature", d.Temperature, "Sampling temperature")
	fs.IntVar(&f.maxImageSize, "max-image-size", d.MaxImageSize, "Longest image side in pixels before resizing")
	fs.StringVar(&f.corsOrigins, "cors-origins", "", "Comma-separated CORS origins (empty disables CORS)")
	fs.BoolVar(&f.autoTranslate, "auto-translate", d.AutoTranslate, "Translate every analysis")
	fs.IntVar(&f.analyzeTimeout, "analyze-timeout", d.AnalyzeTimeoutSeconds, "Seconds one /analyze request may take, queue wait included (0 disables)")
}

// apply copies flags the user set explicitly, so files and the environment
// keep their values otherwise.
func (f *serverFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
		}
	}
	set("host", func() { cfg.Host = f.host })
	set("port", func() { cfg.Port = f.port })
	set("backend", func() { cfg.Backend = f.backend })
	set("model-path", func() { cfg.ModelPath = f.modelPath })
	set("ollama-url", func() { cfg.OllamaURL = f.ollamaURL })
	set("ollama-model", func() { cfg.OllamaModel = f.ollamaModel })
	set("llama-url", func() { cfg.LlamaURL = f.llamaURL })
	set("llama-bin", func() { cfg.LlamaBin = f.llamaBin })
	set("llama-ngl", func() { cfg.LlamaNGL = f.llamaNGL })
	set("prompt-file", func() { cfg.PromptFile = f.promptFile })
	set("template", func() { cfg.Template = f.template })
	set("max-new-tokens", func() { cfg.MaxNewTokens = f.maxNewTokens })
	set("temperature", func() { cfg.Temperature = f.temperature })
	set("max-image-size", func() { cfg.MaxImageSize = f.maxImageSize })
	set("cors-origins", func() { cfg.CORSOrigins = splitCSV(f.corsOrigins) })
	set("auto-translate", func() { cfg.AutoTranslate = f.autoTranslate })
	set("analyze-timeout", func() { cfg.AnalyzeTimeoutSeconds = f.analyzeTimeout })
}

// resolveConfig layers defaults, the config file, the environment (after the
// dotenv file) and explicitly set flags, then validates the result.
func resolveConfig(g *globalOpts, lookup config.LookupFunc, overlay func(*config.Config)) (config.Config, error) {
	if lookup == nil {
		if _, err := config.LoadEnvFile(g.envFile); err != nil {
			return config.Config{}, fmt.Errorf("env file: %w", err)
		}
	}
	cfg := config.Default()
	if g.configFile != "" {
		c, err := config.Load(g.configFile)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		cfg = c
	}
	if err := config.ApplyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if overlay != nil {
		overlay(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newLogger builds the process logger for cfg. file=false keeps one-shot
// commands off the service log.
func newLogger(cfg config.Config, file bool) (*logging.Logger, error) {
	lvl, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := logging.Options{
		MaxBytes:   cfg.LogMaxBytes,
		MaxBackups: cfg.LogBackupCount,
		Level:      lvl,
	}
	if file {
		opts.File = cfg.LogFile()
	}
	return logging.New(opts)
}

// resolvePromptFile looks for a relative prompt file in the working directory
// first and then next to the executable.
func resolvePromptFile(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if _, err := os.Stat(p); err == nil {
		return p
	}
	exe, err := os.Executable()
	if err != nil {
		return p
	}
	return filepath.Join(filepath.Dir(exe), p)
}

// splitCSV splits a comma-separated list and trims spaces. Empty items are dropped.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
