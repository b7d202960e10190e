package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"

	"fastvlmd/internal/common/fsutil"
	"fastvlmd/internal/registry"
)

// Backend names.
const (
	BackendOllama      = "ollama"
	BackendLlamaServer = "llama-server"
)

// Config holds runtime parameters for the service.
type Config struct {
	Host string `json:"host" yaml:"host" toml:"host"`
	Port int    `json:"port" yaml:"port" toml:"port"`

	// Backend selects the inference engine: "ollama" or "llama-server".
	Backend string `json:"backend" yaml:"backend" toml:"backend"`
	// ModelPath is the checkpoint directory (llama-server) or an informational path.
	ModelPath   string `json:"model_path" yaml:"model_path" toml:"model_path"`
	OllamaURL   string `json:"ollama_url" yaml:"ollama_url" toml:"ollama_url"`
	OllamaModel string `json:"ollama_model" yaml:"ollama_model" toml:"ollama_model"`
	// LlamaURL attaches to an already running llama-server instead of spawning one.
	LlamaURL     string `json:"llama_url" yaml:"llama_url" toml:"llama_url"`
	LlamaBin     string `json:"llama_bin" yaml:"llama_bin" toml:"llama_bin"`
	LlamaNGL     int    `json:"llama_ngl" yaml:"llama_ngl" toml:"llama_ngl"`
	LlamaCtx     int    `json:"llama_ctx" yaml:"llama_ctx" toml:"llama_ctx"`
	LlamaThreads int    `json:"llama_threads" yaml:"llama_threads" toml:"llama_threads"`

	Template      string `json:"template" yaml:"template" toml:"template"`
	UseImStartEnd bool   `json:"use_im_start_end" yaml:"use_im_start_end" toml:"use_im_start_end"`
	PromptFile    string `json:"prompt_file" yaml:"prompt_file" toml:"prompt_file"`

	MaxNewTokens int     `json:"max_new_tokens" yaml:"max_new_tokens" toml:"max_new_tokens"`
	Temperature  float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	DoSample     bool    `json:"do_sample" yaml:"do_sample" toml:"do_sample"`
	MaxImageSize int     `json:"max_image_size" yaml:"max_image_size" toml:"max_image_size"`

	LogDir         string `json:"log_dir" yaml:"log_dir" toml:"log_dir"`
	LogLevel       string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogMaxBytes    int64  `json:"log_max_bytes" yaml:"log_max_bytes" toml:"log_max_bytes"`
	LogBackupCount int    `json:"log_backup_count" yaml:"log_backup_count" toml:"log_backup_count"`

	TranslateAPIKey string `json:"translate_api_key" yaml:"translate_api_key" toml:"translate_api_key"`
	AutoTranslate   bool   `json:"auto_translate" yaml:"auto_translate" toml:"auto_translate"`

	MaxBodyBytes  int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSOrigins   []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	MaxQueueDepth int      `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	// MaxWaitSeconds bounds the wait for the generation slot; 0 waits until the client gives up.
	MaxWaitSeconds     int    `json:"max_wait_seconds" yaml:"max_wait_seconds" toml:"max_wait_seconds"`
	LoadTimeoutSeconds int    `json:"load_timeout_seconds" yaml:"load_timeout_seconds" toml:"load_timeout_seconds"`
	TempDir            string `json:"temp_dir" yaml:"temp_dir" toml:"temp_dir"`
	// AnalyzeTimeoutSeconds bounds one /analyze request including the slot wait; 0 disables.
	AnalyzeTimeoutSeconds int `json:"analyze_timeout_seconds" yaml:"analyze_timeout_seconds" toml:"analyze_timeout_seconds"`
}

// Default returns the configuration the service runs with when nothing is set.
func Default() Config {
	return Config{
		Host:               "127.0.0.1",
		Port:               3001,
		Backend:            BackendOllama,
		ModelPath:          filepath.Join("..", "ml-fastvlm", "checkpoints", "llava-fastvithd_1.5b_stage3"),
		OllamaURL:          "http://127.0.0.1:11434",
		OllamaModel:        "fastvlm:1.5b",
		LlamaBin:           "llama-server",
		Template:           "qwen_2",
		PromptFile:         "prompt.md",
		MaxNewTokens:       256,
		Temperature:        0.2,
		DoSample:           true,
		MaxImageSize:       2048,
		LogDir:             "logs",
		LogLevel:           "INFO",
		LogMaxBytes:        10 << 20,
		LogBackupCount:     5,
		MaxBodyBytes:       32 << 20,
		LoadTimeoutSeconds: 600,
	}
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LogFile is the rotating log file path.
func (c Config) LogFile() string {
	return filepath.Join(c.LogDir, "fastvlm.log")
}

// ModelName is what the loaded model is called in logs and responses.
func (c Config) ModelName() string {
	if c.Backend == BackendOllama {
		return c.OllamaModel
	}
	return filepath.Base(filepath.Clean(c.ModelPath))
}

// Spawns reports whether the llama-server backend must start its own process.
func (c Config) Spawns() bool {
	return c.Backend == BackendLlamaServer && strings.TrimSpace(c.LlamaURL) == ""
}

// Validate checks values that would make startup fail later in a less obvious way.
func (c *Config) Validate() error {
	if c.Port < 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	switch c.Backend {
	case BackendOllama:
		if strings.TrimSpace(c.OllamaModel) == "" {
			return fmt.Errorf("ollama backend requires a model name")
		}
	case BackendLlamaServer:
		if c.Spawns() {
			p, err := fsutil.ExpandHome(c.ModelPath)
			if err != nil {
				return err
			}
			if !fsutil.PathExists(p) {
				return fmt.Errorf("model not found: %s", p)
			}
			if _, err := registry.ScanCheckpoint(p); err != nil {
				return err
			}
			c.ModelPath = p
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.MaxNewTokens <= 0 {
		return fmt.Errorf("max_new_tokens must be positive, got %d", c.MaxNewTokens)
	}
	if c.Temperature < 0 {
		return fmt.Errorf("temperature must not be negative, got %g", c.Temperature)
	}
	if c.AnalyzeTimeoutSeconds < 0 {
		return fmt.Errorf("analyze_timeout_seconds must not be negative, got %d", c.AnalyzeTimeoutSeconds)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
