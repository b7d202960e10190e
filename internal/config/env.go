package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LookupFunc mirrors os.LookupEnv so tests can inject an environment.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables on cfg.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	e := envReader{lookup: lookup}
	e.setString("FASTVLM_HOST", &cfg.Host)
	e.setInt("FASTVLM_PORT", &cfg.Port)
	e.setString("FASTVLM_BACKEND", &cfg.Backend)
	e.setString("FASTVLM_MODEL_PATH", &cfg.ModelPath)
	e.setString("FASTVLM_OLLAMA_URL", &cfg.OllamaURL)
	e.setString("FASTVLM_OLLAMA_MODEL", &cfg.OllamaModel)
	e.setString("FASTVLM_LLAMA_URL", &cfg.LlamaURL)
	e.setString("FASTVLM_LLAMA_BIN", &cfg.LlamaBin)
	e.setInt("FASTVLM_LLAMA_NGL", &cfg.LlamaNGL)
	e.setInt("FASTVLM_LLAMA_CTX", &cfg.LlamaCtx)
	e.setInt("FASTVLM_LLAMA_THREADS", &cfg.LlamaThreads)
	e.setString("FASTVLM_TEMPLATE", &cfg.Template)
	e.setBool("FASTVLM_USE_IM_START_END", &cfg.UseImStartEnd)
	e.setString("FASTVLM_PROMPT_FILE", &cfg.PromptFile)
	e.setInt("MAX_NEW_TOKENS", &cfg.MaxNewTokens)
	e.setFloat("TEMPERATURE", &cfg.Temperature)
	e.setBool("DO_SAMPLE", &cfg.DoSample)
	e.setInt("MAX_IMAGE_SIZE", &cfg.MaxImageSize)
	e.setString("FASTVLM_LOG_DIR", &cfg.LogDir)
	e.setString("LOG_LEVEL", &cfg.LogLevel)
	e.setInt64("LOG_MAX_BYTES", &cfg.LogMaxBytes)
	e.setInt("LOG_BACKUP_COUNT", &cfg.LogBackupCount)
	e.setString("GOOGLE_TRANSLATE_API_KEY", &cfg.TranslateAPIKey)
	e.setBool("AUTO_TRANSLATE", &cfg.AutoTranslate)
	e.setInt64("FASTVLM_MAX_BODY_BYTES", &cfg.MaxBodyBytes)
	e.setList("FASTVLM_CORS_ORIGINS", &cfg.CORSOrigins)
	e.setInt("FASTVLM_MAX_QUEUE", &cfg.MaxQueueDepth)
	e.setInt("FASTVLM_MAX_WAIT", &cfg.MaxWaitSeconds)
	e.setInt("FASTVLM_LOAD_TIMEOUT", &cfg.LoadTimeoutSeconds)
	e.setInt("FASTVLM_ANALYZE_TIMEOUT", &cfg.AnalyzeTimeoutSeconds)
	e.setString("FASTVLM_TEMP_DIR", &cfg.TempDir)
	return e.err
}

type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(key, v string, err error) {
	e.err = fmt.Errorf("env %s=%q: %w", key, v, err)
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.get(key); ok && v != "" {
		*dst = v
	}
}

func (e *envReader) setInt(key string, dst *int) {
	v, ok := e.get(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) setInt64(key string, dst *int64) {
	v, ok := e.get(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) setFloat(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok || v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = f
}

// setBool treats only a case-insensitive "true" as true; any other value is false.
func (e *envReader) setBool(key string, dst *bool) {
	if v, ok := e.get(key); ok && v != "" {
		*dst = strings.EqualFold(v, "true")
	}
}

func (e *envReader) setList(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok || v == "" {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
