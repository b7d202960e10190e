package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fastvlmd/internal/registry"
)

// LlamaMediaMarker is the default multimodal marker of llama-server.
const LlamaMediaMarker = "<__media__>"

// LlamaOptions configures the llama-server backend. When URL is empty the
// backend spawns Bin against the GGUF files found in Checkpoint.
type LlamaOptions struct {
	URL        string
	Checkpoint string
	Bin        string
	Host       string
	CtxSize    int
	NGL        int
	Threads    int
	ExtraArgs  []string
	// ReadyTimeout bounds the wait for a spawned or attached server. Default 2m.
	ReadyTimeout time.Duration
	HTTPClient   *http.Client
	Logger       zerolog.Logger
}

// LlamaServer talks to llama.cpp's HTTP server through its native /completion
// endpoint, which accepts base64 images alongside the prompt.
type LlamaServer struct {
	opts       LlamaOptions
	httpClient *http.Client

	mu      sync.Mutex
	baseURL string
	proc    *process
}

// NewLlamaServer builds the backend. Nothing is started until Load.
func NewLlamaServer(opts LlamaOptions) *LlamaServer {
	if strings.TrimSpace(opts.Host) == "" {
		opts.Host = "127.0.0.1"
	}
	if strings.TrimSpace(opts.Bin) == "" {
		opts.Bin = "llama-server"
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 2 * time.Minute
	}
	cli := opts.HTTPClient
	if cli == nil {
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
		// Timeout=0: every call carries a context deadline instead.
		cli = &http.Client{Transport: tr, Timeout: 0}
	}
	return &LlamaServer{opts: opts, httpClient: cli, baseURL: strings.TrimRight(opts.URL, "/")}
}

func (l *LlamaServer) Name() string { return "llama-server" }

// Preflight checks that the server binary can be found when Load will spawn it.
func (l *LlamaServer) Preflight() error {
	if l.BaseURL() != "" {
		return nil
	}
	if _, err := exec.LookPath(l.opts.Bin); err != nil {
		return fmt.Errorf("llama-server binary %q: %w", l.opts.Bin, err)
	}
	return nil
}

func (l *LlamaServer) ImageToken() string { return LlamaMediaMarker }

// BaseURL is the server address once Load succeeded.
func (l *LlamaServer) BaseURL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.baseURL
}

// Load spawns llama-server when no URL is configured, waits until it answers
// /health and reads /props.
func (l *LlamaServer) Load(ctx context.Context) (Info, error) {
	info := Info{Backend: l.Name(), ModelPath: l.opts.Checkpoint}
	if l.BaseURL() == "" {
		cp, err := registry.ScanCheckpoint(l.opts.Checkpoint)
		if err != nil {
			if errors.Is(err, registry.ErrNoModel) {
				return Info{}, fmt.Errorf("%s: %w", l.opts.Checkpoint, ErrModelNotFound)
			}
			return Info{}, err
		}
		if cp.ProjectorFile == "" {
			l.opts.Logger.Warn().Str("dir", cp.Dir).Msg("checkpoint has no mmproj file, image input will be rejected by the server")
		}
		p, err := startProcess(ctx, processConfig{
			Bin:       l.opts.Bin,
			Host:      l.opts.Host,
			Model:     cp.ModelFile,
			Projector: cp.ProjectorFile,
			CtxSize:   l.opts.CtxSize,
			NGL:       l.opts.NGL,
			Threads:   l.opts.Threads,
			ExtraArgs: l.opts.ExtraArgs,
			Timeout:   l.opts.ReadyTimeout,
			Logger:    l.opts.Logger,
		}, l.isHealthy)
		if err != nil {
			return Info{}, err
		}
		l.mu.Lock()
		l.proc = p
		l.baseURL = p.baseURL
		l.mu.Unlock()
		info.ModelPath = cp.Dir
		info.Dtype = cp.Quant
		if l.opts.NGL != 0 {
			info.Device = DeviceCUDA
		} else {
			info.Device = DeviceCPU
		}
	} else if err := l.waitHealthy(ctx); err != nil {
		return Info{}, err
	}

	props, err := l.props(ctx)
	if err != nil {
		return Info{}, err
	}
	info.ContextLength = props.DefaultGenerationSettings.NCtx
	info.Version = props.BuildInfo
	info.Name = strings.TrimSpace(props.ModelAlias)
	if info.Name == "" && props.ModelPath != "" {
		info.Name = strings.TrimSuffix(baseName(props.ModelPath), ".gguf")
	}
	if info.Dtype == "" {
		info.Dtype = registry.QuantFromName(props.ModelPath)
	}
	if info.ModelPath == "" {
		info.ModelPath = props.ModelPath
	}
	return info, nil
}

type llamaProps struct {
	DefaultGenerationSettings struct {
		NCtx int `json:"n_ctx"`
	} `json:"default_generation_settings"`
	ModelPath  string `json:"model_path"`
	ModelAlias string `json:"model_alias"`
	BuildInfo  string `json:"build_info"`
}

func (l *LlamaServer) props(ctx context.Context) (llamaProps, error) {
	var p llamaProps
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.BaseURL()+"/props", nil)
	if err != nil {
		return p, err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return p, fmt.Errorf("llama-server props: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return p, httpStatusError("llama-server props", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return p, fmt.Errorf("llama-server props: decode: %w", err)
	}
	return p, nil
}

// isHealthy reports whether the server at baseURL answers /health with 2xx.
// llama-server returns 503 while the model is still loading.
func (l *LlamaServer) isHealthy(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (l *LlamaServer) waitHealthy(ctx context.Context) error {
	base := l.BaseURL()
	deadline := time.Now().Add(l.opts.ReadyTimeout)
	for {
		if l.isHealthy(ctx, base) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("llama-server not ready in time: %s", base)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

type completionPrompt struct {
	PromptString   string   `json:"prompt_string"`
	MultimodalData []string `json:"multimodal_data,omitempty"`
}

type completionRequest struct {
	Prompt      completionPrompt `json:"prompt"`
	NPredict    int              `json:"n_predict,omitempty"`
	Temperature float64          `json:"temperature"`
	Stream      bool             `json:"stream"`
	CachePrompt bool             `json:"cache_prompt"`
}

type completionResponse struct {
	Content         string `json:"content"`
	TokensPredicted int    `json:"tokens_predicted"`
	TokensEvaluated int    `json:"tokens_evaluated"`
	StopType        string `json:"stop_type"`
}

// Generate posts a non-streaming /completion request.
func (l *LlamaServer) Generate(ctx context.Context, req Request) (Result, error) {
	base := l.BaseURL()
	if base == "" {
		return Result{}, errors.New("llama-server not loaded")
	}
	payload := completionRequest{
		Prompt:      completionPrompt{PromptString: req.Prompt},
		NPredict:    req.MaxTokens,
		Temperature: req.Temperature,
	}
	for _, img := range req.Images {
		payload.Prompt.MultimodalData = append(payload.Prompt.MultimodalData, base64.StdEncoding.EncodeToString(img))
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, err
	}
	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/completion", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	hr.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := l.httpClient.Do(hr)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("llama-server completion: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, httpStatusError("llama server http error", resp)
	}
	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("llama-server completion: decode: %w", err)
	}
	l.opts.Logger.Debug().Int("tokens", out.TokensPredicted).Str("stop", out.StopType).Msg("completion done")
	return Result{
		Text:             out.Content,
		PromptTokens:     out.TokensEvaluated,
		CompletionTokens: out.TokensPredicted,
		Duration:         time.Since(start),
	}, nil
}

// Usage is unknown: llama-server does not report device memory.
func (l *LlamaServer) Usage(context.Context) (Usage, error) { return Usage{}, nil }

// Close stops a spawned server. Attached servers are left running.
func (l *LlamaServer) Close(context.Context) error {
	l.mu.Lock()
	p := l.proc
	l.proc = nil
	if p != nil {
		l.baseURL = ""
	}
	l.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.stop()
}

func httpStatusError(prefix string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(b))
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error.Message != "" {
		msg = e.Error.Message
	}
	return fmt.Errorf("%s: %s: %s", prefix, resp.Status, msg)
}

func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}
