package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog"
)

// OllamaImageToken marks where Ollama inserts the first attached image in a raw prompt.
const OllamaImageToken = "[img-0]"

// OllamaOptions configures the Ollama backend.
type OllamaOptions struct {
	// BaseURL of the Ollama server, e.g. http://127.0.0.1:11434.
	BaseURL string
	Model   string
	// KeepAlive is how long Ollama keeps the model resident between requests.
	// Negative keeps it loaded until Close.
	KeepAlive  time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Ollama generates through an Ollama server using raw prompts, so the
// conversation template is rendered by this service rather than by Ollama.
type Ollama struct {
	opts   OllamaOptions
	client *api.Client
}

// NewOllama validates the base URL and builds a client.
func NewOllama(opts OllamaOptions) (*Ollama, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("ollama: model name is empty")
	}
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid url %q: %w", opts.BaseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ollama: url %q needs scheme and host", opts.BaseURL)
	}
	if opts.KeepAlive == 0 {
		opts.KeepAlive = -1
	}
	hc := opts.HTTPClient
	if hc == nil {
		// Deadlines come from the request contexts.
		hc = &http.Client{Timeout: 0}
	}
	return &Ollama{opts: opts, client: api.NewClient(u, hc)}, nil
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) ImageToken() string { return OllamaImageToken }

// Load checks the server, reads the model metadata and asks Ollama to load the
// model into memory (an empty prompt only loads).
func (o *Ollama) Load(ctx context.Context) (Info, error) {
	if err := o.client.Heartbeat(ctx); err != nil {
		return Info{}, fmt.Errorf("ollama unreachable at %s: %w", o.opts.BaseURL, err)
	}
	version, err := o.client.Version(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("ollama version: %w", err)
	}
	show, err := o.client.Show(ctx, &api.ShowRequest{Model: o.opts.Model})
	if err != nil {
		var se api.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return Info{}, fmt.Errorf("%s: %w", o.opts.Model, ErrModelNotFound)
		}
		return Info{}, fmt.Errorf("ollama show %s: %w", o.opts.Model, err)
	}
	start := time.Now()
	stream := false
	warm := &api.GenerateRequest{
		Model:     o.opts.Model,
		Stream:    &stream,
		KeepAlive: &api.Duration{Duration: o.opts.KeepAlive},
	}
	if err := o.client.Generate(ctx, warm, func(api.GenerateResponse) error { return nil }); err != nil {
		return Info{}, fmt.Errorf("ollama load %s: %w", o.opts.Model, err)
	}
	o.opts.Logger.Info().Str("model", o.opts.Model).Dur("took", time.Since(start)).Msg("ollama model resident")

	info := Info{
		Name:          architecture(show),
		ContextLength: contextLength(show.ModelInfo),
		Dtype:         show.Details.QuantizationLevel,
		Version:       version,
		Backend:       o.Name(),
		ModelPath:     o.opts.Model,
		Device:        DeviceCPU,
	}
	if u, err := o.Usage(ctx); err == nil && u.VRAMBytes > 0 {
		info.Device = DeviceCUDA
	}
	return info, nil
}

// Generate sends a raw, non-streaming generate request.
func (o *Ollama) Generate(ctx context.Context, req Request) (Result, error) {
	stream := false
	gr := &api.GenerateRequest{
		Model:     o.opts.Model,
		Prompt:    req.Prompt,
		Raw:       true,
		Stream:    &stream,
		KeepAlive: &api.Duration{Duration: o.opts.KeepAlive},
		Options: map[string]any{
			"temperature": req.Temperature,
		},
	}
	if req.MaxTokens > 0 {
		gr.Options["num_predict"] = req.MaxTokens
	}
	for _, img := range req.Images {
		gr.Images = append(gr.Images, api.ImageData(img))
	}
	start := time.Now()
	var sb strings.Builder
	var res Result
	err := o.client.Generate(ctx, gr, func(r api.GenerateResponse) error {
		sb.WriteString(r.Response)
		if r.Done {
			res.PromptTokens = r.PromptEvalCount
			res.CompletionTokens = r.EvalCount
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("ollama generate: %w", err)
	}
	res.Text = sb.String()
	res.Duration = time.Since(start)
	return res, nil
}

// Usage reports the VRAM Ollama holds for the model.
func (o *Ollama) Usage(ctx context.Context) (Usage, error) {
	ps, err := o.client.ListRunning(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("ollama ps: %w", err)
	}
	for _, m := range ps.Models {
		if sameModel(m.Name, o.opts.Model) || sameModel(m.Model, o.opts.Model) {
			return Usage{VRAMBytes: m.SizeVRAM, Known: true}, nil
		}
	}
	return Usage{Known: true}, nil
}

// Close unloads the model (keep_alive 0).
func (o *Ollama) Close(ctx context.Context) error {
	stream := false
	req := &api.GenerateRequest{
		Model:     o.opts.Model,
		Stream:    &stream,
		KeepAlive: &api.Duration{Duration: 0},
	}
	if err := o.client.Generate(ctx, req, func(api.GenerateResponse) error { return nil }); err != nil {
		return fmt.Errorf("ollama unload %s: %w", o.opts.Model, err)
	}
	return nil
}

func architecture(show *api.ShowResponse) string {
	if a, ok := show.ModelInfo["general.architecture"].(string); ok && a != "" {
		return a
	}
	return show.Details.Family
}

func contextLength(info map[string]any) int {
	for k, v := range info {
		if !strings.HasSuffix(k, ".context_length") {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case int64:
			return int(n)
		}
	}
	return 0
}

// sameModel compares names ignoring an implicit ":latest" tag.
func sameModel(a, b string) bool {
	norm := func(s string) string {
		if !strings.Contains(s, ":") {
			return s + ":latest"
		}
		return s
	}
	return a != "" && norm(a) == norm(b)
}
