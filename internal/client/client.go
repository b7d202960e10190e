// Package client talks to a running fastvlmd server. It backs the
// `fastvlmd client` smoke-test commands.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fastvlmd/pkg/types"
)

const (
	// DefaultBaseURL matches the server's default listen address.
	DefaultBaseURL = "http://127.0.0.1:3001"
	// HealthTimeout bounds GET /health.
	HealthTimeout = 10 * time.Second
	// AnalyzeTimeout bounds POST /analyze; large images on CPU are slow.
	AnalyzeTimeout = 5 * time.Minute
)

// ImageExtensions are the file types FindTestImages picks up.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}

// StatusError is returned for non-200 responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Code, strings.TrimSpace(e.Body))
}

// Client is a small JSON client for the fastvlmd HTTP API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Log     zerolog.Logger
}

// New returns a client for baseURL. An empty baseURL uses DefaultBaseURL.
func New(baseURL string, log zerolog.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{},
		Log:     log,
	}
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) (types.HealthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()
	c.Log.Info().Str("url", c.BaseURL).Msg("checking server availability")
	var out types.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return out, err
	}
	c.Log.Info().Bool("model_loaded", out.ModelLoaded).Str("device", out.Device).Msg("server available")
	return out, nil
}

// Result is one analysis plus the client-side wall time.
type Result struct {
	types.AnalyzeResponse
	Elapsed time.Duration
}

// Analyze posts req to /analyze.
func (c *Client) Analyze(ctx context.Context, req types.AnalyzeRequest) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, AnalyzeTimeout)
	defer cancel()
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, err
	}
	start := time.Now()
	var out Result
	err = c.do(ctx, http.MethodPost, "/analyze", body, &out.AnalyzeResponse)
	out.Elapsed = time.Since(start)
	c.Log.Info().Str("elapsed", fmt.Sprintf("%.2fs", out.Elapsed.Seconds())).Msg("execution time")
	return out, err
}

// AnalyzeFile base64-encodes the image at path and analyzes it.
func (c *Client) AnalyzeFile(ctx context.Context, path, prompt string, translate bool) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read image: %w", err)
	}
	c.Log.Info().Str("image", filepath.Base(path)).Int("bytes", len(data)).Msg("image loaded")
	return c.Analyze(ctx, types.AnalyzeRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		Prompt:      prompt,
		Translate:   translate,
	})
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		// Error bodies still decode into out when they are JSON.
		_ = json.Unmarshal(raw, out)
		return &StatusError{Code: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// FindTestImages lists image files directly inside dir, sorted by name.
func FindTestImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range ImageExtensions {
			if ext == want {
				out = append(out, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
