package e2e

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fastvlmd/internal/engine"
	"fastvlmd/internal/httpapi"
	"fastvlmd/internal/manager"
	"fastvlmd/internal/prompt"
)

// completionCall is what the fake llama-server saw on /completion.
type completionCall struct {
	Prompt string
	Images int
}

// fakeLlama imitates the subset of llama-server the llama backend uses.
type fakeLlama struct {
	mu    sync.Mutex
	calls []completionCall
	// gate, when set, blocks /completion until closed; started is signaled first.
	gate    chan struct{}
	started chan struct{}
	reply   string
}

func (f *fakeLlama) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/props", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"default_generation_settings":{"n_ctx":4096},"model_path":"/ckpt/llava-fastvithd_1.5b-Q4_K_M.gguf","build_info":"b6000-test"}`))
	})
	mux.HandleFunc("/completion", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Prompt struct {
				PromptString   string   `json:"prompt_string"`
				MultimodalData []string `json:"multimodal_data"`
			} `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.calls = append(f.calls, completionCall{Prompt: body.Prompt.PromptString, Images: len(body.Prompt.MultimodalData)})
		f.mu.Unlock()
		if f.started != nil {
			select {
			case f.started <- struct{}{}:
			default:
			}
		}
		if f.gate != nil {
			<-f.gate
		}
		reply := f.reply
		if len(body.Prompt.MultimodalData) == 0 {
			reply = "Белая рубашка с длинными рукавами."
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"content": reply, "tokens_predicted": 9, "tokens_evaluated": 600, "stop_type": "eos"})
	})
	return mux
}

func (f *fakeLlama) snapshot() []completionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]completionCall(nil), f.calls...)
}

type stack struct {
	api  *httptest.Server
	mgr  *manager.Manager
	fake *fakeLlama
}

// newStack serves the real HTTP API over a manager whose llama backend is
// attached to a fake llama-server.
func newStack(t *testing.T, fake *fakeLlama, mutate func(*manager.Config)) *stack {
	t.Helper()
	if fake.reply == "" {
		fake.reply = "`torch_dtype` is deprecated\n\nThe person wears a white shirt with long sleeves."
	}
	llama := httptest.NewServer(fake.handler())
	t.Cleanup(llama.Close)

	backend := engine.NewLlamaServer(engine.LlamaOptions{URL: llama.URL, ReadyTimeout: 5 * time.Second, Logger: zerolog.Nop()})
	cfg := manager.Config{
		Backend:       backend,
		Template:      prompt.Default(),
		DefaultPrompt: "Describe the clothing.",
		MaxNewTokens:  64,
		TempDir:       t.TempDir(),
		Logger:        zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	mgr := manager.New(cfg)
	api := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(api.Close)
	t.Cleanup(func() { _ = mgr.Close(context.Background()) })
	return &stack{api: api, mgr: mgr, fake: fake}
}

func pngBase64(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 250, G: 250, B: 250, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// httpPostJSON is safe to call from goroutines other than the test's.
func httpPostJSON(url, payload string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, strings.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, body, nil
}

func mustPostJSON(t *testing.T, url, payload string) (int, []byte) {
	t.Helper()
	code, body, err := httpPostJSON(url, payload)
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return code, body
}
