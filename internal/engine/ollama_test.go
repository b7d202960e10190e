package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type fakeOllama struct {
	mu        sync.Mutex
	model     string
	sizeVRAM  int64
	generates []map[string]any
	genErr    string
}

func (f *fakeOllama) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Ollama is running"))
	})
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"0.11.10"}`))
	})
	mux.HandleFunc("/api/show", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != f.model {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"model '` + req.Model + `' not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"details":{"family":"qwen2","quantization_level":"Q4_K_M"},"model_info":{"general.architecture":"qwen2","qwen2.context_length":32768}}`))
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.generates = append(f.generates, req)
		genErr := f.genErr
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/x-ndjson")
		if p, _ := req["prompt"].(string); p == "" {
			_, _ = w.Write([]byte(`{"model":"` + f.model + `","response":"","done":true}` + "\n"))
			return
		}
		if genErr != "" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"` + genErr + `"}` + "\n"))
			return
		}
		_, _ = w.Write([]byte(`{"model":"` + f.model + `","response":"A blue shirt.\n","done":true,"prompt_eval_count":10,"eval_count":5}` + "\n"))
	})
	mux.HandleFunc("/api/ps", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"models": []map[string]any{{"name": f.model, "model": f.model, "size_vram": f.sizeVRAM}}})
	})
	return mux
}

func (f *fakeOllama) calls() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.generates...)
}

func newTestOllama(t *testing.T, f *fakeOllama, model string) *Ollama {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	o, err := NewOllama(OllamaOptions{BaseURL: srv.URL, Model: model, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}
	return o
}

func TestOllama_LoadReportsModelInfo(t *testing.T) {
	f := &fakeOllama{model: "fastvlm:1.5b", sizeVRAM: 2 << 30}
	o := newTestOllama(t, f, "fastvlm:1.5b")
	info, err := o.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if info.Name != "qwen2" || info.ContextLength != 32768 || info.Dtype != "Q4_K_M" || info.Version != "0.11.10" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Device != DeviceCUDA || info.Backend != "ollama" || info.ModelPath != "fastvlm:1.5b" {
		t.Fatalf("unexpected info: %+v", info)
	}
	calls := f.calls()
	if len(calls) != 1 || calls[0]["keep_alive"] != float64(-1) {
		t.Fatalf("expected one warm-up call with keep_alive -1, got %+v", calls)
	}
}

func TestOllama_LoadCPUWhenNoVRAM(t *testing.T) {
	f := &fakeOllama{model: "fastvlm:1.5b"}
	o := newTestOllama(t, f, "fastvlm:1.5b")
	info, err := o.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if info.Device != DeviceCPU {
		t.Fatalf("device=%s", info.Device)
	}
}

func TestOllama_LoadUnknownModel(t *testing.T) {
	f := &fakeOllama{model: "fastvlm:1.5b"}
	o := newTestOllama(t, f, "other:7b")
	if _, err := o.Load(context.Background()); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
}

func TestOllama_GenerateRawWithImage(t *testing.T) {
	f := &fakeOllama{model: "fastvlm:1.5b"}
	o := newTestOllama(t, f, "fastvlm:1.5b")
	res, err := o.Generate(context.Background(), Request{
		Prompt:      OllamaImageToken + "\nDescribe.",
		Images:      [][]byte{{0xff, 0xd8, 0xff}},
		MaxTokens:   64,
		Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "A blue shirt.\n" || res.PromptTokens != 10 || res.CompletionTokens != 5 {
		t.Fatalf("unexpected result: %+v", res)
	}
	calls := f.calls()
	if len(calls) != 1 {
		t.Fatalf("calls=%d", len(calls))
	}
	req := calls[0]
	if req["raw"] != true || req["stream"] != false {
		t.Fatalf("expected raw non-streaming request: %+v", req)
	}
	opts, _ := req["options"].(map[string]any)
	if opts["num_predict"] != float64(64) || opts["temperature"] != 0.2 {
		t.Fatalf("options=%+v", opts)
	}
	if imgs, _ := req["images"].([]any); len(imgs) != 1 {
		t.Fatalf("images=%v", req["images"])
	}
}

func TestOllama_GenerateError(t *testing.T) {
	f := &fakeOllama{model: "fastvlm:1.5b", genErr: "out of memory"}
	o := newTestOllama(t, f, "fastvlm:1.5b")
	_, err := o.Generate(context.Background(), Request{Prompt: "x"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestOllama_CloseUnloads(t *testing.T) {
	f := &fakeOllama{model: "fastvlm:1.5b"}
	o := newTestOllama(t, f, "fastvlm:1.5b")
	if err := o.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	calls := f.calls()
	if len(calls) != 1 || calls[0]["keep_alive"] != "0s" {
		t.Fatalf("expected keep_alive 0 unload, got %+v", calls)
	}
}

func TestNewOllama_Validation(t *testing.T) {
	if _, err := NewOllama(OllamaOptions{BaseURL: "http://127.0.0.1:11434"}); err == nil {
		t.Fatalf("expected error for empty model")
	}
	if _, err := NewOllama(OllamaOptions{BaseURL: "localhost", Model: "m"}); err == nil {
		t.Fatalf("expected error for url without scheme")
	}
}

func TestSameModel(t *testing.T) {
	if !sameModel("llava:latest", "llava") || !sameModel("a:1b", "a:1b") || sameModel("a:1b", "a:2b") || sameModel("", "") {
		t.Fatalf("sameModel mismatch")
	}
}
