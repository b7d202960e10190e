package manager

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"fastvlmd/internal/engine"
	"fastvlmd/internal/prompt"
	"fastvlmd/internal/sysinfo"
)

// fakeBackend records calls and returns canned results.
type fakeBackend struct {
	mu        sync.Mutex
	info      engine.Info
	loadErr   error
	loads     int
	reqs      []engine.Request
	text      string
	genErr    error
	block     chan struct{} // when set, Generate waits for it
	started   chan struct{} // signaled when Generate begins
	usage     engine.Usage
	closed    int
	preflight error
}

func (f *fakeBackend) Name() string       { return "fake" }
func (f *fakeBackend) ImageToken() string { return "<img>" }

func (f *fakeBackend) Load(ctx context.Context) (engine.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.info, f.loadErr
}

func (f *fakeBackend) Generate(ctx context.Context, req engine.Request) (engine.Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	block, started := f.block, f.started
	text, err := f.text, f.genErr
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return engine.Result{}, ctx.Err()
		}
	}
	if err != nil {
		return engine.Result{}, err
	}
	return engine.Result{Text: text, CompletionTokens: 3}, nil
}

func (f *fakeBackend) Usage(ctx context.Context) (engine.Usage, error) { return f.usage, nil }

func (f *fakeBackend) Close(ctx context.Context) error {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) requests() []engine.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Request(nil), f.reqs...)
}

type preflightBackend struct{ *fakeBackend }

func (p preflightBackend) Preflight() error { return p.preflight }

type fakeGPU struct {
	gpu sysinfo.GPU
	err error
}

func (g fakeGPU) Probe(ctx context.Context) (sysinfo.GPU, error) { return g.gpu, g.err }

type fakeSampler struct {
	load sysinfo.Load
	err  error
}

func (s fakeSampler) Sample(ctx context.Context) (sysinfo.Load, error) { return s.load, s.err }

func newTestManager(t *testing.T, fb *fakeBackend, mutate func(*Config)) *Manager {
	t.Helper()
	cfg := Config{
		Backend:       fb,
		Template:      prompt.Default(),
		DefaultPrompt: "Describe the clothing.",
		ModelPath:     "/ckpt/fastvlm",
		MaxNewTokens:  64,
		Temperature:   0.2,
		DoSample:      true,
		MaxImageSize:  64,
		TempDir:       t.TempDir(),
		Logger:        zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg)
}

func loadedManager(t *testing.T, fb *fakeBackend, mutate func(*Config)) *Manager {
	t.Helper()
	m := newTestManager(t, fb, mutate)
	if err := m.LoadModel(context.Background()); err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	return m
}

// pngBase64 encodes a w×h solid image as base64 PNG.
func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
