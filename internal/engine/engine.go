// Package engine binds the service to an external vision-language inference
// engine. Backends load one model, run single-shot generations with attached
// images and release the model on Close.
package engine

import (
	"context"
	"errors"
	"time"
)

// ErrModelNotFound is returned by Load when the engine does not know the model.
var ErrModelNotFound = errors.New("model not found")

// Device names reported in Info.
const (
	DeviceCUDA = "cuda"
	DeviceCPU  = "cpu"
)

// Info describes a loaded model. Empty fields mean the engine did not report them.
type Info struct {
	// Name is the model architecture or type, e.g. "qwen2".
	Name          string
	Device        string
	ContextLength int
	// Dtype is the weight precision or quantization level.
	Dtype     string
	Version   string
	Backend   string
	ModelPath string
}

// Request is one generation call.
type Request struct {
	Prompt string
	// Images are encoded image files referenced by the backend's image token in Prompt.
	Images      [][]byte
	MaxTokens   int
	Temperature float64
}

// Result is the generated text plus accounting.
type Result struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
}

// Usage reports engine-side memory held by the loaded model.
type Usage struct {
	// VRAMBytes is the model memory resident on the GPU.
	VRAMBytes int64
	// Known is false when the engine cannot report usage.
	Known bool
}

// Backend is an inference engine holding a single model.
type Backend interface {
	// Name is the backend identifier ("ollama", "llama-server").
	Name() string
	// ImageToken is the placeholder the engine replaces with image embeddings.
	ImageToken() string
	// Load materializes the model and returns its description.
	Load(ctx context.Context) (Info, error)
	// Generate runs one generation. It returns when the engine replies or ctx ends.
	Generate(ctx context.Context, req Request) (Result, error)
	Usage(ctx context.Context) (Usage, error)
	// Close releases the model and any process started by Load.
	Close(ctx context.Context) error
}
