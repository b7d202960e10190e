package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"fastvlmd/internal/engine"
	"fastvlmd/internal/prompt"
	"fastvlmd/internal/sysinfo"
	"fastvlmd/internal/translate"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxNewTokens = 256
	defaultMaxImageSize = 2048
	defaultDrainTimeout = 30 * time.Second
)

// LoadSampler samples host utilisation.
type LoadSampler interface {
	Sample(ctx context.Context) (sysinfo.Load, error)
}

// GPUProber reports the GPU visible to the host.
type GPUProber interface {
	Probe(ctx context.Context) (sysinfo.GPU, error)
}

// Config encapsulates all tunables for Manager construction.
type Config struct {
	Backend  engine.Backend
	Template prompt.Template
	// DefaultPrompt is used when a request carries no prompt.
	DefaultPrompt string
	// ModelPath is reported by /model when the engine does not name one.
	ModelPath string

	MaxNewTokens int
	Temperature  float64
	// DoSample=false forces greedy decoding (temperature 0).
	DoSample     bool
	MaxImageSize int
	// TempDir receives staged request images (os.TempDir when empty).
	TempDir string

	AutoTranslate bool
	// Translator overrides the engine-backed translator.
	Translator translate.Translator

	// MaxQueueDepth bounds admitted requests, the running one included (0 = unbounded).
	MaxQueueDepth int
	// MaxWait bounds the wait for the generation slot (0 = until the caller gives up).
	MaxWait      time.Duration
	DrainTimeout time.Duration

	Sampler LoadSampler
	GPU     GPUProber
	Logger  zerolog.Logger
}
