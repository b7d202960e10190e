// Package translate turns English analyses into Russian.
package translate

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	translatev2 "google.golang.org/api/translate/v2"

	"fastvlmd/internal/engine"
)

// Language codes used by the service.
const (
	SourceLang = "en"
	TargetLang = "ru"
)

// ErrorPrefix marks text that could not be translated.
const ErrorPrefix = "[translation error] "

// Translator translates one text.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Google uses the Cloud Translation v2 API.
type Google struct {
	svc    *translatev2.Service
	source string
	target string
}

// NewGoogle creates a client authenticated by an API key. Extra options are
// appended after the key (tests use them to point at a fake endpoint).
func NewGoogle(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Google, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("translate: api key is empty")
	}
	svc, err := translatev2.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	return &Google{svc: svc, source: SourceLang, target: TargetLang}, nil
}

func (g *Google) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	resp, err := g.svc.Translations.List([]string{text}, g.target).
		Source(g.source).
		Format("text").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("google translate: %w", err)
	}
	if len(resp.Translations) == 0 {
		return "", errors.New("google translate: empty response")
	}
	return html.UnescapeString(resp.Translations[0].TranslatedText), nil
}

// Generator is the part of an engine backend used for text-only translation.
type Generator interface {
	Generate(ctx context.Context, req engine.Request) (engine.Result, error)
}

// Instruction is prepended to the text sent to the engine.
const Instruction = "Translate the following English text into Russian. Reply with the translation only.\n\n"

// Engine translates by asking the loaded vision-language model.
type Engine struct {
	gen Generator
	// Render wraps the instruction in the model's conversation template.
	render    func(query string) string
	maxTokens int
}

// NewEngine builds an engine-backed translator. render may be nil.
func NewEngine(gen Generator, render func(string) string, maxTokens int) *Engine {
	if render == nil {
		render = func(q string) string { return q }
	}
	return &Engine{gen: gen, render: render, maxTokens: maxTokens}
}

func (e *Engine) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	res, err := e.gen.Generate(ctx, engine.Request{
		Prompt:      e.render(Instruction + text),
		MaxTokens:   e.maxTokens,
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("engine translate: %w", err)
	}
	out := strings.TrimSpace(res.Text)
	if out == "" {
		return "", errors.New("engine translate: empty output")
	}
	return out, nil
}

// Lenient never fails: on error it logs and returns the input with ErrorPrefix.
type Lenient struct {
	T   Translator
	Log zerolog.Logger
}

func (l Lenient) Translate(ctx context.Context, text string) (string, error) {
	out, err := l.T.Translate(ctx, text)
	if err != nil {
		l.Log.Warn().Err(err).Msg("translation failed")
		return ErrorPrefix + text, nil
	}
	return out, nil
}
