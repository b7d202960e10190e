package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fastvlmd/internal/engine"
	"fastvlmd/internal/garment"
	"fastvlmd/internal/imageio"
	"fastvlmd/internal/textclean"
	"fastvlmd/internal/translate"
	"fastvlmd/pkg/types"
)

// ErrNoImage is returned when the request carries no image.
var ErrNoImage = errors.New("No image provided")

// Analyze describes the clothing in one base64 image.
func (m *Manager) Analyze(ctx context.Context, req types.AnalyzeRequest) (types.AnalyzeResponse, error) {
	h := m.handle.Load()
	if h == nil {
		return types.AnalyzeResponse{}, ErrModelNotLoaded
	}
	if strings.TrimSpace(req.ImageBase64) == "" {
		return types.AnalyzeResponse{}, ErrNoImage
	}
	raw, err := imageio.DecodeBase64(req.ImageBase64)
	if err != nil {
		return types.AnalyzeResponse{}, ErrInvalidImage(err)
	}
	dec, err := imageio.Decode(raw)
	if err != nil {
		return types.AnalyzeResponse{}, ErrInvalidImage(err)
	}

	staged, err := imageio.Stage(dec.Image, m.cfg.TempDir, m.cfg.MaxImageSize)
	if err != nil {
		return types.AnalyzeResponse{}, err
	}
	defer staged.Remove()
	img, err := staged.Bytes()
	if err != nil {
		return types.AnalyzeResponse{}, fmt.Errorf("read staged image: %w", err)
	}

	query := strings.TrimSpace(req.Prompt)
	if query == "" {
		query = m.cfg.DefaultPrompt
	}
	full := h.Template.BuildImagePrompt(h.ImageToken, query)

	release, err := m.beginGeneration(ctx)
	if err != nil {
		return types.AnalyzeResponse{}, err
	}
	defer release()

	log := m.log.With().
		Str("format", dec.Format).
		Int("src_width", dec.Width()).Int("src_height", dec.Height()).
		Int("width", staged.Width).Int("height", staged.Height).
		Logger()
	log.Info().Msg("analysis started")
	start := time.Now()
	res, err := m.backend.Generate(ctx, engine.Request{
		Prompt:      full,
		Images:      [][]byte{img},
		MaxTokens:   m.cfg.MaxNewTokens,
		Temperature: m.temperature(),
	})
	if err != nil {
		log.Error().Err(err).Msg("analysis failed")
		return types.AnalyzeResponse{}, err
	}
	took := time.Since(start)
	if !m.engineTranslate {
		release()
	}

	analysis := textclean.Clean(res.Text)
	resp := types.AnalyzeResponse{
		Success:    true,
		Analysis:   analysis,
		ModelUsed:  h.Info.Name,
		Device:     h.Info.Device,
		DurationMS: took.Milliseconds(),
	}
	if req.Translate || m.cfg.AutoTranslate {
		lenient := translate.Lenient{T: m.translator, Log: log}
		resp.Translation, _ = lenient.Translate(ctx, analysis)
	}
	g := garment.Classify(analysis)
	resp.Garment = &types.Garment{ClassName: g.Name, ClassNameRu: g.NameRu}

	log.Info().
		Dur("took", took).
		Int("completion_tokens", res.CompletionTokens).
		Str("garment", g.Name).
		Msg("analysis finished")
	return resp, nil
}
