/**
 * Recognition pipeline orchestrator.
 *
 * One Process call owns the full flow: decode, downscale, language
 * resolution, variant generation, per-variant scoring, layout extraction and
 * text normalization. Capability absence surfaces as the package's terminal
 * sentinel errors, except when an external oracle can stand in for a missing
 * local engine.
 */

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/docuflow/ocr-worker/internal/logging"
)

// VariantOracle tags results produced by the remote-extraction fallback.
const VariantOracle = "oracle"

// PipelineConfig carries the pipeline tunables.
type PipelineConfig struct {
	MaxImageDimension   int
	ConfidenceThreshold float64
	DefaultLanguage     LanguageConfig
	MinSampleLength     int
	Scoring             ScoringConfig
}

// DefaultPipelineConfig returns the production defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MaxImageDimension:   2000,
		ConfidenceThreshold: 30,
		DefaultLanguage:     DefaultLanguage,
		MinSampleLength:     20,
		Scoring:             DefaultScoringConfig(),
	}
}

// Pipeline runs the end-to-end recognition flow.
type Pipeline struct {
	engine    Engine
	oracle    Oracle
	probe     *Probe
	generator *Generator
	evaluator *Evaluator
	extractor *Extractor
	cascade   *Cascade
	logger    *logging.Logger
}

// NewPipeline wires the pipeline stages over an engine and an optional
// oracle (nil disables the oracle tier and the remote-extraction fallback).
func NewPipeline(engine Engine, oracle Oracle, cfg PipelineConfig) *Pipeline {
	if cfg.MaxImageDimension <= 0 {
		cfg.MaxImageDimension = 2000
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = DefaultLanguage
	}

	probe := NewProbe(engine)
	cascade := NewCascade(probe, cfg.DefaultLanguage,
		NewOracleResolver(oracle),
		NewSampleResolver(engine, probe, cfg.MinSampleLength, cfg.Scoring.NoiseFloor),
		&StatisticalResolver{},
		&FrequencyResolver{},
	)

	return &Pipeline{
		engine:    engine,
		oracle:    oracle,
		probe:     probe,
		generator: NewGenerator(cfg.MaxImageDimension),
		evaluator: NewEvaluator(engine, probe, cfg.Scoring),
		extractor: NewExtractor(cfg.ConfidenceThreshold),
		cascade:   cascade,
		logger:    logging.NewLogger("Pipeline"),
	}
}

// ProcessBytes decodes an encoded image and processes it.
func (p *Pipeline) ProcessBytes(ctx context.Context, data []byte, forcedLanguage string) (*Result, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return p.Process(ctx, img, forcedLanguage)
}

// Process runs the full recognition flow over a decoded image.
// forcedLanguage skips the resolution cascade; empty or "auto" engages it.
func (p *Pipeline) Process(ctx context.Context, img image.Image, forcedLanguage string) (*Result, error) {
	resized := ResizeToCap(img, p.generator.maxDimension)
	base := grayscale(resized)

	lang := NormalizeLanguage(forcedLanguage)
	if lang == "" {
		lang = p.cascade.Resolve(ctx, base)
	}

	avail := p.probe.Check(lang)
	if !avail.Engine {
		return p.oracleFallback(ctx, resized, lang)
	}
	if !avail.Language {
		return nil, fmt.Errorf("language %q: %w", lang, ErrLanguagePackMissing)
	}

	variants := p.generator.Generate(resized)
	best, err := p.evaluator.SelectBest(ctx, variants, lang)
	if err != nil {
		return nil, err
	}
	if best.Recognition == nil {
		return nil, fmt.Errorf("all %d variant recognition passes failed", len(variants))
	}

	p.logger.Info("Variant selected",
		"variant", best.Variant.Tag,
		"score", best.Score.Score,
		"language", lang.String())

	fullText, blocks := p.extractor.Extract(best.Recognition)

	result := &Result{
		FullText: NormalizeText(fullText),
		Language: lang.String(),
		Variant:  best.Variant.Tag,
		Score:    best.Score,
	}
	for _, b := range blocks {
		b.Text = NormalizeText(b.Text)
		if b.Text == "" {
			continue
		}
		result.Blocks = append(result.Blocks, b)
	}

	return result, nil
}

// oracleFallback extracts text remotely when the local engine is absent. The
// result carries no layout blocks or score components.
func (p *Pipeline) oracleFallback(ctx context.Context, img image.Image, lang LanguageConfig) (*Result, error) {
	if p.oracle == nil {
		return nil, ErrEngineUnavailable
	}

	p.logger.Warn("Recognition engine unavailable, extracting via oracle")
	text, err := p.oracle.ExtractText(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("oracle extraction failed after engine unavailable: %w", err)
	}

	text = NormalizeText(text)
	return &Result{
		FullText: text,
		Language: lang.String(),
		Variant:  VariantOracle,
		Score: QualityScore{
			TextLength: len([]rune(text)),
		},
	}, nil
}
