/**
 * Quality scoring and variant selection.
 *
 * Each preprocessing variant gets one recognition pass and a composite
 * fitness score in [0,1] built from text length, mean token confidence,
 * target-script ratio and image contrast. Scoring is heuristic and never
 * raises: a failed pass contributes a zero score and the scan continues.
 */

package ocr

import (
	"context"
	"image"
	"math"
	"strings"
	"unicode"

	"github.com/docuflow/ocr-worker/internal/logging"
)

// ScoringConfig holds the tunable weights and normalization constants of the
// composite score.
type ScoringConfig struct {
	LengthNorm        float64 // text length achieving a full length score
	ContrastNorm      float64 // pixel stddev achieving a full contrast score
	ScriptRatioWeight float64 // multiplier applied to the raw script ratio
	MinTextLength     int     // shorter extractions have their score halved
	NoiseFloor        float64 // mean confidence at or below this is noise
}

// DefaultScoringConfig returns the production scoring constants.
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		LengthNorm:        100,
		ContrastNorm:      80,
		ScriptRatioWeight: 2.0,
		MinTextLength:     10,
		NoiseFloor:        0,
	}
}

// VariantResult pairs one scored variant with the recognition pass that
// produced its score, so the winner's tokens can be reused downstream
// without a second engine pass.
type VariantResult struct {
	Variant     Variant
	Recognition *Recognition
	Score       QualityScore
}

// Evaluator scores preprocessing variants and selects the best one.
type Evaluator struct {
	engine Engine
	probe  *Probe
	cfg    ScoringConfig
	logger *logging.Logger
}

// NewEvaluator creates an evaluator over the given engine.
func NewEvaluator(engine Engine, probe *Probe, cfg ScoringConfig) *Evaluator {
	return &Evaluator{
		engine: engine,
		probe:  probe,
		cfg:    cfg,
		logger: logging.NewLogger("QualityEvaluator"),
	}
}

// SelectBest scores every variant with one recognition pass each and returns
// the highest scoring one. Ties keep the earlier (simpler) variant: a later
// variant must score strictly higher to win. When the engine is unavailable
// the first variant is returned with a zero score and no recognition.
func (e *Evaluator) SelectBest(ctx context.Context, variants []Variant, lang LanguageConfig) (VariantResult, error) {
	if len(variants) == 0 {
		return VariantResult{}, nil
	}

	best := VariantResult{Variant: variants[0]}
	if !e.probe.Check(lang).Engine {
		e.logger.Warn("Recognition engine unavailable, skipping variant scoring")
		return best, nil
	}

	psm := PSMFor(lang)
	for _, v := range variants {
		if err := ctx.Err(); err != nil {
			return best, err
		}

		rec, err := e.engine.Recognize(ctx, v.Image, lang, psm)
		if err != nil {
			e.logger.Debug("Variant recognition failed", "variant", v.Tag, "error", err.Error())
			continue
		}

		score := e.Score(rec, v.Image, lang)
		e.logger.Debug("Variant scored",
			"variant", v.Tag,
			"score", score.Score,
			"textLength", score.TextLength,
			"meanConfidence", score.MeanConfidence)

		if best.Recognition == nil || score.Score > best.Score.Score {
			best = VariantResult{Variant: v, Recognition: rec, Score: score}
		}
	}

	return best, nil
}

// Score computes the composite quality score of one recognition pass.
func (e *Evaluator) Score(rec *Recognition, img *image.Gray, lang LanguageConfig) QualityScore {
	text := strings.TrimSpace(rec.Text)
	textLength := len([]rune(text))

	lengthScore := math.Min(float64(textLength)/e.cfg.LengthNorm, 1.0)
	meanConf := meanConfidenceAbove(rec.Tokens, e.cfg.NoiseFloor)
	confScore := meanConf / 100
	contrast := pixelStddev(img)
	contrastScore := math.Min(contrast/e.cfg.ContrastNorm, 1.0)

	var score float64
	var scriptRatio float64
	primary := lang.Primary()
	if isLatinScript(primary) {
		score = 0.4*lengthScore + 0.4*confScore + 0.2*contrastScore
	} else {
		scriptRatio = targetScriptRatio(text, primary)
		scriptScore := math.Min(scriptRatio*e.cfg.ScriptRatioWeight, 1.0)
		score = 0.3*lengthScore + 0.3*confScore + 0.3*scriptScore + 0.1*contrastScore
	}

	// Very short extractions are usually noise, not signal.
	if textLength < e.cfg.MinTextLength {
		score *= 0.5
	}
	if meanConf <= e.cfg.NoiseFloor && textLength == 0 {
		score = 0
	}

	return QualityScore{
		Score:          clamp01(score),
		TextLength:     textLength,
		MeanConfidence: meanConf,
		ScriptRatio:    scriptRatio,
		Contrast:       contrast,
	}
}

// meanConfidence averages token confidences, ignoring sentinel negatives the
// engine emits for non-word regions.
func meanConfidence(tokens []Token) float64 {
	return meanConfidenceAbove(tokens, 0)
}

// meanConfidenceAbove averages token confidences, excluding sentinels and
// anything below the noise floor from the mean.
func meanConfidenceAbove(tokens []Token, floor float64) float64 {
	var sum float64
	var n int
	for _, t := range tokens {
		if t.Confidence < 0 || t.Confidence < floor {
			continue
		}
		sum += t.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// pixelStddev measures image contrast as the standard deviation of pixel
// intensities.
func pixelStddev(img *image.Gray) float64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	n := float64(b.Dx() * b.Dy())
	if n == 0 {
		return 0
	}

	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += float64(img.GrayAt(x, y).Y)
		}
	}
	mean := sum / n

	var sq float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			d := float64(img.GrayAt(x, y).Y) - mean
			sq += d * d
		}
	}
	return math.Sqrt(sq / n)
}

// targetScriptRatio measures the share of non-space characters belonging to
// the primary language's script.
func targetScriptRatio(text, primary string) float64 {
	var total, target int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if inTargetScript(r, primary) {
			target++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(target) / float64(total)
}

func inTargetScript(r rune, primary string) bool {
	switch primary {
	case "kor":
		return unicode.Is(unicode.Hangul, r)
	case "jpn":
		return unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Han, r)
	case "chi_sim", "chi_tra":
		return unicode.Is(unicode.Han, r)
	case "rus":
		return unicode.Is(unicode.Cyrillic, r)
	case "ara":
		return unicode.Is(unicode.Arabic, r)
	case "hin":
		return unicode.Is(unicode.Devanagari, r)
	case "tha":
		return unicode.Is(unicode.Thai, r)
	}
	return unicode.Is(unicode.Latin, r)
}

// isLatinScript reports whether a pack code writes in Latin script.
func isLatinScript(primary string) bool {
	switch primary {
	case "eng", "deu", "fra", "spa", "ita", "por", "vie":
		return true
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
