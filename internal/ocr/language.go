/**
 * Language resolution cascade.
 *
 * Resolution runs cheapest-reliable-first: an external vision oracle, then
 * sampled trial recognition, then statistical detection over the sampled
 * text, then raw character-frequency counting. Every candidate is validated
 * against the Availability Probe before adoption; a tier that produces
 * nothing usable hands off to the next, and the documented default closes
 * the cascade.
 */

package ocr

import (
	"context"
	"image"
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"

	"github.com/docuflow/ocr-worker/internal/logging"
)

// Oracle is the optional external vision-language service consulted as the
// first resolution tier and as the text-extraction fallback when the local
// engine is absent.
type Oracle interface {
	// DetectLanguage returns an ISO 639-1 style language code with a
	// confidence in [0,1].
	DetectLanguage(ctx context.Context, img image.Image) (string, float64, error)

	// ExtractText performs full text extraction remotely.
	ExtractText(ctx context.Context, img image.Image) (string, error)
}

// Evidence accumulates text samples produced by trial recognition passes so
// later tiers can analyze them without re-running the engine.
type Evidence struct {
	samples []string
}

// Add records one text sample.
func (e *Evidence) Add(sample string) {
	sample = strings.TrimSpace(sample)
	if sample != "" {
		e.samples = append(e.samples, sample)
	}
}

// Combined joins all samples into one analysis corpus.
func (e *Evidence) Combined() string {
	return strings.Join(e.samples, "\n")
}

// Empty reports whether no sample has been collected.
func (e *Evidence) Empty() bool { return len(e.samples) == 0 }

// Resolver is one tier of the cascade. An empty result means the tier has no
// candidate; errors are advisory and never abort the cascade.
type Resolver interface {
	Resolve(ctx context.Context, img *image.Gray, ev *Evidence) (LanguageConfig, error)
	Name() string
}

// Cascade chains resolvers and validates their candidates.
type Cascade struct {
	resolvers []Resolver
	probe     *Probe
	fallback  LanguageConfig
	logger    *logging.Logger
}

// NewCascade builds a cascade over the given tiers. fallback closes the
// cascade when no tier produces a validated candidate.
func NewCascade(probe *Probe, fallback LanguageConfig, resolvers ...Resolver) *Cascade {
	if fallback == "" {
		fallback = DefaultLanguage
	}
	return &Cascade{
		resolvers: resolvers,
		probe:     probe,
		fallback:  fallback,
		logger:    logging.NewLogger("LanguageCascade"),
	}
}

// Resolve runs the tiers in order and returns the first candidate whose
// language packs are installed. The shared evidence pool is threaded through
// every tier.
func (c *Cascade) Resolve(ctx context.Context, img *image.Gray) LanguageConfig {
	ev := &Evidence{}

	for _, r := range c.resolvers {
		if ctx.Err() != nil {
			break
		}

		candidate, err := r.Resolve(ctx, img, ev)
		if err != nil {
			c.logger.Debug("Resolution tier failed", "tier", r.Name(), "error", err.Error())
			continue
		}
		if candidate == "" {
			continue
		}

		avail := c.probe.Check(candidate)
		if !avail.Engine || !avail.Language {
			c.logger.Warn("Candidate language not installed, continuing cascade",
				"tier", r.Name(), "language", candidate.String())
			continue
		}

		c.logger.Info("Language resolved", "tier", r.Name(), "language", candidate.String())
		return candidate
	}

	c.logger.Info("Language resolution exhausted, using default", "language", c.fallback.String())
	return c.fallback
}

// OracleResolver asks the external vision oracle for the document language.
type OracleResolver struct {
	oracle Oracle
}

// NewOracleResolver wraps an oracle as a cascade tier. A nil oracle yields a
// tier that always passes.
func NewOracleResolver(oracle Oracle) *OracleResolver {
	return &OracleResolver{oracle: oracle}
}

func (r *OracleResolver) Name() string { return "oracle" }

func (r *OracleResolver) Resolve(ctx context.Context, img *image.Gray, _ *Evidence) (LanguageConfig, error) {
	if r.oracle == nil {
		return "", nil
	}

	code, confidence, err := r.oracle.DetectLanguage(ctx, img)
	if err != nil {
		return "", err
	}
	if confidence < 0.5 {
		return "", nil
	}

	pack, ok := PackForDetectorCode(code)
	if !ok {
		return "", nil
	}
	return ComposeLanguage(pack, true), nil
}

// trialCandidates are the language configurations sampled by trial
// recognition, ordered by expected traffic.
var trialCandidates = []LanguageConfig{"eng", "kor", "jpn", "chi_sim"}

// trialSegModes returns the preferred segmentation mode for a candidate
// first, then the alternative.
func trialSegModes(lang LanguageConfig) [2]int {
	if PSMFor(lang) == PSMSingleBlock {
		return [2]int{PSMSingleBlock, PSMAuto}
	}
	return [2]int{PSMAuto, PSMSingleBlock}
}

// SampleResolver runs quick trial recognition passes over the candidate
// languages. It never nominates a language itself: its job is filling the
// evidence pool for the statistical and frequency tiers.
type SampleResolver struct {
	engine          Engine
	probe           *Probe
	minSampleLength int
	noiseFloor      float64
	logger          *logging.Logger
}

// NewSampleResolver creates the trial-pass tier. minSampleLength is the
// shortest extraction accepted as evidence.
func NewSampleResolver(engine Engine, probe *Probe, minSampleLength int, noiseFloor float64) *SampleResolver {
	if minSampleLength <= 0 {
		minSampleLength = 20
	}
	return &SampleResolver{
		engine:          engine,
		probe:           probe,
		minSampleLength: minSampleLength,
		noiseFloor:      noiseFloor,
		logger:          logging.NewLogger("SampleResolver"),
	}
}

func (r *SampleResolver) Name() string { return "sample" }

func (r *SampleResolver) Resolve(ctx context.Context, img *image.Gray, ev *Evidence) (LanguageConfig, error) {
	for _, candidate := range trialCandidates {
		if ctx.Err() != nil {
			break
		}

		avail := r.probe.Check(candidate)
		if !avail.Engine {
			break
		}
		if !avail.Language {
			continue
		}

		// Try both segmentation strategies; documents that confuse one
		// often sample cleanly with the other.
		for _, psm := range trialSegModes(candidate) {
			rec, err := r.engine.Recognize(ctx, img, candidate, psm)
			if err != nil {
				r.logger.Debug("Trial pass failed",
					"language", candidate.String(), "psm", psm, "error", err.Error())
				continue
			}

			text := strings.TrimSpace(rec.Text)
			if len([]rune(text)) <= r.minSampleLength {
				continue
			}
			if len(rec.Tokens) > 0 && meanConfidence(rec.Tokens) <= r.noiseFloor {
				continue
			}
			ev.Add(text)
			break
		}
	}

	return "", nil
}

// StatisticalResolver runs n-gram language detection over the collected
// evidence.
type StatisticalResolver struct{}

func (r *StatisticalResolver) Name() string { return "statistical" }

func (r *StatisticalResolver) Resolve(_ context.Context, _ *image.Gray, ev *Evidence) (LanguageConfig, error) {
	if ev.Empty() {
		return "", nil
	}

	info := whatlanggo.Detect(ev.Combined())
	if !info.IsReliable() {
		return "", nil
	}

	pack, ok := PackForDetectorCode(info.Lang.Iso6391())
	if !ok {
		return "", nil
	}
	return ComposeLanguage(pack, true), nil
}

// latinAuxiliaryRatio is the Latin-character share above which a non-Latin
// winner gets an auxiliary Latin component.
const latinAuxiliaryRatio = 0.2

// FrequencyResolver decides by raw character-class plurality over the
// evidence. It is the last heuristic tier and always produces a candidate
// when any evidence exists.
type FrequencyResolver struct{}

func (r *FrequencyResolver) Name() string { return "frequency" }

func (r *FrequencyResolver) Resolve(_ context.Context, _ *image.Gray, ev *Evidence) (LanguageConfig, error) {
	if ev.Empty() {
		return "", nil
	}

	var hangul, latin, kana, han, total int
	for _, c := range ev.Combined() {
		if unicode.IsSpace(c) {
			continue
		}
		total++
		switch {
		case unicode.Is(unicode.Hangul, c):
			hangul++
		case unicode.Is(unicode.Hiragana, c) || unicode.Is(unicode.Katakana, c):
			kana++
		case unicode.Is(unicode.Han, c):
			han++
		case unicode.Is(unicode.Latin, c):
			latin++
		}
	}
	if total == 0 {
		return "", nil
	}

	primary := "eng"
	max := latin
	if hangul > max {
		primary, max = "kor", hangul
	}
	if kana > max {
		primary, max = "jpn", kana
	}
	if han > max {
		primary, max = "chi_sim", han
	}
	if max == 0 {
		return "", nil
	}
	// Kana only occurs in Japanese, where Han characters usually dominate by
	// count. Any kana presence reclassifies a Han plurality.
	if primary == "chi_sim" && kana > 0 {
		primary = "jpn"
	}

	// The Latin share is measured against script-matched characters only, so
	// digits and punctuation cannot dilute it.
	matched := hangul + kana + han + latin
	withLatin := primary != "eng" && float64(latin)/float64(matched) > latinAuxiliaryRatio
	return ComposeLanguage(primary, withLatin), nil
}
