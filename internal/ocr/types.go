/**
 * OCR Types - Shared data structures for the recognition pipeline
 *
 * Tokens and blocks carry the word-level layout metadata the engine reports;
 * blocks are derived once and never mutated afterwards.
 */

package ocr

import "strings"

// Rect represents a bounding rectangle in pixel coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Union returns the smallest rectangle containing both r and other.
func (r Rect) Union(other Rect) Rect {
	x1 := minInt(r.X, other.X)
	y1 := minInt(r.Y, other.Y)
	x2 := maxInt(r.X+r.Width, other.X+other.Width)
	y2 := maxInt(r.Y+r.Height, other.Y+other.Height)
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Contains reports whether other lies entirely within r.
func (r Rect) Contains(other Rect) bool {
	return other.X >= r.X && other.Y >= r.Y &&
		other.X+other.Width <= r.X+r.Width &&
		other.Y+other.Height <= r.Y+r.Height
}

// Token represents one recognized word with position, confidence and the
// block/line membership the engine assigned to it.
type Token struct {
	Text       string
	Confidence float64 // 0-100
	Rect       Rect
	BlockNum   int
	ParNum     int
	LineNum    int
	WordNum    int
}

// Recognition is the raw output of one recognition pass: the engine's plain
// text rendering plus the word-level token stream.
type Recognition struct {
	Text   string
	Tokens []Token
}

// Block is a spatially grouped cluster of recognized lines.
type Block struct {
	Text       string  `json:"text"`
	Rect       Rect    `json:"rect"`
	Confidence float64 `json:"confidence"`
}

// QualityScore records a variant's composite fitness and the component
// measurements that produced it.
type QualityScore struct {
	Score          float64 `json:"score"`
	TextLength     int     `json:"text_length"`
	MeanConfidence float64 `json:"mean_confidence"`
	ScriptRatio    float64 `json:"script_ratio"`
	Contrast       float64 `json:"contrast"`
}

// Result is the pipeline's output contract toward the API layer.
type Result struct {
	FullText string       `json:"full_text"`
	Blocks   []Block      `json:"blocks"`
	Language string       `json:"language"`
	Variant  string       `json:"variant"`
	Score    QualityScore `json:"score"`
}

// LanguageConfig identifies one or more script/language codes joined with '+',
// e.g. "kor" or "jpn+eng". Exactly one config is active per pipeline run.
type LanguageConfig string

// DefaultLanguage is the documented fallback configuration used when every
// resolution tier fails validation.
const DefaultLanguage LanguageConfig = "kor+eng"

// Components splits a composite config into its individual codes.
func (lc LanguageConfig) Components() []string {
	if lc == "" {
		return nil
	}
	return strings.Split(string(lc), "+")
}

// Primary returns the first (dominant) component of the config.
func (lc LanguageConfig) Primary() string {
	parts := lc.Components()
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func (lc LanguageConfig) String() string { return string(lc) }

// ComposeLanguage builds a config from a primary code, appending an auxiliary
// Latin component for non-Latin scripts.
func ComposeLanguage(primary string, withLatin bool) LanguageConfig {
	if primary == "" {
		return ""
	}
	if withLatin && primary != "eng" {
		return LanguageConfig(primary + "+eng")
	}
	return LanguageConfig(primary)
}

// supportedLanguages maps recognized language-pack codes to display names.
var supportedLanguages = map[string]string{
	"kor":     "Korean",
	"eng":     "English",
	"jpn":     "Japanese",
	"chi_sim": "Chinese (Simplified)",
	"chi_tra": "Chinese (Traditional)",
	"deu":     "German",
	"fra":     "French",
	"spa":     "Spanish",
	"rus":     "Russian",
	"ita":     "Italian",
	"por":     "Portuguese",
	"ara":     "Arabic",
	"hin":     "Hindi",
	"vie":     "Vietnamese",
	"tha":     "Thai",
}

// languageAliases maps caller shorthands to concrete configurations.
var languageAliases = map[string]LanguageConfig{
	"multi": "kor+eng+jpn+chi_sim+deu+fra+spa",
}

// detectorToPack maps ISO 639-1 style detector codes to language-pack codes.
var detectorToPack = map[string]string{
	"ko":    "kor",
	"en":    "eng",
	"ja":    "jpn",
	"zh":    "chi_sim",
	"zh-CN": "chi_sim",
	"zh-TW": "chi_tra",
	"de":    "deu",
	"fr":    "fra",
	"es":    "spa",
	"ru":    "rus",
	"it":    "ita",
	"pt":    "por",
	"ar":    "ara",
	"hi":    "hin",
	"vi":    "vie",
	"th":    "tha",
}

// IsSupported reports whether every component of the config is a known
// language-pack code.
func (lc LanguageConfig) IsSupported() bool {
	parts := lc.Components()
	if len(parts) == 0 {
		return false
	}
	for _, p := range parts {
		if _, ok := supportedLanguages[p]; !ok {
			return false
		}
	}
	return true
}

// NormalizeLanguage validates a caller-forced language code, resolving known
// aliases. Unknown codes fall back to the default configuration.
func NormalizeLanguage(code string) LanguageConfig {
	if code == "" || code == "auto" {
		return ""
	}
	if alias, ok := languageAliases[code]; ok {
		return alias
	}
	lc := LanguageConfig(code)
	if !lc.IsSupported() {
		return DefaultLanguage
	}
	return lc
}

// PackForDetectorCode maps a detector language code to a pack code, returning
// false for codes with no installed-pack equivalent.
func PackForDetectorCode(code string) (string, bool) {
	pack, ok := detectorToPack[code]
	return pack, ok
}

// Page segmentation modes used by the pipeline. Values match the engine's
// PSM numbering.
const (
	PSMAuto        = 3
	PSMSingleBlock = 6
)

// PSMFor returns the preferred page-segmentation mode for a configuration.
// CJK scripts segment more reliably as a single uniform block.
func PSMFor(lang LanguageConfig) int {
	switch lang.Primary() {
	case "kor", "jpn", "chi_sim", "chi_tra":
		return PSMSingleBlock
	}
	return PSMAuto
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
