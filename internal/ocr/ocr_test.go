/**
 * Shared test doubles and image fixtures for the recognition pipeline.
 */

package ocr

import (
	"context"
	"image"
	"image/color"
)

// fakeEngine is a scripted Engine. The recognize hook receives the call
// sequence number so tests can vary responses per pass.
type fakeEngine struct {
	version    string
	versionErr error
	langs      []string
	langsErr   error
	recognize  func(call int, lang LanguageConfig, psm int) (*Recognition, error)

	versionCalls   int
	languagesCalls int
	recognizeCalls int
}

func (f *fakeEngine) Recognize(ctx context.Context, img image.Image, lang LanguageConfig, psm int) (*Recognition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	call := f.recognizeCalls
	f.recognizeCalls++
	return f.recognize(call, lang, psm)
}

func (f *fakeEngine) Languages() ([]string, error) {
	f.languagesCalls++
	return f.langs, f.langsErr
}

func (f *fakeEngine) Version() (string, error) {
	f.versionCalls++
	if f.versionErr != nil {
		return "", f.versionErr
	}
	if f.version == "" {
		return "5.3.0", nil
	}
	return f.version, nil
}

// installedEngine returns a fake with the common CJK+Latin packs and a fixed
// recognition response.
func installedEngine(rec *Recognition) *fakeEngine {
	return &fakeEngine{
		langs: []string{"eng", "kor", "jpn", "chi_sim"},
		recognize: func(int, LanguageConfig, int) (*Recognition, error) {
			return rec, nil
		},
	}
}

// fakeOracle is a scripted Oracle.
type fakeOracle struct {
	lang       string
	confidence float64
	detectErr  error
	text       string
	extractErr error

	detectCalls  int
	extractCalls int
}

func (f *fakeOracle) DetectLanguage(ctx context.Context, img image.Image) (string, float64, error) {
	f.detectCalls++
	return f.lang, f.confidence, f.detectErr
}

func (f *fakeOracle) ExtractText(ctx context.Context, img image.Image) (string, error) {
	f.extractCalls++
	return f.text, f.extractErr
}

// uniformGray builds a w x h grayscale image filled with one value.
func uniformGray(w, h int, value uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: value})
		}
	}
	return img
}

// bimodalGray builds an image whose left half is dark and right half light.
func bimodalGray(w, h int, dark, light uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := dark
			if x >= w/2 {
				v = light
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// tokensWithConfidence builds a single-line token stream with the given
// confidences.
func tokensWithConfidence(confs ...float64) []Token {
	tokens := make([]Token, 0, len(confs))
	for i, c := range confs {
		tokens = append(tokens, Token{
			Text:       "w",
			Confidence: c,
			Rect:       Rect{X: i * 10, Y: 0, Width: 8, Height: 10},
			BlockNum:   1,
			ParNum:     1,
			LineNum:    1,
			WordNum:    i + 1,
		})
	}
	return tokens
}
