/**
 * Recognition engine boundary.
 *
 * The Engine interface is the only seam between the pipeline and Tesseract;
 * tests substitute a scripted fake, and the Availability Probe consumes the
 * same interface. TesseractEngine is the production implementation backed by
 * gosseract.
 */

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"
)

// Engine performs synchronous recognition passes over in-memory images.
type Engine interface {
	// Recognize runs one recognition pass at word granularity, returning
	// both the engine's plain-text rendering and the token stream.
	Recognize(ctx context.Context, img image.Image, lang LanguageConfig, psm int) (*Recognition, error)

	// Languages lists the installed language packs.
	Languages() ([]string, error)

	// Version reports the engine version, or an error when the engine is
	// not installed or not usable.
	Version() (string, error)
}

// TesseractEngine is the gosseract-backed Engine implementation. A fresh
// client is created per call: gosseract clients are not safe for concurrent
// reuse, and per-invocation ownership matches the pipeline's resource model.
type TesseractEngine struct{}

// NewTesseractEngine creates a new Tesseract-backed engine.
func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{}
}

// Recognize implements Engine using a single gosseract client for both the
// text pass and the verbose bounding-box pass.
func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image, lang LanguageConfig, psm int) (rec *Recognition, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer recoverToError(&err)

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(lang.Components()...); err != nil {
		return nil, fmt.Errorf("failed to set language %q: %w", lang, err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(psm)); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode %d: %w", psm, err)
	}
	if err := client.SetVariable("preserve_interword_spaces", "1"); err != nil {
		return nil, fmt.Errorf("failed to set engine variable: %w", err)
	}

	encoded, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	if err := client.SetImageFromBytes(encoded); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("recognition failed: %w", err)
	}

	// Word-level layout data. A failed box pass still yields usable text.
	boxes, boxErr := client.GetBoundingBoxesVerbose()
	if boxErr != nil {
		return &Recognition{Text: text}, nil
	}

	tokens := make([]Token, 0, len(boxes))
	for _, box := range boxes {
		tokens = append(tokens, Token{
			Text:       box.Word,
			Confidence: box.Confidence,
			Rect: Rect{
				X:      box.Box.Min.X,
				Y:      box.Box.Min.Y,
				Width:  box.Box.Dx(),
				Height: box.Box.Dy(),
			},
			BlockNum: box.BlockNum,
			ParNum:   box.ParNum,
			LineNum:  box.LineNum,
			WordNum:  box.WordNum,
		})
	}

	return &Recognition{Text: text, Tokens: tokens}, nil
}

// Languages implements Engine via the engine's installed-pack query.
func (e *TesseractEngine) Languages() (langs []string, err error) {
	defer recoverToError(&err)
	return gosseract.GetAvailableLanguages()
}

// Version implements Engine. An empty version string is reported as an
// error so the probe can treat it as "engine absent".
func (e *TesseractEngine) Version() (v string, err error) {
	defer recoverToError(&err)

	client := gosseract.NewClient()
	defer client.Close()

	v = client.Version()
	if v == "" {
		return "", fmt.Errorf("tesseract version unavailable")
	}
	return v, nil
}

// recoverToError converts a panic out of the cgo boundary into an error, so
// capability absence never crashes the worker.
func recoverToError(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("recognition engine panic: %v", r)
	}
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
