package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractGroupsBlocksAndLines(t *testing.T) {
	tokens := []Token{
		// Block 1, line 1.
		{Text: "Invoice", Confidence: 95, Rect: Rect{X: 10, Y: 10, Width: 60, Height: 20}, BlockNum: 1, ParNum: 1, LineNum: 1, WordNum: 1},
		{Text: "#42", Confidence: 90, Rect: Rect{X: 80, Y: 10, Width: 30, Height: 20}, BlockNum: 1, ParNum: 1, LineNum: 1, WordNum: 2},
		// Block 1, line 2.
		{Text: "2026-08-01", Confidence: 88, Rect: Rect{X: 10, Y: 40, Width: 90, Height: 20}, BlockNum: 1, ParNum: 1, LineNum: 2, WordNum: 1},
		// Block 2, single line.
		{Text: "Total", Confidence: 92, Rect: Rect{X: 10, Y: 200, Width: 40, Height: 20}, BlockNum: 2, ParNum: 1, LineNum: 1, WordNum: 1},
		{Text: "100", Confidence: 91, Rect: Rect{X: 60, Y: 200, Width: 30, Height: 20}, BlockNum: 2, ParNum: 1, LineNum: 1, WordNum: 2},
	}
	rec := &Recognition{Text: "engine text", Tokens: tokens}

	fullText, blocks := NewExtractor(30).Extract(rec)
	assert.Equal(t, "Invoice #42 2026-08-01 Total 100", fullText)

	require.Len(t, blocks, 2)
	assert.Equal(t, "Invoice #42\n2026-08-01", blocks[0].Text)
	assert.Equal(t, "Total 100", blocks[1].Text)

	// Block rect is the union of its token rects.
	assert.Equal(t, Rect{X: 10, Y: 10, Width: 100, Height: 50}, blocks[0].Rect)
	assert.Equal(t, Rect{X: 10, Y: 200, Width: 80, Height: 20}, blocks[1].Rect)

	assert.InDelta(t, 91, blocks[0].Confidence, 1e-9)
	assert.InDelta(t, 91.5, blocks[1].Confidence, 1e-9)
}

func TestExtractOrdersWordsWithinLine(t *testing.T) {
	tokens := []Token{
		{Text: "third", Confidence: 80, BlockNum: 1, ParNum: 1, LineNum: 1, WordNum: 3},
		{Text: "first", Confidence: 80, BlockNum: 1, ParNum: 1, LineNum: 1, WordNum: 1},
		{Text: "second", Confidence: 80, BlockNum: 1, ParNum: 1, LineNum: 1, WordNum: 2},
	}
	_, blocks := NewExtractor(30).Extract(&Recognition{Tokens: tokens})

	require.Len(t, blocks, 1)
	assert.Equal(t, "first second third", blocks[0].Text)
}

func TestExtractFiltersLowConfidenceFromBlocksOnly(t *testing.T) {
	tokens := []Token{
		{Text: "keep", Confidence: 75, BlockNum: 1, ParNum: 1, LineNum: 1, WordNum: 1},
		{Text: "drop", Confidence: 12, BlockNum: 1, ParNum: 1, LineNum: 1, WordNum: 2},
	}
	fullText, blocks := NewExtractor(30).Extract(&Recognition{Tokens: tokens})

	// Full text keeps everything; blocks only keep confident tokens.
	assert.Equal(t, "keep drop", fullText)
	require.Len(t, blocks, 1)
	assert.Equal(t, "keep", blocks[0].Text)
}

func TestExtractAllTokensFiltered(t *testing.T) {
	tokens := []Token{
		{Text: "noise", Confidence: 5, BlockNum: 1, ParNum: 1, LineNum: 1, WordNum: 1},
	}
	fullText, blocks := NewExtractor(30).Extract(&Recognition{Tokens: tokens})

	assert.Equal(t, "noise", fullText)
	assert.Empty(t, blocks)
}

func TestExtractWithoutTokensFallsBackToPlainText(t *testing.T) {
	fullText, blocks := NewExtractor(30).Extract(&Recognition{Text: "plain engine text"})
	assert.Equal(t, "plain engine text", fullText)
	assert.Nil(t, blocks)
}

func TestExtractNilRecognition(t *testing.T) {
	fullText, blocks := NewExtractor(30).Extract(nil)
	assert.Equal(t, "", fullText)
	assert.Nil(t, blocks)
}

func TestExtractSeparatesParagraphs(t *testing.T) {
	tokens := []Token{
		{Text: "para2", Confidence: 80, BlockNum: 1, ParNum: 2, LineNum: 1, WordNum: 1},
		{Text: "para1", Confidence: 80, BlockNum: 1, ParNum: 1, LineNum: 1, WordNum: 1},
	}
	_, blocks := NewExtractor(30).Extract(&Recognition{Tokens: tokens})

	require.Len(t, blocks, 1)
	assert.Equal(t, "para1\npara2", blocks[0].Text)
}
