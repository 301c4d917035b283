/**
 * Layout-aware text extraction.
 *
 * Tokens from a recognition pass are regrouped into the engine's block and
 * line structure: words join into lines with single spaces, lines join into
 * blocks with newlines, and each block carries the union rectangle and mean
 * confidence of its surviving tokens. Low-confidence tokens are dropped from
 * blocks but kept in the full text, which stays an unfiltered record of the
 * pass.
 */

package ocr

import (
	"errors"
	"sort"
	"strings"
)

// Terminal capability errors. These are not retryable: the host is missing
// the engine or a language pack.
var (
	ErrEngineUnavailable   = errors.New("recognition engine is not installed")
	ErrLanguagePackMissing = errors.New("required language pack is not installed")
)

// Extractor assembles layout blocks from recognition tokens.
type Extractor struct {
	confidenceThreshold float64
}

// NewExtractor creates an extractor. Tokens below threshold (0-100) are
// excluded from blocks.
func NewExtractor(confidenceThreshold float64) *Extractor {
	return &Extractor{confidenceThreshold: confidenceThreshold}
}

// Extract returns the unfiltered full text and the confidence-filtered
// layout blocks of one recognition pass. When the pass produced no token
// stream the engine's plain text stands in for the full text and no blocks
// are emitted.
func (x *Extractor) Extract(rec *Recognition) (string, []Block) {
	if rec == nil {
		return "", nil
	}
	if len(rec.Tokens) == 0 {
		return rec.Text, nil
	}

	var words []string
	for _, t := range rec.Tokens {
		if w := strings.TrimSpace(t.Text); w != "" {
			words = append(words, w)
		}
	}
	fullText := strings.Join(words, " ")

	return fullText, x.buildBlocks(rec.Tokens)
}

// lineKey orders lines within a block by paragraph then line number.
type lineKey struct {
	par  int
	line int
}

func (x *Extractor) buildBlocks(tokens []Token) []Block {
	grouped := make(map[int]map[lineKey][]Token)
	for _, t := range tokens {
		if t.Confidence < x.confidenceThreshold {
			continue
		}
		if strings.TrimSpace(t.Text) == "" {
			continue
		}

		lines, ok := grouped[t.BlockNum]
		if !ok {
			lines = make(map[lineKey][]Token)
			grouped[t.BlockNum] = lines
		}
		k := lineKey{par: t.ParNum, line: t.LineNum}
		lines[k] = append(lines[k], t)
	}

	blockNums := make([]int, 0, len(grouped))
	for num := range grouped {
		blockNums = append(blockNums, num)
	}
	sort.Ints(blockNums)

	blocks := make([]Block, 0, len(blockNums))
	for _, num := range blockNums {
		lines := grouped[num]

		keys := make([]lineKey, 0, len(lines))
		for k := range lines {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].par != keys[j].par {
				return keys[i].par < keys[j].par
			}
			return keys[i].line < keys[j].line
		})

		var lineTexts []string
		var rect Rect
		var confSum float64
		var confN int
		first := true
		for _, k := range keys {
			toks := lines[k]
			sort.Slice(toks, func(i, j int) bool { return toks[i].WordNum < toks[j].WordNum })

			lineWords := make([]string, 0, len(toks))
			for _, t := range toks {
				lineWords = append(lineWords, strings.TrimSpace(t.Text))
				if first {
					rect = t.Rect
					first = false
				} else {
					rect = rect.Union(t.Rect)
				}
				confSum += t.Confidence
				confN++
			}
			lineTexts = append(lineTexts, strings.Join(lineWords, " "))
		}

		if confN == 0 {
			continue
		}
		blocks = append(blocks, Block{
			Text:       strings.Join(lineTexts, "\n"),
			Rect:       rect,
			Confidence: confSum / float64(confN),
		})
	}

	return blocks
}
