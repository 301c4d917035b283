/**
 * Text normalization for recognition output.
 *
 * Applied to both the full text and per-block text before anything is
 * persisted or returned. Normalization is idempotent: running it twice
 * yields the same string.
 */

package ocr

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText canonicalizes recognition output: NFC composition, ASCII
// folding of full-width forms, newline unification and whitespace-run
// collapsing. Whitespace runs containing a line break collapse to a single
// newline, all others to a single space.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}

	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var b strings.Builder
	b.Grow(len(s))

	pendingSpace := false
	pendingNewline := false
	flush := func() {
		if pendingNewline {
			b.WriteByte('\n')
		} else if pendingSpace {
			b.WriteByte(' ')
		}
		pendingSpace = false
		pendingNewline = false
	}

	for _, r := range s {
		if r == '\n' {
			pendingSpace = true
			pendingNewline = true
			continue
		}
		if unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}

		if b.Len() > 0 {
			flush()
		} else {
			pendingSpace = false
			pendingNewline = false
		}
		b.WriteRune(foldFullWidth(r))
	}

	return b.String()
}

// foldFullWidth maps full-width ASCII variants (U+FF01..U+FF5E) to their
// ASCII counterparts. Other runes pass through. The ideographic space is
// already handled by whitespace collapsing.
func foldFullWidth(r rune) rune {
	if r >= 0xFF01 && r <= 0xFF5E {
		return r - 0xFEE0
	}
	return r
}
