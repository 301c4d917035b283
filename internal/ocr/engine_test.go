package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Exercises the real engine binding when the host has it installed;
// otherwise verifies the absence is reported as an error, not a crash.
func TestTesseractEngineVersion(t *testing.T) {
	engine := NewTesseractEngine()

	v, err := engine.Version()
	if err != nil {
		t.Skipf("recognition engine not installed: %v", err)
	}
	assert.NotEmpty(t, v)

	langs, err := engine.Languages()
	assert.NoError(t, err)
	assert.NotEmpty(t, langs)
}
