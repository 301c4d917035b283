package ocr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProbeCheck(t *testing.T) {
	engine := &fakeEngine{langs: []string{"eng", "kor"}}
	probe := NewProbe(engine)

	avail := probe.Check("kor+eng")
	assert.True(t, avail.Engine)
	assert.True(t, avail.Language)

	avail = probe.Check("jpn")
	assert.True(t, avail.Engine)
	assert.False(t, avail.Language)

	avail = probe.Check("kor+jpn")
	assert.False(t, avail.Language)
}

func TestProbeMemoizesPerLanguage(t *testing.T) {
	engine := &fakeEngine{langs: []string{"eng", "kor"}}
	probe := NewProbe(engine)

	probe.Check("kor")
	probe.Check("kor")
	probe.Check("kor")
	assert.Equal(t, 1, engine.languagesCalls)

	probe.Check("eng")
	assert.Equal(t, 2, engine.languagesCalls)

	// Engine presence is established exactly once per process.
	assert.Equal(t, 1, engine.versionCalls)
}

func TestProbeEngineAbsent(t *testing.T) {
	engine := &fakeEngine{versionErr: errors.New("not installed")}
	probe := NewProbe(engine)

	avail := probe.Check("kor")
	assert.False(t, avail.Engine)
	assert.False(t, avail.Language)
	// Never queries packs when the engine itself is missing.
	assert.Equal(t, 0, engine.languagesCalls)

	assert.False(t, probe.EngineInstalled())
	assert.Equal(t, 1, engine.versionCalls)
}

func TestProbeEmptyLanguage(t *testing.T) {
	engine := &fakeEngine{langs: []string{"eng"}}
	probe := NewProbe(engine)

	avail := probe.Check("")
	assert.True(t, avail.Engine)
	assert.False(t, avail.Language)
}
