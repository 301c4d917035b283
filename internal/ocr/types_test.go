package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLanguage(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected LanguageConfig
	}{
		{"empty engages detection", "", ""},
		{"auto engages detection", "auto", ""},
		{"supported single code", "kor", "kor"},
		{"supported composite", "jpn+eng", "jpn+eng"},
		{"multi alias expands", "multi", "kor+eng+jpn+chi_sim+deu+fra+spa"},
		{"unknown code falls back to default", "klingon", DefaultLanguage},
		{"composite with unknown component falls back", "kor+xx", DefaultLanguage},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeLanguage(tc.input))
		})
	}
}

func TestLanguageConfigComponents(t *testing.T) {
	assert.Equal(t, []string{"kor", "eng"}, LanguageConfig("kor+eng").Components())
	assert.Equal(t, []string{"eng"}, LanguageConfig("eng").Components())
	assert.Nil(t, LanguageConfig("").Components())

	assert.Equal(t, "kor", LanguageConfig("kor+eng").Primary())
	assert.Equal(t, "", LanguageConfig("").Primary())
}

func TestComposeLanguage(t *testing.T) {
	assert.Equal(t, LanguageConfig("kor+eng"), ComposeLanguage("kor", true))
	assert.Equal(t, LanguageConfig("kor"), ComposeLanguage("kor", false))
	assert.Equal(t, LanguageConfig("eng"), ComposeLanguage("eng", true))
	assert.Equal(t, LanguageConfig(""), ComposeLanguage("", true))
}

func TestPSMFor(t *testing.T) {
	assert.Equal(t, PSMSingleBlock, PSMFor("kor"))
	assert.Equal(t, PSMSingleBlock, PSMFor("kor+eng"))
	assert.Equal(t, PSMSingleBlock, PSMFor("chi_tra"))
	assert.Equal(t, PSMAuto, PSMFor("eng"))
	assert.Equal(t, PSMAuto, PSMFor("deu+eng"))
}

func TestPackForDetectorCode(t *testing.T) {
	pack, ok := PackForDetectorCode("ko")
	assert.True(t, ok)
	assert.Equal(t, "kor", pack)

	pack, ok = PackForDetectorCode("zh-TW")
	assert.True(t, ok)
	assert.Equal(t, "chi_tra", pack)

	_, ok = PackForDetectorCode("xx")
	assert.False(t, ok)
}

func TestRectUnion(t *testing.T) {
	a := Rect{X: 10, Y: 10, Width: 20, Height: 10}
	b := Rect{X: 40, Y: 5, Width: 10, Height: 30}

	u := a.Union(b)
	assert.Equal(t, Rect{X: 10, Y: 5, Width: 40, Height: 30}, u)
	assert.True(t, u.Contains(a))
	assert.True(t, u.Contains(b))
	assert.False(t, a.Contains(b))
}
