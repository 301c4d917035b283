package ocr

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubResolver always returns a fixed candidate.
type stubResolver struct {
	name      string
	candidate LanguageConfig
	err       error
	calls     int
}

func (s *stubResolver) Name() string { return s.name }

func (s *stubResolver) Resolve(_ context.Context, _ *image.Gray, _ *Evidence) (LanguageConfig, error) {
	s.calls++
	return s.candidate, s.err
}

func TestCascadeFirstValidatedCandidateWins(t *testing.T) {
	engine := &fakeEngine{langs: []string{"eng", "kor"}}
	probe := NewProbe(engine)

	first := &stubResolver{name: "first", candidate: "kor"}
	second := &stubResolver{name: "second", candidate: "eng"}
	cascade := NewCascade(probe, DefaultLanguage, first, second)

	lang := cascade.Resolve(context.Background(), uniformGray(10, 10, 128))
	assert.Equal(t, LanguageConfig("kor"), lang)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls, "later tiers are not consulted")
}

func TestCascadeSkipsUninstalledCandidate(t *testing.T) {
	engine := &fakeEngine{langs: []string{"eng", "kor"}}
	probe := NewProbe(engine)

	// "tha" is a known code but its pack is not installed.
	first := &stubResolver{name: "first", candidate: "tha"}
	second := &stubResolver{name: "second", candidate: "eng"}
	cascade := NewCascade(probe, DefaultLanguage, first, second)

	lang := cascade.Resolve(context.Background(), uniformGray(10, 10, 128))
	assert.Equal(t, LanguageConfig("eng"), lang)
}

func TestCascadeTierErrorContinues(t *testing.T) {
	engine := &fakeEngine{langs: []string{"eng"}}
	probe := NewProbe(engine)

	first := &stubResolver{name: "first", err: errors.New("tier broke")}
	second := &stubResolver{name: "second", candidate: "eng"}
	cascade := NewCascade(probe, DefaultLanguage, first, second)

	lang := cascade.Resolve(context.Background(), uniformGray(10, 10, 128))
	assert.Equal(t, LanguageConfig("eng"), lang)
}

func TestCascadeExhaustedUsesFallback(t *testing.T) {
	engine := &fakeEngine{langs: []string{"eng", "kor"}}
	probe := NewProbe(engine)

	cascade := NewCascade(probe, "kor+eng", &stubResolver{name: "empty"})
	lang := cascade.Resolve(context.Background(), uniformGray(10, 10, 128))
	assert.Equal(t, LanguageConfig("kor+eng"), lang)
}

// seedResolver fills the evidence pool without nominating a candidate, like
// the sampling tier does.
type seedResolver struct {
	sample string
}

func (s *seedResolver) Name() string { return "seed" }

func (s *seedResolver) Resolve(_ context.Context, _ *image.Gray, ev *Evidence) (LanguageConfig, error) {
	ev.Add(s.sample)
	return "", nil
}

// A document yielding only digits and punctuation gives the statistical and
// frequency tiers nothing to match, so the cascade closes on the default.
func TestCascadeNumericEvidenceFallsThroughToDefault(t *testing.T) {
	engine := &fakeEngine{langs: []string{"eng", "kor", "jpn", "chi_sim"}}
	probe := NewProbe(engine)

	cascade := NewCascade(probe, "kor+eng",
		&seedResolver{sample: "010-1234-5678 / #42 (99.5%)"},
		&StatisticalResolver{},
		&FrequencyResolver{},
	)

	lang := cascade.Resolve(context.Background(), uniformGray(10, 10, 128))
	assert.Equal(t, LanguageConfig("kor+eng"), lang)
}

func TestOracleResolver(t *testing.T) {
	img := uniformGray(10, 10, 128)

	t.Run("confident detection maps to pack with latin auxiliary", func(t *testing.T) {
		r := NewOracleResolver(&fakeOracle{lang: "ko", confidence: 0.92})
		lang, err := r.Resolve(context.Background(), img, &Evidence{})
		require.NoError(t, err)
		assert.Equal(t, LanguageConfig("kor+eng"), lang)
	})

	t.Run("english stays single", func(t *testing.T) {
		r := NewOracleResolver(&fakeOracle{lang: "en", confidence: 0.9})
		lang, err := r.Resolve(context.Background(), img, &Evidence{})
		require.NoError(t, err)
		assert.Equal(t, LanguageConfig("eng"), lang)
	})

	t.Run("low confidence yields no candidate", func(t *testing.T) {
		r := NewOracleResolver(&fakeOracle{lang: "ko", confidence: 0.3})
		lang, err := r.Resolve(context.Background(), img, &Evidence{})
		require.NoError(t, err)
		assert.Equal(t, LanguageConfig(""), lang)
	})

	t.Run("unknown code yields no candidate", func(t *testing.T) {
		r := NewOracleResolver(&fakeOracle{lang: "tlh", confidence: 0.99})
		lang, err := r.Resolve(context.Background(), img, &Evidence{})
		require.NoError(t, err)
		assert.Equal(t, LanguageConfig(""), lang)
	})

	t.Run("nil oracle passes", func(t *testing.T) {
		r := NewOracleResolver(nil)
		lang, err := r.Resolve(context.Background(), img, &Evidence{})
		require.NoError(t, err)
		assert.Equal(t, LanguageConfig(""), lang)
	})

	t.Run("oracle error propagates", func(t *testing.T) {
		r := NewOracleResolver(&fakeOracle{detectErr: errors.New("oracle down")})
		_, err := r.Resolve(context.Background(), img, &Evidence{})
		assert.Error(t, err)
	})
}

func TestSampleResolverFillsEvidence(t *testing.T) {
	korean := strings.Repeat("안녕하세요 반갑습니다 ", 3)
	engine := &fakeEngine{
		langs: []string{"eng", "kor", "jpn", "chi_sim"},
		recognize: func(call int, lang LanguageConfig, psm int) (*Recognition, error) {
			if lang == "kor" {
				return &Recognition{Text: korean, Tokens: tokensWithConfidence(85)}, nil
			}
			// Other trials produce noise below the sample threshold.
			return &Recognition{Text: "xx"}, nil
		},
	}
	probe := NewProbe(engine)
	r := NewSampleResolver(engine, probe, 20, 0)

	ev := &Evidence{}
	lang, err := r.Resolve(context.Background(), uniformGray(10, 10, 128), ev)
	require.NoError(t, err)
	assert.Equal(t, LanguageConfig(""), lang, "sampling never nominates directly")
	require.False(t, ev.Empty())
	assert.Contains(t, ev.Combined(), "안녕하세요")
	assert.NotContains(t, ev.Combined(), "xx")
}

func TestSampleResolverSkipsMissingPacks(t *testing.T) {
	engine := &fakeEngine{
		langs: []string{"eng"},
		recognize: func(call int, lang LanguageConfig, psm int) (*Recognition, error) {
			return &Recognition{Text: strings.Repeat("sampled english text ", 3)}, nil
		},
	}
	probe := NewProbe(engine)
	r := NewSampleResolver(engine, probe, 20, 0)

	ev := &Evidence{}
	_, err := r.Resolve(context.Background(), uniformGray(10, 10, 128), ev)
	require.NoError(t, err)
	// Only the installed "eng" trial ran.
	assert.Equal(t, 1, engine.recognizeCalls)
	assert.False(t, ev.Empty())
}

func TestStatisticalResolver(t *testing.T) {
	r := &StatisticalResolver{}

	t.Run("korean evidence", func(t *testing.T) {
		ev := &Evidence{}
		ev.Add(strings.Repeat("안녕하세요 오늘 날씨가 참 좋습니다 ", 4))
		lang, err := r.Resolve(context.Background(), nil, ev)
		require.NoError(t, err)
		assert.Equal(t, LanguageConfig("kor+eng"), lang)
	})

	t.Run("empty evidence passes", func(t *testing.T) {
		lang, err := r.Resolve(context.Background(), nil, &Evidence{})
		require.NoError(t, err)
		assert.Equal(t, LanguageConfig(""), lang)
	})
}

func TestFrequencyResolver(t *testing.T) {
	r := &FrequencyResolver{}

	testCases := []struct {
		name     string
		sample   string
		expected LanguageConfig
	}{
		{
			name:     "hangul plurality without latin auxiliary",
			sample:   "안녕하세요반갑습니다 hi",
			expected: "kor",
		},
		{
			name:     "hangul plurality with latin auxiliary",
			sample:   "안녕하세요반갑습니다 good day",
			expected: "kor+eng",
		},
		{
			name:     "latin plurality",
			sample:   "mostly english words here 한",
			expected: "eng",
		},
		{
			name:     "kana plurality",
			sample:   "これはてすとのぶんしょうです",
			expected: "jpn",
		},
		{
			name:     "han plurality",
			sample:   "这是一段中文测试文本内容",
			expected: "chi_sim",
		},
		{
			name:     "han plurality with kana present is japanese",
			sample:   "日本語書類作成の件について",
			expected: "jpn",
		},
		{
			// Digits and punctuation must not dilute the Latin share: the
			// ratio is taken over script-matched characters only.
			name:     "digit-heavy sample keeps latin auxiliary",
			sample:   "서울특별시강남구 Tel 010-1234-5678 02-99",
			expected: "kor+eng",
		},
		{
			name:     "digits and punctuation only yield no candidate",
			sample:   "010-1234-5678 / #42 (99.5%)",
			expected: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ev := &Evidence{}
			ev.Add(tc.sample)
			lang, err := r.Resolve(context.Background(), nil, ev)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, lang)
		})
	}

	t.Run("empty evidence passes", func(t *testing.T) {
		lang, err := r.Resolve(context.Background(), nil, &Evidence{})
		require.NoError(t, err)
		assert.Equal(t, LanguageConfig(""), lang)
	})
}
