package article

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// detectSampleRunes bounds how much text is handed to the detector.
const detectSampleRunes = 2000

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

func languageDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(
				lingua.English, lingua.German, lingua.French, lingua.Spanish,
				lingua.Italian, lingua.Portuguese, lingua.Dutch, lingua.Swedish,
				lingua.Polish, lingua.Russian, lingua.Japanese, lingua.Chinese,
			).
			WithLowAccuracyMode().
			Build()
	})
	return detector
}

// DetectLanguage returns the lower-case ISO 639-1 code of text, or "" when
// the detector cannot decide.
func DetectLanguage(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if r := []rune(text); len(r) > detectSampleRunes {
		text = string(r[:detectSampleRunes])
	}
	lang, ok := languageDetector().DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
