// Package language decides the narration language of extracted text and
// normalizes the text for synthesis.
package language

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"

	"github.com/book-expert/document-speech-service/internal/core"
)

// Detection thresholds and confidence bounds.
const (
	// urduScriptThreshold is the share of Arabic-script letters above which
	// text is treated as Urdu regardless of the statistical verdict.
	urduScriptThreshold = 0.30

	// englishConfidenceFloor is the minimum confidence reported when the
	// pipeline falls back to English without statistical support.
	englishConfidenceFloor = 0.60

	// fallbackConfidence is reported when detection cannot run at all.
	fallbackConfidence = 0.50

	// Statistical confidence grows with sample length from confidenceBase
	// up to confidenceCeiling.
	confidenceBase    = 0.70
	confidenceCeiling = 0.95
	confidenceSpan    = 0.25
	confidenceSample  = 1000
)

// languageNames maps the supported language tags to display names.
var languageNames = map[core.Language]string{
	core.LanguageEnglish: "English",
	core.LanguageUrdu:    "Urdu",
}

// Detect decides the language of the text. The statistical detector's verdict
// is accepted only for the supported languages; any other verdict falls back
// to a script measurement, then to English. Empty input gets the English
// fallback at low confidence.
func Detect(text string) core.LanguageDecision {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return core.LanguageDecision{
			Language:   core.LanguageEnglish,
			Confidence: fallbackConfidence,
		}
	}

	info := whatlanggo.Detect(trimmed)

	switch info.Lang {
	case whatlanggo.Eng:
		return core.LanguageDecision{
			Language:   core.LanguageEnglish,
			Confidence: statisticalConfidence(trimmed),
		}
	case whatlanggo.Urd:
		return core.LanguageDecision{
			Language:   core.LanguageUrdu,
			Confidence: statisticalConfidence(trimmed),
		}
	default:
		// Unsupported verdicts defer to the script measurement: heavy
		// Arabic-script content is narrated as Urdu even when the
		// detector guesses a sibling language.
		if urduScriptRatio(trimmed) > urduScriptThreshold {
			return core.LanguageDecision{
				Language:   core.LanguageUrdu,
				Confidence: statisticalConfidence(trimmed),
			}
		}

		return core.LanguageDecision{
			Language:   core.LanguageEnglish,
			Confidence: englishConfidenceFloor,
		}
	}
}

// Normalize prepares text of a known language for synthesis. Urdu punctuation
// is mapped to its Latin equivalents because both engine families segment
// sentences on Latin punctuation; newlines become spaces so line breaks never
// split a sentence mid-synthesis. Normalize is idempotent.
func Normalize(language core.Language, text string) string {
	if language == core.LanguageUrdu {
		replacer := strings.NewReplacer(
			"۔", ".", // Urdu full stop
			"،", ",", // Arabic comma
			"؟", "?", // Arabic question mark
		)
		text = replacer.Replace(text)
	}

	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")

	return strings.Join(strings.Fields(text), " ")
}

// Prepare runs detection and normalization in one step, returning the
// decision and the synthesis-ready text.
func Prepare(text string) (core.LanguageDecision, string, error) {
	if strings.TrimSpace(text) == "" {
		return core.LanguageDecision{
				Language:   core.LanguageEnglish,
				Confidence: 0,
			}, "",
			fmt.Errorf("%w: no text to prepare", core.ErrEmptyResult)
	}

	decision := Detect(text)
	normalized := Normalize(decision.Language, text)

	return decision, normalized, nil
}

// Name returns the display name of a supported language tag.
func Name(language core.Language) string {
	name, known := languageNames[language]
	if !known {
		return string(language)
	}

	return name
}

// statisticalConfidence scales confidence with sample length. Short snippets
// give the detector little to work with, so they report lower confidence.
func statisticalConfidence(text string) float64 {
	length := len([]rune(text))
	if length > confidenceSample {
		length = confidenceSample
	}

	confidence := confidenceBase + (float64(length)/confidenceSample)*confidenceSpan
	if confidence > confidenceCeiling {
		confidence = confidenceCeiling
	}

	return confidence
}

// urduScriptRatio returns the share of letters that belong to the Arabic
// script.
func urduScriptRatio(text string) float64 {
	var letters, urdu int

	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}

		letters++

		if unicode.Is(unicode.Arabic, r) {
			urdu++
		}
	}

	if letters == 0 {
		return 0
	}

	return float64(urdu) / float64(letters)
}
