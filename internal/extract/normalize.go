package extract

import (
	"html"
	"strings"
	"unicode"
)

// urduDominanceRatio is the share of letters that must be Arabic-script before
// short Latin-only tokens are treated as recognition noise.
const urduDominanceRatio = 0.60

// latinNoiseMaxLength is the longest Latin-only token dropped from
// Urdu-dominant text; real English loanwords embedded in Urdu are longer.
const latinNoiseMaxLength = 3

// NormalizeWhitespace collapses runs of spaces and tabs into single spaces,
// collapses runs of newlines into single newlines, and trims the result. It is
// idempotent and applied to every reader's output.
func NormalizeWhitespace(text string) string {
	var builder strings.Builder

	builder.Grow(len(text))

	pendingSpace := false
	pendingNewline := false
	started := false

	for _, r := range text {
		switch {
		case r == '\n' || r == '\r':
			pendingNewline = true
			pendingSpace = false
		case r == ' ' || r == '\t':
			if !pendingNewline {
				pendingSpace = true
			}
		default:
			if started {
				if pendingNewline {
					builder.WriteByte('\n')
				} else if pendingSpace {
					builder.WriteByte(' ')
				}
			}

			pendingNewline = false
			pendingSpace = false
			started = true

			builder.WriteRune(r)
		}
	}

	return builder.String()
}

// NoiseScrubber removes recognition artifacts from optically extracted text:
// stray markup entities, parenthesized fragments, bracket characters, isolated
// single Latin letters, punctuation-only tokens, and short Latin fragments
// inside Urdu-dominant text. It never touches directly extracted text, so a
// caller that wants a different cleanup policy can swap it at the dispatcher.
type NoiseScrubber struct{}

// NewNoiseScrubber returns the default scrubber.
func NewNoiseScrubber() *NoiseScrubber {
	return &NoiseScrubber{}
}

// Scrub applies the full cleanup pass and returns the cleaned text.
func (s *NoiseScrubber) Scrub(text string) string {
	text = html.UnescapeString(text)
	text = stripParenthesized(text)
	text = stripBrackets(text)

	urduDominant := urduLetterRatio(text) > urduDominanceRatio

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = scrubLine(line, urduDominant)
	}

	return NormalizeWhitespace(strings.Join(lines, "\n"))
}

// scrubLine filters the tokens of one line.
func scrubLine(line string, urduDominant bool) string {
	tokens := strings.Fields(line)
	kept := make([]string, 0, len(tokens))

	for i, token := range tokens {
		if isPunctuationOnly(token) {
			continue
		}

		if isIsolatedLatinLetter(token) && !adjacentToUrdu(tokens, i) {
			continue
		}

		if urduDominant && isShortLatinNoise(token) {
			continue
		}

		kept = append(kept, token)
	}

	return strings.Join(kept, " ")
}

// stripParenthesized removes parenthesized fragments, which in optical output
// are almost always page furniture rather than prose. Unbalanced parentheses
// are dropped as bare characters.
func stripParenthesized(text string) string {
	var builder strings.Builder

	builder.Grow(len(text))

	depth := 0

	for _, r := range text {
		switch {
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			builder.WriteRune(r)
		}
	}

	return builder.String()
}

// stripBrackets removes bracket and angle characters outright, keeping their
// contents.
func stripBrackets(text string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '{', '}', '<', '>':
			return -1
		default:
			return r
		}
	}, text)
}

// isIsolatedLatinLetter reports whether the token is a single Latin letter.
// Standalone "a" and "I" are legitimate English words and are kept.
func isIsolatedLatinLetter(token string) bool {
	runes := []rune(token)
	if len(runes) != 1 {
		return false
	}

	r := runes[0]
	if r == 'a' || r == 'A' || r == 'I' || r == 'i' {
		return false
	}

	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// adjacentToUrdu reports whether a neighboring token contains Arabic-script
// letters. Single Latin letters next to Urdu text are usually list markers or
// variable names worth keeping.
func adjacentToUrdu(tokens []string, index int) bool {
	if index > 0 && containsUrduLetter(tokens[index-1]) {
		return true
	}

	if index+1 < len(tokens) && containsUrduLetter(tokens[index+1]) {
		return true
	}

	return false
}

// isPunctuationOnly reports whether the token carries no letters or digits.
func isPunctuationOnly(token string) bool {
	for _, r := range token {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}

	return len(token) > 0
}

// isShortLatinNoise reports whether the token is a short run of Latin letters
// with no other script content. Single letters are governed by the isolated
// letter rule instead, which knows about adjacency.
func isShortLatinNoise(token string) bool {
	runes := []rune(token)
	if len(runes) < 2 || len(runes) > latinNoiseMaxLength {
		return false
	}

	for _, r := range runes {
		isLatin := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !isLatin {
			return false
		}
	}

	return true
}

// containsUrduLetter reports whether the string has any Arabic-script rune.
func containsUrduLetter(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Arabic, r) {
			return true
		}
	}

	return false
}

// urduLetterRatio returns the share of letters in the text that belong to the
// Arabic script. Non-letter runes are excluded from the denominator so
// punctuation-heavy optical output does not skew the measurement.
func urduLetterRatio(text string) float64 {
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
