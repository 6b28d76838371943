package synth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/book-expert/document-speech-service/internal/core"
)

// Network engine request shape.
const (
	// maxChunkRunes is the longest text fragment the translation endpoint
	// accepts per request.
	maxChunkRunes = 200

	audioContentTypePrefix = "audio/"
)

// GoogleEngine synthesizes speech through the public translate endpoint. Long
// text is split into sentence-aligned chunks, synthesized sequentially, and
// the MP3 frames are concatenated; MP3 streams are frame-delimited, so plain
// concatenation yields a playable file.
type GoogleEngine struct {
	endpoint     string
	languageCode string
	httpClient   *http.Client
}

// NewGoogleEngine creates a network engine for one language. The endpoint is
// the base URL of the translate_tts route; languageCode is the BCP-47 primary
// subtag the endpoint expects ("en", "ur").
func NewGoogleEngine(endpoint, languageCode string, httpTimeout time.Duration) *GoogleEngine {
	return &GoogleEngine{
		endpoint:     endpoint,
		languageCode: languageCode,
		httpClient: &http.Client{
			Transport:     nil,
			CheckRedirect: nil,
			Jar:           nil,
			Timeout:       httpTimeout,
		},
	}
}

// Kind identifies this engine as network-backed.
func (e *GoogleEngine) Kind() core.EngineKind {
	return core.EngineNetwork
}

// Synthesize converts text to MP3 audio. Any chunk failing fails the whole
// attempt; a partial narration is worse than none.
func (e *GoogleEngine) Synthesize(ctx context.Context, text string) (*core.AudioArtifact, error) {
	chunks := splitChunks(text, maxChunkRunes)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no synthesizable text", core.ErrSynthesisFailed)
	}

	var audio bytes.Buffer

	for _, chunk := range chunks {
		segment, err := e.fetchChunk(ctx, chunk)
		if err != nil {
			return nil, err
		}

		audio.Write(segment)
	}

	data := audio.Bytes()

	return &core.AudioArtifact{
		Data:         data,
		Mime:         core.MimeMP3,
		SizeBytes:    int64(len(data)),
		ProducedBy:   core.EngineNetwork,
		UsedFallback: false,
	}, nil
}

// fetchChunk requests the audio for one chunk and validates the response.
func (e *GoogleEngine) fetchChunk(ctx context.Context, chunk string) ([]byte, error) {
	query := url.Values{}
	query.Set("ie", "UTF-8")
	query.Set("client", "tw-ob")
	query.Set("tl", e.languageCode)
	query.Set("q", chunk)

	requestURL := e.endpoint + "?" + query.Encode()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesis request: %w", err)
	}

	request.Header.Set("User-Agent", "Mozilla/5.0")

	response, err := e.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"%w: synthesis endpoint returned status %d",
			core.ErrSynthesisFailed, response.StatusCode)
	}

	contentType := response.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, audioContentTypePrefix) {
		return nil, fmt.Errorf(
			"%w: synthesis endpoint returned content type '%s'",
			core.ErrCorruptOutput, contentType)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesis response: %w", err)
	}

	if len(body) == 0 {
		return nil, fmt.Errorf("%w: synthesis endpoint returned empty audio", core.ErrCorruptOutput)
	}

	return body, nil
}

// splitChunks breaks text into fragments of at most limit runes, preferring
// sentence boundaries, then word boundaries. A single word longer than the
// limit is split mid-word as a last resort.
func splitChunks(text string, limit int) []string {
	var chunks []string

	for _, sentence := range splitSentences(text) {
		runes := []rune(sentence)
		if len(runes) <= limit {
			chunks = append(chunks, sentence)

			continue
		}

		chunks = append(chunks, splitWords(sentence, limit)...)
	}

	return chunks
}

// splitSentences cuts text after sentence-ending punctuation.
func splitSentences(text string) []string {
	var (
		sentences []string
		current   strings.Builder
	)

	for _, r := range text {
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			sentence := strings.TrimSpace(current.String())
			if sentence != "" {
				sentences = append(sentences, sentence)
			}

			current.Reset()
		}
	}

	tail := strings.TrimSpace(current.String())
	if tail != "" {
		sentences = append(sentences, tail)
	}

	return sentences
}

// splitWords packs words into fragments of at most limit runes.
func splitWords(sentence string, limit int) []string {
	var (
		fragments []string
		current   strings.Builder
		length    int
	)

	flush := func() {
		if current.Len() > 0 {
			fragments = append(fragments, current.String())
			current.Reset()

			length = 0
		}
	}

	for _, word := range strings.Fields(sentence) {
		wordLen := len([]rune(word))

		if wordLen > limit {
			flush()
			fragments = append(fragments, splitRunes(word, limit)...)

			continue
		}

		if length > 0 && length+1+wordLen > limit {
			flush()
		}

		if length > 0 {
			current.WriteByte(' ')

			length++
		}

		current.WriteString(word)

		length += wordLen
	}

	flush()

	return fragments
}

// splitRunes cuts a single oversized word into limit-sized pieces.
func splitRunes(word string, limit int) []string {
	runes := []rune(word)

	var pieces []string

	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}

		pieces = append(pieces, string(runes[start:end]))
	}

	return pieces
}
