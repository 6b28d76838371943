// Package pipeline_test tests the end-to-end document pipeline composition.
package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/document-speech-service/internal/core"
	"github.com/book-expert/document-speech-service/internal/pipeline"
)

// mockExtractor returns a canned extraction result.
type mockExtractor struct {
	result core.ExtractedText
	err    error
}

func (m *mockExtractor) Extract(_ context.Context, _ core.SourceDocument) (core.ExtractedText, error) {
	return m.result, m.err
}

// mockSynthesizer records the request it received.
type mockSynthesizer struct {
	artifact *core.AudioArtifact
	err      error
	received core.SynthesisRequest
}

func (m *mockSynthesizer) Synthesize(
	_ context.Context,
	request core.SynthesisRequest,
) (*core.AudioArtifact, error) {
	m.received = request

	return m.artifact, m.err
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = log.Close()
	})

	return log
}

func TestProcessRunsAllStages(t *testing.T) {
	t.Parallel()

	extractor := &mockExtractor{
		result: core.ExtractedText{
			Content:      "The quick brown fox jumps over the lazy dog.\nA second line follows here.",
			SourceFormat: core.FormatPDF,
			Method:       core.MethodDirect,
			PageCount:    2,
		},
		err: nil,
	}

	artifact := &core.AudioArtifact{
		Data:         bytes.Repeat([]byte{0x01}, 2048),
		Mime:         core.MimeMP3,
		SizeBytes:    2048,
		ProducedBy:   core.EngineNetwork,
		UsedFallback: false,
	}
	synthesizer := &mockSynthesizer{artifact: artifact, err: nil, received: core.SynthesisRequest{}}

	documentPipeline := pipeline.New(extractor, synthesizer, newTestLogger(t))

	result, err := documentPipeline.Process(context.Background(), core.SourceDocument{
		Data:   []byte("pdf bytes"),
		Format: core.FormatPDF,
	}, core.ModeNetworkPreferred)
	require.NoError(t, err)

	assert.Equal(t, artifact, result.Artifact)
	assert.Equal(t, core.LanguageEnglish, result.Language.Language)
	assert.Equal(t, 2, result.Extracted.PageCount)

	// Synthesis input is the normalized text, single-line, in the decided
	// language and requested mode.
	assert.NotContains(t, synthesizer.received.Text, "\n")
	assert.Equal(t, core.LanguageEnglish, synthesizer.received.Language)
	assert.Equal(t, core.ModeNetworkPreferred, synthesizer.received.Mode)
}

func TestProcessPropagatesExtractionFailure(t *testing.T) {
	t.Parallel()

	extractor := &mockExtractor{
		result: core.ExtractedText{Content: "", SourceFormat: "", Method: "", PageCount: 0},
		err:    core.ErrUnsupportedFormat,
	}
	synthesizer := &mockSynthesizer{artifact: nil, err: nil, received: core.SynthesisRequest{}}

	documentPipeline := pipeline.New(extractor, synthesizer, newTestLogger(t))

	_, err := documentPipeline.Process(context.Background(), core.SourceDocument{
		Data:   []byte("bytes"),
		Format: core.Format("epub"),
	}, core.ModeNetworkPreferred)

	require.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestProcessPropagatesSynthesisFailure(t *testing.T) {
	t.Parallel()

	extractor := &mockExtractor{
		result: core.ExtractedText{
			Content:      "some perfectly fine text",
			SourceFormat: core.FormatText,
			Method:       core.MethodDirect,
			PageCount:    1,
		},
		err: nil,
	}
	synthErr := errors.New("engines are down")
	synthesizer := &mockSynthesizer{artifact: nil, err: synthErr, received: core.SynthesisRequest{}}

	documentPipeline := pipeline.New(extractor, synthesizer, newTestLogger(t))

	_, err := documentPipeline.Process(context.Background(), core.SourceDocument{
		Data:   []byte("bytes"),
		Format: core.FormatText,
	}, core.ModeLocalOnly)

	require.ErrorIs(t, err, synthErr)
}
