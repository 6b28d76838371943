// Package pipeline composes extraction, language preparation and synthesis
// into the single document-to-audio operation the worker and CLI both run.
package pipeline

import (
	"context"
	"fmt"

	"github.com/book-expert/logger"

	"github.com/book-expert/document-speech-service/internal/core"
	"github.com/book-expert/document-speech-service/internal/language"
)

// Extractor converts a source document into text.
type Extractor interface {
	Extract(ctx context.Context, doc core.SourceDocument) (core.ExtractedText, error)
}

// Synthesizer converts prepared text into an audio artifact.
type Synthesizer interface {
	Synthesize(ctx context.Context, request core.SynthesisRequest) (*core.AudioArtifact, error)
}

// Result is the complete outcome of one document run.
type Result struct {
	Artifact  *core.AudioArtifact
	Language  core.LanguageDecision
	Extracted core.ExtractedText
}

// Pipeline runs documents end to end.
type Pipeline struct {
	extractor   Extractor
	synthesizer Synthesizer
	log         *logger.Logger
}

// New creates a pipeline.
func New(extractor Extractor, synthesizer Synthesizer, log *logger.Logger) *Pipeline {
	return &Pipeline{
		extractor:   extractor,
		synthesizer: synthesizer,
		log:         log,
	}
}

// Process extracts the document's text, decides its language, and synthesizes
// the narration in the requested mode.
func (p *Pipeline) Process(
	ctx context.Context,
	doc core.SourceDocument,
	mode core.Mode,
) (*Result, error) {
	extracted, err := p.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	p.log.Info("Extracted %d characters from %s document (%d pages, %s)",
		len([]rune(extracted.Content)), extracted.SourceFormat,
		extracted.PageCount, extracted.Method)

	decision, prepared, err := language.Prepare(extracted.Content)
	if err != nil {
		return nil, fmt.Errorf("language preparation failed: %w", err)
	}

	p.log.Info("Detected %s with confidence %.2f",
		language.Name(decision.Language), decision.Confidence)

	artifact, err := p.synthesizer.Synthesize(ctx, core.SynthesisRequest{
		Text:     prepared,
		Language: decision.Language,
		Mode:     mode,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	return &Result{
		Artifact:  artifact,
		Language:  decision,
		Extracted: extracted,
	}, nil
}
