// Package extract implements the text-extraction dispatcher and the
// per-format readers, including the text-layer-versus-optical-recognition
// decision for scanned documents.
package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/document-speech-service/internal/core"
)

const (
	tempImagePattern = "page-render-*"
	tempDocPattern   = "document-*"
)

// Options holds the engine binaries and rendering settings the readers need.
type Options struct {
	PdftoppmBinary string
	AntiwordBinary string
	RenderDPI      int
}

// Dispatcher selects the format reader by declared type, applies the
// scanned-page detection for paginated formats, and normalizes the output.
type Dispatcher struct {
	ocr      core.OCREngine
	options  Options
	scrubber *NoiseScrubber
	run      core.CommandRunner
	log      *logger.Logger
}

// NewDispatcher creates a dispatcher. The OCR engine is injected because its
// underlying model is an expensive process-wide resource owned by the caller.
func NewDispatcher(ocrEngine core.OCREngine, options Options, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		ocr:      ocrEngine,
		options:  options,
		scrubber: NewNoiseScrubber(),
		run:      runCommand,
		log:      log,
	}
}

// NewDispatcherWithRunner creates a dispatcher with an injected command
// runner. This constructor is primarily for testing.
func NewDispatcherWithRunner(
	ocrEngine core.OCREngine,
	options Options,
	run core.CommandRunner,
	log *logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		ocr:      ocrEngine,
		options:  options,
		scrubber: NewNoiseScrubber(),
		run:      run,
		log:      log,
	}
}

// Extract converts a source document into text. It fails with
// core.ErrUnsupportedFormat for unknown tags, core.ErrExtractionFailed when a
// reader cannot produce text, and core.ErrEmptyResult when the final text is
// empty after trimming - an empty success is never returned.
func (d *Dispatcher) Extract(ctx context.Context, doc core.SourceDocument) (core.ExtractedText, error) {
	empty := core.ExtractedText{Content: "", SourceFormat: doc.Format, Method: core.MethodDirect, PageCount: 0}

	if len(doc.Data) == 0 {
		return empty, fmt.Errorf("%w: document is empty", core.ErrExtractionFailed)
	}

	result, err := d.read(ctx, doc)
	if err != nil {
		return empty, err
	}

	result.Content = NormalizeWhitespace(result.Content)
	if result.Content == "" {
		return empty, fmt.Errorf("%w: %s document yielded no text", core.ErrEmptyResult, doc.Format)
	}

	return result, nil
}

// read dispatches on the declared format tag.
func (d *Dispatcher) read(ctx context.Context, doc core.SourceDocument) (core.ExtractedText, error) {
	switch doc.Format {
	case core.FormatText:
		content, err := decodePlainText(doc.Data)

		return core.ExtractedText{
			Content:      content,
			SourceFormat: doc.Format,
			Method:       core.MethodDirect,
			PageCount:    1,
		}, err
	case core.FormatPDF:
		return d.extractPDF(ctx, doc.Data)
	case core.FormatDocModern:
		content, err := extractDocx(doc.Data)

		return core.ExtractedText{
			Content:      content,
			SourceFormat: doc.Format,
			Method:       core.MethodDirect,
			PageCount:    1,
		}, err
	case core.FormatSlideDeck:
		content, pageCount, err := extractPptx(doc.Data)

		return core.ExtractedText{
			Content:      content,
			SourceFormat: doc.Format,
			Method:       core.MethodDirect,
			PageCount:    pageCount,
		}, err
	case core.FormatDocLegacy:
		content, err := d.extractLegacyDoc(ctx, doc.Data)

		return core.ExtractedText{
			Content:      content,
			SourceFormat: doc.Format,
			Method:       core.MethodDirect,
			PageCount:    1,
		}, err
	case core.FormatImage:
		content, err := d.extractImage(ctx, doc.Data)

		return core.ExtractedText{
			Content:      content,
			SourceFormat: doc.Format,
			Method:       core.MethodOptical,
			PageCount:    1,
		}, err
	default:
		return core.ExtractedText{
				Content:      "",
				SourceFormat: doc.Format,
				Method:       core.MethodDirect,
				PageCount:    0,
			},
			fmt.Errorf("%w: '%s'", core.ErrUnsupportedFormat, doc.Format)
	}
}

// extractImage runs optical recognition directly; image formats have no text
// layer to try first.
func (d *Dispatcher) extractImage(ctx context.Context, data []byte) (string, error) {
	imagePath, cleanup, err := writeTempFile(data, tempDocPattern)
	if err != nil {
		return "", err
	}
	defer cleanup()

	recognized, err := d.ocr.Recognize(ctx, imagePath)
	if err != nil {
		return "", fmt.Errorf("optical recognition failed: %w", err)
	}

	return d.scrubber.Scrub(recognized), nil
}

// extractLegacyDoc delegates legacy Word documents to the antiword binary.
func (d *Dispatcher) extractLegacyDoc(ctx context.Context, data []byte) (string, error) {
	docPath, cleanup, err := writeTempFile(data, tempDocPattern)
	if err != nil {
		return "", err
	}
	defer cleanup()

	output, err := d.run(ctx, d.options.AntiwordBinary, "-w", "0", docPath)
	if err != nil {
		return "", fmt.Errorf("%w: legacy document conversion: %s", core.ErrExtractionFailed, err)
	}

	return string(output), nil
}

// writeTempFile materializes document bytes for engines that only accept file
// paths. The returned cleanup is safe on every exit path.
func writeTempFile(data []byte, pattern string) (path string, cleanup func(), err error) {
	file, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	cleanup = func() {
		removeErr := os.Remove(file.Name())
		if removeErr != nil && !os.IsNotExist(removeErr) {
			// Best-effort cleanup; nothing actionable beyond the attempt.
			_ = removeErr
		}
	}

	_, writeErr := file.Write(data)
	closeErr := file.Close()

	if writeErr != nil {
		cleanup()

		return "", nil, fmt.Errorf("failed to write temp file: %w", writeErr)
	}

	if closeErr != nil {
		cleanup()

		return "", nil, fmt.Errorf("failed to close temp file: %w", closeErr)
	}

	return file.Name(), cleanup, nil
}

// runCommand executes an engine binary and returns stdout, folding stderr
// into the error for diagnostics.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr strings.Builder

	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("command '%s' failed: %w - stderr: %s", name, err, stderr.String())
	}

	return output, nil
}
