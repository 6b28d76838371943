package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/book-expert/document-speech-service/internal/core"
)

// renderedPageName is the base name pdftoppm appends the image extension to.
const renderedPageName = "page"

// extractPDF walks the document page by page. Each page's embedded text layer
// is used when it carries any non-whitespace content; otherwise the page is
// rendered to an image and recognized optically. A page that fails both paths
// contributes an empty segment so one bad scan cannot sink the document.
func (d *Dispatcher) extractPDF(ctx context.Context, data []byte) (core.ExtractedText, error) {
	empty := core.ExtractedText{Content: "", SourceFormat: core.FormatPDF, Method: core.MethodDirect, PageCount: 0}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return empty, fmt.Errorf("%w: unreadable PDF: %s", core.ErrExtractionFailed, err)
	}

	pageCount := reader.NumPage()
	if pageCount == 0 {
		return empty, fmt.Errorf("%w: PDF has no pages", core.ErrExtractionFailed)
	}

	segments := make([]string, 0, pageCount)

	// The document is written to disk once, lazily, the first time a page
	// needs rendering.
	var pdfPath string

	defer func() {
		if pdfPath != "" {
			_ = os.Remove(pdfPath)
		}
	}()

	usedTextLayer := false
	usedOptical := false

	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		pageText := pageTextLayer(reader, pageNum)
		if strings.TrimSpace(pageText) != "" {
			segments = append(segments, pageText)
			usedTextLayer = true

			continue
		}

		if pdfPath == "" {
			pdfPath, err = persistTempPDF(data)
			if err != nil {
				return empty, err
			}
		}

		recognized, ocrErr := d.recognizePage(ctx, pdfPath, pageNum)
		if ocrErr != nil {
			d.log.Warn("Optical recognition of PDF page %d failed: %v", pageNum, ocrErr)

			segments = append(segments, "")

			continue
		}

		segments = append(segments, recognized)
		usedOptical = true
	}

	method := core.MethodDirect
	if usedOptical && !usedTextLayer {
		method = core.MethodOptical
	}

	return core.ExtractedText{
		Content:      strings.Join(segments, "\n\n"),
		SourceFormat: core.FormatPDF,
		Method:       method,
		PageCount:    pageCount,
	}, nil
}

// pageTextLayer returns the embedded text of one page, or empty when the page
// is missing or its content stream cannot be decoded.
func pageTextLayer(reader *pdf.Reader, pageNum int) string {
	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}

	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}

	return text
}

// recognizePage renders one page at the configured resolution and runs the
// optical engine over the result.
func (d *Dispatcher) recognizePage(ctx context.Context, pdfPath string, pageNum int) (string, error) {
	renderDir, err := os.MkdirTemp("", tempImagePattern)
	if err != nil {
		return "", fmt.Errorf("failed to create render directory: %w", err)
	}

	defer func() {
		_ = os.RemoveAll(renderDir)
	}()

	outputBase := filepath.Join(renderDir, renderedPageName)
	pageArg := strconv.Itoa(pageNum)

	_, err = d.run(ctx, d.options.PdftoppmBinary,
		"-f", pageArg,
		"-l", pageArg,
		"-r", strconv.Itoa(d.options.RenderDPI),
		"-png",
		"-singlefile",
		pdfPath,
		outputBase)
	if err != nil {
		return "", fmt.Errorf("page render failed: %w", err)
	}

	recognized, err := d.ocr.Recognize(ctx, outputBase+".png")
	if err != nil {
		return "", fmt.Errorf("optical recognition failed: %w", err)
	}

	return d.scrubber.Scrub(recognized), nil
}

// persistTempPDF writes the document bytes to a temp file for the renderer.
func persistTempPDF(data []byte) (string, error) {
	file, err := os.CreateTemp("", tempDocPattern+".pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp PDF: %w", err)
	}

	_, writeErr := io.Copy(file, bytes.NewReader(data))
	closeErr := file.Close()

	if writeErr != nil {
		_ = os.Remove(file.Name())

		return "", fmt.Errorf("failed to write temp PDF: %w", writeErr)
	}

	if closeErr != nil {
		_ = os.Remove(file.Name())

		return "", fmt.Errorf("failed to close temp PDF: %w", closeErr)
	}

	return file.Name(), nil
}
