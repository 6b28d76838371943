package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/book-expert/document-speech-service/internal/core"
)

// OOXML archive entry paths.
const (
	docxDocumentEntry   = "word/document.xml"
	pptxSlideEntryFmt   = "ppt/slides/slide%d.xml"
	wordprocessingSpace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	drawingSpace        = "http://schemas.openxmlformats.org/drawingml/2006/main"
)

// extractDocx pulls the paragraph text out of a modern Word document. Only
// the main document part is read; headers, footers and comments are page
// furniture the narration should not include.
func extractDocx(data []byte) (string, error) {
	entry, err := openArchiveEntry(data, docxDocumentEntry)
	if err != nil {
		return "", err
	}

	paragraphs, err := wordParagraphs(entry)
	if err != nil {
		return "", err
	}

	return strings.Join(paragraphs, "\n"), nil
}

// extractPptx pulls the text runs out of every slide, in slide order. The
// slide count doubles as the document's page count.
func extractPptx(data []byte) (string, int, error) {
	archive, err := openArchive(data)
	if err != nil {
		return "", 0, err
	}

	var slides []string

	// Slide entries are numbered from one with no gaps; iterating by index
	// preserves presentation order regardless of archive entry order.
	for slideNum := 1; ; slideNum++ {
		entryName := fmt.Sprintf(pptxSlideEntryFmt, slideNum)

		entry, found := readArchiveEntry(archive, entryName)
		if !found {
			break
		}

		slideText, parseErr := slideRuns(entry)
		if parseErr != nil {
			return "", 0, parseErr
		}

		slides = append(slides, slideText)
	}

	if len(slides) == 0 {
		return "", 0, fmt.Errorf("%w: presentation has no slides", core.ErrExtractionFailed)
	}

	return strings.Join(slides, "\n\n"), len(slides), nil
}

// wordParagraphs walks the document XML token stream, collecting text runs
// grouped by paragraph and mapping explicit tabs and breaks to whitespace.
func wordParagraphs(content []byte) ([]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)

	for {
		token, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				break
			}

			return nil, fmt.Errorf("%w: malformed document XML: %s", core.ErrExtractionFailed, err)
		}

		switch element := token.(type) {
		case xml.StartElement:
			if element.Name.Space != wordprocessingSpace {
				continue
			}

			switch element.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte(' ')
			case "br":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			if element.Name.Space != wordprocessingSpace {
				continue
			}

			switch element.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(element)
			}
		}
	}

	return paragraphs, nil
}

// slideRuns collects the drawing-markup text runs of one slide, one line per
// run.
func slideRuns(content []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(content))

	var (
		runs   []string
		inText bool
	)

	for {
		token, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				break
			}

			return "", fmt.Errorf("%w: malformed slide XML: %s", core.ErrExtractionFailed, err)
		}

		switch element := token.(type) {
		case xml.StartElement:
			if element.Name.Space == drawingSpace && element.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			if element.Name.Space == drawingSpace && element.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				runs = append(runs, string(element))
			}
		}
	}

	return strings.Join(runs, "\n"), nil
}

// openArchive opens the document bytes as a ZIP archive.
func openArchive(data []byte) (*zip.Reader, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: document is not a valid archive: %s", core.ErrExtractionFailed, err)
	}

	return archive, nil
}

// openArchiveEntry opens the archive and reads one required entry.
func openArchiveEntry(data []byte, name string) ([]byte, error) {
	archive, err := openArchive(data)
	if err != nil {
		return nil, err
	}

	entry, found := readArchiveEntry(archive, name)
	if !found {
		return nil, fmt.Errorf("%w: archive entry '%s' is missing", core.ErrExtractionFailed, name)
	}

	return entry, nil
}

// readArchiveEntry reads one entry's full contents when present.
func readArchiveEntry(archive *zip.Reader, name string) ([]byte, bool) {
	for _, file := range archive.File {
		if file.Name != name {
			continue
		}

		reader, err := file.Open()
		if err != nil {
			return nil, false
		}

		content, readErr := io.ReadAll(reader)
		closeErr := reader.Close()

		if readErr != nil || closeErr != nil {
			return nil, false
		}

		return content, true
	}

	return nil, false
}
