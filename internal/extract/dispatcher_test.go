package extract_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/document-speech-service/internal/core"
	"github.com/book-expert/document-speech-service/internal/extract"
)

// mockOCREngine returns canned text or a canned error.
type mockOCREngine struct {
	text string
	err  error
}

func (m *mockOCREngine) Recognize(_ context.Context, _ string) (string, error) {
	return m.text, m.err
}

func newTestDispatcher(t *testing.T, ocrEngine core.OCREngine, run core.CommandRunner) *extract.Dispatcher {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = log.Close()
	})

	options := extract.Options{
		PdftoppmBinary: "pdftoppm",
		AntiwordBinary: "antiword",
		RenderDPI:      300,
	}

	if run == nil {
		return extract.NewDispatcher(ocrEngine, options, log)
	}

	return extract.NewDispatcherWithRunner(ocrEngine, options, run, log)
}

// buildArchive assembles an in-memory ZIP with the given entries.
func buildArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()

	var buffer bytes.Buffer

	writer := zip.NewWriter(&buffer)

	for name, content := range entries {
		entry, err := writer.Create(name)
		require.NoError(t, err)

		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())

	return buffer.Bytes()
}

func TestExtractRejectsUnsupportedFormat(t *testing.T) {
	t.Parallel()

	dispatcher := newTestDispatcher(t, &mockOCREngine{text: "", err: nil}, nil)

	_, err := dispatcher.Extract(context.Background(), core.SourceDocument{
		Data:   []byte("payload"),
		Format: core.Format("epub"),
	})

	require.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestExtractRejectsEmptyDocument(t *testing.T) {
	t.Parallel()

	dispatcher := newTestDispatcher(t, &mockOCREngine{text: "", err: nil}, nil)

	_, err := dispatcher.Extract(context.Background(), core.SourceDocument{
		Data:   nil,
		Format: core.FormatText,
	})

	require.ErrorIs(t, err, core.ErrExtractionFailed)
}

func TestExtractPlainTextUTF8(t *testing.T) {
	t.Parallel()

	dispatcher := newTestDispatcher(t, &mockOCREngine{text: "", err: nil}, nil)

	result, err := dispatcher.Extract(context.Background(), core.SourceDocument{
		Data:   []byte("hello   world\n\n\ngoodbye"),
		Format: core.FormatText,
	})

	require.NoError(t, err)
	assert.Equal(t, "hello world\ngoodbye", result.Content)
	assert.Equal(t, core.MethodDirect, result.Method)
	assert.Equal(t, 1, result.PageCount)
}

func TestExtractPlainTextUTF16(t *testing.T) {
	t.Parallel()

	dispatcher := newTestDispatcher(t, &mockOCREngine{text: "", err: nil}, nil)

	// "hi" in UTF-16 little endian with a byte-order mark.
	data := []byte{0xFF, 0xFE, 'h', 0x00, 'i', 0x00}

	result, err := dispatcher.Extract(context.Background(), core.SourceDocument{
		Data:   data,
		Format: core.FormatText,
	})

	require.NoError(t, err)
	assert.Equal(t, "hi", result.Content)
}

func TestExtractPlainTextSingleByteFallback(t *testing.T) {
	t.Parallel()

	dispatcher := newTestDispatcher(t, &mockOCREngine{text: "", err: nil}, nil)

	// "café" in Latin-1/Windows-1252; the 0xE9 byte is invalid UTF-8.
	data := []byte{'c', 'a', 'f', 0xE9}

	result, err := dispatcher.Extract(context.Background(), core.SourceDocument{
		Data:   data,
		Format: core.FormatText,
	})

	require.NoError(t, err)
	assert.Equal(t, "café", result.Content)
}

func TestExtractPlainTextWindows1252Punctuation(t *testing.T) {
	t.Parallel()

	dispatcher := newTestDispatcher(t, &mockOCREngine{text: "", err: nil}, nil)

	// Smart quotes (0x93, 0x94) and an em dash (0x97) from the 0x80-0x9F
	// range, which ISO-8859-1 would misread as control characters.
	data := []byte{0x93, 'h', 'i', 0x94, ' ', 0x97, ' ', 'b', 'y', 'e'}

	result, err := dispatcher.Extract(context.Background(), core.SourceDocument{
		Data:   data,
		Format: core.FormatText,
	})

	require.NoError(t, err)
	assert.Equal(t, "“hi” — bye", result.Content)
}

func TestExtractWhitespaceOnlyTextFails(t *testing.T) {
	t.Parallel()

	dispatcher := newTestDispatcher(t, &mockOCREngine{text: "", err: nil}, nil)

	_, err := dispatcher.Extract(context.Background(), core.SourceDocument{
		Data:   []byte("   \n\t  "),
		Format: core.FormatText,
	})

	require.ErrorIs(t, err, core.ErrEmptyResult)
}

func TestExtractDocx(t *testing.T) {
	t.Parallel()

	documentXML := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second</w:t></w:r><w:r><w:tab/><w:t>paragraph.</w:t></w:r></w:p>
  </w:body>
</w:document>`

	data := buildArchive(t, map[string]string{"word/document.xml": documentXML})

	dispatcher := newTestDispatcher(t, &mockOCREngine{text: "", err: nil}, nil)

	result, err := dispatcher.Extract(context.Background(), core.SourceDocument{
		Data:   data,
		Format: core.FormatDocModern,
	})

	require.NoError(t, err)
	assert.Equal(t, "First paragraph.\nSecond paragraph.", result.Content)
	assert.Equal(t, core.MethodDirect, result.Method)
}

func TestExtractDocxMissingDocumentPart(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, map[string]string{"word/styles.xml": "<styles/>"})

	dispatcher := newTestDispatcher(t, &mockOCREngine{text: "", err: nil}, nil)

	_, err := dispatcher.Extract(context.Background(), core.SourceDocument{
		Data:   data,
		Format: core.FormatDocModern,
	})

	require.ErrorIs(t, err, core.ErrExtractionFailed)
}

func TestExtractPptxInSlideOrder(t *testing.T) {
	t.Parallel()

	slideXML := func(text string) string {
		return `<?xml version="1.0"?>
<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"
       xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
  <a:t>` + text + `</a:t>
</p:sld>`
	}

	// Entry order deliberately reversed; extraction must follow slide numbers.
	data := buildArchive(t, map[string]string{
		"ppt/slides/slide2.xml": slideXML("second slide"),
		"ppt/slides/slide1.xml": slideXML("first slide"),
	})

	dispatcher := newTestDispatcher(t, &mockOCREngine{text: "", err: nil}, nil)

	result, err := dispatcher.Extract(context.Background(), core.SourceDocument{
		Data:   data,
		Format: core.FormatSlideDeck,
	})

	require.NoError(t, err)
	assert.Equal(t, "first slide\nsecond slide", result.Content)
	assert.Equal(t, 2, result.PageCount)
}

func TestExtractPptxWithoutSlidesFails(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, map[string]string{"ppt/presentation.xml": "<p/>"})

	dispatcher := newTestDispatcher(t, &mockOCREngine{text: "", err: nil}, nil)

	_, err := dispatcher.Extract(context.Background(), core.SourceDocument{
		Data:   data,
		Format: core.FormatSlideDeck,
	})

	require.ErrorIs(t, err, core.ErrExtractionFailed)
}

func TestExtractImageUsesOpticalRecognition(t *testing.T) {
	t.Parallel()

	dispatcher := newTestDispatcher(t, &mockOCREngine{text: "recognized page text", err: nil}, nil)

	result, err := dispatcher.Extract(context.Background(), core.SourceDocument{
		Data:   []byte{0x89, 'P', 'N', 'G'},
		Format: core.FormatImage,
	})

	require.NoError(t, err)
	assert.Equal(t, "recognized page text", result.Content)
	assert.Equal(t, core.MethodOptical, result.Method)
}

func TestExtractImageFailsWhenRecognitionFails(t *testing.T) {
	t.Parallel()

	engineErr := errors.New("no text found")
	dispatcher := newTestDispatcher(t, &mockOCREngine{text: "", err: engineErr}, nil)

	_, err := dispatcher.Extract(context.Background(), core.SourceDocument{
		Data:   []byte{0x89, 'P', 'N', 'G'},
		Format: core.FormatImage,
	})

	require.ErrorIs(t, err, engineErr)
}

func TestExtractLegacyDocUsesConverter(t *testing.T) {
	t.Parallel()

	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, "antiword", name)
		require.NotEmpty(t, args)

		return []byte("converted legacy text"), nil
	}

	dispatcher := newTestDispatcher(t, &mockOCREngine{text: "", err: nil}, run)

	result, err := dispatcher.Extract(context.Background(), core.SourceDocument{
		Data:   []byte("legacy bytes"),
		Format: core.FormatDocLegacy,
	})

	require.NoError(t, err)
	assert.Equal(t, "converted legacy text", result.Content)
}

func TestExtractGarbagePDFFails(t *testing.T) {
	t.Parallel()

	dispatcher := newTestDispatcher(t, &mockOCREngine{text: "", err: nil}, nil)

	_, err := dispatcher.Extract(context.Background(), core.SourceDocument{
		Data:   []byte("this is not a pdf"),
		Format: core.FormatPDF,
	})

	require.ErrorIs(t, err, core.ErrExtractionFailed)
}
