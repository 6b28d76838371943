package extract

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"

	"github.com/book-expert/document-speech-service/internal/core"
)

// decodePlainText converts plain-text document bytes to a UTF-8 string. It
// tries UTF-8 first, then UTF-16 when a byte-order mark is present, then
// Windows-1252 as the single-byte fallback. Windows-1252 is chosen over
// ISO-8859-1 because it matches it everywhere except 0x80-0x9F, where it maps
// to the punctuation (smart quotes, dashes) real documents actually carry
// rather than C1 control characters.
func decodePlainText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}

	if decoded, ok := decodeUTF16(data); ok {
		return decoded, nil
	}

	decoded, err := decodeWith(charmap.Windows1252.NewDecoder(), data)
	if err == nil && utf8.ValidString(decoded) {
		return decoded, nil
	}

	return "", fmt.Errorf("%w: text document has no recognizable encoding", core.ErrExtractionFailed)
}

// decodeUTF16 decodes UTF-16 input when a byte-order mark identifies it.
func decodeUTF16(data []byte) (string, bool) {
	hasBOM := bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF})
	if !hasBOM {
		return "", false
	}

	decoder := xunicode.UTF16(xunicode.LittleEndian, xunicode.UseBOM).NewDecoder()

	decoded, err := decodeWith(decoder, data)
	if err != nil {
		return "", false
	}

	return decoded, true
}

// decodeWith runs one decoder over the input.
func decodeWith(decoder *encoding.Decoder, data []byte) (string, error) {
	decoded, err := decoder.Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decoding failed: %w", err)
	}

	return string(decoded), nil
}
