// Package core defines the domain model and capability interfaces for the
// document-speech service.
package core

import "context"

// Format identifies the declared format of an uploaded document.
type Format string

// Supported document formats.
const (
	FormatText      Format = "text"
	FormatPDF       Format = "pdf"
	FormatDocLegacy Format = "doc"
	FormatDocModern Format = "docx"
	FormatSlideDeck Format = "pptx"
	FormatImage     Format = "image"
)

// ExtractionMethod records how text was obtained from a document.
type ExtractionMethod string

// Extraction methods.
const (
	// MethodDirect means the text came from a machine-readable text layer.
	MethodDirect ExtractionMethod = "direct"
	// MethodOptical means the text came from optical character recognition.
	MethodOptical ExtractionMethod = "optical"
)

// Language identifies a supported synthesis language.
type Language string

// Supported languages. English is the primary language and the clamp target
// for anything outside the supported set.
const (
	LanguageEnglish Language = "en"
	LanguageUrdu    Language = "ur"
)

// Mode selects between the network-backed provider and the local engine.
type Mode string

// Synthesis modes.
const (
	ModeNetworkPreferred Mode = "network-preferred"
	ModeLocalOnly        Mode = "local-only"
)

// MimeFormat identifies the container format of a synthesized artifact.
type MimeFormat string

// Artifact formats.
const (
	MimeMP3 MimeFormat = "mp3"
	MimeWAV MimeFormat = "wav"
)

// EngineKind identifies which class of engine produced an artifact.
type EngineKind string

// Engine kinds.
const (
	EngineNetwork EngineKind = "network"
	EngineLocal   EngineKind = "local"
)

// SourceDocument is a caller-owned input document. The service reads it
// during extraction and never retains it afterwards.
type SourceDocument struct {
	Data   []byte
	Format Format
}

// ExtractedText is the result of a successful extraction. Content is always
// non-empty and whitespace-trimmed; an extraction that would yield only
// whitespace is reported as a failure instead.
type ExtractedText struct {
	Content      string
	SourceFormat Format
	Method       ExtractionMethod
	PageCount    int
}

// LanguageDecision is the resolved language of a text. Language is always a
// member of the supported set; Confidence is in [0, 1].
type LanguageDecision struct {
	Language   Language
	Confidence float64
}

// SynthesisRequest carries normalized text into the synthesis orchestrator.
type SynthesisRequest struct {
	Text     string
	Language Language
	Mode     Mode
}

// AudioArtifact is a synthesized audio blob. SizeBytes always meets the
// viability floor for its Mime; sub-threshold output is discarded as corrupt
// before an artifact is ever constructed.
type AudioArtifact struct {
	Data         []byte
	Mime         MimeFormat
	SizeBytes    int64
	ProducedBy   EngineKind
	UsedFallback bool
}

// ObjectStore is a key-value blob store. Implementations back the artifact
// cache and the document/audio buckets.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// OCREngine converts a rendered image into machine-readable text.
// Implementations are stateless per call; an expensive underlying model is
// initialized once at startup and shared read-only.
type OCREngine interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// SpeechEngine synthesizes audio from text. An engine instance is bound to a
// single language at construction; selection across languages and modes is
// the orchestrator's job.
type SpeechEngine interface {
	Synthesize(ctx context.Context, text string) (*AudioArtifact, error)
	Kind() EngineKind
}

// CommandRunner executes an external engine binary and returns its stdout.
// It exists so engine implementations can be tested without the binary
// installed.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
