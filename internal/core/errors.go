package core

import "errors"

// Error taxonomy for the extraction-to-speech pipeline. Per-page and
// per-attempt failures are recovered internally; only these errors ever
// reach a caller.
var (
	// ErrUnsupportedFormat indicates the declared format tag is not handled.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrExtractionFailed indicates a reader could not produce text at all.
	ErrExtractionFailed = errors.New("text extraction failed")
	// ErrEmptyResult indicates extraction or normalization produced only whitespace.
	ErrEmptyResult = errors.New("no usable text produced")
	// ErrNoConnectivity indicates the network engine's endpoint is unreachable.
	ErrNoConnectivity = errors.New("network engine unreachable")
	// ErrAttemptTimeout indicates a single synthesis attempt exceeded its deadline.
	ErrAttemptTimeout = errors.New("synthesis attempt timed out")
	// ErrCorruptOutput indicates produced audio is below its viability threshold.
	ErrCorruptOutput = errors.New("synthesized audio below viability threshold")
	// ErrSynthesisFailed is terminal: all attempts on all eligible engines failed.
	ErrSynthesisFailed = errors.New("speech synthesis failed")
	// ErrTextTooLong indicates a synthesis request exceeded the maximum length.
	ErrTextTooLong = errors.New("text exceeds maximum length")
)
