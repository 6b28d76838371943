// Package ocr provides an optical-recognition engine backed by the Tesseract
// binary. The engine requests TSV output so paragraph structure and per-word
// confidence come from a single invocation.
package ocr

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/document-speech-service/internal/core"
)

// Tesseract TSV column layout.
const (
	tsvColumnCount = 12
	tsvColumnLevel = 0
	tsvColumnBlock = 2
	tsvColumnPar   = 3
	tsvColumnLine  = 4
	tsvColumnConf  = 10
	tsvColumnText  = 11
	tsvLevelWord   = "5"
)

// pageSegParagraph asks Tesseract for block-of-text segmentation rather than
// word-level sparse output.
const pageSegParagraph = "6"

// LanguageConfig is one recognition attempt: a Tesseract language-model list
// and a page-segmentation mode.
type LanguageConfig struct {
	Languages string
	PSM       string
}

// DefaultConfigs is the ordered set of language-model configurations tried
// for every image: multilingual first, then single-language, then the
// reversed multilingual priority.
func DefaultConfigs() []LanguageConfig {
	return []LanguageConfig{
		{Languages: "urd+eng", PSM: pageSegParagraph},
		{Languages: "urd", PSM: pageSegParagraph},
		{Languages: "eng+urd", PSM: pageSegParagraph},
	}
}

// TesseractEngine implements core.OCREngine by invoking the tesseract binary.
// The binary's language models are loaded per call by Tesseract itself; the
// engine value carries no per-request state and is shared by all requests.
type TesseractEngine struct {
	binary  string
	configs []LanguageConfig
	run     core.CommandRunner
	log     *logger.Logger
}

// NewTesseractEngine creates an engine using the given binary path and the
// default language configurations.
func NewTesseractEngine(binary string, log *logger.Logger) *TesseractEngine {
	return &TesseractEngine{
		binary:  binary,
		configs: DefaultConfigs(),
		run:     runCommand,
		log:     log,
	}
}

// NewTesseractEngineWithRunner creates an engine with an injected command
// runner. This constructor is primarily for testing.
func NewTesseractEngineWithRunner(
	binary string,
	configs []LanguageConfig,
	run core.CommandRunner,
	log *logger.Logger,
) *TesseractEngine {
	return &TesseractEngine{
		binary:  binary,
		configs: configs,
		run:     run,
		log:     log,
	}
}

// candidate is the outcome of one language-configuration attempt.
type candidate struct {
	text       string
	confidence float64
	measured   bool
}

// Recognize runs every configured language model over the image and selects
// the best result: highest measured average word confidence, or the longest
// non-empty text when no attempt produced a measurable confidence. Ties keep
// the earliest-attempted configuration.
func (e *TesseractEngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	var (
		best     candidate
		haveBest bool
	)

	for _, cfg := range e.configs {
		output, err := e.run(ctx, e.binary,
			imagePath, "stdout", "-l", cfg.Languages, "--psm", cfg.PSM, "tsv")
		if err != nil {
			e.log.Warn("OCR attempt with languages '%s' failed: %v", cfg.Languages, err)

			continue
		}

		current := parseTSV(string(output))
		if strings.TrimSpace(current.text) == "" {
			continue
		}

		if !haveBest || better(current, best) {
			best = current
			haveBest = true
		}
	}

	if !haveBest {
		return "", fmt.Errorf("%w: no text recognized with any language configuration", core.ErrExtractionFailed)
	}

	return best.text, nil
}

// better reports whether the current candidate should replace the best one.
// Comparisons are strict so an earlier configuration wins ties.
func better(current, best candidate) bool {
	if current.measured && best.measured {
		return current.confidence > best.confidence
	}

	if current.measured != best.measured {
		return current.measured
	}

	return len(strings.TrimSpace(current.text)) > len(strings.TrimSpace(best.text))
}

// parseTSV rebuilds paragraph-grouped text from Tesseract's TSV output and
// computes the average confidence over word rows. Malformed rows are skipped;
// if no row carries a usable confidence the candidate is marked unmeasured.
func parseTSV(output string) candidate {
	var (
		builder   strings.Builder
		confSum   float64
		confCount int
		lastBlock string
		lastPar   string
		lastLine  string
		started   bool
	)

	for _, row := range strings.Split(output, "\n") {
		fields := strings.Split(row, "\t")
		if len(fields) < tsvColumnCount || fields[tsvColumnLevel] != tsvLevelWord {
			continue
		}

		word := strings.TrimSpace(fields[tsvColumnText])
		if word == "" {
			continue
		}

		if started {
			switch {
			case fields[tsvColumnBlock] != lastBlock || fields[tsvColumnPar] != lastPar:
				builder.WriteString("\n\n")
			case fields[tsvColumnLine] != lastLine:
				builder.WriteString("\n")
			default:
				builder.WriteString(" ")
			}
		}

		builder.WriteString(word)

		lastBlock = fields[tsvColumnBlock]
		lastPar = fields[tsvColumnPar]
		lastLine = fields[tsvColumnLine]
		started = true

		conf, err := strconv.ParseFloat(fields[tsvColumnConf], 64)
		if err == nil && conf >= 0 {
			confSum += conf
			confCount++
		}
	}

	result := candidate{
		text:       builder.String(),
		confidence: 0,
		measured:   false,
	}

	if confCount > 0 {
		result.confidence = confSum / float64(confCount)
		result.measured = true
	}

	return result
}

// runCommand is the production CommandRunner: it executes the binary and
// returns stdout, folding stderr into the error for diagnostics.
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
