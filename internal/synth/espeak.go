package synth

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/book-expert/document-speech-service/internal/core"
)

const tempWavPattern = "synthesis-*.wav"

// espeakVoices maps the supported languages to espeak-ng voice identifiers.
var espeakVoices = map[core.Language]string{
	core.LanguageEnglish: "en",
	core.LanguageUrdu:    "ur",
}

// EspeakEngine synthesizes speech with the espeak-ng binary. It is the
// offline fallback: robotic but dependable, with no network requirement.
type EspeakEngine struct {
	binary       string
	voice        string
	wordsPerMin  int
	run          core.CommandRunner
	readWaveFile func(path string) ([]byte, error)
}

// NewEspeakEngine creates a local engine for one language.
func NewEspeakEngine(binary string, language core.Language, wordsPerMin int) (*EspeakEngine, error) {
	voice, supported := espeakVoices[language]
	if !supported {
		return nil, fmt.Errorf(
			"%w: no local voice for language '%s'",
			core.ErrSynthesisFailed, language)
	}

	return &EspeakEngine{
		binary:       binary,
		voice:        voice,
		wordsPerMin:  wordsPerMin,
		run:          runEngineCommand,
		readWaveFile: os.ReadFile,
	}, nil
}

// NewEspeakEngineWithRunner creates a local engine with injected command and
// file-read functions. This constructor is primarily for testing.
func NewEspeakEngineWithRunner(
	binary string,
	language core.Language,
	wordsPerMin int,
	run core.CommandRunner,
	readWaveFile func(path string) ([]byte, error),
) (*EspeakEngine, error) {
	engine, err := NewEspeakEngine(binary, language, wordsPerMin)
	if err != nil {
		return nil, err
	}

	engine.run = run
	engine.readWaveFile = readWaveFile

	return engine, nil
}

// Kind identifies this engine as local.
func (e *EspeakEngine) Kind() core.EngineKind {
	return core.EngineLocal
}

// Synthesize converts text to WAV audio through a temporary file; espeak-ng
// writes broken WAV headers when streaming to a pipe, so the file path output
// mode is used instead.
func (e *EspeakEngine) Synthesize(ctx context.Context, text string) (*core.AudioArtifact, error) {
	outFile, err := os.CreateTemp("", tempWavPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	outPath := outFile.Name()

	closeErr := outFile.Close()
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close output file: %w", closeErr)
	}

	defer func() {
		_ = os.Remove(outPath)
	}()

	_, err = e.run(ctx, e.binary,
		"-v", e.voice,
		"-s", strconv.Itoa(e.wordsPerMin),
		"-w", outPath,
		text)
	if err != nil {
		return nil, fmt.Errorf("%w: local engine: %s", core.ErrSynthesisFailed, err)
	}

	data, err := e.readWaveFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}

	return &core.AudioArtifact{
		Data:         data,
		Mime:         core.MimeWAV,
		SizeBytes:    int64(len(data)),
		ProducedBy:   core.EngineLocal,
		UsedFallback: false,
	}, nil
}

// runEngineCommand executes an engine binary and returns stdout, folding
// stderr into the error for diagnostics.
func runEngineCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stderr strings.Builder

	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("command '%s' failed: %w - stderr: %s", name, err, stderr.String())
	}

	return output, nil
}
