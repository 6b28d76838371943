// docspeech converts a single document to narrated audio from the command
// line, using a directory-backed artifact cache instead of NATS.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/document-speech-service/internal/cache"
	"github.com/book-expert/document-speech-service/internal/config"
	"github.com/book-expert/document-speech-service/internal/core"
	"github.com/book-expert/document-speech-service/internal/extract"
	"github.com/book-expert/document-speech-service/internal/language"
	"github.com/book-expert/document-speech-service/internal/objectstore"
	"github.com/book-expert/document-speech-service/internal/ocr"
	"github.com/book-expert/document-speech-service/internal/pipeline"
	"github.com/book-expert/document-speech-service/internal/synth"
)

// Flag descriptions.
const (
	flagFileDesc        = "Path of the document to narrate"
	flagFormatDesc      = "Document format (text, pdf, doc, docx, pptx, image); inferred from the extension when empty"
	flagTextDesc        = "Literal text to narrate instead of a file"
	flagModeDesc        = "Synthesis mode (network-preferred or local-only)"
	flagOutputDesc      = "Output audio path; the extension is set by the producing engine"
	flagExtractOnlyDesc = "Print the extracted text and exit without synthesizing"
	flagCacheDirDesc    = "Directory for the artifact cache"
)

// Flag names.
const (
	flagFile        = "file"
	flagFormat      = "format"
	flagText        = "text"
	flagMode        = "mode"
	flagOutput      = "output"
	flagExtractOnly = "extract-only"
	flagCacheDir    = "cache-dir"
)

// Error and log messages.
const (
	errEitherFileOrText = "Either --file or --text must be provided"
	errCannotGiveBoth   = "Cannot specify both --file and --text"
	errUnknownMode      = "Unknown mode '%s'"
	logGenerated        = "Generated: %s\n"
)

// Defaults.
const (
	logFileName       = "docspeech.log"
	defaultOutputBase = "narration"
	defaultCacheDir   = ".docspeech-cache"
	outputPermissions = 0o600
	defaultMode       = string(core.ModeNetworkPreferred)
)

// extensionFormats maps file extensions to format tags for inference.
var extensionFormats = map[string]core.Format{
	".txt":  core.FormatText,
	".md":   core.FormatText,
	".pdf":  core.FormatPDF,
	".doc":  core.FormatDocLegacy,
	".docx": core.FormatDocModern,
	".pptx": core.FormatSlideDeck,
	".png":  core.FormatImage,
	".jpg":  core.FormatImage,
	".jpeg": core.FormatImage,
	".tiff": core.FormatImage,
	".bmp":  core.FormatImage,
}

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	file        string
	format      string
	text        string
	mode        string
	output      string
	extractOnly bool
	cacheDir    string
}

func main() {
	err := run()
	if err != nil {
		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

// run is the main application entry point, returning an error on failure.
func run() error {
	flags := parseFlags()

	err := validateFlags(flags)
	if err != nil {
		flag.Usage()

		return err
	}

	cliLog, err := logger.New(os.TempDir(), logFileName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		_ = cliLog.Close()
	}()

	cfg := defaultConfig()

	doc, err := loadDocument(flags)
	if err != nil {
		return err
	}

	ctx := context.Background()

	if flags.extractOnly {
		return runExtraction(ctx, cfg, cliLog, doc)
	}

	return runNarration(ctx, cfg, cliLog, doc, flags)
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.file, flagFile, "", flagFileDesc)
	flag.StringVar(&flags.format, flagFormat, "", flagFormatDesc)
	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.StringVar(&flags.mode, flagMode, defaultMode, flagModeDesc)
	flag.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flag.BoolVar(&flags.extractOnly, flagExtractOnly, false, flagExtractOnlyDesc)
	flag.StringVar(&flags.cacheDir, flagCacheDir, defaultCacheDir, flagCacheDirDesc)
	flag.Parse()

	return flags
}

// validateFlags applies the flag exclusivity rules.
func validateFlags(flags appFlags) error {
	if flags.file == "" && flags.text == "" {
		return errors.New(errEitherFileOrText)
	}

	if flags.file != "" && flags.text != "" {
		return errors.New(errCannotGiveBoth)
	}

	mode := core.Mode(flags.mode)
	if mode != core.ModeNetworkPreferred && mode != core.ModeLocalOnly {
		return fmt.Errorf(errUnknownMode, flags.mode)
	}

	return nil
}

// defaultConfig builds a fully defaulted configuration; the CLI takes no
// config file.
func defaultConfig() *config.Config {
	var cfg config.Config

	cfg.ApplyDefaults()

	return &cfg
}

// loadDocument reads the input as a source document. Literal text is wrapped
// as a text document.
func loadDocument(flags appFlags) (core.SourceDocument, error) {
	if flags.text != "" {
		return core.SourceDocument{
			Data:   []byte(flags.text),
			Format: core.FormatText,
		}, nil
	}

	data, err := os.ReadFile(flags.file)
	if err != nil {
		return core.SourceDocument{Data: nil, Format: ""},
			fmt.Errorf("failed to read document '%s': %w", flags.file, err)
	}

	format := core.Format(flags.format)
	if format == "" {
		inferred, known := extensionFormats[strings.ToLower(filepath.Ext(flags.file))]
		if !known {
			return core.SourceDocument{Data: nil, Format: ""},
				fmt.Errorf("%w: cannot infer format of '%s'", core.ErrUnsupportedFormat, flags.file)
		}

		format = inferred
	}

	return core.SourceDocument{Data: data, Format: format}, nil
}

// runExtraction prints the extracted text to stdout.
func runExtraction(
	ctx context.Context,
	cfg *config.Config,
	cliLog *logger.Logger,
	doc core.SourceDocument,
) error {
	dispatcher := newDispatcher(cfg, cliLog)

	extracted, err := dispatcher.Extract(ctx, doc)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	decision := language.Detect(extracted.Content)

	fmt.Printf("Language: %s (confidence %.2f)\n\n", language.Name(decision.Language), decision.Confidence)
	fmt.Println(extracted.Content)

	return nil
}

// runNarration runs the full pipeline and writes the audio file.
func runNarration(
	ctx context.Context,
	cfg *config.Config,
	cliLog *logger.Logger,
	doc core.SourceDocument,
	flags appFlags,
) error {
	cacheStore, err := objectstore.NewFSStore(flags.cacheDir)
	if err != nil {
		return fmt.Errorf("failed to open cache directory: %w", err)
	}

	documentPipeline, err := newPipeline(cfg, cacheStore, cliLog)
	if err != nil {
		return err
	}

	result, err := documentPipeline.Process(ctx, doc, core.Mode(flags.mode))
	if err != nil {
		return fmt.Errorf("narration failed: %w", err)
	}

	outputPath := flags.output
	if outputPath == "" {
		outputPath = defaultOutputBase + "." + string(result.Artifact.Mime)
	}

	err = os.WriteFile(outputPath, result.Artifact.Data, outputPermissions)
	if err != nil {
		return fmt.Errorf("failed to write audio '%s': %w", outputPath, err)
	}

	fmt.Printf(logGenerated, outputPath)

	return nil
}

// newDispatcher builds the extraction half.
func newDispatcher(cfg *config.Config, cliLog *logger.Logger) *extract.Dispatcher {
	ocrEngine := ocr.NewTesseractEngine(cfg.Extraction.TesseractBinary, cliLog)

	return extract.NewDispatcher(ocrEngine, extract.Options{
		PdftoppmBinary: cfg.Extraction.PdftoppmBinary,
		AntiwordBinary: cfg.Extraction.AntiwordBinary,
		RenderDPI:      cfg.Extraction.RenderDPI,
	}, cliLog)
}

// newPipeline builds the full document pipeline over the given cache store.
func newPipeline(
	cfg *config.Config,
	cacheStore core.ObjectStore,
	cliLog *logger.Logger,
) (*pipeline.Pipeline, error) {
	dispatcher := newDispatcher(cfg, cliLog)

	httpTimeout := time.Duration(cfg.Synthesis.HTTPTimeoutSeconds) * time.Second

	engines := synth.NewEngineTable()
	engines.RegisterNetwork(core.LanguageEnglish,
		synth.NewGoogleEngine(cfg.Synthesis.NetworkEndpoint, "en", httpTimeout))
	engines.RegisterNetwork(core.LanguageUrdu,
		synth.NewGoogleEngine(cfg.Synthesis.NetworkEndpoint, "ur", httpTimeout))

	for _, lang := range []core.Language{core.LanguageEnglish, core.LanguageUrdu} {
		localEngine, err := synth.NewEspeakEngine(
			cfg.Synthesis.EspeakBinary, lang, cfg.Synthesis.EspeakWordsPerMinute)
		if err != nil {
			return nil, fmt.Errorf("failed to create local engine for '%s': %w", lang, err)
		}

		engines.RegisterLocal(lang, localEngine)
	}

	artifactCache := cache.New(cacheStore,
		cfg.Synthesis.MinMP3Bytes, cfg.Synthesis.MinWAVBytes, cliLog)

	probe := synth.NewHTTPProbe(cfg.Synthesis.NetworkEndpoint,
		time.Duration(cfg.Synthesis.ProbeTimeoutSeconds)*time.Second)

	orchestrator := synth.NewOrchestrator(engines, artifactCache, probe, synth.OrchestratorOptions{
		MaxTextLength:  cfg.Synthesis.MaxTextLength,
		MaxAttempts:    cfg.Synthesis.MaxAttempts,
		AttemptTimeout: time.Duration(cfg.Synthesis.AttemptTimeoutSeconds) * time.Second,
		BackoffBase:    time.Duration(cfg.Synthesis.BackoffBaseMillis) * time.Millisecond,
		BackoffMax:     time.Duration(cfg.Synthesis.BackoffMaxMillis) * time.Millisecond,
		MinMP3Bytes:    cfg.Synthesis.MinMP3Bytes,
		MinWAVBytes:    cfg.Synthesis.MinWAVBytes,
	}, cliLog)

	return pipeline.New(dispatcher, orchestrator, cliLog), nil
}
