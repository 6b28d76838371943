// main package for the document-speech-service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/document-speech-service/internal/cache"
	"github.com/book-expert/document-speech-service/internal/config"
	"github.com/book-expert/document-speech-service/internal/core"
	"github.com/book-expert/document-speech-service/internal/extract"
	"github.com/book-expert/document-speech-service/internal/objectstore"
	"github.com/book-expert/document-speech-service/internal/ocr"
	"github.com/book-expert/document-speech-service/internal/pipeline"
	"github.com/book-expert/document-speech-service/internal/synth"
	"github.com/book-expert/document-speech-service/internal/worker"
)

// Language codes passed to the network engine.
const (
	englishCode = "en"
	urduCode    = "ur"
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "document-speech-service.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		// If bootstrap logger fails, we can only print to stderr
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, finalLog)
}

// serve wires the stores, engines, pipeline and worker, then blocks until the
// context is canceled.
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at '%s': %w", cfg.NATS.URL, err)
	}

	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	documents, err := objectstore.NewNatsObjectStore(jetstreamContext, cfg.NATS.DocumentBucket)
	if err != nil {
		return fmt.Errorf("failed to open document bucket: %w", err)
	}

	audio, err := objectstore.NewNatsObjectStore(jetstreamContext, cfg.NATS.AudioBucket)
	if err != nil {
		return fmt.Errorf("failed to open audio bucket: %w", err)
	}

	cacheStore, err := objectstore.NewNatsObjectStore(jetstreamContext, cfg.NATS.CacheBucket)
	if err != nil {
		return fmt.Errorf("failed to open cache bucket: %w", err)
	}

	documentPipeline, err := buildPipeline(cfg, cacheStore, log)
	if err != nil {
		return err
	}

	natsWorker := worker.NewNatsWorker(
		natsConnection,
		cfg.NATS.DocumentUploadedSubject,
		cfg.NATS.AudioCreatedSubject,
		documents,
		audio,
		documentPipeline,
		time.Duration(cfg.Synthesis.JobTimeoutSeconds)*time.Second,
		log,
	)

	log.System("Document-speech-service initialized. Listening for jobs on subject: %s",
		cfg.NATS.DocumentUploadedSubject)

	err = natsWorker.Run(ctx)
	if err != nil {
		return fmt.Errorf("worker stopped with error: %w", err)
	}

	return nil
}

// buildPipeline assembles the extraction and synthesis halves over the given
// cache store.
func buildPipeline(
	cfg *config.Config,
	cacheStore core.ObjectStore,
	log *logger.Logger,
) (*pipeline.Pipeline, error) {
	ocrEngine := ocr.NewTesseractEngine(cfg.Extraction.TesseractBinary, log)

	dispatcher := extract.NewDispatcher(ocrEngine, extract.Options{
		PdftoppmBinary: cfg.Extraction.PdftoppmBinary,
		AntiwordBinary: cfg.Extraction.AntiwordBinary,
		RenderDPI:      cfg.Extraction.RenderDPI,
	}, log)

	engines, err := buildEngineTable(cfg)
	if err != nil {
		return nil, err
	}

	artifactCache := cache.New(cacheStore,
		cfg.Synthesis.MinMP3Bytes, cfg.Synthesis.MinWAVBytes, log)

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
	}, log)

	return pipeline.New(dispatcher, orchestrator, log), nil
}

// buildEngineTable registers a network and a local engine for every supported
// language.
func buildEngineTable(cfg *config.Config) (*synth.EngineTable, error) {
	httpTimeout := time.Duration(cfg.Synthesis.HTTPTimeoutSeconds) * time.Second

	engines := synth.NewEngineTable()
	engines.RegisterNetwork(core.LanguageEnglish,
		synth.NewGoogleEngine(cfg.Synthesis.NetworkEndpoint, englishCode, httpTimeout))
	engines.RegisterNetwork(core.LanguageUrdu,
		synth.NewGoogleEngine(cfg.Synthesis.NetworkEndpoint, urduCode, httpTimeout))

	for _, lang := range []core.Language{core.LanguageEnglish, core.LanguageUrdu} {
		localEngine, err := synth.NewEspeakEngine(
			cfg.Synthesis.EspeakBinary, lang, cfg.Synthesis.EspeakWordsPerMinute)
		if err != nil {
			return nil, fmt.Errorf("failed to create local engine for '%s': %w", lang, err)
		}

		engines.RegisterLocal(lang, localEngine)
	}

	return engines, nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
