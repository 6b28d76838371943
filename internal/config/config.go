// Package config provides the configuration structure for the
// document-speech-service.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Defaults applied to zero-valued tunables after load.
const (
	DefaultRenderDPI              = 300
	DefaultMaxTextLength          = 5000
	DefaultMaxAttempts            = 2
	DefaultAttemptTimeoutSeconds  = 30
	DefaultBackoffBaseMillis      = 500
	DefaultBackoffMaxMillis       = 5000
	DefaultProbeTimeoutSeconds    = 5
	DefaultMinMP3Bytes            = 1024
	DefaultMinWAVBytes            = 4096
	DefaultJobTimeoutSeconds      = 120
	DefaultNetworkEndpoint        = "https://translate.google.com/translate_tts"
	DefaultTesseractBinary        = "tesseract"
	DefaultPdftoppmBinary         = "pdftoppm"
	DefaultAntiwordBinary         = "antiword"
	DefaultEspeakBinary           = "espeak-ng"
	DefaultEspeakWordsPerMinute   = 140
	DefaultHTTPTimeoutSeconds     = 30
	defaultDocumentUploadedSubj   = "document.uploaded"
	defaultAudioCreatedSubj       = "document.audio.created"
	defaultDocumentBucket         = "DOCUMENT_FILES"
	defaultAudioBucket            = "DOCUMENT_AUDIO"
	defaultCacheBucket            = "DOCUMENT_AUDIO_CACHE"
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                     string `toml:"url"`
	DocumentUploadedSubject string `toml:"document_uploaded_subject"`
	AudioCreatedSubject     string `toml:"audio_created_subject"`
	DocumentBucket          string `toml:"document_bucket"`
	AudioBucket             string `toml:"audio_bucket"`
	CacheBucket             string `toml:"cache_bucket"`
}

// ExtractionConfig holds the configuration for the extraction dispatcher and
// its engine binaries.
type ExtractionConfig struct {
	TesseractBinary string `toml:"tesseract_binary"`
	PdftoppmBinary  string `toml:"pdftoppm_binary"`
	AntiwordBinary  string `toml:"antiword_binary"`
	RenderDPI       int    `toml:"render_dpi"`
}

// SynthesisConfig holds the configuration for the synthesis orchestrator and
// its engines.
type SynthesisConfig struct {
	NetworkEndpoint       string `toml:"network_endpoint"`
	EspeakBinary          string `toml:"espeak_binary"`
	EspeakWordsPerMinute  int    `toml:"espeak_words_per_minute"`
	MaxTextLength         int    `toml:"max_text_length"`
	MaxAttempts           int    `toml:"max_attempts"`
	AttemptTimeoutSeconds int    `toml:"attempt_timeout_seconds"`
	BackoffBaseMillis     int    `toml:"backoff_base_millis"`
	BackoffMaxMillis      int    `toml:"backoff_max_millis"`
	ProbeTimeoutSeconds   int    `toml:"probe_timeout_seconds"`
	HTTPTimeoutSeconds    int    `toml:"http_timeout_seconds"`
	MinMP3Bytes           int64  `toml:"min_mp3_bytes"`
	MinWAVBytes           int64  `toml:"min_wav_bytes"`
	JobTimeoutSeconds     int    `toml:"job_timeout_seconds"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS       NATSConfig       `toml:"nats"`
	Extraction ExtractionConfig `toml:"extraction"`
	Synthesis  SynthesisConfig  `toml:"synthesis"`
	Paths      PathsConfig      `toml:"paths"`
}

// Load loads the configuration for the document-speech-service and fills in
// defaults for every tunable the operator left unset.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// ApplyDefaults replaces zero values with the service defaults. Loading and
// defaulting are separate so tests can exercise defaulting on hand-built
// configs.
func (c *Config) ApplyDefaults() {
	c.applyNATSDefaults()
	c.applyExtractionDefaults()
	c.applySynthesisDefaults()
}

func (c *Config) applyNATSDefaults() {
	if c.NATS.DocumentUploadedSubject == "" {
		c.NATS.DocumentUploadedSubject = defaultDocumentUploadedSubj
	}

	if c.NATS.AudioCreatedSubject == "" {
		c.NATS.AudioCreatedSubject = defaultAudioCreatedSubj
	}

	if c.NATS.DocumentBucket == "" {
		c.NATS.DocumentBucket = defaultDocumentBucket
	}

	if c.NATS.AudioBucket == "" {
		c.NATS.AudioBucket = defaultAudioBucket
	}

	if c.NATS.CacheBucket == "" {
		c.NATS.CacheBucket = defaultCacheBucket
	}
}

func (c *Config) applyExtractionDefaults() {
	if c.Extraction.TesseractBinary == "" {
		c.Extraction.TesseractBinary = DefaultTesseractBinary
	}

	if c.Extraction.PdftoppmBinary == "" {
		c.Extraction.PdftoppmBinary = DefaultPdftoppmBinary
	}

	if c.Extraction.AntiwordBinary == "" {
		c.Extraction.AntiwordBinary = DefaultAntiwordBinary
	}

	if c.Extraction.RenderDPI == 0 {
		c.Extraction.RenderDPI = DefaultRenderDPI
	}
}

func (c *Config) applySynthesisDefaults() {
	if c.Synthesis.NetworkEndpoint == "" {
		c.Synthesis.NetworkEndpoint = DefaultNetworkEndpoint
	}

	if c.Synthesis.EspeakBinary == "" {
		c.Synthesis.EspeakBinary = DefaultEspeakBinary
	}

	if c.Synthesis.EspeakWordsPerMinute == 0 {
		c.Synthesis.EspeakWordsPerMinute = DefaultEspeakWordsPerMinute
	}

	if c.Synthesis.MaxTextLength == 0 {
		c.Synthesis.MaxTextLength = DefaultMaxTextLength
	}

	if c.Synthesis.MaxAttempts == 0 {
		c.Synthesis.MaxAttempts = DefaultMaxAttempts
	}

	if c.Synthesis.AttemptTimeoutSeconds == 0 {
		c.Synthesis.AttemptTimeoutSeconds = DefaultAttemptTimeoutSeconds
	}

	if c.Synthesis.BackoffBaseMillis == 0 {
		c.Synthesis.BackoffBaseMillis = DefaultBackoffBaseMillis
	}

	if c.Synthesis.BackoffMaxMillis == 0 {
		c.Synthesis.BackoffMaxMillis = DefaultBackoffMaxMillis
	}

	if c.Synthesis.ProbeTimeoutSeconds == 0 {
		c.Synthesis.ProbeTimeoutSeconds = DefaultProbeTimeoutSeconds
	}

	if c.Synthesis.HTTPTimeoutSeconds == 0 {
		c.Synthesis.HTTPTimeoutSeconds = DefaultHTTPTimeoutSeconds
	}

	if c.Synthesis.MinMP3Bytes == 0 {
		c.Synthesis.MinMP3Bytes = DefaultMinMP3Bytes
	}

	if c.Synthesis.MinWAVBytes == 0 {
		c.Synthesis.MinWAVBytes = DefaultMinWAVBytes
	}

	if c.Synthesis.JobTimeoutSeconds == 0 {
		c.Synthesis.JobTimeoutSeconds = DefaultJobTimeoutSeconds
	}
}
