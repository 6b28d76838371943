package synth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/document-speech-service/internal/cache"
	"github.com/book-expert/document-speech-service/internal/core"
)

// OrchestratorOptions bounds the retry behavior of one synthesis request.
type OrchestratorOptions struct {
	MaxTextLength  int
	MaxAttempts    int
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	MinMP3Bytes    int64
	MinWAVBytes    int64
}

// Orchestrator drives a synthesis request: cache lookup, engine selection,
// bounded attempts against the primary engine, exactly one pass over the
// fallback engine, output validation, and cache write-back.
type Orchestrator struct {
	engines *EngineTable
	cache   *cache.Cache
	probe   ReachabilityProbe
	options OrchestratorOptions
	log     *logger.Logger
}

// NewOrchestrator creates an orchestrator. The probe may be nil, in which
// case network engines are attempted without a preflight check.
func NewOrchestrator(
	engines *EngineTable,
	artifactCache *cache.Cache,
	probe ReachabilityProbe,
	options OrchestratorOptions,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		engines: engines,
		cache:   artifactCache,
		probe:   probe,
		options: options,
		log:     log,
	}
}

// attemptOutcome carries one engine attempt's result across the timeout
// boundary.
type attemptOutcome struct {
	artifact *core.AudioArtifact
	err      error
}

// Synthesize produces audio for the request. The cache is consulted first; on
// a miss the selected primary engine gets the full attempt budget, then the
// fallback engine gets one more pass. Every returned artifact has passed the
// size-viability check, and every fresh artifact has been written back to the
// cache before it is returned.
func (o *Orchestrator) Synthesize(
	ctx context.Context,
	request core.SynthesisRequest,
) (*core.AudioArtifact, error) {
	textLength := len([]rune(request.Text))
	if textLength == 0 {
		return nil, fmt.Errorf("%w: no text to synthesize", core.ErrEmptyResult)
	}

	if textLength > o.options.MaxTextLength {
		return nil, fmt.Errorf(
			"%w: %d characters exceeds the %d character limit",
			core.ErrTextTooLong, textLength, o.options.MaxTextLength)
	}

	fingerprint := cache.Fingerprint(request.Language, request.Text)

	if cached, hit := o.cache.Get(ctx, fingerprint); hit {
		o.log.Info("Cache hit for fingerprint %.12s", fingerprint)

		return cached, nil
	}

	primary, fallback, err := o.engines.Select(request.Language, request.Mode)
	if err != nil {
		return nil, err
	}

	artifact, primaryErr := o.runEngine(ctx, primary, request.Text)
	if primaryErr != nil && fallback != nil {
		o.log.Warn("Primary %s engine failed, falling back: %v", primary.Kind(), primaryErr)

		artifact, err = o.runEngine(ctx, fallback, request.Text)
		if err != nil {
			return nil, fmt.Errorf(
				"%w: primary %s engine failed (%s); fallback %s engine also failed (%s)",
				core.ErrSynthesisFailed, primary.Kind(), primaryErr, fallback.Kind(), err)
		}

		artifact.UsedFallback = true
	} else if primaryErr != nil {
		return nil, fmt.Errorf(
			"%w: %s engine failed with no fallback available: %s",
			core.ErrSynthesisFailed, primary.Kind(), primaryErr)
	}

	putErr := o.cache.Put(ctx, fingerprint, artifact)
	if putErr != nil {
		// A failed cache write degrades future latency, not this result.
		o.log.Warn("Failed to cache artifact for fingerprint %.12s: %v", fingerprint, putErr)
	}

	return artifact, nil
}

// runEngine gives one engine the full attempt budget: a reachability preflight
// for network engines, then timed attempts with exponential backoff between
// them. Undersized output is treated as a failed attempt and retried.
func (o *Orchestrator) runEngine(
	ctx context.Context,
	engine core.SpeechEngine,
	text string,
) (*core.AudioArtifact, error) {
	if engine.Kind() == core.EngineNetwork && o.probe != nil {
		probeErr := o.probe(ctx)
		if probeErr != nil {
			return nil, fmt.Errorf("%w: %s", core.ErrNoConnectivity, probeErr)
		}
	}

	var lastErr error

	for attempt := 1; attempt <= o.options.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := o.backoffDelay(attempt)

			o.log.Info("Retrying %s engine in %v (attempt %d of %d)",
				engine.Kind(), delay, attempt, o.options.MaxAttempts)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("synthesis canceled: %w", ctx.Err())
			}
		}

		artifact, err := o.runAttempt(ctx, engine, text)
		if err != nil {
			lastErr = err

			continue
		}

		validationErr := o.validate(artifact)
		if validationErr != nil {
			lastErr = validationErr

			continue
		}

		return artifact, nil
	}

	return nil, fmt.Errorf("all %d attempts failed, last error: %w", o.options.MaxAttempts, lastErr)
}

// runAttempt executes one engine call under the attempt timeout. The result
// channel is buffered so an attempt finishing after the deadline can still
// send and exit; its result is simply never read, and only results accepted
// here are ever cached.
func (o *Orchestrator) runAttempt(
	ctx context.Context,
	engine core.SpeechEngine,
	text string,
) (*core.AudioArtifact, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.options.AttemptTimeout)
	defer cancel()

	results := make(chan attemptOutcome, 1)

	go func() {
		artifact, err := engine.Synthesize(attemptCtx, text)
		results <- attemptOutcome{artifact: artifact, err: err}
	}()

	select {
	case outcome := <-results:
		if outcome.err != nil {
			return nil, outcome.err
		}

		return outcome.artifact, nil
	case <-attemptCtx.Done():
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf(
				"%w: no result within %v",
				core.ErrAttemptTimeout, o.options.AttemptTimeout)
		}

		return nil, fmt.Errorf("synthesis canceled: %w", attemptCtx.Err())
	}
}

// validate applies the size-viability floor for the artifact's format.
func (o *Orchestrator) validate(artifact *core.AudioArtifact) error {
	floor := o.options.MinMP3Bytes
	if artifact.Mime == core.MimeWAV {
		floor = o.options.MinWAVBytes
	}

	if artifact.SizeBytes < floor {
		return fmt.Errorf(
			"%w: %d bytes of %s audio is below the %d byte floor",
			core.ErrCorruptOutput, artifact.SizeBytes, artifact.Mime, floor)
	}

	return nil
}

// backoffDelay computes the pause before the given attempt: the base delay
// doubled per prior failure, capped.
func (o *Orchestrator) backoffDelay(attempt int) time.Duration {
	delay := o.options.BackoffBase

	for i := 2; i < attempt; i++ {
		delay *= 2
		if delay >= o.options.BackoffMax {
			return o.options.BackoffMax
		}
	}

	if delay > o.options.BackoffMax {
		return o.options.BackoffMax
	}

	return delay
}
