// Package worker provides a NATS worker that processes document narration
// jobs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/document-speech-service/internal/core"
	"github.com/book-expert/document-speech-service/internal/pipeline"
)

// Validation errors for inbound events.
var (
	// ErrDocumentKeyEmpty indicates the event carries no document key.
	ErrDocumentKeyEmpty = errors.New("document key cannot be empty")
	// ErrFormatEmpty indicates the event carries no format tag.
	ErrFormatEmpty = errors.New("document format cannot be empty")
	// ErrUnknownMode indicates the event's synthesis mode is not recognized.
	ErrUnknownMode = errors.New("unknown synthesis mode")
)

// DocumentProcessor runs one document end to end. It is satisfied by
// pipeline.Pipeline and mocked in tests.
type DocumentProcessor interface {
	Process(ctx context.Context, doc core.SourceDocument, mode core.Mode) (*pipeline.Result, error)
}

// NatsWorker listens for document-uploaded events on a NATS subject,
// narrates each document, replies with the audio location, and publishes the
// completion event on the configured subject for downstream consumers.
type NatsWorker struct {
	natsConnection    *nats.Conn
	subject           string
	completionSubject string
	documents         core.ObjectStore
	audio             core.ObjectStore
	processor         DocumentProcessor
	jobTimeout        time.Duration
	log               *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	completionSubject string,
	documents core.ObjectStore,
	audio core.ObjectStore,
	processor DocumentProcessor,
	jobTimeout time.Duration,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection:    natsConnection,
		subject:           subject,
		completionSubject: completionSubject,
		documents:         documents,
		audio:             audio,
		processor:         processor,
		jobTimeout:        jobTimeout,
		log:               log,
	}
}

// Run starts the worker and begins listening for messages.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), w.jobTimeout)
	defer cancel()

	event, err := w.parseAndValidateEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse and validate event: %v", err)

		return
	}

	replyEvent, processErr := w.processJob(ctx, event)
	if processErr != nil {
		w.log.Error("Failed to process narration job for workflow %s: %v",
			event.Header.WorkflowID, processErr)

		return
	}

	err = w.publishReplyEvent(msg, replyEvent)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v",
			event.Header.WorkflowID, err)
	}
}

// processJob downloads the document, narrates it, and uploads the audio.
func (w *NatsWorker) processJob(
	ctx context.Context,
	event *core.DocumentUploadedEvent,
) (*core.AudioCreatedEvent, error) {
	documentData, err := w.documents.Download(ctx, event.DocumentKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download document '%s': %w", event.DocumentKey, err)
	}

	result, err := w.processor.Process(ctx, core.SourceDocument{
		Data:   documentData,
		Format: event.Format,
	}, event.Mode)
	if err != nil {
		return nil, fmt.Errorf("failed to narrate document '%s': %w", event.DocumentKey, err)
	}

	audioKey := uuid.NewString() + "." + string(result.Artifact.Mime)

	err = w.audio.Upload(ctx, audioKey, result.Artifact.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload audio '%s': %w", audioKey, err)
	}

	return &core.AudioCreatedEvent{
		Header:       event.Header,
		AudioKey:     audioKey,
		Mime:         result.Artifact.Mime,
		SizeBytes:    result.Artifact.SizeBytes,
		Language:     result.Language.Language,
		Confidence:   result.Language.Confidence,
		UsedFallback: result.Artifact.UsedFallback,
	}, nil
}

// publishReplyEvent marshals the AudioCreatedEvent, responds to the request
// when the sender asked for a reply, and publishes it on the completion
// subject so consumers that did not issue the request still see it.
func (w *NatsWorker) publishReplyEvent(msg *nats.Msg, replyEvent *core.AudioCreatedEvent) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	if msg.Reply != "" {
		respondErr := msg.Respond(replyData)
		if respondErr != nil {
			return fmt.Errorf("failed to publish reply event: %w", respondErr)
		}
	}

	err = w.natsConnection.Publish(w.completionSubject, replyData)
	if err != nil {
		return fmt.Errorf("failed to publish completion event on '%s': %w", w.completionSubject, err)
	}

	return nil
}

// parseAndValidateEvent decodes the inbound event and applies the field
// rules. A missing mode defaults to network-preferred so older publishers
// keep working.
func (w *NatsWorker) parseAndValidateEvent(msg *nats.Msg) (*core.DocumentUploadedEvent, error) {
	var event core.DocumentUploadedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.DocumentKey == "" {
		return nil, ErrDocumentKeyEmpty
	}

	if event.Format == "" {
		return nil, ErrFormatEmpty
	}

	if event.Mode == "" {
		event.Mode = core.ModeNetworkPreferred
	}

	if event.Mode != core.ModeNetworkPreferred && event.Mode != core.ModeLocalOnly {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownMode, event.Mode)
	}

	return &event, nil
}
