package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Anilcodes01/proto-book/internal/domain"
	"github.com/Anilcodes01/proto-book/internal/storage"
	"github.com/Anilcodes01/proto-book/internal/templates"
)

const (
	FolderOriginals = "book-formatter/originals"
	FolderPDFs      = "book-formatter/pdfs"

	SuccessMessage = "Book processed successfully!"

	EventProcessed = "book.processed"
	EventFailed    = "book.failed"
)

type RecordStore interface {
	Create(ctx context.Context, book domain.Book) (domain.Book, error)
	Update(ctx context.Context, id string, update domain.BookUpdate) error
}

type ArtifactStore interface {
	Upload(ctx context.Context, data []byte, folder string, kind storage.Kind, key string) (storage.Artifact, error)
}

type Extractor interface {
	Extract(data []byte) (string, error)
}

type TemplateResolver interface {
	Resolve(name string) (*templates.Template, error)
}

type Renderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

type WebhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

type Deps struct {
	Records    RecordStore
	Artifacts  ArtifactStore
	Extractor  Extractor
	Templates  TemplateResolver
	Renderer   Renderer
	Webhook    WebhookSender
	WebhookURL string
	Metrics    *Metrics
	Logger     zerolog.Logger
}

// Result is the outcome envelope of one job. On failure only BookID (when a
// record exists) and Message are set.
type Result struct {
	BookID      string
	OriginalURL string
	PDFURL      string
	Message     string
}

type Processor struct {
	records    RecordStore
	artifacts  ArtifactStore
	extractor  Extractor
	templates  TemplateResolver
	renderer   Renderer
	webhook    WebhookSender
	webhookURL string
	metrics    *Metrics
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

func NewProcessor(deps Deps) (*Processor, error) {
	switch {
	case deps.Records == nil:
		return nil, errors.New("record store is required")
	case deps.Artifacts == nil:
		return nil, errors.New("artifact store is required")
	case deps.Extractor == nil:
		return nil, errors.New("extractor is required")
	case deps.Templates == nil:
		return nil, errors.New("template resolver is required")
	case deps.Renderer == nil:
		return nil, errors.New("renderer is required")
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Processor{
		records:    deps.Records,
		artifacts:  deps.Artifacts,
		extractor:  deps.Extractor,
		templates:  deps.Templates,
		renderer:   deps.Renderer,
		webhook:    deps.Webhook,
		webhookURL: deps.WebhookURL,
		metrics:    metrics,
		logger:     deps.Logger.With().Str("component", "pipeline").Logger(),
		tracer:     otel.Tracer("proto-book/pipeline"),
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Process runs one submission to completion. The job is not tied to the
// caller's cancellation: once started it finishes or fails on its own.
// A failed job returns a *Error alongside a Result carrying the message.
func (p *Processor) Process(ctx context.Context, sub domain.Submission) (Result, error) {
	ctx = context.WithoutCancel(ctx)
	startedAt := time.Now()

	ctx, span := p.tracer.Start(ctx, "pipeline.process_book")
	defer span.End()
	span.SetAttributes(
		attribute.String("book.filename", sub.DisplayName()),
		attribute.String("book.template", templates.ResolveName(sub.TemplateName)),
	)

	p.metrics.activeJobs.Inc()
	defer p.metrics.activeJobs.Dec()

	result, err := p.process(ctx, sub)
	if err == nil {
		span.SetStatus(codes.Ok, "processed")
		p.metrics.observe(StageCompleted, "", time.Since(startedAt))
		p.notify(ctx, EventProcessed, map[string]any{
			"book_id":      result.BookID,
			"original_url": result.OriginalURL,
			"pdf_url":      result.PDFURL,
			"completed_at": p.now(),
		})
		return result, nil
	}

	var perr *Error
	if !errors.As(err, &perr) {
		perr = &Error{Stage: StageFailed, Err: err}
	}
	result = Result{BookID: perr.BookID, Message: UserMessage(perr)}

	span.RecordError(err)
	span.SetStatus(codes.Error, "pipeline failed")
	span.SetAttributes(attribute.String("pipeline.failed_stage", string(perr.Stage)))
	p.metrics.observe(StageFailed, perr.Stage, time.Since(startedAt))

	logEvt := p.logger.Error()
	if IsValidation(err) {
		logEvt = p.logger.Warn()
	}
	logEvt.Err(perr.Err).
		Str("book_id", perr.BookID).
		Str("stage", string(perr.Stage)).
		Msg("book processing failed")

	if perr.BookID != "" {
		message := perr.Err.Error()
		p.updateBook(ctx, perr.BookID, domain.BookUpdate{ErrorMessage: &message})
		p.notify(ctx, EventFailed, map[string]any{
			"book_id":   perr.BookID,
			"stage":     perr.Stage,
			"error":     message,
			"failed_at": p.now(),
		})
	}
	return result, perr
}

func (p *Processor) process(ctx context.Context, sub domain.Submission) (Result, error) {
	if err := sub.Validate(); err != nil {
		return Result{}, &Error{Stage: StageValidated, Err: err}
	}

	var book domain.Book
	err := p.step(ctx, StageRecordCreated, func(ctx context.Context) error {
		created, err := p.records.Create(ctx, domain.Book{OriginalFilename: sub.DisplayName()})
		if err != nil {
			return fmt.Errorf("%w: create record: %w", domain.ErrPersistence, err)
		}
		book = created
		return nil
	})
	if err != nil {
		return Result{}, &Error{Stage: StageRecordCreated, Err: err}
	}

	bookID := book.ID
	logger := p.logger.With().Str("book_id", bookID).Logger()
	logger.Info().
		Str("filename", book.OriginalFilename).
		Int("bytes", len(sub.Data)).
		Msg("book record created")

	fail := func(stage Stage, err error) (Result, error) {
		return Result{}, &Error{Stage: stage, BookID: bookID, Err: err}
	}

	var original storage.Artifact
	err = p.step(ctx, StageOriginalStored, func(ctx context.Context) error {
		art, err := p.artifacts.Upload(ctx, sub.Data, FolderOriginals, storage.KindRaw, p.artifactKey(bookID))
		if err != nil {
			return withKind(domain.ErrStorage, err, "upload original")
		}
		original = art
		return nil
	})
	if err != nil {
		return fail(StageOriginalStored, err)
	}
	p.updateBook(ctx, bookID, domain.BookUpdate{
		OriginalURL:       &original.URL,
		OriginalSecureURL: &original.SecureURL,
	})

	var content string
	err = p.step(ctx, StageContentExtracted, func(context.Context) error {
		html, err := p.extractor.Extract(sub.Data)
		if err != nil {
			return withKind(domain.ErrExtraction, err, "extract content")
		}
		content = html
		return nil
	})
	if err != nil {
		return fail(StageContentExtracted, err)
	}

	var pdf []byte
	err = p.step(ctx, StageRendered, func(ctx context.Context) error {
		tmpl, err := p.templates.Resolve(sub.TemplateName)
		if err != nil {
			return withKind(domain.ErrTemplateLoad, err, "resolve template")
		}
		page, err := tmpl.Execute(sub.Title(), content)
		if err != nil {
			return &domain.TemplateLoadError{Name: tmpl.Name(), Err: err}
		}

		out, err := p.renderer.Render(ctx, page)
		if err != nil {
			if errors.Is(err, domain.ErrRendererUnavailable) {
				return err
			}
			return withKind(domain.ErrRender, err, "render pdf")
		}
		pdf = out
		return nil
	})
	if err != nil {
		return fail(StageRendered, err)
	}
	p.metrics.pdfBytes.Observe(float64(len(pdf)))

	var rendered storage.Artifact
	err = p.step(ctx, StagePDFStored, func(ctx context.Context) error {
		art, err := p.artifacts.Upload(ctx, pdf, FolderPDFs, storage.KindImage, p.artifactKey(bookID))
		if err != nil {
			return withKind(domain.ErrStorage, err, "upload pdf")
		}
		rendered = art
		return nil
	})
	if err != nil {
		return fail(StagePDFStored, err)
	}

	processedAt := p.now()
	cleared := ""
	p.updateBook(ctx, bookID, domain.BookUpdate{
		PDFURL:       &rendered.URL,
		PDFSecureURL: &rendered.SecureURL,
		ProcessedAt:  &processedAt,
		ErrorMessage: &cleared,
	})

	logger.Info().
		Str("original_key", original.Key).
		Str("pdf_key", rendered.Key).
		Int("pdf_bytes", len(pdf)).
		Msg("book processed")

	return Result{
		BookID:      bookID,
		OriginalURL: original.SecureURL,
		PDFURL:      rendered.SecureURL,
		Message:     SuccessMessage,
	}, nil
}

func (p *Processor) step(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, "pipeline."+string(stage))
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(stage)+" failed")
		return err
	}
	return nil
}

func (p *Processor) artifactKey(bookID string) string {
	return fmt.Sprintf("book-%s-%d", bookID, p.now().UnixMilli())
}

// updateBook is best-effort: a failed write is logged and the job carries on.
func (p *Processor) updateBook(ctx context.Context, bookID string, update domain.BookUpdate) {
	if err := p.records.Update(ctx, bookID, update); err != nil {
		p.logger.Warn().
			Err(fmt.Errorf("%w: %w", domain.ErrPersistence, err)).
			Str("book_id", bookID).
			Msg("book record update failed")
	}
}

func (p *Processor) notify(ctx context.Context, event string, body map[string]any) {
	if p.webhook == nil || p.webhookURL == "" {
		return
	}
	if err := p.webhook.Send(ctx, p.webhookURL, event, body); err != nil {
		p.logger.Warn().Err(err).Str("event", event).Msg("webhook delivery failed")
	}
}
