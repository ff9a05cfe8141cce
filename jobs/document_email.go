package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/documents"
	jobmetrics "github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/jobs"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// DocumentRenderer produces the PDF for one document of a kind.
type DocumentRenderer interface {
	RenderForDelivery(ctx context.Context, id int64) (documents.Rendered, error)
}

// DocumentEmailJob renders sent invoices and quotations and mails them.
type DocumentEmailJob struct {
	Renderers map[string]DocumentRenderer
	Mailer    Mailer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewDocumentEmailJob wires the handler.
func NewDocumentEmailJob(invoices, quotations DocumentRenderer, mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *DocumentEmailJob {
	return &DocumentEmailJob{
		Renderers: map[string]DocumentRenderer{
			shared.KindInvoice:   invoices,
			shared.KindQuotation: quotations,
		},
		Mailer:  mailer,
		Logger:  logger,
		Metrics: metrics,
	}
}

// Handle processes TaskDocumentEmail tasks. Malformed payloads and documents
// that no longer exist are not retried.
func (j *DocumentEmailJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Mailer == nil {
		return errors.New("document email: handler not configured")
	}
	var mail shared.DocumentMail
	if err := json.Unmarshal(t.Payload(), &mail); err != nil {
		return fmt.Errorf("document email: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	renderer, ok := j.Renderers[mail.Kind]
	if !ok || renderer == nil || mail.To == "" {
		return fmt.Errorf("document email: unsupported payload kind=%q: %w", mail.Kind, asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskDocumentEmail)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("kind", mail.Kind), slog.Int64("document_id", mail.DocumentID))
	rendered, err := renderer.RenderForDelivery(ctx, mail.DocumentID)
	if errors.Is(err, httpx.ErrNotFound) {
		logger.Warn("document vanished before delivery")
		return fmt.Errorf("document email: %w: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		logger.Error("render document", slog.Any("error", err))
		return err
	}

	msg := Message{
		To:      mail.To,
		Subject: subjectFor(mail.Kind, rendered.Filename),
		Body:    fmt.Sprintf("Please find the attached %s.\r\n", mail.Kind),
		Attachments: []Attachment{{
			Filename:    rendered.Filename,
			ContentType: "application/pdf",
			Content:     rendered.PDF,
		}},
	}
	if err := j.Mailer.Send(ctx, msg); err != nil {
		logger.Error("send document email", slog.Any("error", err))
		return err
	}
	logger.Info("document emailed", slog.String("to", mail.To))
	return nil
}

func subjectFor(kind, filename string) string {
	switch kind {
	case shared.KindInvoice:
		return "Invoice " + strings.TrimSuffix(filename, ".pdf")
	case shared.KindQuotation:
		return "Quotation " + strings.TrimSuffix(filename, ".pdf")
	}
	return filename
}

func (j *DocumentEmailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDocumentEmail))
	}
	return slog.Default().With(slog.String("job", TaskDocumentEmail))
}

func (j *DocumentEmailJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
