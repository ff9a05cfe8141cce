package analytics

import (
	"context"
	"log/slog"
	"time"
)

// EventRecorder matches the document lifecycle hook of invoices and
// quotations.
type EventRecorder interface {
	DocumentEvent(docType, event string)
}

// InvalidatingRecorder forwards lifecycle events and drops cached
// dashboards.
type InvalidatingRecorder struct {
	Next    EventRecorder
	Service *Service
	Logger  *slog.Logger
}

// DocumentEvent implements EventRecorder.
func (r InvalidatingRecorder) DocumentEvent(docType, event string) {
	if r.Next != nil {
		r.Next.DocumentEvent(docType, event)
	}
	if r.Service == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Service.Invalidate(ctx); err != nil && r.Logger != nil {
		r.Logger.Warn("invalidate dashboard cache",
			slog.String("doc_type", docType),
			slog.String("event", event),
			slog.Any("error", err),
		)
	}
}
