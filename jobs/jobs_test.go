package jobs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/documents"
	jobmetrics "github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/jobs"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/rbac"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

type stubRenderer struct {
	err   error
	calls []int64
}

func (s *stubRenderer) RenderForDelivery(_ context.Context, id int64) (documents.Rendered, error) {
	s.calls = append(s.calls, id)
	if s.err != nil {
		return documents.Rendered{}, s.err
	}
	return documents.Rendered{Filename: "INV-000042.pdf", PDF: []byte("%PDF-1.7")}, nil
}

type captureMailer struct {
	sent []Message
	err  error
}

func (c *captureMailer) Send(_ context.Context, msg Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Queue: QueueDefault, Type: task.Type()}, nil
}

func (r *recordingEnqueuer) Close() error { return nil }

func testMetrics() *jobmetrics.Metrics { return jobmetrics.NewMetrics(prometheus.NewRegistry()) }

func documentTask(t *testing.T, mail shared.DocumentMail) *asynq.Task {
	t.Helper()
	task, err := NewDocumentEmailTask(mail)
	require.NoError(t, err)
	return task
}

func TestDocumentSentEnqueues(t *testing.T) {
	enq := &recordingEnqueuer{}
	client := NewClientWith(enq)
	mail := shared.DocumentMail{Kind: shared.KindInvoice, DocumentID: 42, To: "billing@acme.example", ActorID: 1}
	require.NoError(t, client.DocumentSent(context.Background(), mail))

	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskDocumentEmail, enq.tasks[0].Type())
	var got shared.DocumentMail
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &got))
	assert.Equal(t, mail, got)
}

func TestDocumentEmailSendsAttachment(t *testing.T) {
	invoices := &stubRenderer{}
	mailer := &captureMailer{}
	job := NewDocumentEmailJob(invoices, &stubRenderer{}, mailer, nil, testMetrics())

	err := job.Handle(context.Background(), documentTask(t, shared.DocumentMail{Kind: shared.KindInvoice, DocumentID: 42, To: "a@b.example"}))
	require.NoError(t, err)
	assert.Equal(t, []int64{42}, invoices.calls)
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "Invoice INV-000042", msg.Subject)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
}

func TestDocumentEmailSkipsRetryForMissingDocument(t *testing.T) {
	renderer := &stubRenderer{err: httpx.ErrNotFound}
	job := NewDocumentEmailJob(renderer, renderer, &captureMailer{}, nil, testMetrics())
	err := job.Handle(context.Background(), documentTask(t, shared.DocumentMail{Kind: shared.KindQuotation, DocumentID: 9, To: "a@b.example"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestDocumentEmailRetriesMailerFailure(t *testing.T) {
	job := NewDocumentEmailJob(&stubRenderer{}, &stubRenderer{}, &captureMailer{err: errors.New("relay down")}, nil, testMetrics())
	err := job.Handle(context.Background(), documentTask(t, shared.DocumentMail{Kind: shared.KindInvoice, DocumentID: 1, To: "a@b.example"}))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestDocumentEmailRejectsUnknownKind(t *testing.T) {
	job := NewDocumentEmailJob(&stubRenderer{}, &stubRenderer{}, &captureMailer{}, nil, testMetrics())
	err := job.Handle(context.Background(), documentTask(t, shared.DocumentMail{Kind: "receipt", DocumentID: 1, To: "a@b.example"}))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = job.Handle(context.Background(), asynq.NewTask(TaskDocumentEmail, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

type fakePurger struct {
	retain  time.Duration
	removed int64
}

func (f *fakePurger) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	f.retain = olderThan
	return f.removed, nil
}

func TestIdempotencyCleanupRetention(t *testing.T) {
	store := &fakePurger{removed: 3}
	job := NewIdempotencyCleanupJob(store, nil, testMetrics())

	task, err := NewIdempotencyCleanupTask(48)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 48*time.Hour, store.retain)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	assert.Equal(t, 7*24*time.Hour, store.retain)
}

func TestComposeFoldsAttachmentLines(t *testing.T) {
	m := NewSMTPMailer("127.0.0.1", 1025, "no-reply@crm.local")
	m.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	pdf := bytes.Repeat([]byte("%PDF-1.7 invoice body "), 200)

	composed, err := m.compose(Message{
		To:          "a@b.example",
		Subject:     "Invoice INV-1",
		Body:        "hello",
		Attachments: []Attachment{{Filename: "INV-1.pdf", ContentType: "application/pdf", Content: pdf}},
	})
	require.NoError(t, err)
	var raw bytes.Buffer
	_, err = composed.WriteTo(&raw)
	require.NoError(t, err)

	for _, line := range strings.Split(raw.String(), "\r\n") {
		require.LessOrEqual(t, len(line), 998, "line too long: %q", line)
	}

	parsed, err := mail.ReadMessage(&raw)
	require.NoError(t, err)
	assert.Contains(t, parsed.Header.Get("To"), "a@b.example")
	assert.Equal(t, "Invoice INV-1", parsed.Header.Get("Subject"))
	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)

	reader := multipart.NewReader(parsed.Body, params["boundary"])
	var attached []byte
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if part.FileName() != "INV-1.pdf" {
			continue
		}
		assert.Contains(t, part.Header.Get("Content-Type"), "application/pdf")
		assert.Equal(t, "base64", part.Header.Get("Content-Transfer-Encoding"))
		encoded, err := io.ReadAll(part)
		require.NoError(t, err)
		for _, line := range strings.Split(strings.TrimRight(string(encoded), "\r\n"), "\r\n") {
			require.LessOrEqual(t, len(line), 76, "base64 line not folded: %q", line)
		}
		attached, err = io.ReadAll(base64.NewDecoder(base64.StdEncoding, bytes.NewReader(encoded)))
		require.NoError(t, err)
	}
	assert.Equal(t, pdf, attached)
}

type staticPerms map[int64][]string

func (s staticPerms) EffectivePermissions(_ context.Context, id int64) ([]string, error) {
	return s[id], nil
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestHealthEndpoint(t *testing.T) {
	mw := rbac.Middleware{Service: staticPerms{1: {shared.PermJobsView}}}
	serve := func(h *Handler, userID int64) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				ctx := shared.ContextWithActor(req.Context(), shared.Actor{UserID: userID})
				next.ServeHTTP(w, req.WithContext(ctx))
			})
		})
		r.Route("/jobs", h.MountRoutes)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
		return rec
	}

	rec := serve(NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 2, Archived: 1}}, nil, mw), 1)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"pending":2`))
	assert.True(t, strings.Contains(rec.Body.String(), `"failed":1`))

	rec = serve(NewHandler(stubInspector{err: errors.New("redis down")}, nil, mw), 1)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(NewHandler(nil, nil, mw), 2)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
