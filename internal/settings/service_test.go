package settings

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/billing"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

type memoryRepo struct {
	stored *Business
}

func (m *memoryRepo) Get(context.Context) (Business, bool, error) {
	if m.stored == nil {
		return Business{}, false, nil
	}
	return *m.stored, true, nil
}

func (m *memoryRepo) Save(_ context.Context, b Business) (Business, error) {
	m.stored = &b
	return b, nil
}

func TestDefaultsBeforeFirstSave(t *testing.T) {
	svc := NewService(&memoryRepo{}, nil, nil)

	inv, err := svc.NumberFormat(context.Background(), billing.DocInvoice)
	require.NoError(t, err)
	assert.Equal(t, "INV-000001", inv.Render(1))

	q, err := svc.NumberFormat(context.Background(), billing.DocQuotation)
	require.NoError(t, err)
	assert.Equal(t, "Q-000001", q.Render(1))
}

func TestUpdateKeepsOmittedFormats(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil, nil)

	saved, err := svc.Update(context.Background(), shared.Actor{UserID: 1}, UpdateRequest{
		CompanyName:   "Acme",
		PDFTemplate:   TemplateModern,
		InvoiceNumber: &NumberSettings{Prefix: "A/", Suffix: "/25", Width: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, "A/0012/25", saved.InvoiceFormat.Render(12))
	assert.Equal(t, billing.DefaultQuotationFormat, saved.QuotationFormat)
	assert.Equal(t, TemplateModern, saved.PDFTemplate)
	assert.Equal(t, "USD", saved.DefaultCurrency)
}

func TestUpdateValidates(t *testing.T) {
	svc := NewService(&memoryRepo{}, nil, nil)
	_, err := svc.Update(context.Background(), shared.Actor{UserID: 1}, UpdateRequest{
		CompanyName:   "Acme",
		InvoiceNumber: &NumberSettings{Prefix: "X", Width: 0},
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Update(context.Background(), shared.Actor{UserID: 1}, UpdateRequest{CompanyName: "Acme", PDFTemplate: "fancy"})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

type failingAuditor struct{}

func (failingAuditor) Record(context.Context, shared.AuditLog) error {
	return errors.New("audit table locked")
}

func TestUpdateLogsAuditFailure(t *testing.T) {
	var logs bytes.Buffer
	repo := &memoryRepo{}
	svc := NewService(repo, failingAuditor{}, slog.New(slog.NewJSONHandler(&logs, nil)))

	saved, err := svc.Update(context.Background(), shared.Actor{UserID: 1}, UpdateRequest{CompanyName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "Acme", saved.CompanyName)
	require.NotNil(t, repo.stored)

	assert.Contains(t, logs.String(), `"msg":"audit settings change"`)
	assert.Contains(t, logs.String(), "audit table locked")
}
