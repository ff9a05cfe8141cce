package settings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/billing"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/platform/httpx"
	"github.com/shivanikushwahbellway-collab/weconnect-crm-sub008/internal/shared"
)

// Service reads and writes business settings.
type Service struct {
	repo   Repository
	audit  shared.Auditor
	logger *slog.Logger
}

// NewService constructs the service.
func NewService(repo Repository, audit shared.Auditor, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAuditor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Business returns the stored settings, or Defaults when none exist.
func (s *Service) Business(ctx context.Context) (Business, error) {
	b, found, err := s.repo.Get(ctx)
	if err != nil {
		return Business{}, fmt.Errorf("settings: load: %w", err)
	}
	if !found {
		return Defaults(), nil
	}
	return b, nil
}

// NumberFormat returns the configured format for docType.
func (s *Service) NumberFormat(ctx context.Context, docType billing.DocType) (billing.Format, error) {
	b, err := s.Business(ctx)
	if err != nil {
		return billing.Format{}, err
	}
	return b.Format(docType), nil
}

// Update validates and stores req. Omitted number settings keep their
// current values.
func (s *Service) Update(ctx context.Context, actor shared.Actor, req UpdateRequest) (Business, error) {
	if err := httpx.Validate(req); err != nil {
		return Business{}, err
	}
	current, err := s.Business(ctx)
	if err != nil {
		return Business{}, err
	}
	next := current
	next.CompanyName = req.CompanyName
	next.Address = req.Address
	next.Email = req.Email
	next.Phone = req.Phone
	next.TaxID = req.TaxID
	next.LogoURL = req.LogoURL
	if req.PDFTemplate != "" {
		next.PDFTemplate = req.PDFTemplate
	}
	if req.DefaultCurrency != "" {
		next.DefaultCurrency = req.DefaultCurrency
	}
	if n := req.InvoiceNumber; n != nil {
		next.InvoiceFormat = billing.Format{Prefix: n.Prefix, Suffix: n.Suffix, Width: n.Width}
	}
	if n := req.QuotationNumber; n != nil {
		next.QuotationFormat = billing.Format{Prefix: n.Prefix, Suffix: n.Suffix, Width: n.Width}
	}
	saved, err := s.repo.Save(ctx, next)
	if err != nil {
		return Business{}, fmt.Errorf("settings: save: %w", err)
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor.UserID, Action: "settings.update", Entity: "business_settings", EntityID: "1"}); err != nil {
		s.logger.Warn("audit settings change", slog.Any("error", err))
	}
	return saved, nil
}
